package core

import "fmt"

// WriteResult acknowledges a single document write.
type WriteResult struct {
	OK     bool   `json:"ok,omitempty"`
	ID     string `json:"id,omitempty"`
	Rev    string `json:"rev,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Failed reports whether the write was rejected.
func (r WriteResult) Failed() bool {
	return r.Error != ""
}

// RevResult is one entry of an open-revisions response.
// Exactly one of OK or Missing is set.
type RevResult struct {
	OK      Document `json:"ok,omitempty"`
	Missing string   `json:"missing,omitempty"`
}

// GetResult is the outcome of a single-document read.
//
// A nil Revs means the single-document shape and Doc holds the document.
// A non-nil Revs means the open-revisions list shape requested via open_revs.
type GetResult struct {
	Doc  Document
	Revs []RevResult
}

// IsList reports whether the result has the open-revisions shape.
func (r GetResult) IsList() bool {
	return r.Revs != nil
}

// Row is one row of an allDocs or query response.
type Row struct {
	ID    string   `json:"id,omitempty"`
	Key   any      `json:"key"`
	Value any      `json:"value"`
	Doc   Document `json:"doc,omitempty"`
	Error string   `json:"error,omitempty"`
}

// AllDocsResponse is the outcome of listing documents.
type AllDocsResponse struct {
	TotalRows int   `json:"total_rows"`
	Offset    int   `json:"offset"`
	Rows      []Row `json:"rows"`
}

// QueryResponse is the outcome of a view query.
type QueryResponse struct {
	TotalRows int   `json:"total_rows"`
	Offset    int   `json:"offset"`
	Rows      []Row `json:"rows"`
}

// BulkGetRequest names one document (and optionally one revision) to fetch.
type BulkGetRequest struct {
	ID  string `json:"id"`
	Rev string `json:"rev,omitempty"`
}

// BulkGetResult groups the revisions returned for one requested id.
type BulkGetResult struct {
	ID   string      `json:"id"`
	Docs []RevResult `json:"docs"`
}

// BulkGetResponse is the outcome of a bulkGet call.
type BulkGetResponse struct {
	Results []BulkGetResult `json:"results"`
}

// ChangeRev names a leaf revision touched by a change.
type ChangeRev struct {
	Rev string `json:"rev"`
}

// Change is a single entry of the changes feed.
type Change struct {
	ID      string      `json:"id"`
	Seq     int64       `json:"seq"`
	Changes []ChangeRev `json:"changes"`
	Deleted bool        `json:"deleted,omitempty"`
	Doc     Document    `json:"doc,omitempty"`
}

// String implements fmt.Stringer so a Change can travel as a lifecycle event.
func (c Change) String() string {
	if c.Deleted {
		return fmt.Sprintf("change %d: %s (deleted)", c.Seq, c.ID)
	}
	return fmt.Sprintf("change %d: %s", c.Seq, c.ID)
}

// Clone returns a copy of the change with its own document.
func (c Change) Clone() Change {
	out := c
	out.Changes = append([]ChangeRev(nil), c.Changes...)
	out.Doc = c.Doc.Clone()
	return out
}

// ChangesResponse is the final result of a changes feed.
type ChangesResponse struct {
	Results []Change `json:"results"`
	LastSeq int64    `json:"last_seq"`
	Status  string   `json:"status,omitempty"`
}

// Clone returns a copy of the response with its own documents.
func (r ChangesResponse) Clone() ChangesResponse {
	out := r
	out.Results = make([]Change, len(r.Results))
	for i, c := range r.Results {
		out.Results[i] = c.Clone()
	}
	return out
}
