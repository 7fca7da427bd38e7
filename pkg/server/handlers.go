package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aretw0/veneer/pkg/core"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type bulkDocsRequest struct {
	Docs     []core.Document `json:"docs"`
	NewEdits *bool           `json:"new_edits,omitempty"`
}

type bulkGetRequest struct {
	Docs []core.BulkGetRequest `json:"docs"`
}

type keysRequest struct {
	Keys []string `json:"keys"`
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.db.Info())
}

// handlePost creates a document, generating its id when missing.
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var doc core.Document
	if !h.decode(w, r, &doc) {
		return
	}
	if doc.ID() == "" {
		doc[core.FieldID] = uuid.NewString()
	}
	res, err := h.db.Put(r.Context(), doc, nil)
	h.writeWrite(w, r, res, err)
}

func (h *Handler) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	id, ok := h.docID(w, r)
	if !ok {
		return
	}
	res, err := h.db.Get(r.Context(), id, queryOptions(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.IsList() {
		writeJSON(w, http.StatusOK, res.Revs)
		return
	}
	writeJSON(w, http.StatusOK, res.Doc)
}

func (h *Handler) handlePutDoc(w http.ResponseWriter, r *http.Request) {
	id, ok := h.docID(w, r)
	if !ok {
		return
	}
	var doc core.Document
	if !h.decode(w, r, &doc) {
		return
	}
	if bodyID := doc.ID(); bodyID != "" && bodyID != id {
		h.writeError(w, r, core.BadRequest("document id does not match the url"))
		return
	}
	doc[core.FieldID] = id
	if rev := r.URL.Query().Get(core.OptRev); rev != "" && doc.Rev() == "" {
		doc[core.FieldRev] = rev
	}
	opts := queryOptions(r.URL.Query())
	delete(opts, core.OptRev)
	res, err := h.db.Put(r.Context(), doc, opts)
	h.writeWrite(w, r, res, err)
}

// handleDeleteDoc writes a tombstone for the revision given in ?rev=.
func (h *Handler) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	id, ok := h.docID(w, r)
	if !ok {
		return
	}
	rev := r.URL.Query().Get(core.OptRev)
	if rev == "" {
		h.writeError(w, r, core.Conflict())
		return
	}
	doc := core.Document{core.FieldID: id, core.FieldRev: rev, core.FieldDeleted: true}
	res, err := h.db.Put(r.Context(), doc, nil)
	if err == nil && !res.Failed() {
		writeJSON(w, http.StatusOK, res)
		return
	}
	h.writeWrite(w, r, res, err)
}

func (h *Handler) handleBulkDocs(w http.ResponseWriter, r *http.Request) {
	var req bulkDocsRequest
	if !h.decode(w, r, &req) {
		return
	}
	opts := core.Options{}
	if req.NewEdits != nil {
		opts[core.OptNewEdits] = *req.NewEdits
	}
	results, err := h.db.BulkDocs(r.Context(), req.Docs, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, results)
}

func (h *Handler) handleAllDocs(w http.ResponseWriter, r *http.Request) {
	opts := queryOptions(r.URL.Query())
	if r.Method == http.MethodPost {
		var req keysRequest
		if !h.decode(w, r, &req) {
			return
		}
		if req.Keys != nil {
			opts[core.OptKeys] = req.Keys
		}
	}
	resp, err := h.db.AllDocs(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBulkGet(w http.ResponseWriter, r *http.Request) {
	var req bulkGetRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.db.BulkGet(r.Context(), req.Docs, queryOptions(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	fun := chi.URLParam(r, "ddoc") + "/" + chi.URLParam(r, "view")
	resp, err := h.db.Query(r.Context(), fun, queryOptions(r.URL.Query()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChanges serves the changes since a sequence number. Only the normal
// (non-continuous) feed is supported; clients poll for live updates.
func (h *Handler) handleChanges(w http.ResponseWriter, r *http.Request) {
	opts := queryOptions(r.URL.Query())
	if opts.Has(core.OptLive) || r.URL.Query().Get("feed") == "continuous" {
		h.writeError(w, r, core.NewError(core.ErrUnsupported, "continuous feeds are not supported"))
		return
	}
	delete(opts, core.OptLive)
	resp, err := h.db.Changes(r.Context(), opts).Wait(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// docID resolves the document id of the request. Ids may contain slashes,
// either literally or escaped as %2F.
func (h *Handler) docID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var raw string
	switch {
	case chi.URLParam(r, "ddoc") != "":
		raw = "_design/" + chi.URLParam(r, "ddoc")
	case chi.URLParam(r, "local") != "":
		raw = core.LocalPrefix + "/" + chi.URLParam(r, "local")
	default:
		raw = chi.URLParam(r, "*")
	}
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" {
		h.writeError(w, r, core.BadRequest("invalid document id"))
		return "", false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err.Error(),
		)
		h.writeError(w, r, core.BadRequest("invalid request body"))
		return false
	}
	if doc, ok := v.(*core.Document); ok && *doc == nil {
		*doc = core.Document{}
	}
	return true
}

// writeWrite reports a single-document write. A rejected write is an error
// response carrying the database status.
func (h *Handler) writeWrite(w http.ResponseWriter, r *http.Request, res core.WriteResult, err error) {
	if err == nil {
		err = core.ResultError(res)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.StatusOf(err)
	body := errorBody{Error: "internal_server_error", Reason: err.Error()}
	var de *core.Error
	if errors.As(err, &de) {
		body = errorBody{Error: de.Name, Reason: de.Reason}
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Options whose values are plain strings rather than JSON.
var stringOptions = map[string]bool{
	core.OptRev:        true,
	core.OptFilterGlob: true,
	core.OptSince:      true,
}

// queryOptions converts query parameters to database options. Values are
// decoded as JSON when possible (true, 10, ["a","b"], "key").
func queryOptions(q url.Values) core.Options {
	opts := core.Options{}
	for name, values := range q {
		if len(values) == 0 {
			continue
		}
		raw := values[len(values)-1]
		if name == "feed" {
			continue
		}
		if stringOptions[name] {
			opts[name] = strings.Trim(raw, `"`)
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			opts[name] = v
		} else {
			opts[name] = raw
		}
	}
	return opts
}
