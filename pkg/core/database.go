package core

import "context"

// AdapterType names the kind of backend behind a Database.
type AdapterType string

const (
	AdapterMemory AdapterType = "memory"
	AdapterFS     AdapterType = "fs"
	AdapterHTTP   AdapterType = "http"
)

// Info describes a database instance.
type Info struct {
	Name      string      `json:"db_name"`
	Adapter   AdapterType `json:"adapter"`
	DocCount  int         `json:"doc_count"`
	UpdateSeq int64       `json:"update_seq"`

	// DedicatedPut is true when the backend has its own single-document write
	// primitive. Backends without one route Put through BulkDocs.
	DedicatedPut bool `json:"-"`
}

// Database defines the contract for storing and retrieving documents.
// Adhering to this interface allows the transform layer to be independent of
// the underlying storage mechanism (memory, filesystem, remote HTTP server).
type Database interface {
	// Info reports the database name, adapter kind and counters.
	Info() Info

	// Get reads one document. With open_revs it returns the list shape.
	Get(ctx context.Context, id string, opts Options) (GetResult, error)

	// Put writes one document.
	Put(ctx context.Context, doc Document, opts Options) (WriteResult, error)

	// BulkDocs writes many documents. Per-document failures are reported in
	// the returned slice; the error is reserved for whole-request failures.
	BulkDocs(ctx context.Context, docs []Document, opts Options) ([]WriteResult, error)

	// AllDocs lists documents ordered by id.
	AllDocs(ctx context.Context, opts Options) (AllDocsResponse, error)

	// BulkGet fetches many documents, optionally at specific revisions.
	BulkGet(ctx context.Context, reqs []BulkGetRequest, opts Options) (BulkGetResponse, error)

	// Query runs the named view ("ddoc/view").
	Query(ctx context.Context, fun string, opts Options) (QueryResponse, error)

	// Changes returns a feed of changes. The feed is inert until Start or Wait.
	Changes(ctx context.Context, opts Options) ChangesFeed

	// Close releases backend resources.
	Close() error
}

// PutCapability is implemented by databases that know without a round trip
// whether they have a dedicated single-document write.
type PutCapability interface {
	HasDedicatedPut() bool
}

// HasDedicatedPut reports whether db has its own single-document write.
// Databases that do not implement PutCapability are asked through Info.
func HasDedicatedPut(db Database) bool {
	if pc, ok := db.(PutCapability); ok {
		return pc.HasDedicatedPut()
	}
	return db.Info().DedicatedPut
}

// Args bundles the arguments of one database call.
// It is created per call and shared by reference between the interceptor,
// every hook invoked for the call, and the original operation, which reads
// the current field values when it finally runs.
type Args struct {
	Base     Database
	DocID    string
	Doc      Document
	Docs     []Document
	Requests []BulkGetRequest
	Fun      string
	Options  Options
}

// Event names a changes feed event.
type Event string

const (
	// EventChange carries a Change payload.
	EventChange Event = "change"
	// EventComplete carries the final ChangesResponse payload.
	EventComplete Event = "complete"
	// EventError carries an error payload.
	EventError Event = "error"
	// EventPaused is emitted by live feeds once caught up; payload is nil.
	EventPaused Event = "paused"
	// EventActive is emitted by live feeds when they resume; payload is nil.
	EventActive Event = "active"
)

// Listener receives an event payload.
type Listener func(payload any)

// ChangesFeed is an event emitter over the changes of a database that also
// resolves to the final ChangesResponse.
type ChangesFeed interface {
	// On registers a listener. Register listeners before Start.
	On(event Event, l Listener) ChangesFeed

	// Start begins emission. It is idempotent.
	Start()

	// Wait starts the feed if needed and blocks until it completes.
	Wait(ctx context.Context) (ChangesResponse, error)

	// Cancel stops a live feed; it then completes with status "cancelled".
	Cancel()

	// Done is closed once the feed has completed or failed.
	Done() <-chan struct{}
}

