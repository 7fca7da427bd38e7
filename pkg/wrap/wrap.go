// Package wrap installs interceptors in front of the operations of a
// core.Database.
//
// A handler receives the original operation as a deferred call together with
// the call arguments. It may rewrite the arguments, call the original any
// number of times (usually once), skip it entirely, and post-process its
// result. The original reads the *current* values of the shared *core.Args,
// so a handler substitutes inputs by assigning to args before calling it.
package wrap

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
)

// Deferred original operations.
type (
	GetFunc      func() (core.GetResult, error)
	PutFunc      func() (core.WriteResult, error)
	BulkDocsFunc func() ([]core.WriteResult, error)
	AllDocsFunc  func() (core.AllDocsResponse, error)
	BulkGetFunc  func() (core.BulkGetResponse, error)
	QueryFunc    func() (core.QueryResponse, error)
	ChangesFunc  func() core.ChangesFeed
)

// Handlers holds one optional interceptor per operation.
// A nil handler leaves the operation untouched.
type Handlers struct {
	Get      func(ctx context.Context, orig GetFunc, args *core.Args) (core.GetResult, error)
	Put      func(ctx context.Context, orig PutFunc, args *core.Args) (core.WriteResult, error)
	BulkDocs func(ctx context.Context, orig BulkDocsFunc, args *core.Args) ([]core.WriteResult, error)
	AllDocs  func(ctx context.Context, orig AllDocsFunc, args *core.Args) (core.AllDocsResponse, error)
	BulkGet  func(ctx context.Context, orig BulkGetFunc, args *core.Args) (core.BulkGetResponse, error)
	Query    func(ctx context.Context, orig QueryFunc, args *core.Args) (core.QueryResponse, error)
	Changes  func(ctx context.Context, orig ChangesFunc, args *core.Args) core.ChangesFeed
}

// Database routes every operation of an inner database through the
// installed handlers. It implements core.Database, so installations stack.
type Database struct {
	inner core.Database
	h     Handlers

	// resolved once at install time
	dedicatedPut bool
}

// Install wraps db with the given handlers for the lifetime of the returned value.
func Install(db core.Database, h Handlers) *Database {
	return &Database{inner: db, h: h, dedicatedPut: core.HasDedicatedPut(db)}
}

// HasDedicatedPut implements core.PutCapability.
func (d *Database) HasDedicatedPut() bool {
	return d.dedicatedPut
}

// Unwrap returns the database the handlers were installed on.
func (d *Database) Unwrap() core.Database {
	return d.inner
}

// Info implements core.Database.
func (d *Database) Info() core.Info {
	return d.inner.Info()
}

// Get implements core.Database.
func (d *Database) Get(ctx context.Context, id string, opts core.Options) (core.GetResult, error) {
	args := &core.Args{Base: d, DocID: id, Options: opts}
	orig := func() (core.GetResult, error) {
		return d.inner.Get(ctx, args.DocID, args.Options)
	}
	if d.h.Get == nil {
		return orig()
	}
	return d.h.Get(ctx, orig, args)
}

// Put implements core.Database.
//
// When the inner database has no dedicated single-document write, the
// original put is expressed through this database's BulkDocs, so bulkDocs
// handlers observe it.
func (d *Database) Put(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error) {
	args := &core.Args{Base: d, DocID: doc.ID(), Doc: doc, Options: opts}
	orig := func() (core.WriteResult, error) {
		if d.dedicatedPut {
			return d.inner.Put(ctx, args.Doc, args.Options)
		}
		return d.putViaBulkDocs(ctx, args.Doc, args.Options)
	}
	if d.h.Put == nil {
		return orig()
	}
	return d.h.Put(ctx, orig, args)
}

func (d *Database) putViaBulkDocs(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error) {
	results, err := d.BulkDocs(ctx, []core.Document{doc}, opts)
	if err != nil {
		return core.WriteResult{}, err
	}
	if len(results) == 0 {
		// new_edits=false acknowledges nothing
		return core.WriteResult{OK: true, ID: doc.ID(), Rev: doc.Rev()}, nil
	}
	res := results[0]
	if err := core.ResultError(res); err != nil {
		return res, err
	}
	return res, nil
}

// BulkDocs implements core.Database.
func (d *Database) BulkDocs(ctx context.Context, docs []core.Document, opts core.Options) ([]core.WriteResult, error) {
	args := &core.Args{Base: d, Docs: docs, Options: opts}
	orig := func() ([]core.WriteResult, error) {
		return d.inner.BulkDocs(ctx, args.Docs, args.Options)
	}
	if d.h.BulkDocs == nil {
		return orig()
	}
	return d.h.BulkDocs(ctx, orig, args)
}

// AllDocs implements core.Database.
func (d *Database) AllDocs(ctx context.Context, opts core.Options) (core.AllDocsResponse, error) {
	args := &core.Args{Base: d, Options: opts}
	orig := func() (core.AllDocsResponse, error) {
		return d.inner.AllDocs(ctx, args.Options)
	}
	if d.h.AllDocs == nil {
		return orig()
	}
	return d.h.AllDocs(ctx, orig, args)
}

// BulkGet implements core.Database.
func (d *Database) BulkGet(ctx context.Context, reqs []core.BulkGetRequest, opts core.Options) (core.BulkGetResponse, error) {
	args := &core.Args{Base: d, Requests: reqs, Options: opts}
	orig := func() (core.BulkGetResponse, error) {
		return d.inner.BulkGet(ctx, args.Requests, args.Options)
	}
	if d.h.BulkGet == nil {
		return orig()
	}
	return d.h.BulkGet(ctx, orig, args)
}

// Query implements core.Database.
func (d *Database) Query(ctx context.Context, fun string, opts core.Options) (core.QueryResponse, error) {
	args := &core.Args{Base: d, Fun: fun, Options: opts}
	orig := func() (core.QueryResponse, error) {
		return d.inner.Query(ctx, args.Fun, args.Options)
	}
	if d.h.Query == nil {
		return orig()
	}
	return d.h.Query(ctx, orig, args)
}

// Changes implements core.Database.
func (d *Database) Changes(ctx context.Context, opts core.Options) core.ChangesFeed {
	args := &core.Args{Base: d, Options: opts}
	orig := func() core.ChangesFeed {
		return d.inner.Changes(ctx, args.Options)
	}
	if d.h.Changes == nil {
		return orig()
	}
	return d.h.Changes(ctx, orig, args)
}

// Close implements core.Database.
func (d *Database) Close() error {
	return d.inner.Close()
}

var _ core.Database = (*Database)(nil)
var _ core.PutCapability = (*Database)(nil)
