package transform_test

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
)

// stubDB is a core.Database whose operations are supplied by each test.
type stubDB struct {
	info     core.Info
	get      func(ctx context.Context, id string, opts core.Options) (core.GetResult, error)
	put      func(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error)
	bulkDocs func(ctx context.Context, docs []core.Document, opts core.Options) ([]core.WriteResult, error)
	allDocs  func(ctx context.Context, opts core.Options) (core.AllDocsResponse, error)
	bulkGet  func(ctx context.Context, reqs []core.BulkGetRequest, opts core.Options) (core.BulkGetResponse, error)
	query    func(ctx context.Context, fun string, opts core.Options) (core.QueryResponse, error)
	changes  func(ctx context.Context, opts core.Options) core.ChangesFeed
}

func (s *stubDB) Info() core.Info { return s.info }

func (s *stubDB) Get(ctx context.Context, id string, opts core.Options) (core.GetResult, error) {
	if s.get == nil {
		return core.GetResult{}, core.ErrUnsupported
	}
	return s.get(ctx, id, opts)
}

func (s *stubDB) Put(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error) {
	if s.put == nil {
		return core.WriteResult{}, core.ErrUnsupported
	}
	return s.put(ctx, doc, opts)
}

func (s *stubDB) BulkDocs(ctx context.Context, docs []core.Document, opts core.Options) ([]core.WriteResult, error) {
	if s.bulkDocs == nil {
		return nil, core.ErrUnsupported
	}
	return s.bulkDocs(ctx, docs, opts)
}

func (s *stubDB) AllDocs(ctx context.Context, opts core.Options) (core.AllDocsResponse, error) {
	if s.allDocs == nil {
		return core.AllDocsResponse{}, core.ErrUnsupported
	}
	return s.allDocs(ctx, opts)
}

func (s *stubDB) BulkGet(ctx context.Context, reqs []core.BulkGetRequest, opts core.Options) (core.BulkGetResponse, error) {
	if s.bulkGet == nil {
		return core.BulkGetResponse{}, core.ErrUnsupported
	}
	return s.bulkGet(ctx, reqs, opts)
}

func (s *stubDB) Query(ctx context.Context, fun string, opts core.Options) (core.QueryResponse, error) {
	if s.query == nil {
		return core.QueryResponse{}, core.ErrUnsupported
	}
	return s.query(ctx, fun, opts)
}

func (s *stubDB) Changes(ctx context.Context, opts core.Options) core.ChangesFeed {
	return s.changes(ctx, opts)
}

func (s *stubDB) Close() error { return nil }

// scriptedFeed returns a feed that emits the changes sent on script and
// completes when script is closed.
func scriptedFeed(ctx context.Context, script <-chan core.Change) core.ChangesFeed {
	return core.NewFeed(ctx, func(ctx context.Context, f *core.Feed) (core.ChangesResponse, error) {
		resp := core.ChangesResponse{Results: []core.Change{}}
		for {
			select {
			case <-ctx.Done():
				resp.Status = "cancelled"
				return resp, nil
			case c, ok := <-script:
				if !ok {
					return resp, nil
				}
				f.Emit(core.EventChange, c)
				resp.Results = append(resp.Results, c)
				resp.LastSeq = c.Seq
			}
		}
	})
}
