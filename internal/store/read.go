package store

import (
	"context"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/veneer/pkg/core"
)

// Get implements core.Database.
func (s *Store) Get(ctx context.Context, id string, opts core.Options) (core.GetResult, error) {
	if err := ctx.Err(); err != nil {
		return core.GetResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.GetResult{}, core.ErrClosed
	}

	if strings.HasPrefix(id, core.LocalPrefix+"/") {
		doc, ok := s.local[id]
		if !ok {
			return core.GetResult{}, core.NotFound("missing")
		}
		return core.GetResult{Doc: doc.Clone()}, nil
	}

	rec, ok := s.records[id]
	if !ok {
		return core.GetResult{}, core.NotFound("missing")
	}

	if opts.Has(core.OptOpenRevs) {
		return core.GetResult{Revs: s.openRevs(rec, opts)}, nil
	}

	if rev := opts.String(core.OptRev); rev != "" {
		node, ok := rec.Revs[rev]
		if !ok || !node.Available() {
			return core.GetResult{}, core.NotFound("missing")
		}
		return core.GetResult{Doc: rec.Doc(node, opts)}, nil
	}

	w := rec.Winner()
	if w == nil {
		return core.GetResult{}, core.NotFound("missing")
	}
	if w.Deleted {
		return core.GetResult{}, core.NotFound("deleted")
	}
	return core.GetResult{Doc: rec.Doc(w, opts)}, nil
}

// openRevs resolves the open_revs option: "all" selects every leaf, a list
// selects the given revisions in order.
func (s *Store) openRevs(rec *Record, opts core.Options) []core.RevResult {
	var revs []string
	if opts.String(core.OptOpenRevs) == "all" {
		revs = append(revs, rec.Leaves...)
		sort.Sort(sort.Reverse(sort.StringSlice(revs)))
	} else {
		revs = opts.Strings(core.OptOpenRevs)
	}

	out := make([]core.RevResult, 0, len(revs))
	for _, rev := range revs {
		node, ok := rec.Revs[rev]
		if !ok || !node.Available() {
			out = append(out, core.RevResult{Missing: rev})
			continue
		}
		out = append(out, core.RevResult{OK: rec.Doc(node, opts)})
	}
	return out
}

// AllDocs implements core.Database.
func (s *Store) AllDocs(ctx context.Context, opts core.Options) (core.AllDocsResponse, error) {
	if err := ctx.Err(); err != nil {
		return core.AllDocsResponse{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.AllDocsResponse{}, core.ErrClosed
	}

	ids := s.liveIDs()
	resp := core.AllDocsResponse{TotalRows: len(ids), Rows: []core.Row{}}
	includeDocs := opts.Has(core.OptIncludeDocs)

	if keys := opts.Strings(core.OptKeys); keys != nil {
		for _, key := range keys {
			resp.Rows = append(resp.Rows, s.keyRow(key, includeDocs, opts))
		}
		return resp, nil
	}

	ids, err := filterGlob(ids, opts.String(core.OptFilterGlob))
	if err != nil {
		return core.AllDocsResponse{}, err
	}
	ids = keyRange(ids, opts)
	ids, resp.Offset = page(ids, opts)

	for _, id := range ids {
		rec := s.records[id]
		w := rec.Winner()
		row := core.Row{ID: id, Key: id, Value: map[string]any{"rev": w.Rev}}
		if includeDocs {
			row.Doc = rec.Doc(w, opts)
		}
		resp.Rows = append(resp.Rows, row)
	}
	return resp, nil
}

func (s *Store) keyRow(key string, includeDocs bool, opts core.Options) core.Row {
	rec, ok := s.records[key]
	if !ok {
		return core.Row{Key: key, Error: "not_found"}
	}
	w := rec.Winner()
	if w.Deleted {
		return core.Row{ID: key, Key: key, Value: map[string]any{"rev": w.Rev, "deleted": true}}
	}
	row := core.Row{ID: key, Key: key, Value: map[string]any{"rev": w.Rev}}
	if includeDocs {
		row.Doc = rec.Doc(w, opts)
	}
	return row
}

// keyRange applies startkey, endkey and descending to sorted ids.
func keyRange(ids []string, opts core.Options) []string {
	start, end := opts.String(core.OptStartKey), opts.String(core.OptEndKey)
	desc := opts.Has(core.OptDescending)

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		lo, hi := start, end
		if desc {
			lo, hi = end, start
		}
		if lo != "" && id < lo {
			continue
		}
		if hi != "" && id > hi {
			continue
		}
		out = append(out, id)
	}
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// page applies skip and limit. It returns the page and its offset.
func page[T any](items []T, opts core.Options) ([]T, int) {
	skip := opts.Int(core.OptSkip, 0)
	if skip > len(items) {
		skip = len(items)
	}
	if skip < 0 {
		skip = 0
	}
	items = items[skip:]
	if limit := opts.Int(core.OptLimit, -1); limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, skip
}

// filterGlob keeps the ids matching pattern. An empty pattern keeps all.
func filterGlob(ids []string, pattern string) ([]string, error) {
	if pattern == "" {
		return ids, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, core.BadRequest("invalid filter_glob pattern")
	}
	out := ids[:0:0]
	for _, id := range ids {
		if ok, _ := doublestar.Match(pattern, id); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// BulkGet implements core.Database.
func (s *Store) BulkGet(ctx context.Context, reqs []core.BulkGetRequest, opts core.Options) (core.BulkGetResponse, error) {
	if err := ctx.Err(); err != nil {
		return core.BulkGetResponse{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.BulkGetResponse{}, core.ErrClosed
	}

	resp := core.BulkGetResponse{Results: make([]core.BulkGetResult, 0, len(reqs))}
	for _, req := range reqs {
		resp.Results = append(resp.Results, core.BulkGetResult{
			ID:   req.ID,
			Docs: []core.RevResult{s.bulkGetOne(req, opts)},
		})
	}
	return resp, nil
}

func (s *Store) bulkGetOne(req core.BulkGetRequest, opts core.Options) core.RevResult {
	missing := req.Rev
	if missing == "" {
		missing = MissingRev
	}
	rec, ok := s.records[req.ID]
	if !ok {
		return core.RevResult{Missing: missing}
	}
	if req.Rev != "" {
		node, ok := rec.Revs[req.Rev]
		if !ok || !node.Available() {
			return core.RevResult{Missing: missing}
		}
		return core.RevResult{OK: rec.Doc(node, opts)}
	}
	w := rec.Winner()
	if w == nil || w.Deleted {
		return core.RevResult{Missing: missing}
	}
	return core.RevResult{OK: rec.Doc(w, opts)}
}

// MissingRev is reported for a bulkGet request without a revision whose
// document cannot be found.
const MissingRev = "undefined"
