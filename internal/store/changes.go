package store

import (
	"context"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/veneer/pkg/core"
)

// StatusCancelled is the final status of a live feed stopped by its consumer.
const StatusCancelled = "cancelled"

// Changes implements core.Database.
//
// Options: since (a sequence number or "now"), include_docs, limit,
// doc_ids, filter_glob and live. A live feed keeps emitting until it is
// cancelled or the store is closed.
func (s *Store) Changes(ctx context.Context, opts core.Options) core.ChangesFeed {
	opts = opts.Clone()
	if opts.String(core.OptSince) == "now" {
		s.mu.RLock()
		opts[core.OptSince] = s.seq
		s.mu.RUnlock()
	}
	return core.NewFeed(ctx, func(ctx context.Context, f *core.Feed) (core.ChangesResponse, error) {
		return s.produceChanges(ctx, f, opts)
	})
}

type changesFilter struct {
	ids  map[string]bool
	glob string
}

func (c changesFilter) match(id string) bool {
	if c.ids != nil && !c.ids[id] {
		return false
	}
	if c.glob != "" {
		ok, _ := doublestar.Match(c.glob, id)
		return ok
	}
	return true
}

func (s *Store) produceChanges(ctx context.Context, f *core.Feed, opts core.Options) (core.ChangesResponse, error) {
	live := opts.Has(core.OptLive)
	includeDocs := opts.Has(core.OptIncludeDocs)
	limit := opts.Int(core.OptLimit, 0)

	filter := changesFilter{glob: opts.String(core.OptFilterGlob)}
	if filter.glob != "" && !doublestar.ValidatePattern(filter.glob) {
		return core.ChangesResponse{}, core.BadRequest("invalid filter_glob pattern")
	}
	if ids := opts.Strings(core.OptDocIDs); ids != nil {
		filter.ids = make(map[string]bool, len(ids))
		for _, id := range ids {
			filter.ids[id] = true
		}
	}

	since := int64(opts.Int(core.OptSince, 0))

	resp := core.ChangesResponse{Results: []core.Change{}, LastSeq: since}
	paused := false
	for {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			if live {
				return resp, nil
			}
			return core.ChangesResponse{}, core.ErrClosed
		}
		pending := s.pendingChanges(since, filter, includeDocs)
		current := s.seq
		wake := s.notify
		s.mu.RUnlock()

		if paused && len(pending) > 0 {
			f.Emit(core.EventActive, nil)
			paused = false
		}
		for _, c := range pending {
			f.Emit(core.EventChange, c)
			resp.Results = append(resp.Results, c)
			resp.LastSeq = c.Seq
			since = c.Seq
			if limit > 0 && len(resp.Results) >= limit {
				return resp, nil
			}
		}
		if current > since {
			since = current
		}
		resp.LastSeq = since

		if !live {
			return resp, nil
		}
		if !paused {
			f.Emit(core.EventPaused, nil)
			paused = true
		}

		select {
		case <-ctx.Done():
			resp.Status = StatusCancelled
			return resp, nil
		case <-wake:
		}
	}
}

// pendingChanges lists the changes after since, one per document, ordered by
// sequence. The caller holds the read lock.
func (s *Store) pendingChanges(since int64, filter changesFilter, includeDocs bool) []core.Change {
	var out []core.Change
	for id, rec := range s.records {
		if rec.Seq <= since || !filter.match(id) {
			continue
		}
		w := rec.Winner()
		if w == nil {
			continue
		}
		c := core.Change{
			ID:      id,
			Seq:     rec.Seq,
			Changes: []core.ChangeRev{{Rev: w.Rev}},
			Deleted: w.Deleted,
		}
		if includeDocs {
			c.Doc = rec.Doc(w, nil)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}
