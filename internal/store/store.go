// Package store implements the document database shared by the embedded
// backends: revision trees, local documents, sequence numbers, views and the
// changes feed. Backends add persistence through a Persister.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/veneer/pkg/core"
)

// Persister receives every committed mutation before it becomes visible.
// A returned error aborts the mutation.
type Persister interface {
	SaveRecord(rec *Record) error
	SaveLocal(id string, doc core.Document) error
	DeleteLocal(id string) error
	SaveSeq(seq int64) error
}

// Config holds the configuration of a Store.
type Config struct {
	Name         string
	Adapter      core.AdapterType
	DedicatedPut bool
	Persister    Persister
	Logger       *slog.Logger
}

// Store is an in-memory document database. It implements core.Database.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]*Record
	local   map[string]core.Document
	seq     int64
	views   map[string]MapFunc
	notify  chan struct{}
	closed  bool
}

// New creates an empty Store.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		cfg:     cfg,
		logger:  logger,
		records: make(map[string]*Record),
		local:   make(map[string]core.Document),
		views:   make(map[string]MapFunc),
		notify:  make(chan struct{}),
	}
}

// Restore replaces the store content with previously persisted state.
func (s *Store) Restore(records []*Record, local map[string]core.Document, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record, len(records))
	for _, rec := range records {
		s.records[rec.ID] = rec
		if rec.Seq > seq {
			seq = rec.Seq
		}
	}
	s.local = make(map[string]core.Document, len(local))
	for id, doc := range local {
		s.local[id] = doc.Clone()
	}
	s.seq = seq
}

// Info implements core.Database.
func (s *Store) Info() core.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.records {
		if w := rec.Winner(); w != nil && !w.Deleted {
			count++
		}
	}
	return core.Info{
		Name:         s.cfg.Name,
		Adapter:      s.cfg.Adapter,
		DocCount:     count,
		UpdateSeq:    s.seq,
		DedicatedPut: s.cfg.DedicatedPut,
	}
}

// HasDedicatedPut implements core.PutCapability.
func (s *Store) HasDedicatedPut() bool {
	return s.cfg.DedicatedPut
}

// Record returns a copy of the revision tree of id.
func (s *Store) Record(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Put implements core.Database.
func (s *Store) Put(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return core.WriteResult{}, err
	}
	if doc.ID() == "" {
		return core.WriteResult{}, core.BadRequest("missing _id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.WriteResult{}, core.ErrClosed
	}
	res, err := s.write(doc, opts.Bool(core.OptNewEdits, true))
	if err != nil {
		return core.WriteResult{}, err
	}
	s.wake()
	return res, nil
}

// BulkDocs implements core.Database. Documents without an id get a generated
// one. With new_edits=false nothing is acknowledged and the result is empty.
func (s *Store) BulkDocs(ctx context.Context, docs []core.Document, opts core.Options) ([]core.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	newEdits := opts.Bool(core.OptNewEdits, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, core.ErrClosed
	}

	results := make([]core.WriteResult, 0, len(docs))
	for _, doc := range docs {
		if doc.ID() == "" {
			doc = doc.Clone()
			if doc == nil {
				doc = core.Document{}
			}
			doc[core.FieldID] = uuid.NewString()
		}
		res, err := s.write(doc, newEdits)
		if err != nil {
			s.logger.Debug("bulk write rejected", "id", doc.ID(), "error", err)
			res = core.FailedResult(doc.ID(), err)
		}
		results = append(results, res)
	}
	s.wake()

	if !newEdits {
		return []core.WriteResult{}, nil
	}
	return results, nil
}

// Ingest writes doc on top of the current winner, whatever revision it
// carries. It is used for edits made outside the database.
func (s *Store) Ingest(ctx context.Context, doc core.Document) (core.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return core.WriteResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.WriteResult{}, core.ErrClosed
	}

	doc = doc.Clone()
	delete(doc, core.FieldRev)
	if rec, ok := s.records[doc.ID()]; ok {
		if w := rec.Winner(); w != nil {
			doc[core.FieldRev] = w.Rev
		}
	} else if cur, ok := s.local[doc.ID()]; ok {
		doc[core.FieldRev] = cur.Rev()
	}
	res, err := s.write(doc, true)
	if err != nil {
		return core.WriteResult{}, err
	}
	s.wake()
	return res, nil
}

// write applies one document. The caller holds the write lock.
func (s *Store) write(doc core.Document, newEdits bool) (core.WriteResult, error) {
	id := doc.ID()
	switch {
	case id == "":
		return core.WriteResult{}, core.BadRequest("missing _id")
	case strings.HasPrefix(id, core.LocalPrefix+"/"):
		return s.writeLocal(doc)
	case core.IsReservedKey(id) && !strings.HasPrefix(id, "_design/"):
		return core.WriteResult{}, core.BadRequest("only reserved document ids may start with underscore")
	}

	if !newEdits {
		return s.replicate(doc)
	}

	rec, exists := s.records[id]
	parent := doc.Rev()
	if exists {
		rec = rec.clone()
		switch {
		case parent == "":
			w := rec.Winner()
			if w != nil && !w.Deleted {
				return core.WriteResult{}, core.Conflict()
			}
			if w != nil {
				parent = w.Rev
			}
		case !rec.isLeaf(parent):
			return core.WriteResult{}, core.Conflict()
		}
	} else {
		if parent != "" {
			return core.WriteResult{}, core.Conflict()
		}
		rec = newRecord(id)
	}

	body := Body(doc)
	deleted := doc.Deleted()
	rev := &Revision{
		Rev:     NewRev(parent, body, deleted),
		Parent:  parent,
		Deleted: deleted,
		Body:    body,
	}
	rec.add(rev)
	if err := s.commit(rec); err != nil {
		return core.WriteResult{}, err
	}
	s.logger.Debug("document written", "id", id, "rev", rev.Rev, "deleted", deleted)
	return core.WriteResult{OK: true, ID: id, Rev: rev.Rev}, nil
}

// replicate stores a revision produced elsewhere, together with the ancestry
// listed in _revisions.
func (s *Store) replicate(doc core.Document) (core.WriteResult, error) {
	id, rev := doc.ID(), doc.Rev()
	if rev == "" {
		return core.WriteResult{}, core.BadRequest("new_edits=false requires _rev")
	}
	gen, _, err := ParseRev(rev)
	if err != nil {
		return core.WriteResult{}, core.BadRequest(err.Error())
	}

	rec, exists := s.records[id]
	if exists {
		if _, ok := rec.Revs[rev]; ok {
			return core.WriteResult{OK: true, ID: id, Rev: rev}, nil
		}
		rec = rec.clone()
	} else {
		rec = newRecord(id)
	}

	ancestry := revisionsOf(doc, gen)
	parent := ""
	// link ancestors oldest first, keeping the content of known ones
	for i := len(ancestry) - 1; i >= 1; i-- {
		a := ancestry[i]
		if _, ok := rec.Revs[a]; !ok {
			rec.Revs[a] = &Revision{Rev: a, Parent: parent}
		}
		parent = a
	}

	rec.add(&Revision{
		Rev:     rev,
		Parent:  parent,
		Deleted: doc.Deleted(),
		Body:    Body(doc),
	})
	if err := s.commit(rec); err != nil {
		return core.WriteResult{}, err
	}
	return core.WriteResult{OK: true, ID: id, Rev: rev}, nil
}

// revisionsOf decodes the _revisions field into full revision tokens,
// newest first. It returns nil when the field is absent or malformed.
func revisionsOf(doc core.Document, gen int) []string {
	raw, ok := doc[core.FieldRevisions].(map[string]any)
	if !ok {
		return nil
	}
	start := gen
	switch v := raw["start"].(type) {
	case int:
		start = v
	case int64:
		start = int(v)
	case float64:
		start = int(v)
	}
	var ids []string
	switch v := raw["ids"].(type) {
	case []string:
		ids = v
	case []any:
		for _, e := range v {
			if h, ok := e.(string); ok {
				ids = append(ids, h)
			}
		}
	}
	out := make([]string, len(ids))
	for i, h := range ids {
		out[i] = strconv.Itoa(start-i) + "-" + h
	}
	return out
}

// commit persists rec and publishes it under a new sequence number.
func (s *Store) commit(rec *Record) error {
	rec.Seq = s.seq + 1
	if p := s.cfg.Persister; p != nil {
		if err := p.SaveRecord(rec); err != nil {
			return fmt.Errorf("failed to persist %s: %w", rec.ID, err)
		}
		if err := p.SaveSeq(rec.Seq); err != nil {
			return fmt.Errorf("failed to persist sequence: %w", err)
		}
	}
	s.seq = rec.Seq
	s.records[rec.ID] = rec
	return nil
}

// writeLocal stores a local document. Local revisions are "0-N" and local
// documents never appear in listings or in the changes feed.
func (s *Store) writeLocal(doc core.Document) (core.WriteResult, error) {
	id := doc.ID()
	cur, exists := s.local[id]
	if exists && cur.Rev() != doc.Rev() {
		return core.WriteResult{}, core.Conflict()
	}
	if !exists && doc.Rev() != "" && !doc.Deleted() {
		return core.WriteResult{}, core.Conflict()
	}

	n := 0
	if exists {
		if _, hash, err := ParseRev(cur.Rev()); err == nil {
			n, _ = strconv.Atoi(hash)
		}
	}
	rev := "0-" + strconv.Itoa(n+1)

	if doc.Deleted() {
		if !exists {
			return core.WriteResult{}, core.NotFound("missing")
		}
		if p := s.cfg.Persister; p != nil {
			if err := p.DeleteLocal(id); err != nil {
				return core.WriteResult{}, err
			}
		}
		delete(s.local, id)
		return core.WriteResult{OK: true, ID: id, Rev: "0-0"}, nil
	}

	stored := doc.Clone()
	stored[core.FieldRev] = rev
	if p := s.cfg.Persister; p != nil {
		if err := p.SaveLocal(id, stored); err != nil {
			return core.WriteResult{}, err
		}
	}
	s.local[id] = stored
	return core.WriteResult{OK: true, ID: id, Rev: rev}, nil
}

// wake releases live feeds waiting for new changes. The caller holds the
// write lock.
func (s *Store) wake() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// Close implements core.Database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.notify)
	return nil
}

// liveIDs returns the ids of documents whose winner is not deleted, sorted.
// The caller holds the read lock.
func (s *Store) liveIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id, rec := range s.records {
		if w := rec.Winner(); w != nil && !w.Deleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

var _ core.Database = (*Store)(nil)
var _ core.PutCapability = (*Store)(nil)
