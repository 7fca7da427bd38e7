package core_test

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer/pkg/core"
)

// MockDatabase implements core.Database in memory with single-revision
// documents. Its live feed emits the changes pushed on the changes channel.
type MockDatabase struct {
	mu      sync.Mutex
	docs    map[string]core.Document
	seq     int64
	changes chan core.Change
	lastOpt core.Options
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		docs:    make(map[string]core.Document),
		changes: make(chan core.Change, 10),
	}
}

func (m *MockDatabase) Info() core.Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.Info{Name: "mock", Adapter: core.AdapterMemory, DocCount: len(m.docs), UpdateSeq: m.seq}
}

func (m *MockDatabase) Get(ctx context.Context, id string, opts core.Options) (core.GetResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.Has(core.OptOpenRevs) {
		return core.GetResult{Revs: []core.RevResult{}}, nil
	}
	doc, ok := m.docs[id]
	if !ok {
		return core.GetResult{}, core.NotFound("missing")
	}
	return core.GetResult{Doc: doc.Clone()}, nil
}

func (m *MockDatabase) Put(ctx context.Context, doc core.Document, opts core.Options) (core.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.docs[doc.ID()]
	if exists && current.Rev() != doc.Rev() {
		return core.FailedResult(doc.ID(), core.Conflict()), nil
	}
	m.seq++
	rev := uuid.NewString()
	if doc.Deleted() {
		delete(m.docs, doc.ID())
	} else {
		stored := doc.Clone()
		stored[core.FieldRev] = rev
		m.docs[doc.ID()] = stored
	}
	return core.WriteResult{OK: true, ID: doc.ID(), Rev: rev}, nil
}

func (m *MockDatabase) BulkDocs(ctx context.Context, docs []core.Document, opts core.Options) ([]core.WriteResult, error) {
	out := make([]core.WriteResult, 0, len(docs))
	for _, doc := range docs {
		res, err := m.Put(ctx, doc, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (m *MockDatabase) AllDocs(ctx context.Context, opts core.Options) (core.AllDocsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := core.AllDocsResponse{TotalRows: len(m.docs), Rows: []core.Row{}}
	for id, doc := range m.docs {
		row := core.Row{ID: id, Key: id, Value: map[string]any{"rev": doc.Rev()}}
		if opts.Has(core.OptIncludeDocs) {
			row.Doc = doc.Clone()
		}
		resp.Rows = append(resp.Rows, row)
	}
	sort.Slice(resp.Rows, func(i, j int) bool { return resp.Rows[i].ID < resp.Rows[j].ID })
	return resp, nil
}

func (m *MockDatabase) BulkGet(ctx context.Context, reqs []core.BulkGetRequest, opts core.Options) (core.BulkGetResponse, error) {
	return core.BulkGetResponse{}, core.NewError(core.ErrUnsupported, "bulk_get")
}

func (m *MockDatabase) Query(ctx context.Context, fun string, opts core.Options) (core.QueryResponse, error) {
	return core.QueryResponse{}, core.NewError(core.ErrUnsupported, "query")
}

func (m *MockDatabase) Changes(ctx context.Context, opts core.Options) core.ChangesFeed {
	m.mu.Lock()
	m.lastOpt = opts
	m.mu.Unlock()
	return core.NewFeed(ctx, func(ctx context.Context, f *core.Feed) (core.ChangesResponse, error) {
		for {
			select {
			case <-ctx.Done():
				return core.ChangesResponse{Status: "cancelled"}, nil
			case c, ok := <-m.changes:
				if !ok {
					return core.ChangesResponse{}, nil
				}
				f.Emit(core.EventChange, c)
			}
		}
	})
}

func (m *MockDatabase) Close() error { return nil }

func TestService_SaveGet(t *testing.T) {
	ctx := context.Background()
	db := NewMockDatabase()
	svc := core.NewService(db, 0)

	res, err := svc.SaveDocument(ctx, core.Document{"_id": "a", "title": "first"})
	require.NoError(t, err)
	assert.True(t, res.OK)

	doc, err := svc.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "first", doc["title"])
	assert.Equal(t, res.Rev, doc.Rev())

	t.Run("Conflict Is Returned As Error", func(t *testing.T) {
		_, err := svc.SaveDocument(ctx, core.Document{"_id": "a", "title": "stale"})
		assert.ErrorIs(t, err, core.ErrConflict)
		assert.Equal(t, 409, core.StatusOf(err))
	})

	t.Run("Empty ID Rejected", func(t *testing.T) {
		_, err := svc.SaveDocument(ctx, core.Document{"title": "x"})
		assert.Error(t, err)
		_, err = svc.GetDocument(ctx, "")
		assert.Error(t, err)
		_, err = svc.DeleteDocument(ctx, "", "")
		assert.Error(t, err)
	})

	t.Run("Missing Document", func(t *testing.T) {
		_, err := svc.GetDocument(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestService_Post(t *testing.T) {
	ctx := context.Background()
	db := NewMockDatabase()
	svc := core.NewService(db, 0)

	input := core.Document{"_id": "ignored", "_rev": "1-x", "v": 1.0}
	res, err := svc.Post(ctx, input)
	require.NoError(t, err)

	_, err = uuid.Parse(res.ID)
	assert.NoError(t, err, "generated id should be a uuid")
	assert.Equal(t, "ignored", input.ID(), "caller's document is not mutated")

	doc, err := svc.GetDocument(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc["v"])

	res2, err := svc.Post(ctx, nil)
	require.NoError(t, err)
	assert.NotEqual(t, res.ID, res2.ID)
}

func TestService_DeleteList(t *testing.T) {
	ctx := context.Background()
	db := NewMockDatabase()
	svc := core.NewService(db, 0)

	results, err := svc.SaveDocuments(ctx, []core.Document{
		{"_id": "note1"}, {"_id": "note2"}, {"_id": "note3"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	list, err := svc.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	// Delete note2 without a revision: the current one is looked up.
	_, err = svc.DeleteDocument(ctx, "note2", "")
	require.NoError(t, err)

	list, err = svc.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "note1", list[0].ID())
	assert.Equal(t, "note3", list[1].ID())

	_, err = svc.DeleteDocument(ctx, "note1", "1-wrong")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestService_Watch(t *testing.T) {
	db := NewMockDatabase()
	svc := core.NewService(db, 2)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := svc.Watch(ctx, core.Options{core.OptIncludeDocs: true})
	require.NoError(t, err)

	db.mu.Lock()
	opts := db.lastOpt
	db.mu.Unlock()
	assert.True(t, opts.Has(core.OptLive))
	assert.Equal(t, "now", opts.String(core.OptSince))
	assert.True(t, opts.Has(core.OptIncludeDocs))

	db.changes <- core.Change{ID: "a", Seq: 1}
	db.changes <- core.Change{ID: "b", Seq: 2}

	for _, want := range []string{"a", "b"} {
		select {
		case c := <-events:
			assert.Equal(t, want, c.ID)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel closes when the context ends")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}
}

func TestService_WatchFeedEnds(t *testing.T) {
	baseline := runtime.NumGoroutine()

	db := NewMockDatabase()
	svc := core.NewService(db, 0)
	events, err := svc.Watch(context.Background(), nil)
	require.NoError(t, err)

	close(db.changes)
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel closes when the feed completes")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for close")
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, time.Second, 10*time.Millisecond, "watch goroutines exit with the feed")
}

func TestService_State(t *testing.T) {
	svc := core.NewService(NewMockDatabase(), 0)
	state, ok := svc.State().(core.ServiceState)
	require.True(t, ok)
	assert.Equal(t, core.DefaultEventBuffer, state.EventBufferSize)
	assert.Equal(t, "database", state.DatabaseType)
	assert.Equal(t, core.AdapterMemory, state.Adapter)
	assert.Equal(t, "service", svc.ComponentType())
}
