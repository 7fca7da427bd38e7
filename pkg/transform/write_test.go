package transform_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer/pkg/adapters/memory"
	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

func setField(field string, value func(doc core.Document) any) transform.IncomingFunc {
	return func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (*transform.IncomingResult, error) {
		out := doc.Clone()
		out[field] = value(doc)
		return &transform.IncomingResult{Doc: out}, nil
	}
}

func setup(t *testing.T, cfg transform.Config) (*memory.DB, core.Database) {
	t.Helper()
	raw := memory.New(t.Name())
	t.Cleanup(func() { _ = raw.Close() })
	return raw, transform.Install(raw, cfg)
}

func rawDoc(t *testing.T, raw *memory.DB, id string) core.Document {
	t.Helper()
	res, err := raw.Get(context.Background(), id, nil)
	require.NoError(t, err)
	return res.Doc
}

func TestIncoming_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := transform.Config{
		Incoming: setField("foo", func(core.Document) any { return "bar" }),
	}

	t.Run("Put", func(t *testing.T) {
		raw, db := setup(t, cfg)
		res, err := db.Put(ctx, core.Document{"_id": "a", "x": 1}, nil)
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, "a", res.ID)

		assert.Equal(t, "bar", rawDoc(t, raw, "a")["foo"])
		got, err := db.Get(ctx, "a", nil)
		require.NoError(t, err)
		assert.Equal(t, "bar", got.Doc["foo"])
	})

	t.Run("Post", func(t *testing.T) {
		raw, db := setup(t, cfg)
		svc := core.NewService(db, 0)
		res, err := svc.Post(ctx, core.Document{"x": 1})
		require.NoError(t, err)
		assert.NotEmpty(t, res.ID)
		assert.Equal(t, "bar", rawDoc(t, raw, res.ID)["foo"])
	})

	t.Run("BulkDocs", func(t *testing.T) {
		raw, db := setup(t, cfg)
		results, err := db.BulkDocs(ctx, []core.Document{{"_id": "a"}, {"_id": "b"}}, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "bar", rawDoc(t, raw, "a")["foo"])
		assert.Equal(t, "bar", rawDoc(t, raw, "b")["foo"])
	})

	t.Run("Caller Document Untouched", func(t *testing.T) {
		_, db := setup(t, cfg)
		doc := core.Document{"_id": "a"}
		_, err := db.Put(ctx, doc, nil)
		require.NoError(t, err)
		assert.NotContains(t, doc, "foo")
	})
}

func TestSymmetricTransforms(t *testing.T) {
	ctx := context.Background()
	raw, db := setup(t, transform.Config{
		Incoming: setField("name", func(d core.Document) any { return strings.ToLower(d["name"].(string)) }),
		Outgoing: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (core.Document, error) {
			out := doc.Clone()
			out["name"] = strings.ToUpper(doc["name"].(string))
			return out, nil
		},
	})

	_, err := db.Put(ctx, core.Document{"_id": "a", "name": "HELLO"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", rawDoc(t, raw, "a")["name"])

	got, err := db.Get(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", got.Doc["name"])
}

func TestLocalDocumentsAreNeverTransformed(t *testing.T) {
	ctx := context.Background()
	mutate := func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (core.Document, error) {
		out := doc.Clone()
		out["v"] = "mutated"
		return out, nil
	}
	raw, db := setup(t, transform.Config{
		Incoming: setField("v", func(core.Document) any { return "mutated" }),
		Outgoing: mutate,
		BeforeOutgoing: func(context.Context, string, *core.Args, transform.Op) (core.Document, error) {
			return core.Document{"_id": "_local/cfg", "v": "substituted"}, nil
		},
	})

	res, err := db.Put(ctx, core.Document{"_id": "_local/cfg", "v": "original"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "original", rawDoc(t, raw, "_local/cfg")["v"])

	_, err = db.BulkDocs(ctx, []core.Document{{"_id": "_local/cfg", "_rev": res.Rev, "v": "second"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", rawDoc(t, raw, "_local/cfg")["v"])

	got, err := db.Get(ctx, "_local/cfg", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Doc["v"])
}

func TestBulkDocs_TenDocumentScenario(t *testing.T) {
	ctx := context.Background()
	_, db := setup(t, transform.Config{
		Incoming: setField("foo", func(d core.Document) any { return d.ID() + "_baz" }),
	})

	docs := make([]core.Document, 10)
	for i := range docs {
		docs[i] = core.Document{"_id": fmt.Sprintf("doc_%d", i)}
	}
	results, err := db.BulkDocs(ctx, docs, nil)
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i, r := range results {
		id := fmt.Sprintf("doc_%d", i)
		assert.Equal(t, id, r.ID)
		assert.True(t, r.OK)

		got, err := db.Get(ctx, id, nil)
		require.NoError(t, err)
		assert.Equal(t, id+"_baz", got.Doc["foo"])
	}
}

func TestDeletions(t *testing.T) {
	ctx := context.Background()
	var seen []string
	var mu sync.Mutex
	raw, db := setup(t, transform.Config{
		Incoming: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (*transform.IncomingResult, error) {
			mu.Lock()
			seen = append(seen, doc.ID())
			mu.Unlock()
			out := doc.Clone()
			out["stamp"] = true
			return &transform.IncomingResult{Doc: out}, nil
		},
	})

	a, err := db.Put(ctx, core.Document{"_id": "a"}, nil)
	require.NoError(t, err)
	b, err := db.Put(ctx, core.Document{"_id": "b"}, nil)
	require.NoError(t, err)

	// A bare tombstone bypasses Incoming; one carrying a user field does not.
	_, err = db.Put(ctx, core.Document{"_id": "a", "_rev": a.Rev, "_deleted": true}, nil)
	require.NoError(t, err)
	_, err = db.Put(ctx, core.Document{"_id": "b", "_rev": b.Rev, "_deleted": true, "reason": "gone"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "b"}, seen)
	tomb, err := raw.Get(ctx, "b", core.Options{"open_revs": "all"})
	require.NoError(t, err)
	require.Len(t, tomb.Revs, 1)
	assert.Equal(t, true, tomb.Revs[0].OK["stamp"])
}

func TestPut_ViaBulkDocsIsTransformedOnce(t *testing.T) {
	ctx := context.Background()
	var (
		mu    sync.Mutex
		ops   []transform.Op
		after []transform.Op
	)
	var written []core.Document
	stub := &stubDB{
		info: core.Info{Name: "remote", Adapter: core.AdapterHTTP},
		put: func(context.Context, core.Document, core.Options) (core.WriteResult, error) {
			t.Fatal("dedicated put must not be used")
			return core.WriteResult{}, nil
		},
		bulkDocs: func(_ context.Context, docs []core.Document, _ core.Options) ([]core.WriteResult, error) {
			written = append(written, docs...)
			return []core.WriteResult{{OK: true, ID: docs[0].ID(), Rev: "1-a"}}, nil
		},
	}
	db := transform.Install(stub, transform.Config{
		Incoming: func(_ context.Context, doc core.Document, _ *core.Args, op transform.Op) (*transform.IncomingResult, error) {
			mu.Lock()
			ops = append(ops, op)
			mu.Unlock()
			out := doc.Clone()
			out["n"] = doc["n"].(int) + 1
			return &transform.IncomingResult{Doc: out}, nil
		},
		AfterIncoming: func(_ context.Context, _ *transform.IncomingResult, op transform.Op) error {
			mu.Lock()
			after = append(after, op)
			mu.Unlock()
			return nil
		},
	})

	res, err := db.Put(ctx, core.Document{"_id": "a", "n": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1-a", res.Rev)
	assert.Equal(t, []transform.Op{transform.OpBulkDocs}, ops)
	assert.Equal(t, []transform.Op{transform.OpBulkDocs}, after)
	require.Len(t, written, 1)
	assert.Equal(t, 2, written[0]["n"])
}

func TestAfterIncoming_ReceivesWriteOutcome(t *testing.T) {
	ctx := context.Background()
	got := make(chan *transform.IncomingResult, 1)
	_, db := setup(t, transform.Config{
		Incoming: setField("foo", func(core.Document) any { return "bar" }),
		AfterIncoming: func(_ context.Context, res *transform.IncomingResult, op transform.Op) error {
			assert.Equal(t, transform.OpPut, op)
			got <- res
			return nil
		},
	})

	wr, err := db.Put(ctx, core.Document{"_id": "a"}, nil)
	require.NoError(t, err)

	res := <-got
	assert.True(t, res.OK)
	assert.Equal(t, "a", res.ID)
	assert.Equal(t, wr.Rev, res.Rev)
	assert.Equal(t, "bar", res.Doc["foo"])
	require.NotNil(t, res.Args)
	assert.Equal(t, db, res.Args.Base)
}

func TestBulkDocs_ResultMatching(t *testing.T) {
	ctx := context.Background()

	collect := func() (transform.AfterIncomingFunc, func() map[string]core.WriteResult) {
		var mu sync.Mutex
		seen := map[string]core.WriteResult{}
		calls := 0
		fn := func(_ context.Context, res *transform.IncomingResult, _ transform.Op) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			seen[res.Doc.ID()] = res.WriteResult
			return nil
		}
		return fn, func() map[string]core.WriteResult {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, len(seen), calls, "afterIncoming ran more than once for a document")
			return seen
		}
	}
	docs := []core.Document{{"_id": "a", "x": 1}, {"_id": "b", "x": 1}, {"_id": "c", "x": 1}}

	t.Run("Out Of Order And Sparse", func(t *testing.T) {
		after, seen := collect()
		acks := []core.WriteResult{{OK: true, ID: "c", Rev: "1-c"}, {OK: true, ID: "a", Rev: "1-a"}}
		db := transform.Install(&stubDB{
			bulkDocs: func(context.Context, []core.Document, core.Options) ([]core.WriteResult, error) {
				return acks, nil
			},
		}, transform.Config{AfterIncoming: after})

		results, err := db.BulkDocs(ctx, docs, nil)
		require.NoError(t, err)
		assert.Equal(t, acks, results)

		s := seen()
		require.Len(t, s, 3)
		assert.Equal(t, "1-a", s["a"].Rev)
		assert.Equal(t, "1-c", s["c"].Rev)
		// b has no acknowledgement of its own and falls back to position 1.
		assert.Equal(t, "1-a", s["b"].Rev)
	})

	t.Run("Empty Acknowledgement", func(t *testing.T) {
		after, seen := collect()
		db := transform.Install(&stubDB{
			bulkDocs: func(context.Context, []core.Document, core.Options) ([]core.WriteResult, error) {
				return []core.WriteResult{}, nil
			},
		}, transform.Config{AfterIncoming: after})

		results, err := db.BulkDocs(ctx, docs, core.Options{"new_edits": false})
		require.NoError(t, err)
		assert.Empty(t, results)

		s := seen()
		assert.Len(t, s, 3)
		assert.Equal(t, core.WriteResult{}, s["b"])
	})

	t.Run("Memory Replication", func(t *testing.T) {
		after, seen := collect()
		_, db := setup(t, transform.Config{AfterIncoming: after})
		replicated := []core.Document{
			{"_id": "a", "_rev": "1-x", "x": 1},
			{"_id": "b", "_rev": "1-y", "x": 1},
		}
		results, err := db.BulkDocs(ctx, replicated, core.Options{"new_edits": false})
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Len(t, seen(), 2)
	})
}

func TestBulkDocs_FailedDocumentsSkipAfterIncoming(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var notified []string
	_, db := setup(t, transform.Config{
		AfterIncoming: func(_ context.Context, res *transform.IncomingResult, _ transform.Op) error {
			mu.Lock()
			notified = append(notified, res.Doc.ID())
			mu.Unlock()
			return nil
		},
	})
	_, err := db.Put(ctx, core.Document{"_id": "taken", "x": 1}, nil)
	require.NoError(t, err)
	notified = nil

	results, err := db.BulkDocs(ctx, []core.Document{{"_id": "taken", "x": 2}, {"_id": "fresh", "x": 1}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "conflict", results[0].Error)
	assert.Equal(t, []string{"fresh"}, notified)
}

func TestUnderlyingFailurePropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	called := false
	db := transform.Install(&stubDB{
		bulkDocs: func(context.Context, []core.Document, core.Options) ([]core.WriteResult, error) {
			return nil, boom
		},
	}, transform.Config{
		AfterIncoming: func(context.Context, *transform.IncomingResult, transform.Op) error {
			called = true
			return nil
		},
	})

	_, err := db.BulkDocs(ctx, []core.Document{{"_id": "a", "x": 1}}, nil)
	assert.Equal(t, boom, err)
	assert.False(t, called)
}

func TestHookFailuresFailTheOperation(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("Incoming Error", func(t *testing.T) {
		raw, db := setup(t, transform.Config{
			Incoming: func(context.Context, core.Document, *core.Args, transform.Op) (*transform.IncomingResult, error) {
				return nil, boom
			},
		})
		_, err := db.Put(ctx, core.Document{"_id": "a"}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, boom))

		var herr *transform.HookError
		require.True(t, errors.As(err, &herr))
		assert.Equal(t, transform.HookIncoming, herr.Hook)
		assert.Equal(t, transform.OpPut, herr.Op)
		assert.Equal(t, "a", herr.DocID)
		assert.Equal(t, 0, raw.Info().DocCount)

		_, err = db.BulkDocs(ctx, []core.Document{{"_id": "a"}, {"_id": "b"}}, nil)
		assert.True(t, errors.Is(err, boom))
		assert.Equal(t, 0, raw.Info().DocCount)
	})

	t.Run("Incoming Panic", func(t *testing.T) {
		_, db := setup(t, transform.Config{
			Incoming: func(context.Context, core.Document, *core.Args, transform.Op) (*transform.IncomingResult, error) {
				panic("kaboom")
			},
		})
		_, err := db.Put(ctx, core.Document{"_id": "a"}, nil)
		assert.True(t, errors.Is(err, transform.ErrHookPanic))
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("Incoming Without Document", func(t *testing.T) {
		_, db := setup(t, transform.Config{
			Incoming: func(context.Context, core.Document, *core.Args, transform.Op) (*transform.IncomingResult, error) {
				return &transform.IncomingResult{}, nil
			},
		})
		_, err := db.Put(ctx, core.Document{"_id": "a"}, nil)
		assert.True(t, errors.Is(err, transform.ErrNoDocument))
	})

	t.Run("AfterIncoming Error", func(t *testing.T) {
		_, db := setup(t, transform.Config{
			AfterIncoming: func(context.Context, *transform.IncomingResult, transform.Op) error {
				return boom
			},
		})
		_, err := db.Put(ctx, core.Document{"_id": "a"}, nil)
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("Outgoing Error", func(t *testing.T) {
		raw, db := setup(t, transform.Config{
			Outgoing: func(context.Context, core.Document, *core.Args, transform.Op) (core.Document, error) {
				return nil, boom
			},
		})
		_, err := raw.Put(ctx, core.Document{"_id": "a"}, nil)
		require.NoError(t, err)

		_, err = db.Get(ctx, "a", nil)
		assert.True(t, errors.Is(err, boom))
		_, err = db.AllDocs(ctx, core.Options{"include_docs": true})
		assert.True(t, errors.Is(err, boom))
		_, err = db.BulkGet(ctx, []core.BulkGetRequest{{ID: "a"}}, nil)
		assert.True(t, errors.Is(err, boom))

		network := transform.Install(&stubDB{
			info: core.Info{Name: "remote", Adapter: core.AdapterHTTP},
			query: func(context.Context, string, core.Options) (core.QueryResponse, error) {
				return core.QueryResponse{Rows: []core.Row{{ID: "a", Key: "a", Doc: core.Document{"_id": "a"}}}}, nil
			},
		}, transform.Config{
			Outgoing: func(context.Context, core.Document, *core.Args, transform.Op) (core.Document, error) {
				return nil, boom
			},
		})
		_, err = network.Query(ctx, "app/all", core.Options{"include_docs": true})
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("BeforeOutgoing Error", func(t *testing.T) {
		_, db := setup(t, transform.Config{
			BeforeOutgoing: func(context.Context, string, *core.Args, transform.Op) (core.Document, error) {
				return nil, boom
			},
		})
		_, err := db.Get(ctx, "a", nil)
		assert.True(t, errors.Is(err, boom))
	})
}
