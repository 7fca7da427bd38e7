package transforms_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer/pkg/adapters/memory"
	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
	"github.com/aretw0/veneer/pkg/transforms"
)

func TestCompress(t *testing.T) {
	ctx := context.Background()
	cfg, err := transforms.Compress(64)
	require.NoError(t, err)

	raw := memory.New("compress")
	defer raw.Close()
	db := transform.Install(raw, cfg)

	long := strings.Repeat("lorem ipsum ", 100)
	_, err = db.Put(ctx, core.Document{"_id": "a", "body": long, "tag": "small"}, nil)
	require.NoError(t, err)

	// 1. Large field compressed, small one kept
	stored, err := raw.Get(ctx, "a", nil)
	require.NoError(t, err)
	body := stored.Doc["body"].(string)
	assert.True(t, strings.HasPrefix(body, transforms.CompressedPrefix))
	assert.Less(t, len(body), len(long))
	assert.Equal(t, "small", stored.Doc["tag"])

	// 2. Restored on read
	got, err := db.Get(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, long, got.Doc["body"])
}

func TestScope(t *testing.T) {
	ctx := context.Background()
	enc, err := transforms.Encrypt(testKey)
	require.NoError(t, err)

	t.Run("Only Matching Ids Are Transformed", func(t *testing.T) {
		cfg, err := transforms.Scope("secrets/**", enc)
		require.NoError(t, err)
		raw := memory.New("scope")
		defer raw.Close()
		db := transform.Install(raw, cfg)

		_, err = db.BulkDocs(ctx, []core.Document{
			{"_id": "secrets/a/b", "v": "hidden"},
			{"_id": "public", "v": "shown"},
		}, nil)
		require.NoError(t, err)

		hidden, err := raw.Get(ctx, "secrets/a/b", nil)
		require.NoError(t, err)
		assert.NotEqual(t, "hidden", hidden.Doc["v"])

		shown, err := raw.Get(ctx, "public", nil)
		require.NoError(t, err)
		assert.Equal(t, "shown", shown.Doc["v"])

		got, err := db.Get(ctx, "secrets/a/b", nil)
		require.NoError(t, err)
		assert.Equal(t, "hidden", got.Doc["v"])
	})

	t.Run("Invalid Pattern", func(t *testing.T) {
		_, err := transforms.Scope("[", enc)
		assert.Error(t, err)
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	appendTag := func(tag string) transform.Config {
		return transform.Config{
			Incoming: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (*transform.IncomingResult, error) {
				out := doc.Clone()
				out["trail"] = out["trail"].(string) + ">" + tag
				return &transform.IncomingResult{Doc: out}, nil
			},
			Outgoing: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (core.Document, error) {
				out := doc.Clone()
				out["trail"] = out["trail"].(string) + "<" + tag
				return out, nil
			},
		}
	}

	t.Run("Incoming In Order Outgoing Reversed", func(t *testing.T) {
		raw := memory.New("chain")
		defer raw.Close()
		db := transform.Install(raw, transforms.Chain(appendTag("a"), appendTag("b")))

		_, err := db.Put(ctx, core.Document{"_id": "d", "trail": ""}, nil)
		require.NoError(t, err)
		stored, err := raw.Get(ctx, "d", nil)
		require.NoError(t, err)
		assert.Equal(t, ">a>b", stored.Doc["trail"])

		got, err := db.Get(ctx, "d", nil)
		require.NoError(t, err)
		assert.Equal(t, ">a>b<b<a", got.Doc["trail"])
	})

	t.Run("Encrypt Then Compress", func(t *testing.T) {
		enc, err := transforms.Encrypt(testKey, "v")
		require.NoError(t, err)
		comp, err := transforms.Compress(0, "v")
		require.NoError(t, err)

		raw := memory.New("chain-stock")
		defer raw.Close()
		db := transform.Install(raw, transforms.Chain(comp, enc))

		_, err = db.Put(ctx, core.Document{"_id": "d", "v": "payload"}, nil)
		require.NoError(t, err)
		stored, err := raw.Get(ctx, "d", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.Doc["v"].(string), transforms.EncryptedPrefix))

		got, err := db.Get(ctx, "d", nil)
		require.NoError(t, err)
		assert.Equal(t, "payload", got.Doc["v"])
	})

	t.Run("First BeforeOutgoing Wins", func(t *testing.T) {
		fixed := func(v string) transform.Config {
			return transform.Config{BeforeOutgoing: func(_ context.Context, id string, _ *core.Args, _ transform.Op) (core.Document, error) {
				return core.Document{"_id": id, "from": v}, nil
			}}
		}
		raw := memory.New("chain-before")
		defer raw.Close()
		db := transform.Install(raw, transforms.Chain(transform.Config{}, fixed("first"), fixed("second")))

		got, err := db.Get(ctx, "anything", nil)
		require.NoError(t, err)
		assert.Equal(t, "first", got.Doc["from"])
	})
}
