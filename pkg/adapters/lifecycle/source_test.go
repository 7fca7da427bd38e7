package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer/pkg/adapters/lifecycle"
	"github.com/aretw0/veneer/pkg/adapters/memory"
	"github.com/aretw0/veneer/pkg/core"
)

func TestSource(t *testing.T) {
	t.Run("Bridges A Change Channel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes := make(chan core.Change, 1)
		src := lifecycle.NewSource(changes)
		require.NoError(t, src.Start(ctx))

		changes <- core.Change{ID: "a", Seq: 1}
		select {
		case e := <-src.Events():
			assert.Equal(t, "change 1: a", e.String())
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}

		close(changes)
		select {
		case _, ok := <-src.Events():
			assert.False(t, ok, "events must close with the input")
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for close")
		}
	})

	t.Run("Follows A Database", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		db := memory.New("source")
		defer db.Close()

		src := lifecycle.NewDatabaseSource(db, nil)
		require.NoError(t, src.Start(ctx))

		_, err := db.Put(ctx, core.Document{"_id": "x"}, nil)
		require.NoError(t, err)

		select {
		case e := <-src.Events():
			c, ok := e.(core.Change)
			require.True(t, ok)
			assert.Equal(t, "x", c.ID)
		case <-ctx.Done():
			t.Fatal("timeout waiting for event")
		}
	})
}
