package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer/pkg/adapters/memory"
	"github.com/aretw0/veneer/pkg/core"
)

func TestNew(t *testing.T) {
	db := memory.New("scratch")
	defer db.Close()

	info := db.Info()
	assert.Equal(t, "scratch", info.Name)
	assert.Equal(t, core.AdapterMemory, info.Adapter)
	assert.True(t, info.DedicatedPut)

	_, err := db.Put(context.Background(), core.Document{"_id": "a"}, nil)
	require.NoError(t, err)

	state, ok := db.State().(memory.State)
	require.True(t, ok)
	assert.Equal(t, 1, state.DocCount)
	assert.Equal(t, int64(1), state.UpdateSeq)
	assert.Equal(t, "memory", db.ComponentType())
}
