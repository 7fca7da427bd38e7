package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

func TestIsUntransformable(t *testing.T) {
	cases := []struct {
		name string
		doc  core.Document
		want bool
	}{
		{"plain document", core.Document{"_id": "a", "x": 1}, false},
		{"no user fields", core.Document{"_id": "a"}, false},
		{"missing id", core.Document{"x": 1}, false},
		{"local document", core.Document{"_id": "_local/a", "x": 1}, true},
		{"local deleted", core.Document{"_id": "_local/a", "_deleted": true, "x": 1}, true},
		{"bare tombstone", core.Document{"_id": "a", "_rev": "1-x", "_deleted": true}, true},
		{"tombstone with user field", core.Document{"_id": "a", "_deleted": true, "x": 1}, false},
		{"falsy deletion marker", core.Document{"_id": "a", "_deleted": false}, false},
		{"zero deletion marker", core.Document{"_id": "a", "_deleted": 0.0}, false},
		{"string deletion marker", core.Document{"_id": "a", "_deleted": "false"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transform.IsUntransformable(tc.doc))
		})
	}
}

func TestIsUntransformable_RecomputedOnMutation(t *testing.T) {
	doc := core.Document{"_id": "a", "_deleted": true}
	assert.True(t, transform.IsUntransformable(doc))

	doc["note"] = "why it was removed"
	assert.False(t, transform.IsUntransformable(doc))
}

func TestIsLocalID(t *testing.T) {
	assert.True(t, transform.IsLocalID("_local/x"))
	assert.True(t, transform.IsLocalID("_local"))
	assert.False(t, transform.IsLocalID("local/x"))
	assert.False(t, transform.IsLocalID("x_local"))
}
