package core_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/veneer/pkg/core"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
	}{
		{"not found", core.NotFound("deleted"), core.ErrNotFound, http.StatusNotFound},
		{"conflict", core.Conflict(), core.ErrConflict, http.StatusConflict},
		{"bad request", core.BadRequest("invalid id"), core.ErrBadRequest, http.StatusBadRequest},
		{"read only", core.NewError(core.ErrReadOnly, "x"), core.ErrReadOnly, http.StatusForbidden},
		{"wrapped", fmt.Errorf("loading: %w", core.NotFound("missing")), core.ErrNotFound, http.StatusNotFound},
		{"bare sentinel", core.ErrUnsupported, core.ErrUnsupported, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.status, core.StatusOf(tt.err))
		})
	}

	assert.Equal(t, http.StatusInternalServerError, core.StatusOf(errors.New("other")))
	assert.Equal(t, "not_found: deleted", core.NotFound("deleted").Error())
}

func TestWriteResultErrors(t *testing.T) {
	assert.NoError(t, core.ResultError(core.WriteResult{OK: true, ID: "a"}))

	res := core.FailedResult("a", core.Conflict())
	assert.True(t, res.Failed())
	assert.Equal(t, "conflict", res.Error)
	assert.ErrorIs(t, core.ResultError(res), core.ErrConflict)

	res = core.FailedResult("b", errors.New("disk full"))
	assert.Equal(t, "unknown_error", res.Error)
	err := core.ResultError(res)
	assert.EqualError(t, err, "unknown_error: disk full")
	assert.Equal(t, http.StatusInternalServerError, core.StatusOf(err))
}
