package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrHookPanic indicates a hook panicked; the panic value is in the message.
	ErrHookPanic = errors.New("hook panicked")

	// ErrNoDocument indicates an Incoming hook returned no document to write.
	ErrNoDocument = errors.New("incoming hook returned no document")
)

// HookError reports a failed hook. It unwraps to the hook's own error.
type HookError struct {
	Hook  string
	Op    Op
	DocID string
	Err   error
}

func (e *HookError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("%s hook failed during %s of %q: %v", e.Hook, e.Op, e.DocID, e.Err)
	}
	return fmt.Sprintf("%s hook failed during %s: %v", e.Hook, e.Op, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
