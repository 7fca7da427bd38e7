package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrNotFound indicates a missing or deleted document.
	ErrNotFound = errors.New("not_found")

	// ErrConflict indicates a revision conflict on write.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest indicates malformed input (missing id, invalid option).
	ErrBadRequest = errors.New("bad_request")

	// ErrUnsupported indicates the backend does not implement an operation.
	ErrUnsupported = errors.New("not_implemented")

	// ErrReadOnly indicates a write against a read-only database.
	ErrReadOnly = errors.New("database is in read-only mode")

	// ErrClosed indicates an operation on a closed database.
	ErrClosed = errors.New("database is closed")
)

var statusBySentinel = map[error]int{
	ErrNotFound:    http.StatusNotFound,
	ErrConflict:    http.StatusConflict,
	ErrBadRequest:  http.StatusBadRequest,
	ErrUnsupported: http.StatusNotImplemented,
	ErrReadOnly:    http.StatusForbidden,
	ErrClosed:      http.StatusPreconditionFailed,
}

// Error is a database error carrying an HTTP-style status, the error name
// and a human readable reason. It unwraps to one of the sentinel errors.
type Error struct {
	Status int
	Name   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Reason)
	}
	return e.Name
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error around a sentinel.
func NewError(sentinel error, reason string) *Error {
	status, ok := statusBySentinel[sentinel]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{
		Status: status,
		Name:   sentinel.Error(),
		Reason: reason,
		Err:    sentinel,
	}
}

// NotFound returns a not_found error with the given reason ("missing", "deleted").
func NotFound(reason string) *Error {
	return NewError(ErrNotFound, reason)
}

// Conflict returns the standard update conflict error.
func Conflict() *Error {
	return NewError(ErrConflict, "Document update conflict")
}

// BadRequest returns a bad_request error.
func BadRequest(reason string) *Error {
	return NewError(ErrBadRequest, reason)
}

// StatusOf returns the HTTP status associated with err, 500 when unknown.
func StatusOf(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	for sentinel, status := range statusBySentinel {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// ErrorFromName rebuilds an *Error from a wire-level name/reason pair.
func ErrorFromName(name, reason string) *Error {
	for sentinel := range statusBySentinel {
		if sentinel.Error() == name {
			return NewError(sentinel, reason)
		}
	}
	return &Error{Status: http.StatusInternalServerError, Name: name, Reason: reason, Err: errors.New(name)}
}

// ResultError converts a failed WriteResult into an error, nil on success.
func ResultError(r WriteResult) error {
	if !r.Failed() {
		return nil
	}
	return ErrorFromName(r.Error, r.Reason)
}

// FailedResult converts an error into a per-document WriteResult.
func FailedResult(id string, err error) WriteResult {
	var de *Error
	if errors.As(err, &de) {
		return WriteResult{ID: id, Error: de.Name, Reason: de.Reason}
	}
	return WriteResult{ID: id, Error: "unknown_error", Reason: err.Error()}
}
