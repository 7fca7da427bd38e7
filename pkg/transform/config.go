package transform

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
)

// Op names the intercepted operation a hook runs for.
type Op string

const (
	OpGet      Op = "get"
	OpQuery    Op = "query"
	OpBulkDocs Op = "bulkDocs"
	OpPut      Op = "put"
	OpAllDocs  Op = "allDocs"
	OpBulkGet  Op = "bulkGet"
	OpChanges  Op = "changes"
)

// Hook names, as reported in errors, signals and metrics.
const (
	HookIncoming       = "incoming"
	HookAfterIncoming  = "afterIncoming"
	HookBeforeOutgoing = "beforeOutgoing"
	HookOutgoing       = "outgoing"
)

// IncomingResult is produced by the Incoming hook. Doc is what gets written.
// After the write, the embedded WriteResult and Args are filled in before the
// result is handed to AfterIncoming.
type IncomingResult struct {
	core.WriteResult

	Doc             core.Document
	Args            *core.Args
	Untransformable bool
}

// Hook signatures. A hook may block; returning an error (or panicking) fails
// the enclosing database operation.
type (
	IncomingFunc       func(ctx context.Context, doc core.Document, args *core.Args, op Op) (*IncomingResult, error)
	AfterIncomingFunc  func(ctx context.Context, res *IncomingResult, op Op) error
	BeforeOutgoingFunc func(ctx context.Context, id string, args *core.Args, op Op) (core.Document, error)
	OutgoingFunc       func(ctx context.Context, doc core.Document, args *core.Args, op Op) (core.Document, error)
)

// Config declares the hooks to install. Every hook is optional.
type Config struct {
	Incoming       IncomingFunc
	AfterIncoming  AfterIncomingFunc
	BeforeOutgoing BeforeOutgoingFunc
	Outgoing       OutgoingFunc
}

// hooks lists the configured hook names.
func (c Config) hooks() []string {
	var out []string
	if c.Incoming != nil {
		out = append(out, HookIncoming)
	}
	if c.AfterIncoming != nil {
		out = append(out, HookAfterIncoming)
	}
	if c.BeforeOutgoing != nil {
		out = append(out, HookBeforeOutgoing)
	}
	if c.Outgoing != nil {
		out = append(out, HookOutgoing)
	}
	return out
}
