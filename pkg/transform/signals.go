package transform

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for transform events.
var (
	SignalInstalled    = capitan.NewSignal("transform.installed", "Transform handlers installed on a database")
	SignalHookStart    = capitan.NewSignal("transform.hook.start", "Hook invocation beginning")
	SignalHookComplete = capitan.NewSignal("transform.hook.complete", "Hook invocation finished")
)

// Keys for typed event data.
var (
	KeyHook     = capitan.NewStringKey("hook")
	KeyOp       = capitan.NewStringKey("op")
	KeyDocID    = capitan.NewStringKey("doc_id")
	KeyAdapter  = capitan.NewStringKey("adapter")
	KeyHooks    = capitan.NewIntKey("hooks")
	KeyDuration = capitan.NewDurationKey("duration")
	KeyError    = capitan.NewErrorKey("error")
)

func emitInstalled(ctx context.Context, adapter string, hooks int) {
	capitan.Emit(ctx, SignalInstalled,
		KeyAdapter.Field(adapter),
		KeyHooks.Field(hooks),
	)
}

func emitHookStart(ctx context.Context, hook string, op Op, docID string) {
	capitan.Emit(ctx, SignalHookStart,
		KeyHook.Field(hook),
		KeyOp.Field(string(op)),
		KeyDocID.Field(docID),
	)
}

func emitHookComplete(ctx context.Context, hook string, op Op, docID string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyHook.Field(hook),
		KeyOp.Field(string(op)),
		KeyDocID.Field(docID),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalHookComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalHookComplete, fields...)
	}
}
