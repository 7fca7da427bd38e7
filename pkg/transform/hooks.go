package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/veneer/pkg/core"
)

// incoming runs the Incoming hook on an eligible document. Ineligible
// documents and an unconfigured hook yield the document itself, flagged as
// untransformable.
func (t *Transformer) incoming(ctx context.Context, doc core.Document, args *core.Args, op Op) (*IncomingResult, error) {
	if t.cfg.Incoming == nil || IsUntransformable(doc) {
		return &IncomingResult{Doc: doc, Untransformable: true}, nil
	}
	var res *IncomingResult
	err := t.invoke(ctx, HookIncoming, op, doc.ID(), func() error {
		r, err := t.cfg.Incoming(ctx, doc, args, op)
		if err != nil {
			return err
		}
		if r == nil || r.Doc == nil {
			return ErrNoDocument
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// afterIncoming notifies the AfterIncoming hook of a completed write.
// The write outcome and the call arguments are merged into res first.
func (t *Transformer) afterIncoming(ctx context.Context, res *IncomingResult, args *core.Args, wr *core.WriteResult, op Op) error {
	if t.cfg.AfterIncoming == nil || res == nil || IsUntransformable(res.Doc) {
		return nil
	}
	if wr != nil {
		res.WriteResult = *wr
	}
	res.Args = args
	return t.invoke(ctx, HookAfterIncoming, op, res.Doc.ID(), func() error {
		return t.cfg.AfterIncoming(ctx, res, op)
	})
}

// beforeOutgoing asks the BeforeOutgoing hook for a replacement document.
// A nil document means the real fetch must run.
func (t *Transformer) beforeOutgoing(ctx context.Context, id string, args *core.Args, op Op) (core.Document, error) {
	if t.cfg.BeforeOutgoing == nil || IsLocalID(id) || exposesRevisions(args.Options) {
		return nil, nil
	}
	var doc core.Document
	err := t.invoke(ctx, HookBeforeOutgoing, op, id, func() error {
		d, err := t.cfg.BeforeOutgoing(ctx, id, args, op)
		doc = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// outgoing runs the Outgoing hook on an eligible document. A hook returning
// nil leaves the document as it was.
func (t *Transformer) outgoing(ctx context.Context, doc core.Document, args *core.Args, op Op) (core.Document, error) {
	if t.cfg.Outgoing == nil || doc == nil || IsUntransformable(doc) {
		return doc, nil
	}
	out := doc
	err := t.invoke(ctx, HookOutgoing, op, doc.ID(), func() error {
		d, err := t.cfg.Outgoing(ctx, doc, args, op)
		if err != nil {
			return err
		}
		if d != nil {
			out = d
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// exposesRevisions reports whether opts ask for revision metadata, which a
// BeforeOutgoing replacement could not honour.
func exposesRevisions(opts core.Options) bool {
	return opts.Has(core.OptRev) ||
		opts.Has(core.OptRevs) ||
		opts.Has(core.OptRevsInfo) ||
		opts.Has(core.OptOpenRevs)
}

// invoke runs one hook call, converting panics and errors into *HookError.
func (t *Transformer) invoke(ctx context.Context, hook string, op Op, docID string, fn func() error) (err error) {
	start := time.Now()
	emitHookStart(ctx, hook, op, docID)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanic, r)
		}
		if err != nil {
			err = &HookError{Hook: hook, Op: op, DocID: docID, Err: err}
		}
		elapsed := time.Since(start)
		t.metrics.observe(hook, op, elapsed, err)
		emitHookComplete(ctx, hook, op, docID, elapsed, err)
		if err != nil {
			t.logger.Debug("hook failed", "hook", hook, "op", op, "id", docID, "error", err)
		} else {
			t.logger.Debug("hook applied", "hook", hook, "op", op, "id", docID, "duration", elapsed)
		}
	}()

	return fn()
}
