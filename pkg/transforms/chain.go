package transforms

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

// Chain composes configurations into one. Incoming hooks run in the given
// order, each on the output of the previous one; Outgoing hooks run in
// reverse order so the last transform applied is the first undone.
// AfterIncoming hooks all see the same result. The first BeforeOutgoing
// hook returning a document wins.
func Chain(cfgs ...transform.Config) transform.Config {
	cfgs = append([]transform.Config(nil), cfgs...)
	var out transform.Config

	var incoming []transform.IncomingFunc
	var after []transform.AfterIncomingFunc
	var before []transform.BeforeOutgoingFunc
	var outgoing []transform.OutgoingFunc
	for _, c := range cfgs {
		if c.Incoming != nil {
			incoming = append(incoming, c.Incoming)
		}
		if c.AfterIncoming != nil {
			after = append(after, c.AfterIncoming)
		}
		if c.BeforeOutgoing != nil {
			before = append(before, c.BeforeOutgoing)
		}
		if c.Outgoing != nil {
			outgoing = append(outgoing, c.Outgoing)
		}
	}

	if len(incoming) > 0 {
		out.Incoming = func(ctx context.Context, doc core.Document, args *core.Args, op transform.Op) (*transform.IncomingResult, error) {
			res := &transform.IncomingResult{Doc: doc, Untransformable: true}
			for _, fn := range incoming {
				r, err := fn(ctx, res.Doc, args, op)
				if err != nil {
					return nil, err
				}
				if r == nil || r.Doc == nil {
					return nil, transform.ErrNoDocument
				}
				if !r.Untransformable {
					res = &transform.IncomingResult{Doc: r.Doc}
				}
			}
			return res, nil
		}
	}
	if len(after) > 0 {
		out.AfterIncoming = func(ctx context.Context, res *transform.IncomingResult, op transform.Op) error {
			for _, fn := range after {
				if err := fn(ctx, res, op); err != nil {
					return err
				}
			}
			return nil
		}
	}
	if len(before) > 0 {
		out.BeforeOutgoing = func(ctx context.Context, id string, args *core.Args, op transform.Op) (core.Document, error) {
			for _, fn := range before {
				doc, err := fn(ctx, id, args, op)
				if err != nil || doc != nil {
					return doc, err
				}
			}
			return nil, nil
		}
	}
	if len(outgoing) > 0 {
		out.Outgoing = func(ctx context.Context, doc core.Document, args *core.Args, op transform.Op) (core.Document, error) {
			for i := len(outgoing) - 1; i >= 0; i-- {
				d, err := outgoing[i](ctx, doc, args, op)
				if err != nil {
					return nil, err
				}
				if d != nil {
					doc = d
				}
			}
			return doc, nil
		}
	}
	return out
}
