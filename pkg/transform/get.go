package transform

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/wrap"
)

// get lets BeforeOutgoing short-circuit the fetch, then runs Outgoing on the
// document, or on every resolved entry of an open_revs list.
func (t *Transformer) get(ctx context.Context, orig wrap.GetFunc, args *core.Args) (core.GetResult, error) {
	doc, err := t.beforeOutgoing(ctx, args.DocID, args, OpGet)
	if err != nil {
		return core.GetResult{}, err
	}

	res := core.GetResult{Doc: doc}
	if doc == nil {
		res, err = orig()
		if err != nil {
			return res, err
		}
	}

	if res.IsList() {
		err := fanOut(ctx, len(res.Revs), func(ctx context.Context, i int) error {
			if res.Revs[i].OK == nil {
				return nil
			}
			out, err := t.outgoing(ctx, res.Revs[i].OK, args, OpGet)
			if err != nil {
				return err
			}
			res.Revs[i].OK = out
			return nil
		})
		if err != nil {
			return core.GetResult{}, err
		}
		return res, nil
	}

	out, err := t.outgoing(ctx, res.Doc, args, OpGet)
	if err != nil {
		return core.GetResult{}, err
	}
	res.Doc = out
	return res, nil
}
