package transform

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/wrap"
)

// put transforms single-document writes on backends with a dedicated put.
// Other backends route put through bulkDocs, which is already intercepted.
func (t *Transformer) put(ctx context.Context, orig wrap.PutFunc, args *core.Args) (core.WriteResult, error) {
	if !core.HasDedicatedPut(args.Base) {
		return orig()
	}

	item, err := t.incoming(ctx, args.Doc, args, OpPut)
	if err != nil {
		return core.WriteResult{}, err
	}
	args.Doc = item.Doc
	args.DocID = item.Doc.ID()

	res, err := orig()
	if err != nil {
		return res, err
	}
	if res.Failed() {
		return res, nil
	}
	if err := t.afterIncoming(ctx, item, args, &res, OpPut); err != nil {
		return core.WriteResult{}, err
	}
	return res, nil
}
