package transform

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/wrap"
)

// bulkDocs runs Incoming on every document before the write and
// AfterIncoming on every document once the write is acknowledged.
// The acknowledgement is returned as the backend produced it.
func (t *Transformer) bulkDocs(ctx context.Context, orig wrap.BulkDocsFunc, args *core.Args) ([]core.WriteResult, error) {
	items := make([]*IncomingResult, len(args.Docs))
	err := fanOut(ctx, len(args.Docs), func(ctx context.Context, i int) error {
		item, err := t.incoming(ctx, args.Docs[i], args, OpBulkDocs)
		if err != nil {
			return err
		}
		items[i] = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	docs := make([]core.Document, len(items))
	for i, item := range items {
		docs[i] = item.Doc
	}
	args.Docs = docs

	results, err := orig()
	if err != nil {
		return results, err
	}

	err = fanOut(ctx, len(items), func(ctx context.Context, i int) error {
		wr := matchResult(results, items[i].Doc, i)
		if wr != nil && wr.Failed() {
			return nil
		}
		return t.afterIncoming(ctx, items[i], args, wr, OpBulkDocs)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// matchResult finds the acknowledgement of the i-th submitted document.
// Results are matched by id first, then by position, since backends replaying
// history (new_edits=false) may reorder or omit entries. It returns nil when
// neither finds one.
func matchResult(results []core.WriteResult, doc core.Document, i int) *core.WriteResult {
	if id := doc.ID(); id != "" {
		for j := range results {
			if results[j].ID == id {
				return &results[j]
			}
		}
	}
	if i < len(results) {
		return &results[i]
	}
	return nil
}
