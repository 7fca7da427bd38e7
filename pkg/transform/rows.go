package transform

import (
	"context"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/wrap"
)

// allDocs runs Outgoing on every row carrying a document.
func (t *Transformer) allDocs(ctx context.Context, orig wrap.AllDocsFunc, args *core.Args) (core.AllDocsResponse, error) {
	res, err := orig()
	if err != nil {
		return res, err
	}
	if err := t.outgoingRows(ctx, res.Rows, args, OpAllDocs); err != nil {
		return core.AllDocsResponse{}, err
	}
	return res, nil
}

// query behaves like allDocs. It is only installed on network-backed databases.
func (t *Transformer) query(ctx context.Context, orig wrap.QueryFunc, args *core.Args) (core.QueryResponse, error) {
	res, err := orig()
	if err != nil {
		return res, err
	}
	if err := t.outgoingRows(ctx, res.Rows, args, OpQuery); err != nil {
		return core.QueryResponse{}, err
	}
	return res, nil
}

// outgoingRows rewrites row documents in place. Rows without a document keep
// their position and content.
func (t *Transformer) outgoingRows(ctx context.Context, rows []core.Row, args *core.Args, op Op) error {
	return fanOut(ctx, len(rows), func(ctx context.Context, i int) error {
		if rows[i].Doc == nil {
			return nil
		}
		out, err := t.outgoing(ctx, rows[i].Doc, args, op)
		if err != nil {
			return err
		}
		rows[i].Doc = out
		return nil
	})
}

// bulkGet runs Outgoing on every resolved revision. Entries lacking an id or
// a revision list, and missing revisions, are left as they are.
func (t *Transformer) bulkGet(ctx context.Context, orig wrap.BulkGetFunc, args *core.Args) (core.BulkGetResponse, error) {
	res, err := orig()
	if err != nil {
		return res, err
	}

	type slot struct{ result, rev int }
	var slots []slot
	for i, r := range res.Results {
		if r.ID == "" || r.Docs == nil {
			continue
		}
		for j, d := range r.Docs {
			if d.OK != nil {
				slots = append(slots, slot{i, j})
			}
		}
	}

	err = fanOut(ctx, len(slots), func(ctx context.Context, k int) error {
		s := slots[k]
		entry := &res.Results[s.result].Docs[s.rev]
		out, err := t.outgoing(ctx, entry.OK, args, OpBulkGet)
		if err != nil {
			return err
		}
		entry.OK = out
		return nil
	})
	if err != nil {
		return core.BulkGetResponse{}, err
	}
	return res, nil
}
