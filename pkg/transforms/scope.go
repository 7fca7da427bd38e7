package transforms

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

// Scope restricts cfg to documents whose id matches the doublestar pattern
// (e.g. "secrets/**"). Other documents pass through untouched.
func Scope(pattern string, cfg transform.Config) (transform.Config, error) {
	if !doublestar.ValidatePattern(pattern) {
		return transform.Config{}, fmt.Errorf("invalid scope pattern %q", pattern)
	}
	match := func(id string) bool {
		ok, _ := doublestar.Match(pattern, id)
		return ok
	}

	var out transform.Config
	if cfg.Incoming != nil {
		out.Incoming = func(ctx context.Context, doc core.Document, args *core.Args, op transform.Op) (*transform.IncomingResult, error) {
			if !match(doc.ID()) {
				return &transform.IncomingResult{Doc: doc, Untransformable: true}, nil
			}
			return cfg.Incoming(ctx, doc, args, op)
		}
	}
	if cfg.AfterIncoming != nil {
		out.AfterIncoming = func(ctx context.Context, res *transform.IncomingResult, op transform.Op) error {
			if res.Untransformable || !match(res.Doc.ID()) {
				return nil
			}
			return cfg.AfterIncoming(ctx, res, op)
		}
	}
	if cfg.BeforeOutgoing != nil {
		out.BeforeOutgoing = func(ctx context.Context, id string, args *core.Args, op transform.Op) (core.Document, error) {
			if !match(id) {
				return nil, nil
			}
			return cfg.BeforeOutgoing(ctx, id, args, op)
		}
	}
	if cfg.Outgoing != nil {
		out.Outgoing = func(ctx context.Context, doc core.Document, args *core.Args, op transform.Op) (core.Document, error) {
			if !match(doc.ID()) {
				return doc, nil
			}
			return cfg.Outgoing(ctx, doc, args, op)
		}
	}
	return out, nil
}
