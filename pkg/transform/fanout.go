package transform

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut calls fn for every index in [0, n) concurrently and waits for all of
// them. The first error cancels the context handed to the remaining calls.
func fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	switch n {
	case 0:
		return nil
	case 1:
		return fn(ctx, 0)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
