package resolve

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RunParallel executes fn over items with at most limit concurrent workers.
// A limit below 1 falls back to the number of available cores. The first
// error cancels the remaining work.
func RunParallel[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) error {
	if limit < 1 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}
	return g.Wait()
}
