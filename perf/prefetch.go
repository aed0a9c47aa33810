package perf

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Prefetch fetches every url with at most limit in flight (unbounded when
// limit <= 0) and waits for all of them. Failures are logged and skipped; the
// number of successful fetches is returned.
func Prefetch(ctx context.Context, fetch func(ctx context.Context, url string) error, urls []string, limit int, opts ...Option) int {
	o := newOptions(opts)
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	ok := make([]bool, len(urls))
	for i, url := range urls {
		g.Go(func() error {
			if err := fetch(gctx, url); err != nil {
				o.logger.WarnContext(gctx, "prefetch failed", "url", url, "error", err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	n := 0
	for _, v := range ok {
		if v {
			n++
		}
	}
	return n
}
