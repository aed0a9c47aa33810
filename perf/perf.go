// Package perf holds small timing and environment helpers: debounce,
// throttle, retry with backoff, a one-shot visibility latch, network and
// device introspection, and named performance marks.
package perf

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/deeplooplabs/crystalcache/client"
)

type options struct {
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures the helpers that sleep or log
type Option func(*options)

// WithClock sets the clock (default: wall clock)
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithLogger sets the logger (default: slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func orClock(clk clock.Clock) clock.Clock {
	if clk == nil {
		return clock.New()
	}
	return clk
}

// Delay blocks for d or until ctx is done
func Delay(ctx context.Context, d time.Duration, opts ...Option) error {
	o := newOptions(opts)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.clock.After(d):
		return nil
	}
}

// RetryWithBackoff calls fn up to maxRetries+1 times, waiting
// baseDelay*2^attempt between tries. Any error is retried; the last one is
// returned.
func RetryWithBackoff[T any](ctx context.Context, fn func(ctx context.Context) (T, error), maxRetries int, baseDelay time.Duration, opts ...Option) (T, error) {
	schedule := &client.RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    baseDelay,
		BackoffMultiplier: 2,
		Enabled:           true,
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= schedule.MaxRetries; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == schedule.MaxRetries {
			break
		}
		if derr := Delay(ctx, schedule.BackoffDuration(attempt), opts...); derr != nil {
			return result, derr
		}
	}
	return result, err
}
