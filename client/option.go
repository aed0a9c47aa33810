package client

import (
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/deeplooplabs/crystalcache/hook"
	"github.com/deeplooplabs/crystalcache/storage"
)

// Option configures the Client
type Option func(*Client)

// WithStorage sets the medium used by local and session request caches
func WithStorage(store storage.Storage) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithClock sets the clock driving cache expiry and retry backoff
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithHooks sets the hook registry
func WithHooks(hooks *hook.Registry) Option {
	return func(c *Client) {
		c.hooks = hooks
	}
}
