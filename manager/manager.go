// Package manager groups named clients behind one facade for bulk cache operations.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deeplooplabs/crystalcache/client"
)

// ErrUnknownClient is returned when a warm-up target names an unregistered client
var ErrUnknownClient = errors.New("unknown client")

// Manager owns a set of named clients
type Manager struct {
	mu          sync.RWMutex
	clients     map[string]*client.Client
	logger      *slog.Logger
	concurrency int
	closers     []func() error
}

// Option configures the Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithConcurrency bounds the number of warm-up requests in flight (default: 4)
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithCloser registers a resource released by Close after the clients,
// e.g. the storage medium shared by persistent clients
func WithCloser(fn func() error) Option {
	return func(m *Manager) {
		m.closers = append(m.closers, fn)
	}
}

// New creates an empty manager
func New(opts ...Option) *Manager {
	m := &Manager{
		clients:     make(map[string]*client.Client),
		logger:      slog.Default(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds clients under their names, replacing any previous client of the same name
func (m *Manager) Register(clients ...*client.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range clients {
		m.clients[c.Name()] = c
	}
}

// Client returns the client registered under name
func (m *Manager) Client(name string) (*client.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[name]
	return c, ok
}

// Names returns the registered client names in sorted order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) snapshot() map[string]*client.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*client.Client, len(m.clients))
	for name, c := range m.clients {
		out[name] = c
	}
	return out
}

// ClearAll empties the caches of every client. A client that fails to
// clear is logged and skipped; the others are still cleared.
func (m *Manager) ClearAll(ctx context.Context) {
	for name, c := range m.snapshot() {
		if err := c.ClearCache(ctx); err != nil {
			m.logger.WarnContext(ctx, "clear cache failed", "client", name, "error", err)
		}
	}
}

// Stats returns per-client cache statistics keyed by client name
func (m *Manager) Stats(ctx context.Context) map[string]client.ClientStats {
	clients := m.snapshot()
	stats := make(map[string]client.ClientStats, len(clients))
	for name, c := range clients {
		stats[name] = c.Stats(ctx)
	}
	return stats
}

// Target is one warm-up request
type Target struct {
	Client   string
	Endpoint string
	Params   map[string]any
}

// String returns "client endpoint"
func (t Target) String() string {
	return t.Client + " " + t.Endpoint
}

// Outcome is the result of warming one target
type Outcome struct {
	Target   Target
	Duration time.Duration
	Err      error
}

// Report collects warm-up outcomes in target order
type Report struct {
	Outcomes []Outcome
}

// Succeeded returns the number of targets that were fetched
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of targets that could not be fetched
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// DefaultWarmUp returns the catalog preload batch: the first page of products
// plus the category list and site config
func DefaultWarmUp() []Target {
	return []Target{
		{Client: "product", Endpoint: "/products", Params: map[string]any{"limit": 10}},
		{Client: "api", Endpoint: "/categories"},
		{Client: "api", Endpoint: "/config"},
	}
}

// WarmUp issues every target concurrently and waits for all of them to
// settle. Failures are logged and reported, never returned.
func (m *Manager) WarmUp(ctx context.Context, targets ...Target) *Report {
	if len(targets) == 0 {
		targets = DefaultWarmUp()
	}

	report := &Report{Outcomes: make([]Outcome, len(targets))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			start := time.Now()
			err := m.warm(gctx, target)
			report.Outcomes[i] = Outcome{Target: target, Duration: time.Since(start), Err: err}
			if err != nil {
				m.logger.WarnContext(gctx, "cache warm-up failed", "target", target.String(), "error", err)
			}
			return nil
		})
	}
	g.Wait()

	m.logger.InfoContext(ctx, "cache warm-up finished",
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
	)
	return report
}

func (m *Manager) warm(ctx context.Context, target Target) error {
	c, ok := m.Client(target.Client)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownClient, target.Client)
	}
	_, err := c.Get(ctx, target.Endpoint, target.Params, nil)
	return err
}

// Close closes every client and then the registered closers
func (m *Manager) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*client.Client)
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()

	var errs []error
	for name, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	for _, fn := range closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
