package crystalcache

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Context tracks a single client request through cache lookup, retries and storage
type Context struct {
	RequestID string
	Method    string
	URL       string
	StartTime time.Time
	Metadata  map[string]any
	clock     clock.Clock
	mu        sync.RWMutex
}

// NewContext creates a new request context timed by the wall clock
func NewContext(method, url string) *Context {
	return NewContextWithClock(method, url, clock.New())
}

// NewContextWithClock creates a request context whose start time and
// Elapsed are read from clk
func NewContextWithClock(method, url string, clk clock.Clock) *Context {
	return &Context{
		RequestID: uuid.New().String(),
		Method:    method,
		URL:       url,
		StartTime: clk.Now(),
		Metadata:  make(map[string]any),
		clock:     clk,
	}
}

// Set stores a value in the context metadata
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Metadata[key] = value
}

// Get retrieves a value from the context metadata
func (c *Context) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Metadata[key]
}

// Elapsed returns the time since the request started
func (c *Context) Elapsed() time.Duration {
	return c.clock.Since(c.StartTime)
}

type contextKey struct{}

// WithContext attaches rc to ctx
func WithContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request context attached to ctx, or nil
func FromContext(ctx context.Context) *Context {
	rc, _ := ctx.Value(contextKey{}).(*Context)
	return rc
}
