package hook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Hook is the base interface for all hooks
type Hook interface {
	// Name returns the unique name of this hook
	Name() string
}

// RequestHook is called around every network attempt
type RequestHook interface {
	Hook
	// BeforeRequest is called before the request is sent (can modify headers)
	BeforeRequest(ctx context.Context, req *http.Request) error
	// AfterResponse is called with the response status and decoded body of a successful exchange
	AfterResponse(ctx context.Context, req *http.Request, status int, body []byte) error
}

// CacheHook observes request cache lookups
type CacheHook interface {
	Hook
	// OnCacheHit is called when a response is served from the cache
	OnCacheHit(ctx context.Context, key string)
	// OnCacheMiss is called when a cacheable lookup misses
	OnCacheMiss(ctx context.Context, key string)
}

// ErrorHook is called when a request fails for good
type ErrorHook interface {
	Hook
	// OnError is called with the final error of a request
	OnError(ctx context.Context, err error)
}

// Registry manages registered hooks
type Registry struct {
	hooks        []Hook
	requestHooks []RequestHook
	cacheHooks   []CacheHook
	errorHooks   []ErrorHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks:        make([]Hook, 0),
		requestHooks: make([]RequestHook, 0),
		cacheHooks:   make([]CacheHook, 0),
		errorHooks:   make([]ErrorHook, 0),
	}
}

// Register registers a hook under every interface it implements
func (r *Registry) Register(hooks ...Hook) {
	for _, hook := range hooks {
		r.hooks = append(r.hooks, hook)

		known := false
		if h, ok := hook.(RequestHook); ok {
			r.requestHooks = append(r.requestHooks, h)
			known = true
		}
		if h, ok := hook.(CacheHook); ok {
			r.cacheHooks = append(r.cacheHooks, h)
			known = true
		}
		if h, ok := hook.(ErrorHook); ok {
			r.errorHooks = append(r.errorHooks, h)
			known = true
		}
		if !known {
			slog.Warn(fmt.Sprintf("unknown hook type: %T", hook))
		}
	}
}

// RequestHooks returns all request hooks
func (r *Registry) RequestHooks() []RequestHook {
	if r == nil {
		return nil
	}
	return r.requestHooks
}

// CacheHooks returns all cache hooks
func (r *Registry) CacheHooks() []CacheHook {
	if r == nil {
		return nil
	}
	return r.cacheHooks
}

// ErrorHooks returns all error hooks
func (r *Registry) ErrorHooks() []ErrorHook {
	if r == nil {
		return nil
	}
	return r.errorHooks
}

// All returns all registered hooks
func (r *Registry) All() []Hook {
	if r == nil {
		return nil
	}
	return r.hooks
}

// HeaderHook sets fixed headers on every outbound request, e.g. an API key
type HeaderHook struct {
	Headers map[string]string
}

// Name implements Hook
func (h *HeaderHook) Name() string { return "headers" }

// BeforeRequest implements RequestHook
func (h *HeaderHook) BeforeRequest(_ context.Context, req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// AfterResponse implements RequestHook
func (h *HeaderHook) AfterResponse(context.Context, *http.Request, int, []byte) error {
	return nil
}
