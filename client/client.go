package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/deeplooplabs/crystalcache"
	"github.com/deeplooplabs/crystalcache/cache"
	"github.com/deeplooplabs/crystalcache/hook"
	"github.com/deeplooplabs/crystalcache/storage"
)

// ErrClosed is returned by requests on a closed client
var ErrClosed = errors.New("client closed")

// Client is an HTTP client that caches idempotent JSON responses.
//
// Each client owns two caches that never share keys: the request cache holds
// GET responses under "<prefix>request_", and the mutation cache keeps recent
// POST/PUT/PATCH/DELETE results under "<prefix>mutation_" in memory only.
type Client struct {
	config        *Config
	http          *http.Client
	requestCache  cache.Cache[json.RawMessage]
	mutationCache cache.Cache[json.RawMessage]
	guard         *writeGuard
	store         storage.Storage
	logger        *slog.Logger
	metrics       *Metrics
	hooks         *hook.Registry
	clock         clock.Clock
	closed        atomic.Bool
}

// ClientStats reports both caches of a client
type ClientStats struct {
	Request  cache.Stats `json:"request_cache"`
	Mutation cache.Stats `json:"mutation_cache"`
}

// New creates a client. Local and session backends need WithStorage.
func New(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig()
	}

	c := &Client{
		config: config,
		http:   config.GetHTTPClient(),
		guard:  newWriteGuard(),
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := *config.cacheConfig()
	base.Clock = c.clock
	base.Logger = c.logger

	requestConfig := base
	requestConfig.KeyPrefix = base.KeyPrefix + RequestNamespace
	requestCache, err := cache.New[json.RawMessage](&requestConfig, c.store)
	if err != nil {
		return nil, fmt.Errorf("create request cache: %w", err)
	}

	mutationConfig := base
	mutationConfig.KeyPrefix = base.KeyPrefix + MutationNamespace
	mutationConfig.Backend = cache.BackendMemory
	mutationConfig.TTL = config.MutationTTL
	mutationCache, err := cache.New[json.RawMessage](&mutationConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("create mutation cache: %w", err)
	}

	c.requestCache = requestCache
	c.mutationCache = mutationCache
	return c, nil
}

// Name returns the client name
func (c *Client) Name() string {
	if c.config.Name != "" {
		return c.config.Name
	}
	return "client"
}

// Config returns the client configuration
func (c *Client) Config() *Config {
	return c.config
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Request performs endpoint with per-call overrides and returns the raw JSON body.
//
// Cacheable calls (GET unless rc.Cache says otherwise) are answered from the
// request cache when fresh. Mutations always reach the network and, on
// success, invalidate the request cache according to the client policy.
func (c *Client) Request(ctx context.Context, endpoint string, rc *RequestConfig) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if rc == nil {
		rc = &RequestConfig{}
	}

	method := strings.ToUpper(rc.Method)
	if method == "" {
		method = http.MethodGet
	}
	cacheable := method == http.MethodGet
	if rc.Cache != nil {
		cacheable = *rc.Cache && !isMutation(method)
	}
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	rc = &RequestConfig{
		Method:     method,
		Headers:    rc.Headers,
		Body:       rc.Body,
		Params:     compactParams(rc.Params),
		Cache:      Bool(cacheable),
		CacheTTL:   rc.CacheTTL,
		Timeout:    timeout,
		RetryCount: rc.RetryCount,
		RetryDelay: rc.RetryDelay,
	}

	url := buildURL(c.config.BaseURL, endpoint)
	key := cacheKey(url, rc.Params)
	reqCtx := crystalcache.NewContextWithClock(method, url, c.clock)
	ctx = crystalcache.WithContext(ctx, reqCtx)

	if cacheable {
		if data, ok := c.requestCache.Get(ctx, key); ok {
			c.metrics.cacheHit(c.Name())
			c.metrics.request(c.Name(), method, "cache")
			c.logger.DebugContext(ctx, "cache hit", "client", c.Name(), "url", url)
			for _, h := range c.hooks.CacheHooks() {
				h.OnCacheHit(ctx, key)
			}
			return data, nil
		}
		c.metrics.cacheMiss(c.Name())
		for _, h := range c.hooks.CacheHooks() {
			h.OnCacheMiss(ctx, key)
		}
	}

	ticket := c.guard.issue()
	defer c.guard.release(ticket)
	data, err := c.send(ctx, reqCtx, url, rc)
	c.metrics.observe(c.Name(), method, reqCtx.Elapsed())
	if err != nil {
		c.recordFailure(ctx, reqCtx, err)
		return nil, err
	}
	c.metrics.request(c.Name(), method, "network")

	if isMutation(method) {
		c.mutationCache.Set(ctx, method+" "+key, data, 0)
		c.invalidate(ctx, endpoint)
		return data, nil
	}

	if cacheable {
		c.remember(ctx, key, ticket, data, rc)
	}
	return data, nil
}

// remember writes a fetched response unless the request was abandoned or superseded
func (c *Client) remember(ctx context.Context, key string, ticket uint64, data json.RawMessage, rc *RequestConfig) {
	if ctx.Err() != nil {
		c.metrics.discarded(c.Name())
		return
	}
	written := c.guard.commit(key, ticket, func() {
		c.requestCache.Set(ctx, key, data, rc.CacheTTL)
	})
	if !written {
		c.metrics.discarded(c.Name())
		c.logger.DebugContext(ctx, "discarded superseded response", "client", c.Name(), "key", key)
	}
}

// invalidate drops cached GET responses after a successful mutation
func (c *Client) invalidate(ctx context.Context, endpoint string) {
	policy := c.config.Invalidation
	root := ""
	if policy == InvalidatePrefix {
		root = resourceRoot(c.config.BaseURL, endpoint)
	}

	if root == "" {
		policy = InvalidateAll
	}

	c.guard.invalidate(func() {
		if root == "" {
			if err := c.requestCache.Clear(ctx); err != nil {
				c.logger.WarnContext(ctx, "cache invalidation failed", "client", c.Name(), "error", err)
			}
			return
		}
		c.requestCache.DeleteFunc(ctx, func(key string) bool {
			return underRoot(key, root)
		})
	})
	c.metrics.invalidation(c.Name(), policy)
}

// send performs the request with timeout and retry
func (c *Client) send(ctx context.Context, reqCtx *crystalcache.Context, url string, rc *RequestConfig) (json.RawMessage, error) {
	var body []byte
	if rc.Body != nil {
		b, err := json.Marshal(rc.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = b
	}

	retry := c.config.RetryConfig.override(rc.RetryCount, rc.RetryDelay)

	var result json.RawMessage
	err := retryWithBackoff(ctx, c.clock, retry, func(attempt int) error {
		reqCtx.Set("attempts", attempt+1)
		if attempt > 0 {
			c.metrics.retry(c.Name())
			c.logger.WarnContext(ctx, "retrying request",
				"client", c.Name(),
				"request_id", reqCtx.RequestID,
				"url", url,
				"attempt", attempt,
			)
		}

		data, err := c.doOnce(ctx, reqCtx, url, rc, body)
		if err != nil {
			return err
		}
		result = data
		return nil
	})
	return result, err
}

// doOnce performs a single attempt bounded by rc.Timeout
func (c *Client) doOnce(ctx context.Context, reqCtx *crystalcache.Context, url string, rc *RequestConfig, body []byte) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, rc.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, rc.Method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range rc.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", reqCtx.RequestID)

	for _, h := range c.hooks.RequestHooks() {
		if err := h.BeforeRequest(ctx, req); err != nil {
			return nil, fmt.Errorf("hook %s: %w", h.Name(), err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, rc, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, crystalcache.NewHTTPError(rc.Method, url, resp.StatusCode, statusText(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, rc, url, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	if !json.Valid(data) {
		return nil, crystalcache.NewDecodeError(rc.Method, url, errors.New("invalid JSON body"))
	}
	for _, h := range c.hooks.RequestHooks() {
		if err := h.AfterResponse(ctx, req, resp.StatusCode, data); err != nil {
			return nil, fmt.Errorf("hook %s: %w", h.Name(), err)
		}
	}
	return json.RawMessage(data), nil
}

// transportError classifies a failed exchange. Caller cancellation is
// returned as-is so it is never retried.
func (c *Client) transportError(ctx, attemptCtx context.Context, rc *RequestConfig, url string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return crystalcache.NewTimeoutError(rc.Method, url, rc.Timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return crystalcache.NewTimeoutError(rc.Method, url, rc.Timeout, err)
	}
	return crystalcache.NewNetworkError(rc.Method, url, err)
}

func (c *Client) recordFailure(ctx context.Context, reqCtx *crystalcache.Context, err error) {
	kind := "other"
	var reqErr *crystalcache.RequestError
	if errors.As(err, &reqErr) {
		kind = reqErr.Kind.String()
	}
	c.metrics.failure(c.Name(), kind)
	for _, h := range c.hooks.ErrorHooks() {
		h.OnError(ctx, err)
	}
	c.metrics.request(c.Name(), reqCtx.Method, "error")
	c.logger.WarnContext(ctx, "request failed",
		"client", c.Name(),
		"request_id", reqCtx.RequestID,
		"method", reqCtx.Method,
		"url", reqCtx.URL,
		"attempts", reqCtx.Get("attempts"),
		"error", err,
	)
}

// statusText extracts the reason phrase, e.g. "Not Found" from "404 Not Found"
func statusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// Get performs a GET with params encoded as a query string
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any, rc *RequestConfig) (json.RawMessage, error) {
	call := RequestConfig{}
	if rc != nil {
		call = *rc
	}
	call.Method = http.MethodGet
	call.Body = nil
	call.Params = params
	return c.Request(ctx, withQuery(endpoint, params), &call)
}

// Post performs a POST with a JSON body
func (c *Client) Post(ctx context.Context, endpoint string, body any, rc *RequestConfig) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPost, endpoint, body, rc)
}

// Put performs a PUT with a JSON body
func (c *Client) Put(ctx context.Context, endpoint string, body any, rc *RequestConfig) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPut, endpoint, body, rc)
}

// Patch performs a PATCH with a JSON body
func (c *Client) Patch(ctx context.Context, endpoint string, body any, rc *RequestConfig) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodPatch, endpoint, body, rc)
}

// Delete performs a DELETE
func (c *Client) Delete(ctx context.Context, endpoint string, rc *RequestConfig) (json.RawMessage, error) {
	return c.withBody(ctx, http.MethodDelete, endpoint, nil, rc)
}

func (c *Client) withBody(ctx context.Context, method, endpoint string, body any, rc *RequestConfig) (json.RawMessage, error) {
	call := RequestConfig{}
	if rc != nil {
		call = *rc
	}
	call.Method = method
	call.Body = body
	return c.Request(ctx, endpoint, &call)
}

// RecentMutation returns the result of a mutation performed within the mutation TTL
func (c *Client) RecentMutation(ctx context.Context, method, endpoint string) (json.RawMessage, bool) {
	key := cacheKey(buildURL(c.config.BaseURL, endpoint), nil)
	return c.mutationCache.Get(ctx, strings.ToUpper(method)+" "+key)
}

// ClearCache empties both caches
func (c *Client) ClearCache(ctx context.Context) error {
	var errs []error
	c.guard.invalidate(func() {
		if err := c.requestCache.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	})
	if err := c.mutationCache.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stats returns statistics for both caches
func (c *Client) Stats(ctx context.Context) ClientStats {
	return ClientStats{
		Request:  c.requestCache.Stats(ctx),
		Mutation: c.mutationCache.Stats(ctx),
	}
}

// Close releases the client. The storage medium is owned by the caller and stays open.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	return c.mutationCache.Clear(context.Background())
}

// Do performs a request and decodes the JSON body into T
func Do[T any](ctx context.Context, c *Client, endpoint string, rc *RequestConfig) (T, error) {
	var out T
	data, err := c.Request(ctx, endpoint, rc)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return out, nil
}

// GetJSON performs a GET and decodes the JSON body into T
func GetJSON[T any](ctx context.Context, c *Client, endpoint string, params map[string]any) (T, error) {
	var out T
	data, err := c.Get(ctx, endpoint, params, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return out, nil
}
