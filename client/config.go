package client

import (
	"net/http"
	"time"

	"github.com/deeplooplabs/crystalcache/cache"
)

// InvalidationPolicy decides which cached GET responses a successful mutation drops
type InvalidationPolicy int

const (
	// InvalidateAll clears this client's entire request cache on any mutation
	InvalidateAll InvalidationPolicy = iota
	// InvalidatePrefix only drops entries under the mutated resource's first path segment
	InvalidatePrefix
)

// String returns the string representation of InvalidationPolicy
func (p InvalidationPolicy) String() string {
	switch p {
	case InvalidateAll:
		return "all"
	case InvalidatePrefix:
		return "prefix"
	default:
		return "unknown"
	}
}

// Config contains client configuration
type Config struct {
	// Name identifies the client in logs, metrics and manager stats
	Name string

	// BaseURL is prepended to relative endpoints
	BaseURL string

	// Headers are merged over the JSON content-type default on every request
	Headers map[string]string

	// Cache configures the request cache. KeyPrefix is the client's namespace;
	// the request and mutation caches append "request_" and "mutation_" to it.
	Cache *cache.Config

	// MutationTTL is the lifetime of mutation bookkeeping entries (default: 30s)
	MutationTTL time.Duration

	// Timeout bounds a single attempt (default: 10s)
	Timeout time.Duration

	// Retry configuration for transient failures
	RetryConfig *RetryConfig

	// Invalidation selects the mutation invalidation policy (default: InvalidateAll)
	Invalidation InvalidationPolicy

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *Config {
	return NewConfig("api", "http://localhost:3001/api")
}

// NewConfig creates a new client configuration with the given name and base URL
func NewConfig(name, baseURL string) *Config {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.KeyPrefix = "api_"
	return &Config{
		Name:         name,
		BaseURL:      baseURL,
		Headers:      map[string]string{},
		Cache:        cacheConfig,
		MutationTTL:  30 * time.Second,
		Timeout:      10 * time.Second,
		RetryConfig:  DefaultRetryConfig(),
		Invalidation: InvalidateAll,
	}
}

// WithBaseURL sets the base URL
func (c *Config) WithBaseURL(baseURL string) *Config {
	c.BaseURL = baseURL
	return c
}

// WithHeader adds a default header
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	c.Headers[key] = value
	return c
}

// WithTTL sets the request cache TTL
func (c *Config) WithTTL(ttl time.Duration) *Config {
	c.cacheConfig().TTL = ttl
	return c
}

// WithMaxSize sets the request cache capacity
func (c *Config) WithMaxSize(n int) *Config {
	c.cacheConfig().MaxSize = n
	return c
}

// WithBackend sets the request cache backend
func (c *Config) WithBackend(backend cache.Backend) *Config {
	c.cacheConfig().Backend = backend
	return c
}

// WithKeyPrefix sets the client's cache namespace
func (c *Config) WithKeyPrefix(prefix string) *Config {
	c.cacheConfig().KeyPrefix = prefix
	return c
}

// WithMutationTTL sets the mutation bookkeeping TTL
func (c *Config) WithMutationTTL(ttl time.Duration) *Config {
	c.MutationTTL = ttl
	return c
}

// WithTimeout sets the per-attempt timeout
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRetryConfig sets the retry configuration
func (c *Config) WithRetryConfig(retryConfig *RetryConfig) *Config {
	c.RetryConfig = retryConfig
	return c
}

// WithInvalidation sets the mutation invalidation policy
func (c *Config) WithInvalidation(policy InvalidationPolicy) *Config {
	c.Invalidation = policy
	return c
}

// WithHTTPClient sets the HTTP client
func (c *Config) WithHTTPClient(client *http.Client) *Config {
	c.HTTPClient = client
	return c
}

// GetHTTPClient returns the HTTP client, creating a default one if not set.
// Deadlines come from per-attempt contexts, so the default client has no Timeout.
func (c *Config) GetHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Namespaces appended to the client key prefix for its two caches
const (
	RequestNamespace  = "request_"
	MutationNamespace = "mutation_"
)

func (c *Config) cacheConfig() *cache.Config {
	if c.Cache == nil {
		c.Cache = cache.DefaultConfig()
	}
	return c.Cache
}

// RequestConfig overrides client defaults for a single call
type RequestConfig struct {
	// Method is the HTTP verb (default: GET)
	Method string

	// Headers are merged over the client headers
	Headers map[string]string

	// Body is JSON-encoded when non-nil
	Body any

	// Params take part in the cache key; Get also encodes them as the query string
	Params map[string]any

	// Cache enables the request cache for this call (default: true for GET)
	Cache *bool

	// CacheTTL overrides the client TTL for the stored response
	CacheTTL time.Duration

	// Timeout overrides the per-attempt timeout
	Timeout time.Duration

	// RetryCount overrides the number of retries (0 disables retrying)
	RetryCount *int

	// RetryDelay overrides the initial backoff
	RetryDelay time.Duration
}

// Bool returns a pointer to b, for RequestConfig.Cache
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n, for RequestConfig.RetryCount
func Int(n int) *int { return &n }
