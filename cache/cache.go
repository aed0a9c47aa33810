package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/deeplooplabs/crystalcache/storage"
)

// Cache is a key-value store whose entries expire independently
type Cache[T any] interface {
	// Get retrieves a value; expired entries are removed and reported absent
	Get(ctx context.Context, key string) (T, bool)

	// Set stores a value with a TTL (ttl <= 0 uses the configured default)
	Set(ctx context.Context, key string, value T, ttl time.Duration)

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string)

	// DeleteFunc removes every entry whose key matches and returns how many were removed
	DeleteFunc(ctx context.Context, match func(key string) bool) int

	// Clear removes all values owned by this cache
	Clear(ctx context.Context) error

	// Len returns the number of stored entries, expired or not
	Len(ctx context.Context) int

	// Stats returns cache statistics
	Stats(ctx context.Context) Stats
}

// Stats represents cache statistics
type Stats struct {
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
}

// newStats computes the hit rate as hits / (hits + misses), 0 before any lookup
func newStats(hits, misses uint64, size int) Stats {
	s := Stats{Size: size, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Backend selects where entries live
type Backend string

const (
	// BackendMemory keeps entries in the process
	BackendMemory Backend = "memory"
	// BackendLocal serializes entries to a durable storage medium
	BackendLocal Backend = "local"
	// BackendSession serializes entries to a medium scoped to the running session
	BackendSession Backend = "session"
)

// ParseBackend converts a configuration string to a Backend.
// The browser names localStorage/sessionStorage are accepted as aliases.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "memory":
		return BackendMemory, nil
	case "local", "localStorage":
		return BackendLocal, nil
	case "session", "sessionStorage":
		return BackendSession, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q", s)
	}
}

// Config holds cache configuration
type Config struct {
	// TTL is the default TTL for cached items (default: 5 minutes)
	TTL time.Duration

	// MaxSize is the maximum number of items (default: 100)
	MaxSize int

	// Backend selects the storage backend (default: memory)
	Backend Backend

	// KeyPrefix scopes this cache's keys inside a shared medium (default: "api_cache_")
	KeyPrefix string

	// Clock drives expiry; tests substitute clock.NewMock()
	Clock clock.Clock

	// Logger receives backend failure warnings (default: slog.Default())
	Logger *slog.Logger
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		TTL:       5 * time.Minute,
		MaxSize:   100,
		Backend:   BackendMemory,
		KeyPrefix: "api_cache_",
	}
}

// withDefaults returns a copy of c with zero fields filled in
func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		c = out
	}
	cp := *c
	if cp.TTL <= 0 {
		cp.TTL = out.TTL
	}
	if cp.MaxSize <= 0 {
		cp.MaxSize = out.MaxSize
	}
	if cp.Backend == "" {
		cp.Backend = out.Backend
	}
	if cp.Clock == nil {
		cp.Clock = clock.New()
	}
	if cp.Logger == nil {
		cp.Logger = slog.Default()
	}
	return &cp
}

// New creates a cache for the configured backend. Persistent backends require store.
func New[T any](config *Config, store storage.Storage) (Cache[T], error) {
	cfg := config.withDefaults()

	switch cfg.Backend {
	case BackendMemory:
		return NewLRUCache[T](cfg), nil
	case BackendLocal, BackendSession:
		if store == nil {
			return nil, fmt.Errorf("%s backend requires a storage medium", cfg.Backend)
		}
		return NewPersistentCache[T](cfg, store), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
