package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deeplooplabs/crystalcache/storage"
)

// Entry is the serialized form of a cached value inside a storage medium:
//
//	{"data": <value>, "timestamp": <epoch_ms>, "ttl": <ms>}
type Entry[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"`
	TTL       int64 `json:"ttl"`
}

// Expired reports whether the entry is stale at now
func (e Entry[T]) Expired(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp > e.TTL
}

// persistentCache stores JSON-encoded entries in a shared storage medium.
// Storage failures are logged and treated as misses.
type persistentCache[T any] struct {
	mu     sync.Mutex
	config *Config
	store  storage.Storage
	hits   uint64
	misses uint64
}

// NewPersistentCache creates a cache that serializes entries into store
func NewPersistentCache[T any](config *Config, store storage.Storage) Cache[T] {
	return &persistentCache[T]{
		config: config.withDefaults(),
		store:  store,
	}
}

// Get retrieves a value from the medium
func (c *persistentCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	key = c.config.KeyPrefix + key

	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found, err := c.store.GetItem(ctx, key)
	if err != nil {
		c.warn(ctx, "cache get failed", key, err)
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}
	if !found {
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	var entry Entry[T]
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.warn(ctx, "cache entry corrupted", key, err)
		c.remove(ctx, key)
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	if entry.Expired(c.config.Clock.Now()) {
		c.remove(ctx, key)
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	atomic.AddUint64(&c.hits, 1)
	return entry.Data, true
}

// Set serializes a value into the medium
func (c *persistentCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}
	key = c.config.KeyPrefix + key
	now := c.config.Clock.Now()

	data, err := json.Marshal(Entry[T]{
		Data:      value,
		Timestamp: now.UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
	if err != nil {
		c.warn(ctx, "cache entry not serializable", key, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.makeRoom(ctx, key, now)

	if err := c.store.SetItem(ctx, key, string(data)); err != nil {
		c.warn(ctx, "cache set failed", key, err)
	}
}

// Delete removes a value from the medium
func (c *persistentCache[T]) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(ctx, c.config.KeyPrefix+key)
}

// DeleteFunc removes every owned entry whose unprefixed key matches
func (c *persistentCache[T]) DeleteFunc(ctx context.Context, match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.ownKeys(ctx)
	if err != nil {
		c.warn(ctx, "cache list failed", c.config.KeyPrefix, err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		if match(strings.TrimPrefix(key, c.config.KeyPrefix)) {
			c.remove(ctx, key)
			removed++
		}
	}
	return removed
}

// Clear removes only keys carrying this cache's prefix
func (c *persistentCache[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.ownKeys(ctx)
	if err != nil {
		return fmt.Errorf("clear %s: %w", c.config.KeyPrefix, err)
	}
	for _, key := range keys {
		if err := c.store.RemoveItem(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", c.config.KeyPrefix, err)
		}
	}
	return nil
}

// Len returns the number of owned entries
func (c *persistentCache[T]) Len(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.ownKeys(ctx)
	if err != nil {
		c.warn(ctx, "cache list failed", c.config.KeyPrefix, err)
		return 0
	}
	return len(keys)
}

// Stats returns cache statistics
func (c *persistentCache[T]) Stats(ctx context.Context) Stats {
	return newStats(atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), c.Len(ctx))
}

// makeRoom evicts entries when adding key would exceed MaxSize: expired
// entries go first, then the oldest by timestamp (must be called with lock held)
func (c *persistentCache[T]) makeRoom(ctx context.Context, key string, now time.Time) {
	keys, err := c.ownKeys(ctx)
	if err != nil {
		c.warn(ctx, "cache list failed", c.config.KeyPrefix, err)
		return
	}
	for _, k := range keys {
		if k == key {
			return
		}
	}
	if len(keys) < c.config.MaxSize {
		return
	}

	var (
		oldestKey string
		oldestTS  int64
		count     = len(keys)
	)
	for _, k := range keys {
		raw, found, err := c.store.GetItem(ctx, k)
		if err != nil || !found {
			continue
		}
		var meta Entry[json.RawMessage]
		if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta.Expired(now) {
			c.remove(ctx, k)
			count--
			continue
		}
		if oldestKey == "" || meta.Timestamp < oldestTS {
			oldestKey, oldestTS = k, meta.Timestamp
		}
	}
	if count >= c.config.MaxSize && oldestKey != "" {
		c.remove(ctx, oldestKey)
	}
}

func (c *persistentCache[T]) ownKeys(ctx context.Context) ([]string, error) {
	all, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := all[:0]
	for _, k := range all {
		if strings.HasPrefix(k, c.config.KeyPrefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (c *persistentCache[T]) remove(ctx context.Context, key string) {
	if err := c.store.RemoveItem(ctx, key); err != nil {
		c.warn(ctx, "cache delete failed", key, err)
	}
}

func (c *persistentCache[T]) warn(ctx context.Context, msg, key string, err error) {
	c.config.Logger.WarnContext(ctx, msg, "backend", c.config.Backend, "key", key, "error", err)
}
