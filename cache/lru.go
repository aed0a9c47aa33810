package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// lruCache implements an in-memory LRU cache with TTL support
type lruCache[T any] struct {
	mu      sync.Mutex
	config  *Config
	items   map[string]*list.Element
	lruList *list.List
	hits    uint64
	misses  uint64
}

// cacheEntry represents a single cache entry
type cacheEntry[T any] struct {
	key       string
	value     T
	createdAt time.Time
	ttl       time.Duration
}

func (e *cacheEntry[T]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// NewLRUCache creates a new in-memory LRU cache
func NewLRUCache[T any](config *Config) Cache[T] {
	return &lruCache[T]{
		config:  config.withDefaults(),
		items:   make(map[string]*list.Element),
		lruList: list.New(),
	}
}

// Get retrieves a value from the cache
func (c *lruCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	key = c.config.KeyPrefix + key

	c.mu.Lock()
	defer c.mu.Unlock()

	element, found := c.items[key]
	if !found {
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	entry := element.Value.(*cacheEntry[T])

	// Check if expired
	if entry.expired(c.config.Clock.Now()) {
		c.removeElement(element)
		atomic.AddUint64(&c.misses, 1)
		return zero, false
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(element)

	atomic.AddUint64(&c.hits, 1)
	return entry.value, true
}

// Set stores a value in the cache
func (c *lruCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}
	key = c.config.KeyPrefix + key
	now := c.config.Clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if key already exists
	if element, found := c.items[key]; found {
		entry := element.Value.(*cacheEntry[T])
		entry.value = value
		entry.createdAt = now
		entry.ttl = ttl
		c.lruList.MoveToFront(element)
		return
	}

	// Evict if necessary
	for c.lruList.Len() >= c.config.MaxSize {
		if c.lruList.Len() == 0 {
			break
		}
		c.removeElement(c.lruList.Back())
	}

	entry := &cacheEntry[T]{
		key:       key,
		value:     value,
		createdAt: now,
		ttl:       ttl,
	}
	c.items[key] = c.lruList.PushFront(entry)
}

// Delete removes a value from the cache
func (c *lruCache[T]) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, found := c.items[c.config.KeyPrefix+key]; found {
		c.removeElement(element)
	}
}

// DeleteFunc removes every entry whose unprefixed key matches
func (c *lruCache[T]) DeleteFunc(ctx context.Context, match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, element := range c.items {
		if match(key[len(c.config.KeyPrefix):]) {
			c.removeElement(element)
			removed++
		}
	}
	return removed
}

// Clear removes all values from the cache
func (c *lruCache[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList = list.New()
	return nil
}

// Len returns the number of entries
func (c *lruCache[T]) Len(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Stats returns cache statistics
func (c *lruCache[T]) Stats(ctx context.Context) Stats {
	return newStats(atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses), c.Len(ctx))
}

// removeElement removes an element from the cache (must be called with lock held)
func (c *lruCache[T]) removeElement(element *list.Element) {
	entry := element.Value.(*cacheEntry[T])
	delete(c.items, entry.key)
	c.lruList.Remove(element)
}
