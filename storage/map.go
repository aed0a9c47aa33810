package storage

import (
	"context"
	"sync"
)

// Map is an in-process Storage. A zero MaxBytes means unlimited.
type Map struct {
	mu       sync.RWMutex
	items    map[string]string
	size     int
	maxBytes int
	closed   bool
}

// NewMap creates an empty map storage
func NewMap() *Map {
	return NewMapWithQuota(0)
}

// NewMapWithQuota creates a map storage that rejects writes beyond maxBytes
// (counted as len(key)+len(value) per item)
func NewMapWithQuota(maxBytes int) *Map {
	return &Map{
		items:    make(map[string]string),
		maxBytes: maxBytes,
	}
}

// GetItem implements Storage
func (m *Map) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem implements Storage
func (m *Map) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	newSize := m.size + len(key) + len(value)
	if old, ok := m.items[key]; ok {
		newSize -= len(key) + len(old)
	}
	if m.maxBytes > 0 && newSize > m.maxBytes {
		return ErrQuotaExceeded
	}

	m.items[key] = value
	m.size = newSize
	return nil
}

// RemoveItem implements Storage
func (m *Map) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if old, ok := m.items[key]; ok {
		m.size -= len(key) + len(old)
		delete(m.items, key)
	}
	return nil
}

// Keys implements Storage
func (m *Map) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close implements Storage
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.items = nil
	m.size = 0
	return nil
}
