// Package storage provides string-keyed storage media for persistent caches.
//
// A Storage is the Go counterpart of a browser's localStorage/sessionStorage:
// a flat key space of string values shared by every cache that uses it. Caches
// scope themselves with key prefixes, so implementations never interpret keys.
//
// Implementations:
//   - Map: in-process map, lives as long as the process (session storage)
//   - SQLite: single-table database file that survives restarts (local storage)
//   - Redis: shared store for multiple processes (local storage)
package storage

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by SetItem when the medium is full
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// ErrClosed is returned by operations on a closed medium
var ErrClosed = errors.New("storage closed")

// Storage is a string-keyed storage medium
type Storage interface {
	// GetItem returns the value stored under key and whether it exists
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key; removing a missing key is not an error
	RemoveItem(ctx context.Context, key string) error

	// Keys lists every key in the medium
	Keys(ctx context.Context) ([]string, error)

	// Close releases the medium
	Close() error
}
