// Package store provides the durable key/value substrate backing the
// sync log and the cache. Writes are durable before the call returns;
// the crash-safety guarantees of the queue depend on that.
package store

import (
	"errors"
)

// ErrNotFound is returned when a key is absent from a namespace.
var ErrNotFound = errors.New("store: key not found")

// Record is one stored key/value pair with its accounting fields.
type Record struct {
	Key       string
	Value     []byte
	SizeBytes int64
	UpdatedAt int64
}

// KV is the persistence substrate consumed by the engine. Values are
// opaque. Namespaces partition keys; each namespace has independent
// size accounting and can be cleared atomically.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ns, key string) ([]byte, error)

	// Set stores value under key, last-write-wins. The write is durable
	// before Set returns.
	Set(ns, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ns, key string) error

	// Keys returns all keys in the namespace, sorted ascending.
	Keys(ns string) ([]string, error)

	// List returns all records in the namespace in key order.
	List(ns string) ([]Record, error)

	// ClearNamespace removes every record in the namespace atomically
	// and returns the number of bytes freed. A concurrent reader sees
	// either the full pre-clear or full post-clear state.
	ClearNamespace(ns string) (int64, error)

	// SizeOf returns the total stored bytes in the namespace.
	SizeOf(ns string) (int64, error)

	// LastUpdated returns the unix timestamp of the most recent write
	// in the namespace, or 0 when the namespace is empty.
	LastUpdated(ns string) (int64, error)

	// Close releases the substrate.
	Close() error
}
