// Package cache provides the namespaced persistent store for derived
// display data (rendered summaries, thumbnails, metadata). It is a dumb
// durable map: last-write-wins per key, no retries, no cross-key
// ordering.
package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/store"
	"github.com/hkuo/vidsum/client/internal/telemetry"
)

// nsPrefix keeps cache namespaces apart from other users of the
// substrate (the sync log shares the same store).
const nsPrefix = "cache:"

// DefaultLimits bounds each namespace; the eviction pass trims the
// least recently written records once a namespace exceeds its limit.
var DefaultLimits = map[models.CacheNamespace]int64{
	models.NamespaceSummaries:  16 << 20,
	models.NamespaceThumbnails: 64 << 20,
	models.NamespaceMetadata:   4 << 20,
}

// Cache is the namespaced display-data store.
type Cache struct {
	kv     store.KV
	limits map[models.CacheNamespace]int64

	// Serializes clear/evict against concurrent writers so a reader
	// sees either the full pre-clear or full post-clear namespace.
	mu sync.RWMutex
}

// New creates a Cache over kv. A nil limits map uses DefaultLimits.
func New(kv store.KV, limits map[models.CacheNamespace]int64) *Cache {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Cache{kv: kv, limits: limits}
}

func storeNS(ns models.CacheNamespace) string {
	return nsPrefix + string(ns)
}

// Get returns the cached value for key, or store.ErrNotFound.
func (c *Cache) Get(ns models.CacheNamespace, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.Get(storeNS(ns), key)
}

// Put stores value under key, last-write-wins.
func (c *Cache) Put(ns models.CacheNamespace, key string, value []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.kv.Set(storeNS(ns), key, value); err != nil {
		return fmt.Errorf("cache put %s/%s: %w", ns, key, err)
	}
	return nil
}

// Remove deletes a single record. Used by the queue processor to
// invalidate stale entries after a confirmed remote mutation.
func (c *Cache) Remove(ns models.CacheNamespace, key string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.Delete(storeNS(ns), key)
}

// ClearNamespace atomically removes the whole namespace and returns the
// bytes freed.
func (c *Cache) ClearNamespace(ns models.CacheNamespace) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	freed, err := c.kv.ClearNamespace(storeNS(ns))
	if err != nil {
		return 0, fmt.Errorf("cache clear %s: %w", ns, err)
	}

	logging.Info("Cache namespace cleared",
		map[string]interface{}{"namespace": string(ns), "bytes_freed": freed})
	return freed, nil
}

// SizeOf returns the total stored bytes in the namespace.
func (c *Cache) SizeOf(ns models.CacheNamespace) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.SizeOf(storeNS(ns))
}

// LastUpdated returns the unix timestamp of the most recent write in
// the namespace, or 0 when empty.
func (c *Cache) LastUpdated(ns models.CacheNamespace) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kv.LastUpdated(storeNS(ns))
}

// Info returns the per-namespace view exposed to the UI.
func (c *Cache) Info(ns models.CacheNamespace) (models.CacheInfo, error) {
	size, err := c.SizeOf(ns)
	if err != nil {
		return models.CacheInfo{}, err
	}
	updated, err := c.LastUpdated(ns)
	if err != nil {
		return models.CacheInfo{}, err
	}
	return models.CacheInfo{Namespace: ns, SizeBytes: size, LastUpdated: updated}, nil
}

// Maintain runs one eviction pass over every namespace. Called by the
// background scheduler.
func (c *Cache) Maintain() error {
	for _, ns := range models.CacheNamespaces {
		if err := c.evict(ns); err != nil {
			return err
		}
	}
	return nil
}

// evict trims least-recently-written records until the namespace is
// back under its limit.
func (c *Cache) evict(ns models.CacheNamespace) error {
	limit, ok := c.limits[ns]
	if !ok || limit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	size, err := c.kv.SizeOf(storeNS(ns))
	if err != nil {
		return err
	}
	if size <= limit {
		return nil
	}

	records, err := c.kv.List(storeNS(ns))
	if err != nil {
		return err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].UpdatedAt != records[j].UpdatedAt {
			return records[i].UpdatedAt < records[j].UpdatedAt
		}
		return records[i].Key < records[j].Key
	})

	evicted := 0
	for _, r := range records {
		if size <= limit {
			break
		}
		if err := c.kv.Delete(storeNS(ns), r.Key); err != nil {
			return err
		}
		size -= r.SizeBytes
		evicted++
	}

	if evicted > 0 {
		telemetry.RecordCount("cache.evicted", int64(evicted))
		logging.Info("Cache eviction completed",
			map[string]interface{}{
				"namespace": string(ns),
				"evicted":   evicted,
				"size":      size,
				"limit":     limit,
			})
	}
	return nil
}
