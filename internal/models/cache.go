package models

import "time"

// CacheNamespace is a logical partition of cached display data.
// Namespaces are sized and cleared independently.
type CacheNamespace string

const (
	NamespaceSummaries  CacheNamespace = "summaries"
	NamespaceThumbnails CacheNamespace = "thumbnails"
	NamespaceMetadata   CacheNamespace = "metadata"
)

// CacheNamespaces lists all known namespaces.
var CacheNamespaces = []CacheNamespace{
	NamespaceSummaries,
	NamespaceThumbnails,
	NamespaceMetadata,
}

// Valid reports whether ns is a known cache namespace.
func (ns CacheNamespace) Valid() bool {
	switch ns {
	case NamespaceSummaries, NamespaceThumbnails, NamespaceMetadata:
		return true
	}
	return false
}

// CacheRecord is one cached value. Values are opaque to the cache;
// callers own the encoding.
type CacheRecord struct {
	Namespace   CacheNamespace `json:"namespace"`
	Key         string         `json:"key"`
	Value       []byte         `json:"value"`
	SizeBytes   int64          `json:"size_bytes"`
	LastUpdated int64          `json:"last_updated"`
}

// LastUpdatedTime returns LastUpdated as time.Time.
func (r *CacheRecord) LastUpdatedTime() time.Time {
	return time.Unix(r.LastUpdated, 0)
}

// CacheInfo is the per-namespace view exposed to the UI.
type CacheInfo struct {
	Namespace   CacheNamespace `json:"namespace"`
	SizeBytes   int64          `json:"size_bytes"`
	LastUpdated int64          `json:"last_updated"`
}
