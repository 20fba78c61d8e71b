// Package cache tests for namespaced storage, atomic clears and
// size-bounded eviction.
package cache

import (
	"errors"
	"testing"

	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/store"
)

// TestPutGetRemove verifies the basic record lifecycle.
func TestPutGetRemove(t *testing.T) {
	c := New(store.NewMemStore(), nil)

	if err := c.Put(models.NamespaceSummaries, "video-1", []byte(`{"title":"t"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(models.NamespaceSummaries, "video-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"title":"t"}` {
		t.Errorf("Get() = %s, want stored value", got)
	}

	if err := c.Remove(models.NamespaceSummaries, "video-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := c.Get(models.NamespaceSummaries, "video-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after remove = %v, want ErrNotFound", err)
	}
}

// TestNamespacesAreIndependent verifies the same key in two namespaces
// holds two records.
func TestNamespacesAreIndependent(t *testing.T) {
	c := New(store.NewMemStore(), nil)

	c.Put(models.NamespaceSummaries, "video-1", []byte("summary"))
	c.Put(models.NamespaceThumbnails, "video-1", []byte("thumb"))

	got, _ := c.Get(models.NamespaceSummaries, "video-1")
	if string(got) != "summary" {
		t.Errorf("Summaries record = %s, want summary", got)
	}

	freed, err := c.ClearNamespace(models.NamespaceThumbnails)
	if err != nil {
		t.Fatalf("ClearNamespace failed: %v", err)
	}
	if freed != int64(len("thumb")) {
		t.Errorf("ClearNamespace() freed = %d, want %d", freed, len("thumb"))
	}

	if _, err := c.Get(models.NamespaceSummaries, "video-1"); err != nil {
		t.Error("Clearing thumbnails must not touch summaries")
	}
}

// TestInfo verifies the per-namespace view.
func TestInfo(t *testing.T) {
	c := New(store.NewMemStore(), nil)

	info, err := c.Info(models.NamespaceMetadata)
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.SizeBytes != 0 || info.LastUpdated != 0 {
		t.Errorf("Info(empty) = %+v, want zeros", info)
	}

	c.Put(models.NamespaceMetadata, "video-1", []byte("12345678"))
	info, _ = c.Info(models.NamespaceMetadata)
	if info.SizeBytes != 8 {
		t.Errorf("SizeBytes = %d, want 8", info.SizeBytes)
	}
	if info.LastUpdated == 0 {
		t.Error("LastUpdated should be set after a write")
	}
	if info.Namespace != models.NamespaceMetadata {
		t.Errorf("Namespace = %q, want metadata", info.Namespace)
	}
}

// TestMaintainEvictsOldestFirst verifies the eviction pass trims
// least-recently-written records until the namespace is under its
// limit, and leaves other namespaces alone.
func TestMaintainEvictsOldestFirst(t *testing.T) {
	limits := map[models.CacheNamespace]int64{
		models.NamespaceSummaries: 10,
	}
	c := New(store.NewMemStore(), limits)

	// Writes land within the same second, so eviction order falls back
	// to key order.
	c.Put(models.NamespaceSummaries, "a", []byte("11111"))
	c.Put(models.NamespaceSummaries, "b", []byte("22222"))
	c.Put(models.NamespaceSummaries, "c", []byte("33333"))
	c.Put(models.NamespaceThumbnails, "a", []byte("untouched"))

	if err := c.Maintain(); err != nil {
		t.Fatalf("Maintain failed: %v", err)
	}

	if _, err := c.Get(models.NamespaceSummaries, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Error("Expected the oldest record to be evicted")
	}
	for _, key := range []string{"b", "c"} {
		if _, err := c.Get(models.NamespaceSummaries, key); err != nil {
			t.Errorf("Record %q should survive eviction: %v", key, err)
		}
	}

	size, _ := c.SizeOf(models.NamespaceSummaries)
	if size > 10 {
		t.Errorf("SizeOf() = %d, want <= limit 10", size)
	}

	if _, err := c.Get(models.NamespaceThumbnails, "a"); err != nil {
		t.Error("Eviction must not cross namespaces")
	}
}

// TestMaintainUnderLimitIsNoop verifies nothing is evicted while the
// namespace fits.
func TestMaintainUnderLimitIsNoop(t *testing.T) {
	limits := map[models.CacheNamespace]int64{
		models.NamespaceSummaries: 100,
	}
	c := New(store.NewMemStore(), limits)

	c.Put(models.NamespaceSummaries, "a", []byte("11111"))
	if err := c.Maintain(); err != nil {
		t.Fatalf("Maintain failed: %v", err)
	}
	if _, err := c.Get(models.NamespaceSummaries, "a"); err != nil {
		t.Errorf("Record evicted below the limit: %v", err)
	}
}

// TestClearSurfacesStoreFailure verifies a failed clear reports the
// error and frees nothing.
func TestClearSurfacesStoreFailure(t *testing.T) {
	kv := store.NewMemStore()
	c := New(kv, nil)
	c.Put(models.NamespaceSummaries, "a", []byte("value"))

	kv.FailWrites(errors.New("io error"))
	if _, err := c.ClearNamespace(models.NamespaceSummaries); err == nil {
		t.Fatal("Expected error from failed clear")
	}

	kv.FailWrites(nil)
	if _, err := c.Get(models.NamespaceSummaries, "a"); err != nil {
		t.Error("Record should survive a failed clear")
	}
}
