// Package engine tests for the facade: enqueue semantics, optimistic
// cache effects, automatic reconnect drains and notifications.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hkuo/vidsum/client/internal/api"
	apperrors "github.com/hkuo/vidsum/client/internal/errors"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/netwatch"
	"github.com/hkuo/vidsum/client/internal/scheduler"
	"github.com/hkuo/vidsum/client/internal/store"
)

var online = models.NetworkState{IsConnected: true, IsInternetReachable: true, TransportType: "wifi"}

// fakeRemote scripts outcomes and records calls.
type fakeRemote struct {
	mu        sync.Mutex
	outcomes  map[string]api.Outcome
	summaries map[string][]byte
	applied   int
	fetches   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		outcomes:  make(map[string]api.Outcome),
		summaries: make(map[string][]byte),
	}
}

func (f *fakeRemote) Apply(ctx context.Context, entry *models.MutationEntry) api.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	if o, ok := f.outcomes[entry.TargetID]; ok {
		return o
	}
	return api.Outcome{Class: api.ClassSuccess, StatusCode: 200}
}

func (f *fakeRemote) FetchSummary(ctx context.Context, summaryID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if data, ok := f.summaries[summaryID]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Emit(eventType string, data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingSink) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	kv     *store.MemStore
	remote *fakeRemote
	source *netwatch.PushSource
	sink   *recordingSink
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		kv:     store.NewMemStore(),
		remote: newFakeRemote(),
		source: netwatch.NewPushSource(),
		sink:   &recordingSink{},
	}

	svc, err := New(Options{
		Store:           f.kv,
		Remote:          f.remote,
		NetworkSource:   f.source,
		Tasks:           scheduler.NewTickerScheduler(),
		Sink:            f.sink,
		NetworkDebounce: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	f.svc = svc
	return f
}

// TestNewRequiresDependencies verifies construction validation.
func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	if err == nil {
		t.Fatal("Expected error for missing dependencies")
	}
	if !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("Expected INVALID_INPUT, got %v", err)
	}
}

// TestEnqueuePersistsAndEmits verifies a mutation lands in the durable
// log and the enqueued event fires.
func TestEnqueuePersistsAndEmits(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.Enqueue(models.KindStar, "video-1", nil)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("Expected an assigned id")
	}

	snap := f.svc.Snapshot()
	if snap.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1", snap.PendingCount)
	}
	if f.sink.count(EventQueueEnqueued) != 1 {
		t.Error("Expected one enqueued event")
	}
}

// TestEnqueueSurfacesPersistenceFailure verifies the user sees a failed
// save; claiming success for an unpersisted mutation would lose it on
// the next crash.
func TestEnqueueSurfacesPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.kv.FailWrites(errors.New("disk full"))

	if _, err := f.svc.Enqueue(models.KindStar, "video-1", nil); err == nil {
		t.Fatal("Expected error when the log cannot persist")
	}
	if f.sink.count(EventQueueEnqueued) != 0 {
		t.Error("No event may fire for a failed enqueue")
	}
}

// TestEnqueueOptimisticStar verifies the cached summary flips
// is_starred immediately.
func TestEnqueueOptimisticStar(t *testing.T) {
	f := newFixture(t)
	f.svc.cache.Put(models.NamespaceSummaries, "video-1", []byte(`{"id":"video-1","is_starred":false}`))

	starBody, _ := models.EncodePayload(models.StarPayload{IsStarred: true})
	if _, err := f.svc.Enqueue(models.KindStar, "video-1", starBody); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	value, err := f.svc.cache.Get(models.NamespaceSummaries, "video-1")
	if err != nil {
		t.Fatalf("Cache read failed: %v", err)
	}
	var summary map[string]interface{}
	json.Unmarshal(value, &summary)
	if summary["is_starred"] != true {
		t.Errorf("is_starred = %v, want true before the server confirms", summary["is_starred"])
	}
}

// TestEnqueueOptimisticDelete verifies the summary disappears from all
// namespaces immediately.
func TestEnqueueOptimisticDelete(t *testing.T) {
	f := newFixture(t)
	for _, ns := range models.CacheNamespaces {
		f.svc.cache.Put(ns, "video-1", []byte("data"))
	}

	if _, err := f.svc.Enqueue(models.KindDelete, "video-1", nil); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	for _, ns := range models.CacheNamespaces {
		if _, err := f.svc.cache.Get(ns, "video-1"); err == nil {
			t.Errorf("Expected %s/video-1 to be removed optimistically", ns)
		}
	}
}

// TestDrainNowRecordsSnapshot verifies the drain result lands in the
// queue snapshot and the drained event fires.
func TestDrainNowRecordsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.source.SetState(online)
	f.svc.Enqueue(models.KindStar, "video-1", nil)

	result := f.svc.DrainNow(context.Background())
	if result.Processed != 1 {
		t.Fatalf("Processed = %d, want 1", result.Processed)
	}

	snap := f.svc.Snapshot()
	if snap.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0", snap.PendingCount)
	}
	if snap.LastDrainResult == nil || snap.LastDrainResult.Processed != 1 {
		t.Errorf("LastDrainResult = %+v, want processed 1", snap.LastDrainResult)
	}
	if snap.LastDrainAt == 0 {
		t.Error("LastDrainAt should be set")
	}
	if f.sink.count(EventQueueDrained) != 1 {
		t.Error("Expected one drained event")
	}
}

// TestReconnectTriggersDrain verifies the offline→online transition
// automatically drains the queue.
func TestReconnectTriggersDrain(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer f.svc.Close()

	// Offline: the mutation waits in the queue.
	f.svc.Enqueue(models.KindStar, "video-1", nil)
	if snap := f.svc.Snapshot(); snap.PendingCount != 1 {
		t.Fatalf("PendingCount = %d, want 1 while offline", snap.PendingCount)
	}

	f.source.SetState(online)

	// Debounce (10ms) plus the async drain.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.svc.Snapshot().PendingCount == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if snap := f.svc.Snapshot(); snap.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0 after reconnect", snap.PendingCount)
	}
	if f.sink.count(EventNetworkChanged) == 0 {
		t.Error("Expected a network changed event")
	}
}

// TestSummaryReadThrough verifies cache misses fetch and fill, and hits
// never touch the network.
func TestSummaryReadThrough(t *testing.T) {
	f := newFixture(t)
	f.remote.summaries["video-1"] = []byte(`{"id":"video-1"}`)

	data, err := f.svc.Summary(context.Background(), "video-1")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if string(data) != `{"id":"video-1"}` {
		t.Errorf("Summary() = %s", data)
	}
	if f.remote.fetches != 1 {
		t.Errorf("fetches = %d, want 1", f.remote.fetches)
	}

	// Second read is a cache hit.
	if _, err := f.svc.Summary(context.Background(), "video-1"); err != nil {
		t.Fatalf("Second Summary failed: %v", err)
	}
	if f.remote.fetches != 1 {
		t.Errorf("fetches = %d, want 1 (cache hit)", f.remote.fetches)
	}

	// Unknown summary surfaces the fetch error.
	if _, err := f.svc.Summary(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown summary")
	}
}

// TestClearCacheNamespaceValidation verifies unknown namespaces are
// rejected.
func TestClearCacheNamespaceValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.ClearCacheNamespace("videos"); !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("Expected INVALID_INPUT, got %v", err)
	}

	f.svc.cache.Put(models.NamespaceSummaries, "k", []byte("12345"))
	freed, err := f.svc.ClearCacheNamespace(models.NamespaceSummaries)
	if err != nil {
		t.Fatalf("ClearCacheNamespace failed: %v", err)
	}
	if freed != 5 {
		t.Errorf("freed = %d, want 5", freed)
	}
}

// TestNotificationLifecycle verifies a terminal failure retains a
// dismissible notification.
func TestNotificationLifecycle(t *testing.T) {
	f := newFixture(t)
	f.source.SetState(online)
	f.remote.outcomes["video-1"] = api.Outcome{Class: api.ClassTerminal, StatusCode: 404}

	f.svc.Enqueue(models.KindStar, "video-1", nil)
	f.svc.DrainNow(context.Background())

	list, err := f.svc.Notifications()
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(list))
	}
	n := list[0]
	if n.Kind != models.NotificationMutationFailed {
		t.Errorf("Kind = %s, want mutation_failed", n.Kind)
	}
	if n.TargetID != "video-1" || n.Mutation != models.KindStar {
		t.Errorf("Notification = %+v", n)
	}
	if f.sink.count(EventMutationFailed) != 1 {
		t.Error("Expected one mutation failed event")
	}

	if err := f.svc.DismissNotification(n.ID); err != nil {
		t.Fatalf("Dismiss failed: %v", err)
	}
	list, _ = f.svc.Notifications()
	if len(list) != 0 {
		t.Errorf("Expected 0 notifications after dismiss, got %d", len(list))
	}

	if err := f.svc.DismissNotification(n.ID); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Second dismiss = %v, want NOT_FOUND", err)
	}
}

// TestCloseIdempotent verifies double close is safe.
func TestCloseIdempotent(t *testing.T) {
	f := newFixture(t)
	f.svc.Start()

	if err := f.svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := f.svc.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}
