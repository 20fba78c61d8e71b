// Package engine wires the offline mutation queue together: the durable
// sync log, the cache, the network observer, the queue processor and the
// background scheduler, behind the command/query surface consumed by the
// UI layer and the OS scheduler hook.
//
// A Service is constructed once at startup, owns its collaborators, and
// is torn down once with Close. Nothing in this package is a package
// level singleton.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hkuo/vidsum/client/internal/api"
	"github.com/hkuo/vidsum/client/internal/cache"
	apperrors "github.com/hkuo/vidsum/client/internal/errors"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/netwatch"
	"github.com/hkuo/vidsum/client/internal/processor"
	"github.com/hkuo/vidsum/client/internal/scheduler"
	"github.com/hkuo/vidsum/client/internal/store"
	"github.com/hkuo/vidsum/client/internal/synclog"
)

// Event types emitted to the UI event sink.
const (
	EventQueueEnqueued  = "queue.enqueued"
	EventQueueDrained   = "queue.drained"
	EventMutationFailed = "mutation.failed"
	EventNetworkChanged = "network.changed"
)

// EventSink receives engine events for the UI layer (the desktop build
// fans them out over WebSocket). Implementations must not block.
type EventSink interface {
	Emit(eventType string, data map[string]interface{})
}

// Options configures a Service. Store, Remote, NetworkSource and Tasks
// are required; the rest have defaults.
type Options struct {
	Store         store.KV
	Remote        api.Remote
	NetworkSource netwatch.Source
	Tasks         scheduler.TaskScheduler

	Sink            EventSink                       // optional
	CacheLimits     map[models.CacheNamespace]int64 // nil = cache.DefaultLimits
	Processor       processor.Config                // zero = processor.DefaultConfig
	DrainInterval   time.Duration                   // zero = scheduler.DefaultInterval
	NetworkDebounce time.Duration                   // zero = netwatch.DefaultDebounce
}

// Service is the single-owner facade over the offline engine.
type Service struct {
	kv            store.KV
	cache         *cache.Cache
	log           *synclog.Log
	remote        api.Remote
	observer      *netwatch.Observer
	processor     *processor.Processor
	scheduler     *scheduler.Scheduler
	notifications *Center
	sink          EventSink

	mu          sync.Mutex
	lastDrain   *models.DrainResult
	lastDrainAt time.Time
	wasOnline   bool
	unsubNet    func()
	started     bool
	closed      bool
}

// New constructs a Service. It does not start background work; call
// Start.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Remote == nil || opts.NetworkSource == nil || opts.Tasks == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "store, remote, network source and task scheduler are required")
	}

	c := cache.New(opts.Store, opts.CacheLimits)
	log := synclog.New(opts.Store)
	observer := netwatch.NewObserver(opts.NetworkSource, opts.NetworkDebounce)
	center := NewCenter(opts.Store, opts.Sink)
	proc := processor.New(log, opts.Remote, observer, c, center, opts.Processor)

	s := &Service{
		kv:            opts.Store,
		cache:         c,
		log:           log,
		remote:        opts.Remote,
		observer:      observer,
		processor:     proc,
		notifications: center,
		sink:          opts.Sink,
	}
	// Background drains flow through DrainNow so the snapshot and the
	// event sink see them too.
	s.scheduler = scheduler.New(opts.Tasks, drainRecorder{s}, observer, c, opts.DrainInterval)
	return s, nil
}

// drainRecorder adapts Service to scheduler.Drainer.
type drainRecorder struct{ s *Service }

func (d drainRecorder) Drain(ctx context.Context) models.DrainResult { return d.s.DrainNow(ctx) }
func (d drainRecorder) Draining() bool                               { return d.s.processor.Draining() }

// Start begins watching the network and registers the background
// scheduler. Idempotent.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.observer.Start()

	s.mu.Lock()
	s.wasOnline = s.observer.CurrentState().IsOnline()
	s.unsubNet = s.observer.Subscribe(s.onNetworkChange)
	s.mu.Unlock()

	if err := s.scheduler.Register(); err != nil {
		return err
	}

	logging.Info("Engine started", map[string]interface{}{"online": s.observer.IsOnline()})
	return nil
}

// Close tears the engine down: stops the drain after the current entry,
// unregisters the scheduler, and closes the substrate. Idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsub := s.unsubNet
	s.mu.Unlock()

	s.processor.RequestStop()
	if unsub != nil {
		unsub()
	}
	if err := s.scheduler.Unregister(); err != nil {
		logging.Error("Failed to unregister scheduler", err)
	}
	s.observer.Close()

	logging.Info("Engine stopped", nil)
	return s.kv.Close()
}

// =====================================================
// Commands exposed to the UI layer
// =====================================================

// Enqueue durably records a mutation and applies its optimistic cache
// effect. It is used for every user action, online or not, so a crash
// mid-request cannot lose the action. A persistence failure is returned
// to the caller; the action must fail visibly.
func (s *Service) Enqueue(kind models.MutationKind, targetID string, payload json.RawMessage) (*models.MutationEntry, error) {
	entry, err := s.log.Append(kind, targetID, payload)
	if err != nil {
		return nil, err
	}

	s.applyOptimistic(entry)

	if s.sink != nil {
		s.sink.Emit(EventQueueEnqueued, map[string]interface{}{
			"id":        entry.ID,
			"kind":      string(entry.Kind),
			"target_id": entry.TargetID,
		})
	}
	return entry, nil
}

// DrainNow runs a drain immediately (the "Process Queue" button). If a
// drain is already running it returns with Remaining set and nothing
// processed.
func (s *Service) DrainNow(ctx context.Context) models.DrainResult {
	result := s.processor.Drain(ctx)

	s.mu.Lock()
	s.lastDrain = &result
	s.lastDrainAt = time.Now()
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Emit(EventQueueDrained, map[string]interface{}{
			"processed": result.Processed,
			"failed":    result.Failed,
			"remaining": result.Remaining,
		})
	}
	return result
}

// ClearQueue drops all pending mutations. User command only.
func (s *Service) ClearQueue() error {
	return s.log.Clear()
}

// ClearCacheNamespace clears one cache namespace and returns the bytes
// freed.
func (s *Service) ClearCacheNamespace(ns models.CacheNamespace) (int64, error) {
	if !ns.Valid() {
		return 0, apperrors.New(apperrors.ErrInvalid, "unknown cache namespace")
	}
	return s.cache.ClearNamespace(ns)
}

// =====================================================
// Queries exposed to the UI layer
// =====================================================

// Snapshot returns the read-only queue projection.
func (s *Service) Snapshot() models.QueueSnapshot {
	snapshot := models.QueueSnapshot{}

	if count, err := s.log.Count(); err == nil {
		snapshot.PendingCount = count
	}
	if oldest, err := s.log.OldestEnqueuedAt(); err == nil {
		snapshot.OldestEnqueuedAt = oldest
	}

	s.mu.Lock()
	snapshot.LastDrainResult = s.lastDrain
	if !s.lastDrainAt.IsZero() {
		snapshot.LastDrainAt = s.lastDrainAt.Unix()
	}
	s.mu.Unlock()

	return snapshot
}

// CacheInfo returns size and freshness for one namespace.
func (s *Service) CacheInfo(ns models.CacheNamespace) (models.CacheInfo, error) {
	if !ns.Valid() {
		return models.CacheInfo{}, apperrors.New(apperrors.ErrInvalid, "unknown cache namespace")
	}
	return s.cache.Info(ns)
}

// NetworkState returns the current debounced network view.
func (s *Service) NetworkState() models.NetworkState {
	return s.observer.CurrentState()
}

// Notifications returns retained failure notifications, oldest first.
func (s *Service) Notifications() ([]models.Notification, error) {
	return s.notifications.List()
}

// DismissNotification removes one retained notification.
func (s *Service) DismissNotification(id string) error {
	return s.notifications.Dismiss(id)
}

// Summary reads a summary through the cache: a hit is served locally,
// a miss is fetched from the remote read API and cached.
func (s *Service) Summary(ctx context.Context, summaryID string) ([]byte, error) {
	value, err := s.cache.Get(models.NamespaceSummaries, summaryID)
	if err == nil {
		return value, nil
	}
	if err != store.ErrNotFound {
		return nil, apperrors.Wrap(apperrors.ErrCacheRead, "failed to read cached summary", err)
	}

	value, err = s.remote.FetchSummary(ctx, summaryID)
	if err != nil {
		return nil, err
	}
	if putErr := s.cache.Put(models.NamespaceSummaries, summaryID, value); putErr != nil {
		// Serving the fetched value still works; only caching failed.
		logging.Warn("Failed to cache fetched summary",
			map[string]interface{}{"summary_id": summaryID, "error": putErr.Error()})
	}
	return value, nil
}

// =====================================================
// Internals
// =====================================================

// onNetworkChange reacts to debounced transitions; false→true is the
// canonical automatic drain trigger.
func (s *Service) onNetworkChange(state models.NetworkState) {
	s.mu.Lock()
	was := s.wasOnline
	s.wasOnline = state.IsOnline()
	closed := s.closed
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Emit(EventNetworkChanged, map[string]interface{}{
			"online":    state.IsOnline(),
			"transport": state.TransportType,
		})
	}

	if closed || was || !state.IsOnline() {
		return
	}

	logging.Info("Back online, draining queue", nil)
	go s.DrainNow(context.Background())
}

// applyOptimistic reflects a just-enqueued mutation into the cache so
// the UI shows the new state before the server confirms it.
func (s *Service) applyOptimistic(entry *models.MutationEntry) {
	switch entry.Kind {
	case models.KindStar, models.KindUnstar:
		s.rewriteStarred(entry.TargetID, entry.Kind == models.KindStar)
	case models.KindDelete:
		// The summary is gone from the user's point of view.
		for _, ns := range models.CacheNamespaces {
			if err := s.cache.Remove(ns, entry.TargetID); err != nil {
				logging.Warn("Optimistic delete eviction failed",
					map[string]interface{}{"namespace": string(ns), "error": err.Error()})
			}
		}
	case models.KindCreate, models.KindAskQuestion:
		// Nothing cached yet to update.
	}
}

// rewriteStarred flips is_starred on the cached summary blob, if any.
// Best effort: the server copy is corrected when the queue drains.
func (s *Service) rewriteStarred(summaryID string, starred bool) {
	value, err := s.cache.Get(models.NamespaceSummaries, summaryID)
	if err != nil {
		return
	}

	var summary map[string]interface{}
	if err := json.Unmarshal(value, &summary); err != nil {
		return
	}
	summary["is_starred"] = starred

	updated, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Put(models.NamespaceSummaries, summaryID, updated); err != nil {
		logging.Warn("Optimistic star update failed",
			map[string]interface{}{"summary_id": summaryID, "error": err.Error()})
	}
}
