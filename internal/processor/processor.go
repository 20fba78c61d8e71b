// Package processor drains the sync log against the remote API,
// enforcing ordering, retry/backoff and idempotency. It is the only
// writer that removes entries from the log.
package processor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hkuo/vidsum/client/internal/api"
	"github.com/hkuo/vidsum/client/internal/cache"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/synclog"
	"github.com/hkuo/vidsum/client/internal/telemetry"
)

// Config holds retry policy knobs.
type Config struct {
	// MaxAttempts is the transient retry budget; once exceeded the
	// entry is reclassified as terminal and dropped.
	MaxAttempts int

	// AuthMaxAttempts caps auth retries before escalating to a
	// reconnect-required notification. The entry is kept.
	AuthMaxAttempts int

	Backoff Backoff
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     8,
		AuthMaxAttempts: 3,
		Backoff:         DefaultBackoff,
	}
}

// OnlineStater reports current connectivity; satisfied by
// netwatch.Observer.
type OnlineStater interface {
	CurrentState() models.NetworkState
}

// Notifier receives retained user-visible failure notifications.
type Notifier interface {
	Notify(kind models.NotificationKind, mutation models.MutationKind, targetID, message string)
}

// Processor drains the sync log.
type Processor struct {
	log      *synclog.Log
	remote   api.Remote
	network  OnlineStater
	cache    *cache.Cache
	notifier Notifier
	cfg      Config

	// Serializes the two independent triggers (network transition and
	// background scheduler). Non-reentrant: a busy lock means another
	// drain is running and this call is a no-op.
	drainMu sync.Mutex

	// Cooperative "stop after current entry" flag, set during teardown.
	stopRequested atomic.Bool

	// now is injectable for tests.
	now func() time.Time
}

// New creates a Processor. notifier may be nil. Zero Config fields are
// defaulted independently, so setting one knob keeps the defaults for
// the rest.
func New(log *synclog.Log, remote api.Remote, network OnlineStater, c *cache.Cache, notifier Notifier, cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.AuthMaxAttempts <= 0 {
		cfg.AuthMaxAttempts = def.AuthMaxAttempts
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = def.Backoff.Base
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = def.Backoff.Max
	}
	return &Processor{
		log:      log,
		remote:   remote,
		network:  network,
		cache:    c,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RequestStop asks a running drain to stop after the current entry.
func (p *Processor) RequestStop() {
	p.stopRequested.Store(true)
}

// ResetStop clears a previous stop request.
func (p *Processor) ResetStop() {
	p.stopRequested.Store(false)
}

// Draining reports whether a drain is currently in progress.
func (p *Processor) Draining() bool {
	if p.drainMu.TryLock() {
		p.drainMu.Unlock()
		return false
	}
	return true
}

// Drain processes pending entries strictly in id order.
//
// If another drain holds the lock, or the device is offline, it returns
// immediately with Remaining set to the current count. A transient
// failure stops the loop (head-of-line blocking: later mutations may
// depend on earlier ones); a terminal failure drops the entry, records
// a notification, and continues. Drain never panics and never returns
// an error; every per-entry failure lands in the tally and in the
// entry's LastError.
func (p *Processor) Drain(ctx context.Context) models.DrainResult {
	var result models.DrainResult

	if !p.drainMu.TryLock() {
		result.Remaining = p.countQuiet()
		return result
	}
	defer p.drainMu.Unlock()

	if !p.network.CurrentState().IsOnline() {
		result.Remaining = p.countQuiet()
		return result
	}

	entries, err := p.log.ListPending()
	if err != nil {
		logging.ErrorWithCode("Failed to read sync log for drain", "QUEUE_CORRUPTED", err)
		result.Remaining = p.countQuiet()
		return result
	}

	start := p.now()
	for i := range entries {
		if ctx.Err() != nil || p.stopRequested.Load() {
			break
		}

		entry := &entries[i]

		// A backoff-gated entry is still pending; never skip ahead of it.
		if entry.NextAttemptAt > p.now().Unix() {
			break
		}

		if stop := p.deliver(ctx, entry, &result); stop {
			break
		}
	}

	result.Remaining = p.countQuiet()

	telemetry.RecordCount("drain.runs", 1)
	telemetry.RecordCount("drain.processed", int64(result.Processed))
	telemetry.RecordCount("drain.failed", int64(result.Failed))
	telemetry.RecordTiming("drain.duration", p.now().Sub(start))

	logging.Info("Drain completed",
		map[string]interface{}{
			"processed":   result.Processed,
			"failed":      result.Failed,
			"remaining":   result.Remaining,
			"duration_ms": p.now().Sub(start).Milliseconds(),
		})
	return result
}

// deliver sends one entry to the remote and records the outcome. The
// entry is held in flight for the whole exchange: a concurrent Append
// for the same action must land as a new entry, not replace the payload
// that is on the wire, or the success-path Remove would drop the
// replacement unsent. Returns true when the drain loop must stop.
func (p *Processor) deliver(ctx context.Context, entry *models.MutationEntry, result *models.DrainResult) bool {
	p.log.BeginDelivery(entry.ID)
	defer p.log.EndDelivery(entry.ID)

	outcome := p.remote.Apply(ctx, entry)

	switch outcome.Class {
	case api.ClassSuccess:
		if err := p.log.Remove(entry.ID); err != nil {
			logging.Error("Failed to remove delivered entry", err,
				map[string]interface{}{"id": entry.ID})
			return true
		}
		p.invalidate(entry)
		result.Processed++

	case api.ClassTransient:
		result.Failed++
		if entry.AttemptCount+1 > p.cfg.MaxAttempts {
			// Retry budget exhausted: reclassify as terminal.
			p.dropTerminal(entry, fmt.Sprintf("gave up after %d attempts: %s",
				entry.AttemptCount, outcome.ErrorText()))
			return false
		}
		p.deferEntry(entry, outcome.ErrorText())
		// Later mutations may depend on this one; stop here.
		return true

	case api.ClassAuth:
		result.Failed++
		updated := p.deferEntry(entry, outcome.ErrorText())
		if updated != nil && updated.AttemptCount >= p.cfg.AuthMaxAttempts && p.notifier != nil {
			// Escalate without dropping: the action is still valid
			// once credentials are fixed.
			p.notifier.Notify(models.NotificationReconnectRequired,
				entry.Kind, entry.TargetID,
				"Sign in again to finish syncing your changes")
		}
		return true

	case api.ClassTerminal:
		result.Failed++
		p.dropTerminal(entry, outcome.ErrorText())
	}
	return false
}

// deferEntry records a failed attempt and schedules the next one.
func (p *Processor) deferEntry(entry *models.MutationEntry, errText string) *models.MutationEntry {
	next := p.now().Add(p.cfg.Backoff.Delay(entry.AttemptCount)).Unix()
	updated, err := p.log.MarkAttempt(entry.ID, errText, next)
	if err != nil {
		logging.Error("Failed to record attempt", err,
			map[string]interface{}{"id": entry.ID})
		return nil
	}
	logging.Warn("Mutation attempt failed, will retry",
		map[string]interface{}{
			"id":       entry.ID,
			"kind":     string(entry.Kind),
			"attempts": updated.AttemptCount,
			"error":    errText,
		})
	return updated
}

// dropTerminal removes a permanently failed entry and retains a
// user-visible notification; a terminal failure must never be a silent
// drop.
func (p *Processor) dropTerminal(entry *models.MutationEntry, reason string) {
	if err := p.log.Remove(entry.ID); err != nil {
		logging.Error("Failed to drop terminal entry", err,
			map[string]interface{}{"id": entry.ID})
		return
	}
	telemetry.RecordCount("drain.dropped", 1)
	logging.Warn("Mutation failed permanently",
		map[string]interface{}{
			"id":     entry.ID,
			"kind":   string(entry.Kind),
			"reason": reason,
		})
	if p.notifier != nil {
		p.notifier.Notify(models.NotificationMutationFailed,
			entry.Kind, entry.TargetID, reason)
	}
}

// invalidate removes cache records made stale by a confirmed mutation,
// so the next read refetches.
func (p *Processor) invalidate(entry *models.MutationEntry) {
	if p.cache == nil {
		return
	}

	switch entry.Kind {
	case models.KindCreate, models.KindStar, models.KindUnstar:
		p.removeQuiet(models.NamespaceSummaries, entry.TargetID)
	case models.KindDelete:
		p.removeQuiet(models.NamespaceSummaries, entry.TargetID)
		p.removeQuiet(models.NamespaceThumbnails, entry.TargetID)
		p.removeQuiet(models.NamespaceMetadata, entry.TargetID)
	case models.KindAskQuestion:
		// Answers are fetched fresh; nothing cached to invalidate.
	}
}

func (p *Processor) removeQuiet(ns models.CacheNamespace, key string) {
	if err := p.cache.Remove(ns, key); err != nil {
		logging.Warn("Cache invalidation failed",
			map[string]interface{}{"namespace": string(ns), "key": key, "error": err.Error()})
	}
}

func (p *Processor) countQuiet() int {
	count, err := p.log.Count()
	if err != nil {
		return 0
	}
	return count
}
