// Package scheduler registers periodic background wake-ups that drain
// the queue and run cache maintenance outside the foreground UI
// lifecycle.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hkuo/vidsum/client/internal/cache"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/processor"
)

// Outcome is the tri-state result reported to the OS task primitive.
// "Nothing to do" is not "something went wrong".
type Outcome string

const (
	// OutcomeSuccess: the drain ran, regardless of per-entry failures.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailed: an unexpected internal fault.
	OutcomeFailed Outcome = "failed"
	// OutcomeNoData: skipped because the device was offline or another
	// drain held the lock.
	OutcomeNoData Outcome = "no_data"
)

// TaskScheduler is the OS-level background-task primitive, consumed but
// not implemented by the engine core. TickerScheduler is the in-process
// implementation used on desktop.
type TaskScheduler interface {
	// Register arranges for handler to run roughly every interval.
	Register(interval time.Duration, handler func(ctx context.Context) Outcome) error

	// Unregister cancels the periodic wake-up.
	Unregister() error
}

// DefaultInterval is the default background wake-up period.
const DefaultInterval = 15 * time.Minute

// Drainer runs queue drains; satisfied by processor.Processor and by
// the engine facade (which additionally records the result for the UI
// snapshot).
type Drainer interface {
	Drain(ctx context.Context) models.DrainResult
	Draining() bool
}

// Scheduler wires the queue processor and cache maintenance into a
// TaskScheduler.
type Scheduler struct {
	tasks    TaskScheduler
	drainer  Drainer
	network  processor.OnlineStater
	cache    *cache.Cache
	interval time.Duration

	mu          sync.Mutex
	registered  bool
	lastOutcome Outcome
	lastRunAt   time.Time
}

// New creates a Scheduler. A non-positive interval uses DefaultInterval.
func New(tasks TaskScheduler, drainer Drainer, network processor.OnlineStater, c *cache.Cache, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		tasks:    tasks,
		drainer:  drainer,
		network:  network,
		cache:    c,
		interval: interval,
	}
}

// Register installs the periodic background handler. Idempotent.
func (s *Scheduler) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}
	if err := s.tasks.Register(s.interval, s.handle); err != nil {
		return fmt.Errorf("failed to register background task: %w", err)
	}
	s.registered = true

	logging.Info("Background scheduler registered",
		map[string]interface{}{"interval_minutes": s.interval.Minutes()})
	return nil
}

// Unregister removes the periodic background handler. Idempotent.
func (s *Scheduler) Unregister() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registered {
		return nil
	}
	if err := s.tasks.Unregister(); err != nil {
		return fmt.Errorf("failed to unregister background task: %w", err)
	}
	s.registered = false

	logging.Info("Background scheduler unregistered", nil)
	return nil
}

// LastOutcome returns the most recent background run outcome.
func (s *Scheduler) LastOutcome() (Outcome, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome, s.lastRunAt
}

// handle is the background wake-up entry point. It never lets a panic
// escape to the OS handler.
func (s *Scheduler) handle(ctx context.Context) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithCode("Background run panicked", "INTERNAL_ERROR",
				fmt.Errorf("%v", r))
			outcome = OutcomeFailed
		}
		s.mu.Lock()
		s.lastOutcome = outcome
		s.lastRunAt = time.Now()
		s.mu.Unlock()
	}()

	// Cache maintenance runs on every wake-up, online or not.
	if s.cache != nil {
		if err := s.cache.Maintain(); err != nil {
			logging.Error("Cache maintenance failed", err)
			return OutcomeFailed
		}
	}

	if !s.network.CurrentState().IsOnline() {
		logging.Debug("Background run skipped, offline", nil)
		return OutcomeNoData
	}
	if s.drainer.Draining() {
		logging.Debug("Background run skipped, drain in progress", nil)
		return OutcomeNoData
	}

	result := s.drainer.Drain(ctx)
	logging.Info("Background drain finished",
		map[string]interface{}{
			"processed": result.Processed,
			"failed":    result.Failed,
			"remaining": result.Remaining,
		})
	return OutcomeSuccess
}
