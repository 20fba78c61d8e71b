// Package scheduler tests for background wake-up outcomes and
// registration lifecycle.
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/hkuo/vidsum/client/internal/cache"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/store"
)

// manualTasks is a TaskScheduler driven by the test.
type manualTasks struct {
	handler    func(ctx context.Context) Outcome
	registered int
}

func (m *manualTasks) Register(interval time.Duration, handler func(ctx context.Context) Outcome) error {
	m.handler = handler
	m.registered++
	return nil
}

func (m *manualTasks) Unregister() error {
	m.handler = nil
	return nil
}

func (m *manualTasks) fire() Outcome {
	return m.handler(context.Background())
}

// fakeDrainer scripts drain behavior.
type fakeDrainer struct {
	result   models.DrainResult
	draining bool
	panics   bool
	calls    int
}

func (f *fakeDrainer) Drain(ctx context.Context) models.DrainResult {
	f.calls++
	if f.panics {
		panic("drain blew up")
	}
	return f.result
}

func (f *fakeDrainer) Draining() bool { return f.draining }

// fakeNetwork is a settable OnlineStater.
type fakeNetwork struct{ online bool }

func (f *fakeNetwork) CurrentState() models.NetworkState {
	return models.NetworkState{IsConnected: f.online, IsInternetReachable: f.online}
}

func newScheduler(drainer *fakeDrainer, network *fakeNetwork) (*Scheduler, *manualTasks) {
	tasks := &manualTasks{}
	c := cache.New(store.NewMemStore(), nil)
	return New(tasks, drainer, network, c, time.Minute), tasks
}

// TestHandleOnlineDrains verifies a wake-up while online drains and
// reports success even when entries failed; per-entry failures are not
// a background fault.
func TestHandleOnlineDrains(t *testing.T) {
	drainer := &fakeDrainer{result: models.DrainResult{Processed: 2, Failed: 1, Remaining: 1}}
	s, tasks := newScheduler(drainer, &fakeNetwork{online: true})
	if err := s.Register(); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := tasks.fire(); got != OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", got)
	}
	if drainer.calls != 1 {
		t.Errorf("Drain calls = %d, want 1", drainer.calls)
	}

	last, at := s.LastOutcome()
	if last != OutcomeSuccess || at.IsZero() {
		t.Errorf("LastOutcome() = %s, %v", last, at)
	}
}

// TestHandleOfflineIsNoData verifies offline wake-ups report no_data
// without draining.
func TestHandleOfflineIsNoData(t *testing.T) {
	drainer := &fakeDrainer{}
	s, tasks := newScheduler(drainer, &fakeNetwork{online: false})
	s.Register()

	if got := tasks.fire(); got != OutcomeNoData {
		t.Errorf("Outcome = %s, want no_data", got)
	}
	if drainer.calls != 0 {
		t.Error("Offline wake-up must not drain")
	}
}

// TestHandleDrainInProgressIsNoData verifies overlap avoidance.
func TestHandleDrainInProgressIsNoData(t *testing.T) {
	drainer := &fakeDrainer{draining: true}
	s, tasks := newScheduler(drainer, &fakeNetwork{online: true})
	s.Register()

	if got := tasks.fire(); got != OutcomeNoData {
		t.Errorf("Outcome = %s, want no_data", got)
	}
	if drainer.calls != 0 {
		t.Error("Wake-up must not start a second drain")
	}
}

// TestHandleRecoversPanic verifies a panicking drain reports failed
// instead of crashing the host process.
func TestHandleRecoversPanic(t *testing.T) {
	drainer := &fakeDrainer{panics: true}
	s, tasks := newScheduler(drainer, &fakeNetwork{online: true})
	s.Register()

	if got := tasks.fire(); got != OutcomeFailed {
		t.Errorf("Outcome = %s, want failed", got)
	}
	last, _ := s.LastOutcome()
	if last != OutcomeFailed {
		t.Errorf("LastOutcome() = %s, want failed", last)
	}
}

// TestRegisterIdempotent verifies double registration installs one
// handler.
func TestRegisterIdempotent(t *testing.T) {
	s, tasks := newScheduler(&fakeDrainer{}, &fakeNetwork{online: true})

	s.Register()
	s.Register()
	if tasks.registered != 1 {
		t.Errorf("Register calls reaching tasks = %d, want 1", tasks.registered)
	}

	if err := s.Unregister(); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if err := s.Unregister(); err != nil {
		t.Errorf("Second Unregister failed: %v", err)
	}
	if tasks.handler != nil {
		t.Error("Handler should be removed after Unregister")
	}
}

// TestTickerSchedulerRunsHandler verifies the in-process implementation
// fires on its interval and stops on Unregister.
func TestTickerSchedulerRunsHandler(t *testing.T) {
	ticker := NewTickerScheduler()

	fired := make(chan struct{}, 8)
	err := ticker.Register(15*time.Millisecond, func(ctx context.Context) Outcome {
		fired <- struct{}{}
		return OutcomeSuccess
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Handler never fired")
	}

	if err := ticker.Unregister(); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	// Drain anything in flight, then verify silence.
	for len(fired) > 0 {
		<-fired
	}
	time.Sleep(50 * time.Millisecond)
	if len(fired) != 0 {
		t.Error("Handler fired after Unregister")
	}
}
