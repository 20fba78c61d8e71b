package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hkuo/vidsum/client/internal/logging"
)

// TickerScheduler implements TaskScheduler with an in-process ticker
// goroutine. Desktop builds use it; mobile builds bind the platform
// background-task API instead.
type TickerScheduler struct {
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewTickerScheduler creates a stopped TickerScheduler.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Register implements TaskScheduler. Registering while running is a
// no-op.
func (t *TickerScheduler) Register(interval time.Duration, handler func(ctx context.Context) Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil
	}
	t.running = true
	t.stopCh = make(chan struct{})

	t.wg.Add(1)
	go t.loop(interval, handler, t.stopCh)
	return nil
}

// Unregister implements TaskScheduler. It waits for an in-flight
// handler to return.
func (t *TickerScheduler) Unregister() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	close(t.stopCh)
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}

func (t *TickerScheduler) loop(interval time.Duration, handler func(ctx context.Context) Outcome, stopCh chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			outcome := handler(ctx)
			cancel()

			logging.Debug("Scheduled run completed",
				map[string]interface{}{"outcome": string(outcome)})
		}
	}
}
