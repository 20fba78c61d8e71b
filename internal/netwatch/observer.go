// Package netwatch derives a single debounced "online" signal from the
// platform connectivity source.
package netwatch

import (
	"errors"
	"sync"
	"time"

	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
)

// ErrStateUnknown is returned by Source.Current before the platform has
// reported any connectivity state.
var ErrStateUnknown = errors.New("netwatch: network state unknown")

// DefaultDebounce absorbs connectivity flapping during transport
// handoff. Transitions shorter than this are never delivered.
const DefaultDebounce = 500 * time.Millisecond

// Source is the platform connectivity provider the observer wraps.
type Source interface {
	// Subscribe registers a callback invoked on every raw connectivity
	// change and returns an unsubscribe function.
	Subscribe(fn func(models.NetworkState)) (unsubscribe func())

	// Current returns the current raw state. An error means the
	// platform source is unavailable.
	Current() (models.NetworkState, error)
}

// Observer debounces a Source and fans out at most one notification per
// debounced transition.
type Observer struct {
	source   Source
	debounce time.Duration

	mu        sync.Mutex
	listeners map[int]func(models.NetworkState)
	nextID    int
	last      models.NetworkState
	seeded    bool
	pending   models.NetworkState
	timer     *time.Timer
	unsub     func()
	closed    bool
}

// NewObserver creates an Observer over source. A non-positive debounce
// falls back to DefaultDebounce.
func NewObserver(source Source, debounce time.Duration) *Observer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Observer{
		source:    source,
		debounce:  debounce,
		listeners: make(map[int]func(models.NetworkState)),
	}
}

// Start begins watching the source. Idempotent.
func (o *Observer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.unsub != nil || o.closed {
		return
	}

	// Seed without notifying; subscribers only hear transitions.
	o.last = o.currentLocked()
	o.seeded = true
	o.unsub = o.source.Subscribe(o.onChange)

	logging.Info("Network observer started",
		map[string]interface{}{"online": o.last.IsOnline()})
}

// Close stops watching and drops all listeners.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.unsub != nil {
		o.unsub()
		o.unsub = nil
	}
	o.listeners = make(map[int]func(models.NetworkState))
}

// Subscribe registers a listener for debounced transitions and returns
// its unsubscribe function.
func (o *Observer) Subscribe(fn func(models.NetworkState)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.listeners[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.listeners, id)
	}
}

// CurrentState returns the current network state. If the platform
// source is unavailable it reports a conservative offline state rather
// than failing.
func (o *Observer) CurrentState() models.NetworkState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentLocked()
}

// IsOnline reports whether the device is currently online.
func (o *Observer) IsOnline() bool {
	return o.CurrentState().IsOnline()
}

func (o *Observer) currentLocked() models.NetworkState {
	state, err := o.source.Current()
	if err != nil {
		logging.Warn("Connectivity source unavailable, assuming offline",
			map[string]interface{}{"error": err.Error()})
		return models.NetworkState{IsConnected: false, IsInternetReachable: false}
	}
	return state
}

// onChange receives raw source updates and arms the debounce timer.
func (o *Observer) onChange(state models.NetworkState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.pending = state
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.debounce, o.flush)
}

// flush delivers the settled state if it differs from the last
// delivered one.
func (o *Observer) flush() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	state := o.pending
	if o.seeded && state == o.last {
		o.mu.Unlock()
		return
	}
	o.last = state
	o.seeded = true
	listeners := make([]func(models.NetworkState), 0, len(o.listeners))
	for _, fn := range o.listeners {
		listeners = append(listeners, fn)
	}
	o.mu.Unlock()

	logging.Info("Network state changed",
		map[string]interface{}{
			"online":    state.IsOnline(),
			"transport": state.TransportType,
		})

	for _, fn := range listeners {
		fn(state)
	}
}
