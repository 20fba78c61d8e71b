package netwatch

import (
	"sync"

	"github.com/hkuo/vidsum/client/internal/models"
)

// PushSource is a Source fed by the embedding platform. Mobile shells
// receive connectivity callbacks from the OS and forward them through
// SetState; the observer handles debouncing.
type PushSource struct {
	mu        sync.RWMutex
	state     models.NetworkState
	known     bool
	listeners map[int]func(models.NetworkState)
	nextID    int
}

// NewPushSource creates a PushSource with no known state. Current
// returns an error until the first SetState.
func NewPushSource() *PushSource {
	return &PushSource{
		listeners: make(map[int]func(models.NetworkState)),
	}
}

// SetState records the platform-reported state and fans it out to
// subscribers.
func (p *PushSource) SetState(state models.NetworkState) {
	p.mu.Lock()
	p.state = state
	p.known = true
	fns := make([]func(models.NetworkState), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Subscribe registers fn for future state pushes and returns an
// unsubscribe function.
func (p *PushSource) Subscribe(fn func(models.NetworkState)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Current returns the last pushed state.
func (p *PushSource) Current() (models.NetworkState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.known {
		return models.NetworkState{}, ErrStateUnknown
	}
	return p.state, nil
}
