package netwatch

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hkuo/vidsum/client/internal/models"
)

// PollingSource is a Source that probes a well-known endpoint on an
// interval. It stands in for the OS connectivity API on platforms that
// don't expose one to the process (desktop builds).
type PollingSource struct {
	probeURL string
	interval time.Duration
	client   *http.Client

	mu        sync.Mutex
	listeners map[int]func(models.NetworkState)
	nextID    int
	last      models.NetworkState
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPollingSource creates a source probing probeURL every interval.
func NewPollingSource(probeURL string, interval time.Duration) *PollingSource {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &PollingSource{
		probeURL:  probeURL,
		interval:  interval,
		client:    &http.Client{Timeout: 5 * time.Second},
		listeners: make(map[int]func(models.NetworkState)),
	}
}

// Start begins probing. Idempotent.
func (p *PollingSource) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.last = p.probe(ctx)

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop halts probing.
func (p *PollingSource) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

// Subscribe implements Source.
func (p *PollingSource) Subscribe(fn func(models.NetworkState)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Current implements Source.
func (p *PollingSource) Current() (models.NetworkState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, nil
}

func (p *PollingSource) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := p.probe(ctx)

			p.mu.Lock()
			changed := state != p.last
			p.last = state
			listeners := make([]func(models.NetworkState), 0, len(p.listeners))
			for _, fn := range p.listeners {
				listeners = append(listeners, fn)
			}
			p.mu.Unlock()

			if changed {
				for _, fn := range listeners {
					fn(state)
				}
			}
		}
	}
}

// probe performs one reachability check.
func (p *PollingSource) probe(ctx context.Context) models.NetworkState {
	state := models.NetworkState{TransportType: "unknown"}

	// Link check: can we resolve/dial at all?
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.probeURL, nil)
	if err != nil {
		return state
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// A DNS or dial error means no link; a timeout means a link
		// without usable internet.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			state.IsConnected = true
		}
		return state
	}
	resp.Body.Close()

	state.IsConnected = true
	state.IsInternetReachable = true
	return state
}
