package processor

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays for transient failures:
// min(maxDelay, base * 2^attempts) plus up to 25% jitter so a fleet of
// clients doesn't retry in lockstep after an outage.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff matches the drain scheduling defaults.
var DefaultBackoff = Backoff{
	Base: 30 * time.Second,
	Max:  1 * time.Hour,
}

// Delay returns the delay before the next attempt given how many
// attempts have already failed.
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}

	delay := b.Base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if delay > b.Max {
		delay = b.Max
	}

	// Jitter is additive only, so delays stay non-decreasing in
	// attempts until the cap.
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter
	if delay > b.Max {
		delay = b.Max
	}
	return delay
}
