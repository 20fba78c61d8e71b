package models

import "time"

// DrainResult is the tally of one queue drain.
type DrainResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// QueueSnapshot is the read-only queue projection exposed to the UI.
// It is never mutated by callers.
type QueueSnapshot struct {
	PendingCount     int          `json:"pending_count"`
	OldestEnqueuedAt int64        `json:"oldest_enqueued_at,omitempty"`
	LastDrainResult  *DrainResult `json:"last_drain_result,omitempty"`
	LastDrainAt      int64        `json:"last_drain_at,omitempty"`
}

// OldestAge returns how long the oldest pending entry has been waiting,
// or zero when the queue is empty.
func (s QueueSnapshot) OldestAge(now time.Time) time.Duration {
	if s.OldestEnqueuedAt == 0 {
		return 0
	}
	return now.Sub(time.Unix(s.OldestEnqueuedAt, 0))
}
