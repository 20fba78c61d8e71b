// Package telemetry collects in-process counters and timings for the
// sync engine. Everything stays local: metrics are held in memory and
// surfaced through the localhost API only, never transmitted.
package telemetry

import (
	"sync"
	"time"
)

// Timing aggregates recorded durations for one metric name.
type Timing struct {
	Count   int64 `json:"count"`
	TotalMS int64 `json:"total_ms"`
	MaxMS   int64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of all recorded metrics.
type Snapshot struct {
	Counters map[string]int64  `json:"counters"`
	Timings  map[string]Timing `json:"timings"`
}

type collector struct {
	mu       sync.Mutex
	counters map[string]int64
	timings  map[string]Timing
}

var global = &collector{
	counters: make(map[string]int64),
	timings:  make(map[string]Timing),
}

// RecordCount adds delta to the named counter.
func RecordCount(name string, delta int64) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.counters[name] += delta
}

// RecordTiming records one duration sample for the named timing.
func RecordTiming(name string, d time.Duration) {
	ms := d.Milliseconds()
	global.mu.Lock()
	defer global.mu.Unlock()
	t := global.timings[name]
	t.Count++
	t.TotalMS += ms
	if ms > t.MaxMS {
		t.MaxMS = ms
	}
	global.timings[name] = t
}

// Collect returns a copy of all metrics recorded so far.
func Collect() Snapshot {
	global.mu.Lock()
	defer global.mu.Unlock()
	snap := Snapshot{
		Counters: make(map[string]int64, len(global.counters)),
		Timings:  make(map[string]Timing, len(global.timings)),
	}
	for k, v := range global.counters {
		snap.Counters[k] = v
	}
	for k, v := range global.timings {
		snap.Timings[k] = v
	}
	return snap
}

// Reset clears all recorded metrics. Used by tests.
func Reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.counters = make(map[string]int64)
	global.timings = make(map[string]Timing)
}
