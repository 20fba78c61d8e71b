// Package telemetry tests for the local metrics collector.
package telemetry

import (
	"testing"
	"time"
)

// TestRecordCount verifies counter accumulation.
func TestRecordCount(t *testing.T) {
	Reset()

	RecordCount("drain.processed", 3)
	RecordCount("drain.processed", 2)
	RecordCount("drain.dropped", 1)

	snap := Collect()
	if snap.Counters["drain.processed"] != 5 {
		t.Errorf("drain.processed = %d, want 5", snap.Counters["drain.processed"])
	}
	if snap.Counters["drain.dropped"] != 1 {
		t.Errorf("drain.dropped = %d, want 1", snap.Counters["drain.dropped"])
	}
}

// TestRecordTiming verifies timing aggregation.
func TestRecordTiming(t *testing.T) {
	Reset()

	RecordTiming("drain.duration", 100*time.Millisecond)
	RecordTiming("drain.duration", 300*time.Millisecond)

	snap := Collect()
	timing := snap.Timings["drain.duration"]
	if timing.Count != 2 {
		t.Errorf("Count = %d, want 2", timing.Count)
	}
	if timing.TotalMS != 400 {
		t.Errorf("TotalMS = %d, want 400", timing.TotalMS)
	}
	if timing.MaxMS != 300 {
		t.Errorf("MaxMS = %d, want 300", timing.MaxMS)
	}
}

// TestCollectIsACopy verifies mutating a snapshot does not leak back.
func TestCollectIsACopy(t *testing.T) {
	Reset()
	RecordCount("x", 1)

	snap := Collect()
	snap.Counters["x"] = 100

	if got := Collect().Counters["x"]; got != 1 {
		t.Errorf("Counter mutated through snapshot: %d, want 1", got)
	}
}
