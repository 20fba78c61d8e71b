// Package models tests for mutation and cache model behavior.
package models

import (
	"testing"
	"time"
)

// TestMutationKindValid verifies the closed kind set.
func TestMutationKindValid(t *testing.T) {
	tests := []struct {
		name string
		kind MutationKind
		want bool
	}{
		{"create", KindCreate, true},
		{"star", KindStar, true},
		{"unstar", KindUnstar, true},
		{"delete", KindDelete, true},
		{"ask question", KindAskQuestion, true},
		{"empty", MutationKind(""), false},
		{"unknown", MutationKind("rename"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestIdempotencyKeyCollapsibleKinds verifies that for collapsible
// kinds the key ignores the payload, so re-enqueuing the same logical
// action always lands on the same key.
func TestIdempotencyKeyCollapsibleKinds(t *testing.T) {
	for _, kind := range []MutationKind{KindCreate, KindStar, KindUnstar, KindDelete} {
		k1 := IdempotencyKeyFor(kind, "video-1", []byte(`{"a":1}`))
		k2 := IdempotencyKeyFor(kind, "video-1", []byte(`{"a":2}`))
		if k1 != k2 {
			t.Errorf("%s: key changed with payload, want stable key", kind)
		}
	}
}

// TestIdempotencyKeyAskQuestion verifies that distinct questions about
// the same summary get distinct keys.
func TestIdempotencyKeyAskQuestion(t *testing.T) {
	k1 := IdempotencyKeyFor(KindAskQuestion, "video-1", []byte(`{"question":"what?"}`))
	k2 := IdempotencyKeyFor(KindAskQuestion, "video-1", []byte(`{"question":"why?"}`))
	if k1 == k2 {
		t.Error("Expected distinct keys for distinct questions")
	}
}

// TestIdempotencyKeyDiscriminates verifies kind and target both feed
// the key.
func TestIdempotencyKeyDiscriminates(t *testing.T) {
	base := IdempotencyKeyFor(KindStar, "video-1", nil)

	if got := IdempotencyKeyFor(KindUnstar, "video-1", nil); got == base {
		t.Error("Expected different key for different kind")
	}
	if got := IdempotencyKeyFor(KindStar, "video-2", nil); got == base {
		t.Error("Expected different key for different target")
	}
	if got := IdempotencyKeyFor(KindStar, "video-1", nil); got != base {
		t.Error("Expected stable key for identical inputs")
	}
}

// TestCacheNamespaceValid verifies the closed namespace set.
func TestCacheNamespaceValid(t *testing.T) {
	for _, ns := range CacheNamespaces {
		if !ns.Valid() {
			t.Errorf("Namespace %q should be valid", ns)
		}
	}
	if CacheNamespace("videos").Valid() {
		t.Error("Unknown namespace should not be valid")
	}
}

// TestNetworkStateIsOnline verifies online requires both connectivity
// and reachability.
func TestNetworkStateIsOnline(t *testing.T) {
	tests := []struct {
		name  string
		state NetworkState
		want  bool
	}{
		{"connected and reachable", NetworkState{IsConnected: true, IsInternetReachable: true}, true},
		{"connected only", NetworkState{IsConnected: true}, false},
		{"reachable only", NetworkState{IsInternetReachable: true}, false},
		{"neither", NetworkState{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsOnline(); got != tt.want {
				t.Errorf("IsOnline() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestQueueSnapshotOldestAge verifies age derivation from the oldest
// enqueue timestamp.
func TestQueueSnapshotOldestAge(t *testing.T) {
	empty := QueueSnapshot{}
	if got := empty.OldestAge(time.Now()); got != 0 {
		t.Errorf("OldestAge() on empty snapshot = %v, want 0", got)
	}

	now := time.Now()
	snap := QueueSnapshot{PendingCount: 1, OldestEnqueuedAt: now.Add(-90 * time.Second).Unix()}
	got := snap.OldestAge(now)
	if got < 89*time.Second || got > 91*time.Second {
		t.Errorf("OldestAge() = %v, want ~90s", got)
	}
}

// TestEncodePayload verifies typed payload encoding round-trips the
// fields the server expects.
func TestEncodePayload(t *testing.T) {
	data, err := EncodePayload(CreatePayload{
		URL:           "https://youtube.com/watch?v=abc",
		SummaryType:   SummaryTypeBrief,
		SummaryLength: SummaryLengthShort,
	})
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	want := `{"url":"https://youtube.com/watch?v=abc","summary_type":"Brief","summary_length":"Short"}`
	if string(data) != want {
		t.Errorf("EncodePayload() = %s, want %s", data, want)
	}
}
