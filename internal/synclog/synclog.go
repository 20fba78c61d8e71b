// Package synclog provides the ordered, durable, append-only log of
// pending mutations. It is the source of truth for "what must still
// happen"; only the queue processor removes entries.
package synclog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/hkuo/vidsum/client/internal/errors"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/store"
)

const (
	entriesNS = "synclog"
	metaNS    = "synclog:meta"
	nextIDKey = "next_id"
)

// entryKey zero-pads the id so the substrate's key order is id order.
func entryKey(id int64) string {
	return fmt.Sprintf("%020d", id)
}

// Log is the durable mutation log. All mutating operations are
// persisted before they return; a crash immediately after Append still
// preserves the entry.
type Log struct {
	mu sync.Mutex
	kv store.KV

	// Ids currently being delivered. Append never collapses onto one of
	// these: the payload it would replace is already on the wire, and
	// the processor will remove that entry on success.
	inFlight map[int64]bool
}

// New creates a Log over kv.
func New(kv store.KV) *Log {
	return &Log{kv: kv, inFlight: make(map[int64]bool)}
}

// Append records a pending mutation and returns the stored entry.
//
// Collapse rule: if an unprocessed entry with the same idempotency key
// already exists, its payload is replaced and its attempt counters are
// reset instead of appending a duplicate. The original id, and with it
// the queue position, is kept. An entry whose delivery is in flight is
// not unprocessed; a matching append lands as a new entry behind it.
//
// If the entry cannot be durably persisted, Append returns an error and
// the caller must surface the failure; reporting success here would
// silently lose the mutation.
func (l *Log) Append(kind models.MutationKind, targetID string, payload json.RawMessage) (*models.MutationEntry, error) {
	if !kind.Valid() {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown mutation kind %q", kind))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idemKey := models.IdempotencyKeyFor(kind, targetID, payload)

	// Collapse onto an existing unprocessed entry with the same key.
	existing, err := l.listLocked()
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].IdempotencyKey != idemKey || l.inFlight[existing[i].ID] {
			continue
		}
		entry := existing[i]
		entry.Payload = payload
		entry.AttemptCount = 0
		entry.NextAttemptAt = 0
		entry.LastError = ""
		if err := l.putLocked(&entry); err != nil {
			return nil, err
		}
		logging.Debug("Collapsed mutation onto pending entry",
			map[string]interface{}{"id": entry.ID, "kind": string(kind), "target_id": targetID})
		result := entry
		return &result, nil
	}

	id, err := l.nextIDLocked()
	if err != nil {
		return nil, err
	}

	entry := &models.MutationEntry{
		ID:             id,
		Kind:           kind,
		TargetID:       targetID,
		Payload:        payload,
		EnqueuedAt:     time.Now().Unix(),
		IdempotencyKey: idemKey,
	}
	if err := l.putLocked(entry); err != nil {
		return nil, err
	}

	result := *entry
	return &result, nil
}

// ListPending returns all pending entries ordered by id ascending.
func (l *Log) ListPending() ([]models.MutationEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listLocked()
}

// BeginDelivery marks an entry as in flight for the duration of a
// delivery attempt. While marked, Append appends a re-submitted action
// with the same idempotency key as a new entry instead of collapsing
// onto this one, so the success path removes exactly the payload that
// was delivered.
func (l *Log) BeginDelivery(id int64) {
	l.mu.Lock()
	l.inFlight[id] = true
	l.mu.Unlock()
}

// EndDelivery clears the in-flight mark once the attempt's outcome has
// been recorded.
func (l *Log) EndDelivery(id int64) {
	l.mu.Lock()
	delete(l.inFlight, id)
	l.mu.Unlock()
}

// MarkAttempt records a failed delivery attempt: increments the attempt
// counter, stores the error, and gates the next attempt behind
// nextAttemptAt (unix seconds; 0 means immediately eligible).
func (l *Log) MarkAttempt(id int64, attemptErr string, nextAttemptAt int64) (*models.MutationEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.getLocked(id)
	if err != nil {
		return nil, err
	}
	entry.AttemptCount++
	entry.LastError = attemptErr
	entry.NextAttemptAt = nextAttemptAt
	if err := l.putLocked(entry); err != nil {
		return nil, err
	}
	result := *entry
	return &result, nil
}

// Remove deletes an entry after a terminal outcome. Only the queue
// processor calls this.
func (l *Log) Remove(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.kv.Delete(entriesNS, entryKey(id)); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreWrite, "failed to remove log entry", err)
	}
	return nil
}

// Clear drops all pending entries. The id sequence is preserved so ids
// are never reused.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.kv.ClearNamespace(entriesNS); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreWrite, "failed to clear sync log", err)
	}
	logging.Info("Sync log cleared", nil)
	return nil
}

// Count returns the number of pending entries.
func (l *Log) Count() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.kv.Keys(entriesNS)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStore, "failed to count sync log", err)
	}
	return len(keys), nil
}

// OldestEnqueuedAt returns the enqueue time of the oldest pending
// entry, or 0 when the log is empty.
func (l *Log) OldestEnqueuedAt() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.listLocked()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].EnqueuedAt, nil
}

// =====================================================
// Internal helpers (l.mu held)
// =====================================================

func (l *Log) listLocked() ([]models.MutationEntry, error) {
	records, err := l.kv.List(entriesNS)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to read sync log", err)
	}

	entries := make([]models.MutationEntry, 0, len(records))
	for _, r := range records {
		var entry models.MutationEntry
		if err := json.Unmarshal(r.Value, &entry); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrQueueCorrupted,
				fmt.Sprintf("undecodable log entry at key %s", r.Key), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (l *Log) getLocked(id int64) (*models.MutationEntry, error) {
	value, err := l.kv.Get(entriesNS, entryKey(id))
	if err == store.ErrNotFound {
		return nil, apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("log entry %d not found", id))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to read log entry", err)
	}

	var entry models.MutationEntry
	if err := json.Unmarshal(value, &entry); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueueCorrupted,
			fmt.Sprintf("undecodable log entry %d", id), err)
	}
	return &entry, nil
}

func (l *Log) putLocked(entry *models.MutationEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "failed to encode log entry", err)
	}
	if err := l.kv.Set(entriesNS, entryKey(entry.ID), value); err != nil {
		return apperrors.Wrap(apperrors.ErrQueueAppend, "failed to persist log entry", err)
	}
	return nil
}

// nextIDLocked allocates the next monotonic id. The counter is bumped
// and persisted before the entry itself is written, so a crash in
// between burns the id instead of reusing it.
func (l *Log) nextIDLocked() (int64, error) {
	var next int64 = 1
	value, err := l.kv.Get(metaNS, nextIDKey)
	if err == nil {
		parsed, parseErr := strconv.ParseInt(string(value), 10, 64)
		if parseErr != nil {
			return 0, apperrors.Wrap(apperrors.ErrQueueCorrupted, "bad sequence counter", parseErr)
		}
		next = parsed
	} else if err != store.ErrNotFound {
		return 0, apperrors.Wrap(apperrors.ErrStore, "failed to read sequence counter", err)
	}

	if err := l.kv.Set(metaNS, nextIDKey, []byte(strconv.FormatInt(next+1, 10))); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrQueueAppend, "failed to advance sequence counter", err)
	}
	return next, nil
}
