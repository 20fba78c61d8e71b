// Package models provides data model definitions for the vidsum client core.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// MutationKind identifies the remote operation a pending mutation maps to.
// The set is closed; dispatch sites switch exhaustively over it.
type MutationKind string

const (
	KindCreate      MutationKind = "create"
	KindStar        MutationKind = "star"
	KindUnstar      MutationKind = "unstar"
	KindDelete      MutationKind = "delete"
	KindAskQuestion MutationKind = "ask_question"
)

// Valid reports whether k is a known mutation kind.
func (k MutationKind) Valid() bool {
	switch k {
	case KindCreate, KindStar, KindUnstar, KindDelete, KindAskQuestion:
		return true
	}
	return false
}

// MutationEntry is a pending user action awaiting delivery to the remote API.
// Entries are ordered by ID; IDs are strictly increasing and never reused.
type MutationEntry struct {
	ID             int64           `json:"id"`
	Kind           MutationKind    `json:"kind"`
	TargetID       string          `json:"target_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt     int64           `json:"enqueued_at"`
	AttemptCount   int             `json:"attempt_count"`
	NextAttemptAt  int64           `json:"next_attempt_at"`
	LastError      string          `json:"last_error,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// EnqueuedTime returns EnqueuedAt as time.Time.
func (m *MutationEntry) EnqueuedTime() time.Time {
	return time.Unix(m.EnqueuedAt, 0)
}

// IdempotencyKeyFor derives the stable idempotency key for a logical action.
//
// For Create, Star, Unstar and Delete the key covers only (kind, targetID):
// re-enqueuing the same logical action before it drains collapses to a
// single entry holding the latest payload. AskQuestion additionally covers
// the payload, since two different questions about the same summary are
// distinct actions and must both reach the server.
func IdempotencyKeyFor(kind MutationKind, targetID string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(string(kind)))
	h.Write([]byte{0})
	h.Write([]byte(targetID))
	if kind == KindAskQuestion {
		h.Write([]byte{0})
		h.Write(payload)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Summary type and length constants accepted by the create operation.
const (
	SummaryTypeBrief    = "Brief"
	SummaryTypeDetailed = "Detailed"
	SummaryTypeKeyPoint = "Key Point"
	SummaryTypeChapters = "Chapters"

	SummaryLengthShort  = "Short"
	SummaryLengthMedium = "Medium"
	SummaryLengthLong   = "Long"
)

// CreatePayload is the payload for KindCreate: generate a summary for a video.
type CreatePayload struct {
	URL           string `json:"url"`
	SummaryType   string `json:"summary_type"`
	SummaryLength string `json:"summary_length"`
}

// StarPayload is the payload for KindStar and KindUnstar.
type StarPayload struct {
	IsStarred bool `json:"is_starred"`
}

// AskPayload is the payload for KindAskQuestion.
type AskPayload struct {
	Question string `json:"question"`
}

// EncodePayload marshals a typed payload for storage on a MutationEntry.
func EncodePayload(p interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
