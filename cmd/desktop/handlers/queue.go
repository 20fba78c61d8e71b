// Package handlers provides the localhost REST surface the UI shell
// talks to.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hkuo/vidsum/client/internal/engine"
	apperrors "github.com/hkuo/vidsum/client/internal/errors"
	"github.com/hkuo/vidsum/client/internal/models"
)

// QueueHandler exposes the mutation queue commands and queries.
type QueueHandler struct {
	svc *engine.Service
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(svc *engine.Service) *QueueHandler {
	return &QueueHandler{svc: svc}
}

// Snapshot handles GET /api/queue.
func (h *QueueHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// enqueueRequest is the body of POST /api/queue/mutations.
type enqueueRequest struct {
	Kind     models.MutationKind `json:"kind"`
	TargetID string              `json:"target_id"`
	Payload  json.RawMessage     `json:"payload,omitempty"`
}

// Enqueue handles POST /api/queue/mutations.
// The mutation is durably recorded before this returns 201; a
// persistence failure is a 500, never a silent drop.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Kind.Valid() {
		http.Error(w, "Unknown mutation kind", http.StatusBadRequest)
		return
	}

	entry, err := h.svc.Enqueue(req.Kind, req.TargetID, req.Payload)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// Drain handles POST /api/queue/drain (the "Process Queue" button).
func (h *QueueHandler) Drain(w http.ResponseWriter, r *http.Request) {
	result := h.svc.DrainNow(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// Clear handles DELETE /api/queue.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearQueue(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// Network handles GET /api/network.
func (h *QueueHandler) Network(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.NetworkState())
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeEngineError maps engine error codes onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperrors.Is(err, apperrors.ErrInvalid), apperrors.Is(err, apperrors.ErrValidation):
		status = http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}
