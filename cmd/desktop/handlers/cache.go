package handlers

import (
	"net/http"

	"github.com/hkuo/vidsum/client/internal/engine"
	"github.com/hkuo/vidsum/client/internal/models"
)

// CacheHandler exposes cache inspection and clearing.
type CacheHandler struct {
	svc *engine.Service
}

// NewCacheHandler creates a CacheHandler.
func NewCacheHandler(svc *engine.Service) *CacheHandler {
	return &CacheHandler{svc: svc}
}

// Info handles GET /api/cache/{ns}.
func (h *CacheHandler) Info(w http.ResponseWriter, r *http.Request) {
	ns := models.CacheNamespace(r.PathValue("ns"))
	if !ns.Valid() {
		http.Error(w, "Unknown cache namespace", http.StatusBadRequest)
		return
	}

	info, err := h.svc.CacheInfo(ns)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Clear handles DELETE /api/cache/{ns}.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ns := models.CacheNamespace(r.PathValue("ns"))
	if !ns.Valid() {
		http.Error(w, "Unknown cache namespace", http.StatusBadRequest)
		return
	}

	freed, err := h.svc.ClearCacheNamespace(ns)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"namespace":   string(ns),
		"bytes_freed": freed,
	})
}

// Summary handles GET /api/summaries/{id}: a cache read-through that
// fetches from the remote service on a miss.
func (h *CacheHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Summary id is required", http.StatusBadRequest)
		return
	}

	value, err := h.svc.Summary(r.Context(), id)
	if err != nil {
		http.Error(w, "Summary unavailable: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}
