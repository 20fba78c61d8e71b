package handlers

import (
	"net/http"

	"github.com/hkuo/vidsum/client/internal/engine"
	"github.com/hkuo/vidsum/client/internal/uuid"
)

// NotificationsHandler exposes retained failure notifications.
type NotificationsHandler struct {
	svc *engine.Service
}

// NewNotificationsHandler creates a NotificationsHandler.
func NewNotificationsHandler(svc *engine.Service) *NotificationsHandler {
	return &NotificationsHandler{svc: svc}
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.svc.Notifications()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

// Dismiss handles DELETE /api/notifications/{id}.
func (h *NotificationsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := uuid.Validate(id); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
		return
	}
	if err := h.svc.DismissNotification(id); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dismissed": id})
}
