package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/hkuo/vidsum/client/internal/errors"
	"github.com/hkuo/vidsum/client/internal/logging"
	"github.com/hkuo/vidsum/client/internal/models"
	"github.com/hkuo/vidsum/client/internal/store"
	"github.com/hkuo/vidsum/client/internal/uuid"
)

const notificationsNS = "notifications"

// Center retains dismissible failure notifications on the durable
// substrate, so a terminal failure survives a restart until the user
// dismisses it.
type Center struct {
	mu   sync.Mutex
	kv   store.KV
	sink EventSink
}

// NewCenter creates a Center over kv. sink may be nil.
func NewCenter(kv store.KV, sink EventSink) *Center {
	return &Center{kv: kv, sink: sink}
}

// Notify implements processor.Notifier. Repeated notifications for the
// same (kind, mutation, target) collapse onto one retained record.
func (c *Center) Notify(kind models.NotificationKind, mutation models.MutationKind, targetID, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := models.Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Mutation:  mutation,
		TargetID:  targetID,
		Message:   message,
		CreatedAt: time.Now().Unix(),
	}

	// One retained record per logical failure.
	key := fmt.Sprintf("%s|%s|%s", kind, mutation, targetID)

	value, err := json.Marshal(n)
	if err != nil {
		logging.Error("Failed to encode notification", err)
		return
	}
	if err := c.kv.Set(notificationsNS, key, value); err != nil {
		// The failure is still in the logs; losing the notification
		// record must not break the drain.
		logging.Error("Failed to persist notification", err)
		return
	}

	if c.sink != nil {
		c.sink.Emit(EventMutationFailed, map[string]interface{}{
			"id":        n.ID,
			"kind":      string(kind),
			"mutation":  string(mutation),
			"target_id": targetID,
			"message":   message,
		})
	}
}

// List returns retained notifications, oldest first.
func (c *Center) List() ([]models.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.kv.List(notificationsNS)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStore, "failed to read notifications", err)
	}

	notifications := make([]models.Notification, 0, len(records))
	for _, r := range records {
		var n models.Notification
		if err := json.Unmarshal(r.Value, &n); err != nil {
			logging.Warn("Dropping undecodable notification",
				map[string]interface{}{"key": r.Key})
			continue
		}
		notifications = append(notifications, n)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt < notifications[j].CreatedAt
	})
	return notifications, nil
}

// Dismiss removes a notification by id.
func (c *Center) Dismiss(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.kv.List(notificationsNS)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStore, "failed to read notifications", err)
	}
	for _, r := range records {
		var n models.Notification
		if err := json.Unmarshal(r.Value, &n); err != nil {
			continue
		}
		if n.ID == id {
			return c.kv.Delete(notificationsNS, r.Key)
		}
	}
	return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("notification %s not found", id))
}
