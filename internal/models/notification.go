package models

// NotificationKind distinguishes user-visible failure notifications.
type NotificationKind string

const (
	// NotificationMutationFailed is retained when a mutation is dropped
	// after a terminal failure.
	NotificationMutationFailed NotificationKind = "mutation_failed"

	// NotificationReconnectRequired is retained when auth failures
	// exhaust their retry cap; the mutation itself is kept in the queue.
	NotificationReconnectRequired NotificationKind = "reconnect_required"
)

// Notification is a retained, dismissible user-visible failure record.
// A terminal failure must never be a silent drop.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Mutation  MutationKind     `json:"mutation"`
	TargetID  string           `json:"target_id"`
	Message   string           `json:"message"`
	CreatedAt int64            `json:"created_at"`
}
