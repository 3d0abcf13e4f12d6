package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies a notification.
type NotificationKind string

// Notification kinds.
const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a user-facing message produced by a mutation outcome.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Source    string           `json:"source"`
	Message   string           `json:"message"`
	UserID    UserID           `json:"user_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification creates a notification with a fresh id.
func NewNotification(kind NotificationKind, source, message string) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Source:    source,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
