// Package repository stores users, plus data and calendar events.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/okian/plushub/internal/domain/model"
)

// Store provides read/write access to server-owned state. Implementations
// are safe for concurrent use.
type Store interface {
	// PutUser creates or replaces a user.
	PutUser(ctx context.Context, u model.UserRef) error
	// User returns ErrNotFound for unknown ids.
	User(ctx context.Context, id model.UserID) (model.UserRef, error)

	// PutStatus creates or replaces the status of an existing user.
	PutStatus(ctx context.Context, s model.PlusStatus) error
	// Status returns the user's status. Known users without a status get a
	// status with every tier set to none.
	Status(ctx context.Context, id model.UserID) (model.PlusStatus, error)
	// Statuses lists every stored status ordered by user id.
	Statuses(ctx context.Context) ([]model.PlusStatus, error)
	// RecordVouch stores the vouch on the vouched user and consumes the
	// voucher's eligibility in one step.
	RecordVouch(ctx context.Context, voucher model.UserID, req model.VouchRequest) error

	// Suggestions lists suggestions in creation order with their
	// resuggestions in insertion order.
	Suggestions(ctx context.Context) ([]model.Suggestion, error)
	// FindSuggestion returns the suggestion for (suggested, tier) or ErrNotFound.
	FindSuggestion(ctx context.Context, suggested model.UserID, tier model.Tier) (model.Suggestion, error)
	// AddSuggestion returns ErrDuplicate when (suggested, tier) exists.
	AddSuggestion(ctx context.Context, s model.Suggestion) error
	// AddResuggestion returns ErrDuplicate when the suggester already commented.
	AddResuggestion(ctx context.Context, suggestion uuid.UUID, r model.Resuggestion) error

	// Events lists events ordered by date.
	Events(ctx context.Context) ([]model.Event, error)
	// Event returns ErrNotFound for unknown ids.
	Event(ctx context.Context, id model.EventID) (model.Event, error)
	// CreateEvent assigns an id and stores e.
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	// UpdateEvent replaces an existing event.
	UpdateEvent(ctx context.Context, e model.Event) error

	Close() error
}
