// Package policy centralizes authorization decisions so identity comparisons
// live in one place.
package policy

import (
	"github.com/okian/plushub/internal/domain/model"
)

// Action names used in decisions and metrics.
const (
	ActionEditEvent = "edit_event"
)

// Reasons attached to decisions.
const (
	ReasonOwner     = "owner"
	ReasonAdmin     = "admin"
	ReasonAnonymous = "anonymous"
	ReasonNotOwner  = "not_owner"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Action  string
	Allowed bool
	Reason  string
}

// Policy answers "may actor do X to resource".
type Policy struct {
	adminID model.UserID
}

// New creates a policy with the given admin sentinel. A zero adminID
// disables the admin override.
func New(adminID model.UserID) Policy {
	return Policy{adminID: adminID}
}

// AdminID returns the configured admin sentinel.
func (p Policy) AdminID() model.UserID { return p.adminID }

// IsAdmin reports whether actor is the admin sentinel.
func (p Policy) IsAdmin(actor model.UserID) bool {
	return p.adminID.Valid() && actor == p.adminID
}

// CanEditEvent allows the poster of an event and the admin.
func (p Policy) CanEditEvent(actor model.UserID, event model.Event) Decision {
	d := Decision{Action: ActionEditEvent}
	switch {
	case !actor.Valid():
		d.Reason = ReasonAnonymous
	case actor == event.Poster.ID:
		d.Allowed, d.Reason = true, ReasonOwner
	case p.IsAdmin(actor):
		d.Allowed, d.Reason = true, ReasonAdmin
	default:
		d.Reason = ReasonNotOwner
	}
	return d
}
