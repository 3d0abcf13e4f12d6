package view

import (
	"sync"
	"time"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/policy"
	"github.com/okian/plushub/pkg/metrics"
)

// EventSummary is the always-visible part of an event card.
type EventSummary struct {
	Name             string
	Slug             string
	Date             time.Time
	EventURL         string
	Host             string
	Image            string
	PosterName       string
	PosterPath       string
	Tags             []model.Tag
	DiscordInviteURL string
}

// EventDetails is shown only while the card is expanded.
type EventDetails struct {
	FormatName  string
	Description string
}

// EventCard is a read-only event projection with an expand toggle and an
// edit action offered to the poster and the admin.
type EventCard struct {
	event  model.Event
	viewer model.UserID
	policy policy.Policy
	onEdit func(model.Event)

	mu       sync.Mutex
	expanded bool
}

// NewEventCard creates a collapsed card. viewer is zero when nobody is
// logged in.
func NewEventCard(event model.Event, viewer model.UserID, pol policy.Policy, onEdit func(model.Event)) *EventCard {
	return &EventCard{event: event, viewer: viewer, policy: pol, onEdit: onEdit}
}

// Summary returns the collapsed projection. Unknown tag codes are skipped.
func (c *EventCard) Summary() EventSummary {
	e := c.event
	host, _ := e.Host()

	tags := make([]model.Tag, 0, len(e.Tags))
	for _, code := range e.Tags {
		if t, ok := model.LookupTag(code); ok {
			tags = append(tags, t)
		}
	}

	return EventSummary{
		Name:             e.Name,
		Slug:             e.Slug(),
		Date:             e.Date,
		EventURL:         e.EventURL,
		Host:             host,
		Image:            e.Image(),
		PosterName:       e.Poster.FullUsername(),
		PosterPath:       e.Poster.ProfilePath(),
		Tags:             tags,
		DiscordInviteURL: e.DiscordInviteURL,
	}
}

// Details returns the detail panel and true while expanded.
func (c *EventCard) Details() (EventDetails, bool) {
	c.mu.Lock()
	expanded := c.expanded
	c.mu.Unlock()
	if !expanded {
		return EventDetails{}, false
	}

	d := EventDetails{Description: c.event.Description}
	if f, ok := model.LookupFormat(c.event.Format); ok {
		d.FormatName = f.Name
	}
	return d, true
}

// Expanded reports whether the detail panel is shown.
func (c *EventCard) Expanded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expanded
}

// Toggle flips the detail panel.
func (c *EventCard) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expanded = !c.expanded
}

// CanEdit reports whether the edit action is offered.
func (c *EventCard) CanEdit() policy.Decision {
	return c.policy.CanEditEvent(c.viewer, c.event)
}

// Edit hands the event to the edit callback when the viewer may edit it.
func (c *EventCard) Edit() error {
	if d := c.CanEdit(); !d.Allowed {
		metrics.RecordAuthorizationDenied(d.Action)
		return ErrNotAllowed
	}
	if c.onEdit != nil {
		c.onEdit(c.event)
	}
	return nil
}
