package model

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// EventID identifies a calendar event.
type EventID int64

// Event is a calendar entry posted by a user.
type Event struct {
	ID               EventID    `json:"id"`
	Name             string     `json:"name"`
	Date             time.Time  `json:"date"`
	EventURL         string     `json:"event_url"`
	DiscordInviteURL string     `json:"discord_invite_url,omitempty"`
	Poster           UserRef    `json:"poster"`
	Tags             []TagCode  `json:"tags"`
	Description      string     `json:"description"`
	Format           FormatCode `json:"format"`
}

// EventInput carries the editable fields of an event.
type EventInput struct {
	Name             string     `json:"name"`
	Date             time.Time  `json:"date"`
	EventURL         string     `json:"event_url"`
	DiscordInviteURL string     `json:"discord_invite_url,omitempty"`
	Tags             []TagCode  `json:"tags"`
	Description      string     `json:"description"`
	Format           FormatCode `json:"format"`
}

// Apply copies the editable fields of in onto e.
func (e *Event) Apply(in EventInput) {
	e.Name = in.Name
	e.Date = in.Date
	e.EventURL = in.EventURL
	e.DiscordInviteURL = in.DiscordInviteURL
	e.Tags = append([]TagCode(nil), in.Tags...)
	e.Description = in.Description
	e.Format = in.Format
}

// Slug turns the event name into a stable identifier, e.g.
// "In The Zone 22" -> "in-the-zone-22".
func (e Event) Slug() string {
	return strings.ReplaceAll(strings.ToLower(e.Name), " ", "-")
}

// Host returns the host part of EventURL.
func (e Event) Host() (string, error) {
	u, err := url.Parse(e.EventURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("event url has no host")
	}
	return u.Host, nil
}

// eventImages maps well known recurring event names to their logo.
var eventImages = []struct {
	prefix string
	path   string
}{
	{"in the zone", "/events/inTheZone.png"},
	{"swim or sink", "/events/swimOrSink.png"},
	{"low ink", "/events/lowInk.png"},
	{"reef rushdown", "/events/reefRushdown.png"},
}

// Image returns the logo path for recurring events, or "" when none exists.
func (e Event) Image() string {
	name := strings.ToLower(strings.TrimSpace(e.Name))
	for _, img := range eventImages {
		if strings.HasPrefix(name, img.prefix) {
			return img.path
		}
	}
	return ""
}
