package validation

import "time"

// Schema names used as metric labels.
const (
	SchemaComment    = "comment"
	SchemaSuggestion = "suggestion"
	SchemaVouch      = "vouch"
	SchemaEvent      = "event"
)

// CommentForm is the single field of the suggestion comment form.
type CommentForm struct {
	Description string `json:"description" validate:"required,desclimit"`
}

// SuggestionForm is a full suggestion as entered by a member.
type SuggestionForm struct {
	SuggestedID int64  `json:"suggested_id" validate:"gt=0"`
	Tier        int    `json:"tier"         validate:"oneof=1 2 3"`
	Region      string `json:"region"       validate:"oneof=NA EU"`
	Description string `json:"description"  validate:"required,desclimit"`
}

// VouchForm holds the vouch modal fields.
type VouchForm struct {
	VouchedID int64  `json:"vouched_id" validate:"gt=0"`
	Tier      int    `json:"tier"       validate:"oneof=1 2 3"`
	Region    string `json:"region"     validate:"oneof=NA EU"`
}

// EventForm holds the editable fields of a calendar event.
type EventForm struct {
	Name             string    `json:"name"               validate:"required,max=100"`
	Date             time.Time `json:"date"               validate:"required"`
	EventURL         string    `json:"event_url"          validate:"required,url"`
	DiscordInviteURL string    `json:"discord_invite_url" validate:"omitempty,url"`
	Tags             []string  `json:"tags"               validate:"dive,tagcode"`
	Description      string    `json:"description"        validate:"max=5000"`
	Format           string    `json:"format"             validate:"required,formatcode"`
}
