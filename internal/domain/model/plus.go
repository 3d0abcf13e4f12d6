package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Tier is a plus membership tier. Tier1 is the highest.
type Tier int

// Known tiers. TierNone marks "no tier" in statuses.
const (
	TierNone Tier = 0
	Tier1    Tier = 1
	Tier2    Tier = 2
	Tier3    Tier = 3
)

// Tiers lists every grantable tier from highest to lowest.
var Tiers = []Tier{Tier1, Tier2, Tier3}

// Valid reports whether t is one of Tiers.
func (t Tier) Valid() bool { return t >= Tier1 && t <= Tier3 }

// AtMost reports whether t ranks no higher than limit. A holder of limit may
// grant t. Both must be valid.
func (t Tier) AtMost(limit Tier) bool {
	return t.Valid() && limit.Valid() && t >= limit
}

// String renders the tier the way members refer to it, e.g. "+2".
func (t Tier) String() string {
	if !t.Valid() {
		return "none"
	}
	return "+" + strconv.Itoa(int(t))
}

// Region is the play region attached to suggestions and vouches.
type Region string

// Known regions.
const (
	RegionNA Region = "NA"
	RegionEU Region = "EU"
)

// Regions lists the selectable regions in display order.
var Regions = []Region{RegionNA, RegionEU}

// Valid reports whether r is one of Regions.
func (r Region) Valid() bool { return r == RegionNA || r == RegionEU }

// Suggestion proposes a user for a tier. Follow-up comments from other
// members are kept as resuggestions, in the order they were added.
type Suggestion struct {
	ID            uuid.UUID      `json:"id"`
	SuggestedUser UserRef        `json:"suggested_user"`
	SuggesterUser UserRef        `json:"suggester_user"`
	Tier          Tier           `json:"tier"`
	Region        Region         `json:"region"`
	Description   string         `json:"description"`
	CreatedAt     time.Time      `json:"created_at"`
	Resuggestions []Resuggestion `json:"resuggestions"`
}

// Resuggestion is a comment on an existing suggestion.
type Resuggestion struct {
	SuggesterUser UserRef   `json:"suggester_user"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasSuggester reports whether id already suggested or commented.
func (s *Suggestion) HasSuggester(id UserID) bool {
	if s.SuggesterUser.ID == id {
		return true
	}
	for _, r := range s.Resuggestions {
		if r.SuggesterUser.ID == id {
			return true
		}
	}
	return false
}

// PlusStatus is a user's standing in the plus system.
type PlusStatus struct {
	User           UserRef `json:"user"`
	MembershipTier Tier    `json:"membership_tier"`
	VouchTier      Tier    `json:"vouch_tier"`
	CanVouchFor    Tier    `json:"can_vouch_for"`
	Region         Region  `json:"region"`
	VouchedBy      UserID  `json:"vouched_by,omitempty"`
}

// IsMember reports whether the user holds any membership tier.
func (p PlusStatus) IsMember() bool { return p.MembershipTier.Valid() }

// CanSuggestFor reports whether the member may suggest or comment for tier.
func (p PlusStatus) CanSuggestFor(tier Tier) bool {
	return p.IsMember() && tier.AtMost(p.MembershipTier)
}

// CanVouch reports whether the user may vouch for anyone at all.
func (p PlusStatus) CanVouch() bool { return p.CanVouchFor.Valid() }

// SuggestionRequest is the fully specified payload of "plus.suggestion".
// When a suggestion for (SuggestedID, Tier) exists the description is added
// as a comment and Region is ignored.
type SuggestionRequest struct {
	SuggestedID UserID `json:"suggested_id"`
	Tier        Tier   `json:"tier"`
	Region      Region `json:"region"`
	Description string `json:"description"`
}

// VouchRequest is the fully specified payload of "plus.vouch".
type VouchRequest struct {
	VouchedID UserID `json:"vouched_id"`
	Tier      Tier   `json:"tier"`
	Region    Region `json:"region"`
}
