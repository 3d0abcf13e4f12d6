package model

// FormatCode identifies a tournament format.
type FormatCode string

// Format describes a tournament format.
type Format struct {
	Code FormatCode `json:"code"`
	Name string     `json:"name"`
}

// EventFormats is the closed list of formats an event can use.
var EventFormats = []Format{
	{Code: "SE", Name: "Single Elimination"},
	{Code: "DE", Name: "Double Elimination"},
	{Code: "GROUPS2SE", Name: "Groups to Single Elimination"},
	{Code: "GROUPS2DE", Name: "Groups to Double Elimination"},
	{Code: "SWISS2SE", Name: "Swiss to Single Elimination"},
	{Code: "SWISS2DE", Name: "Swiss to Double Elimination"},
	{Code: "SWISS", Name: "Swiss"},
	{Code: "OTHER", Name: "Other"},
}

// LookupFormat finds a format by code.
func LookupFormat(code FormatCode) (Format, bool) {
	for _, f := range EventFormats {
		if f.Code == code {
			return f, true
		}
	}
	return Format{}, false
}

// TagCode identifies an event tag.
type TagCode string

// Tag is a badge shown on an event.
type Tag struct {
	Code        TagCode `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
}

// Tags is the closed registry of event tags.
var Tags = []Tag{
	{Code: "SZ", Name: "SZ Only", Description: "Splat Zones is the only mode played.", Color: "#F44336"},
	{Code: "TW", Name: "Includes TW", Description: "Turf War is played.", Color: "#D50000"},
	{Code: "SPECIAL", Name: "Special rules", Description: "Ruleset that derives from standard e.g. limited what weapons can be used.", Color: "#CE93D8"},
	{Code: "ART", Name: "Art prizes", Description: "You can win art by playing in this tournament.", Color: "#AA00FF"},
	{Code: "MONEY", Name: "Money prizes", Description: "You can win money by playing in this tournament.", Color: "#673AB7"},
	{Code: "REGION", Name: "Region locked", Description: "Limited who can play in this tournament based on location.", Color: "#C5CAE9"},
	{Code: "LOW", Name: "Skill cap", Description: "Who can play in this tournament is limited by skill.", Color: "#BBDEFB"},
	{Code: "COUNT", Name: "Entry limit", Description: "Only limited amount of teams can register.", Color: "#1565C0"},
	{Code: "MULTIPLE", Name: "Multi-day", Description: "This tournament takes place over more than one day.", Color: "#0277BD"},
	{Code: "S1", Name: "Top 8 seeded", Description: "Teams are seeded based on their previous results.", Color: "#4DD0E1"},
}

// LookupTag finds a tag by code.
func LookupTag(code TagCode) (Tag, bool) {
	for _, t := range Tags {
		if t.Code == code {
			return t, true
		}
	}
	return Tag{}, false
}
