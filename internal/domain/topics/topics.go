// Package topics declares every query topic the service and clients share.
package topics

import "github.com/okian/plushub/internal/domain/querycache"

var (
	// Suggestions is the list of plus suggestions.
	Suggestions = querycache.NewTopic("plus.suggestions")
	// Statuses holds plus statuses, including the caller's own.
	Statuses = querycache.NewTopic("plus.statuses")
	// Events is the calendar event list.
	Events = querycache.NewTopic("calendar.events")
	// Voting is the current voting range.
	Voting = querycache.NewTopic("plus.voting")
)
