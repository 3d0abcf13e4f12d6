package topics_test

import (
	"testing"

	"github.com/okian/plushub/internal/domain/topics"
)

func TestTopicNames(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{topics.Suggestions.String(), "plus.suggestions"},
		{topics.Statuses.String(), "plus.statuses"},
		{topics.Events.String(), "calendar.events"},
		{topics.Voting.String(), "plus.voting"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("topic = %q, want %q", tc.got, tc.want)
		}
	}
}
