package view

import (
	"context"
	"time"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/mutation"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/topics"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
)

// Mutation names.
const (
	MutationSuggestion = "plus.suggestion"
	MutationVouch      = "plus.vouch"
)

// Suggester sends "plus.suggestion".
type Suggester interface {
	Suggest(ctx context.Context, req model.SuggestionRequest) error
}

// Comment is one rendered resuggestion.
type Comment struct {
	Suggester   model.UserRef
	Description string
	CreatedAt   time.Time
}

// ThreadView is the projection of a suggestion and its comments.
type ThreadView struct {
	SuggestedUser model.UserRef
	Suggester     model.UserRef
	CreatedAt     time.Time
	Tier          string
	Region        model.Region
	Description   string
	Comments      []Comment
}

// SuggestionThread shows a suggestion and lets members add a comment.
type SuggestionThread struct {
	suggestion model.Suggestion
	canSuggest bool
	voting     voting.Predicate
	validator  *validation.Validator
	form       *mutation.Form[validation.CommentForm, model.SuggestionRequest]
}

// NewSuggestionThread creates a thread for s. canSuggest tells whether the
// viewer may comment at all.
func NewSuggestionThread(
	s model.Suggestion,
	canSuggest bool,
	client Suggester,
	vote voting.Predicate,
	v *validation.Validator,
	opts ...mutation.Option,
) *SuggestionThread {
	if v == nil {
		v = validation.New()
	}
	t := &SuggestionThread{suggestion: s, canSuggest: canSuggest, voting: vote, validator: v}
	t.form = mutation.New(mutation.Config[validation.CommentForm, model.SuggestionRequest]{
		Name:           MutationSuggestion,
		Schema:         validation.SchemaComment,
		Validator:      v,
		Build:          t.buildRequest,
		Send:           client.Suggest,
		Invalidates:    []querycache.Topic{topics.Suggestions},
		SuccessMessage: "Comment added",
	}, opts...)
	return t
}

func (t *SuggestionThread) buildRequest(f validation.CommentForm) model.SuggestionRequest {
	return model.SuggestionRequest{
		SuggestedID: t.suggestion.SuggestedUser.ID,
		Tier:        t.suggestion.Tier,
		// The region of an existing suggestion is never updated.
		Region:      model.RegionNA,
		Description: f.Description,
	}
}

// View returns the thread projection with comments in insertion order.
func (t *SuggestionThread) View() ThreadView {
	s := t.suggestion
	comments := make([]Comment, 0, len(s.Resuggestions))
	for _, r := range s.Resuggestions {
		comments = append(comments, Comment{Suggester: r.SuggesterUser, Description: r.Description, CreatedAt: r.CreatedAt})
	}
	return ThreadView{
		SuggestedUser: s.SuggestedUser,
		Suggester:     s.SuggesterUser,
		CreatedAt:     s.CreatedAt,
		Tier:          s.Tier.String(),
		Region:        s.Region,
		Description:   s.Description,
		Comments:      comments,
	}
}

// CanAddComment reports whether the "add comment" action is offered.
func (t *SuggestionThread) CanAddComment() bool {
	return t.canSuggest && !t.form.Visible() && !t.voting.IsHappening()
}

// OpenComment shows the comment form.
func (t *SuggestionThread) OpenComment() error {
	if !t.CanAddComment() {
		return ErrNotAllowed
	}
	t.form.Open()
	return nil
}

// CancelComment hides the comment form and drops the draft.
func (t *SuggestionThread) CancelComment() { t.form.Close() }

// SetComment replaces the draft text.
func (t *SuggestionThread) SetComment(text string) {
	t.form.Edit(func(f *validation.CommentForm) { f.Description = text })
}

// Counter renders the live "n/limit" counter of the draft.
func (t *SuggestionThread) Counter() string {
	return t.validator.Counter(t.form.Fields().Description)
}

// SubmitComment validates and sends the draft. It returns ErrNotAllowed
// unless the form is open and voting is not happening.
func (t *SuggestionThread) SubmitComment(ctx context.Context) error {
	if !t.canSuggest || !t.form.Visible() || t.voting.IsHappening() {
		return ErrNotAllowed
	}
	return t.form.Submit(ctx)
}

// Form exposes the comment form state.
func (t *SuggestionThread) Form() mutation.Snapshot[validation.CommentForm] {
	return t.form.Snapshot()
}

// Unmount detaches the thread.
func (t *SuggestionThread) Unmount() { t.form.Unmount() }
