package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/plushub/internal/adapters/repository"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/topics"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

// Mutation names, shared with clients and metrics.
const (
	MutationSuggestion = "plus.suggestion"
	MutationVouch      = "plus.vouch"
	MutationEvent      = "calendar.event"
)

// Suggest creates a suggestion for (req.SuggestedID, req.Tier) or, when one
// exists, adds req.Description as the actor's comment on it. created
// reports which of the two happened.
func (s *Service) Suggest(ctx context.Context, actor model.UserID, req model.SuggestionRequest) (sg model.Suggestion, created bool, err error) {
	const op = "service.Suggest"
	start := s.now()
	defer func() { s.observe(MutationSuggestion, start, err) }()

	store, cache, err := s.components()
	if err != nil {
		return model.Suggestion{}, false, err
	}
	if err := s.validator.Validate(validation.SchemaSuggestion, validation.Suggestion(req)); err != nil {
		return model.Suggestion{}, false, invalid(op, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.voting.IsHappening() {
		return model.Suggestion{}, false, reject(op, ErrVotingInProgress, "Suggestions are closed while voting is happening")
	}

	suggester, err := s.actorStatus(ctx, op, store, actor)
	if err != nil {
		return model.Suggestion{}, false, err
	}
	if !suggester.CanSuggestFor(req.Tier) {
		return model.Suggestion{}, false, rejectf(op, ErrForbidden, "You can't suggest for %s", req.Tier)
	}
	if actor == req.SuggestedID {
		return model.Suggestion{}, false, reject(op, ErrForbidden, "You can't suggest yourself")
	}

	suggested, err := store.Status(ctx, req.SuggestedID)
	if err != nil {
		return model.Suggestion{}, false, s.storeErr(op, err, "Suggested user not found")
	}
	if suggested.IsMember() && req.Tier.AtMost(suggested.MembershipTier) {
		return model.Suggestion{}, false, rejectf(op, ErrDuplicate, "%s is already a member of %s", suggested.User.FullUsername(), suggested.MembershipTier)
	}

	now := s.now().UTC()
	existing, err := store.FindSuggestion(ctx, req.SuggestedID, req.Tier)
	switch {
	case err == nil:
		if existing.HasSuggester(actor) {
			return model.Suggestion{}, false, reject(op, ErrDuplicate, "You have already commented on this suggestion")
		}
		r := model.Resuggestion{
			SuggesterUser: suggester.User,
			Description:   req.Description,
			CreatedAt:     now,
		}
		if err := store.AddResuggestion(ctx, existing.ID, r); err != nil {
			return model.Suggestion{}, false, s.storeErr(op, err, "You have already commented on this suggestion")
		}
		existing.Resuggestions = append(existing.Resuggestions, r)
		sg = existing
		metrics.RecordCommentAdded()
	case errors.Is(err, repository.ErrNotFound):
		sg = model.Suggestion{
			ID:            uuid.New(),
			SuggestedUser: suggested.User,
			SuggesterUser: suggester.User,
			Tier:          req.Tier,
			Region:        req.Region,
			Description:   req.Description,
			CreatedAt:     now,
			Resuggestions: []model.Resuggestion{},
		}
		if err := store.AddSuggestion(ctx, sg); err != nil {
			return model.Suggestion{}, false, s.storeErr(op, err, "This user has already been suggested for this tier")
		}
		created = true
		metrics.RecordSuggestionCreated()
	default:
		return model.Suggestion{}, false, fmt.Errorf("%s: %w", op, err)
	}

	cache.Invalidate(ctx, topics.Suggestions)
	s.logger.Info(ctx, "suggestion recorded",
		logger.Int64("actor", int64(actor)),
		logger.Int64("suggested", int64(req.SuggestedID)),
		logger.String("tier", req.Tier.String()),
		logger.Bool("created", created),
	)
	if created {
		s.audit(ctx, MutationSuggestion, actor, fmt.Sprintf("%s suggested %s for %s", suggester.User.FullUsername(), suggested.User.FullUsername(), req.Tier))
	} else {
		s.audit(ctx, MutationSuggestion, actor, fmt.Sprintf("%s commented on the %s suggestion of %s", suggester.User.FullUsername(), req.Tier, suggested.User.FullUsername()))
	}
	return sg, created, nil
}

// Vouch records the actor's vouch for req.VouchedID and consumes the
// actor's vouching eligibility.
func (s *Service) Vouch(ctx context.Context, actor model.UserID, req model.VouchRequest) (err error) {
	const op = "service.Vouch"
	start := s.now()
	defer func() { s.observe(MutationVouch, start, err) }()

	store, cache, err := s.components()
	if err != nil {
		return err
	}
	if err := s.validator.Validate(validation.SchemaVouch, validation.Vouch(req)); err != nil {
		return invalid(op, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.voting.IsHappening() {
		return reject(op, ErrVotingInProgress, "Vouching is closed while voting is happening")
	}
	if actor == req.VouchedID {
		return reject(op, ErrForbidden, "You can't vouch for yourself")
	}

	voucher, err := s.actorStatus(ctx, op, store, actor)
	if err != nil {
		return err
	}
	if !voucher.CanVouch() || !req.Tier.AtMost(voucher.CanVouchFor) {
		return rejectf(op, ErrNotEligible, "You are not eligible to vouch for %s", req.Tier)
	}

	vouched, err := store.Status(ctx, req.VouchedID)
	if err != nil {
		return s.storeErr(op, err, "Vouched user not found")
	}
	if vouched.IsMember() && req.Tier.AtMost(vouched.MembershipTier) {
		return rejectf(op, ErrDuplicate, "%s is already a member of %s", vouched.User.FullUsername(), vouched.MembershipTier)
	}
	if vouched.VouchTier.Valid() && req.Tier.AtMost(vouched.VouchTier) {
		return rejectf(op, ErrDuplicate, "%s is already vouched for %s", vouched.User.FullUsername(), vouched.VouchTier)
	}

	if err := store.RecordVouch(ctx, actor, req); err != nil {
		return s.storeErr(op, err, "Vouched user not found")
	}

	metrics.RecordVouch(strconv.Itoa(int(req.Tier)), string(req.Region))
	cache.Invalidate(ctx, topics.Statuses)
	s.logger.Info(ctx, "vouch recorded",
		logger.Int64("actor", int64(actor)),
		logger.Int64("vouched", int64(req.VouchedID)),
		logger.String("tier", req.Tier.String()),
		logger.String("region", string(req.Region)),
	)
	s.audit(ctx, MutationVouch, actor, fmt.Sprintf("%s vouched %s for %s (%s)", voucher.User.FullUsername(), vouched.User.FullUsername(), req.Tier, req.Region))
	return nil
}

// Suggestions lists every suggestion with its comments.
func (s *Service) Suggestions(ctx context.Context) ([]model.Suggestion, error) {
	store, cache, err := s.components()
	if err != nil {
		return nil, err
	}
	return querycache.Read(ctx, cache, querycache.NewQuery(topics.Suggestions, "all", store.Suggestions))
}

// Statuses lists every stored plus status.
func (s *Service) Statuses(ctx context.Context) ([]model.PlusStatus, error) {
	store, cache, err := s.components()
	if err != nil {
		return nil, err
	}
	return querycache.Read(ctx, cache, querycache.NewQuery(topics.Statuses, "all", store.Statuses))
}

// Status returns the plus status of id.
func (s *Service) Status(ctx context.Context, id model.UserID) (model.PlusStatus, error) {
	const op = "service.Status"
	store, cache, err := s.components()
	if err != nil {
		return model.PlusStatus{}, err
	}
	q := querycache.NewQuery(topics.Statuses, "user:"+strconv.FormatInt(int64(id), 10), func(ctx context.Context) (model.PlusStatus, error) {
		return store.Status(ctx, id)
	})
	st, err := querycache.Read(ctx, cache, q)
	if err != nil {
		return model.PlusStatus{}, s.storeErr(op, err, "User not found")
	}
	return st, nil
}

// Voting returns the current voting range.
func (s *Service) Voting(_ context.Context) (voting.Range, error) {
	return s.voting.Range(), nil
}

// RegisterUser creates or replaces a user.
func (s *Service) RegisterUser(ctx context.Context, u model.UserRef) error {
	const op = "service.RegisterUser"
	store, cache, err := s.components()
	if err != nil {
		return err
	}
	if !u.ID.Valid() || u.Username == "" {
		return reject(op, ErrValidation, "A user needs an id and a username")
	}
	if err := store.PutUser(ctx, u); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	cache.Invalidate(ctx, topics.Statuses, topics.Suggestions)
	return nil
}

// SetStatus creates or replaces the plus status of a registered user.
func (s *Service) SetStatus(ctx context.Context, st model.PlusStatus) error {
	const op = "service.SetStatus"
	store, cache, err := s.components()
	if err != nil {
		return err
	}
	if st.Region != "" && !st.Region.Valid() {
		return rejectf(op, ErrValidation, "Unknown region %q", st.Region)
	}
	if err := store.PutStatus(ctx, st); err != nil {
		return s.storeErr(op, err, "User not found")
	}
	cache.Invalidate(ctx, topics.Statuses)
	return nil
}

// actorStatus resolves the authenticated user's status.
func (s *Service) actorStatus(ctx context.Context, op string, store repository.Store, actor model.UserID) (model.PlusStatus, error) {
	if !actor.Valid() {
		return model.PlusStatus{}, reject(op, ErrForbidden, "You need to log in")
	}
	st, err := store.Status(ctx, actor)
	if errors.Is(err, repository.ErrNotFound) {
		return model.PlusStatus{}, reject(op, ErrForbidden, "Unknown user")
	}
	if err != nil {
		return model.PlusStatus{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// storeErr translates store sentinels into rejections with msg.
func (s *Service) storeErr(op string, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Op: op, Kind: ErrNotFound, Message: msg, Err: err}
	case errors.Is(err, repository.ErrDuplicate):
		return &Error{Op: op, Kind: ErrDuplicate, Message: msg, Err: err}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// observe records the outcome of a mutation.
func (s *Service) observe(mutation string, start time.Time, err error) {
	ms := float64(s.now().Sub(start).Microseconds()) / 1000
	var e *Error
	switch {
	case err == nil:
		metrics.RecordMutation(mutation, "success", ms)
	case errors.As(err, &e):
		metrics.RecordMutation(mutation, "rejected", ms)
		metrics.RecordMutationRejected(mutation, reason(e.Kind))
	default:
		metrics.RecordMutation(mutation, "error", ms)
	}
}

func reason(kind error) string {
	switch kind {
	case ErrValidation:
		return "validation"
	case ErrForbidden:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrVotingInProgress:
		return "voting"
	case ErrNotEligible:
		return "not_eligible"
	case ErrDuplicate:
		return "duplicate"
	default:
		return "other"
	}
}
