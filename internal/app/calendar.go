package service

import (
	"context"
	"fmt"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/policy"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/topics"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

// Events lists calendar events ordered by date.
func (s *Service) Events(ctx context.Context) ([]model.Event, error) {
	store, cache, err := s.components()
	if err != nil {
		return nil, err
	}
	return querycache.Read(ctx, cache, querycache.NewQuery(topics.Events, "all", store.Events))
}

// Event returns a single calendar event.
func (s *Service) Event(ctx context.Context, id model.EventID) (model.Event, error) {
	const op = "service.Event"
	store, _, err := s.components()
	if err != nil {
		return model.Event{}, err
	}
	e, err := store.Event(ctx, id)
	if err != nil {
		return model.Event{}, s.storeErr(op, err, "Event not found")
	}
	return e, nil
}

// Policy returns the authorization policy used for edits.
func (s *Service) Policy() policy.Policy { return s.policy }

// CreateEvent posts a new event owned by actor.
func (s *Service) CreateEvent(ctx context.Context, actor model.UserID, in model.EventInput) (e model.Event, err error) {
	const op = "service.CreateEvent"
	start := s.now()
	defer func() { s.observe(MutationEvent, start, err) }()

	store, cache, err := s.components()
	if err != nil {
		return model.Event{}, err
	}
	if err := s.validator.Validate(validation.SchemaEvent, validation.Event(in)); err != nil {
		return model.Event{}, invalid(op, err)
	}
	if !actor.Valid() {
		return model.Event{}, reject(op, ErrForbidden, "You need to log in")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	poster, err := store.User(ctx, actor)
	if err != nil {
		return model.Event{}, s.storeErr(op, err, "Unknown user")
	}

	e = model.Event{Poster: poster}
	e.Apply(in)
	e, err = store.CreateEvent(ctx, e)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	cache.Invalidate(ctx, topics.Events)
	s.logger.Info(ctx, "event created", logger.Int64("event", int64(e.ID)), logger.Int64("poster", int64(actor)))
	s.audit(ctx, MutationEvent, actor, fmt.Sprintf("%s posted %s", poster.FullUsername(), e.Name))
	return e, nil
}

// UpdateEvent replaces the editable fields of event id. Only the poster
// and the admin may edit.
func (s *Service) UpdateEvent(ctx context.Context, actor model.UserID, id model.EventID, in model.EventInput) (e model.Event, err error) {
	const op = "service.UpdateEvent"
	start := s.now()
	defer func() { s.observe(MutationEvent, start, err) }()

	store, cache, err := s.components()
	if err != nil {
		return model.Event{}, err
	}
	if err := s.validator.Validate(validation.SchemaEvent, validation.Event(in)); err != nil {
		return model.Event{}, invalid(op, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	e, err = store.Event(ctx, id)
	if err != nil {
		return model.Event{}, s.storeErr(op, err, "Event not found")
	}

	d := s.policy.CanEditEvent(actor, e)
	if !d.Allowed {
		metrics.RecordAuthorizationDenied(d.Action)
		s.logger.Warn(ctx, "event edit denied",
			logger.Int64("event", int64(id)),
			logger.Int64("actor", int64(actor)),
			logger.String("reason", d.Reason),
		)
		return model.Event{}, reject(op, ErrForbidden, "Only the poster can edit this event")
	}

	e.Apply(in)
	if err := store.UpdateEvent(ctx, e); err != nil {
		return model.Event{}, s.storeErr(op, err, "Event not found")
	}

	metrics.RecordEventEdited()
	cache.Invalidate(ctx, topics.Events)
	s.logger.Info(ctx, "event edited",
		logger.Int64("event", int64(id)),
		logger.Int64("actor", int64(actor)),
		logger.String("reason", d.Reason),
	)
	s.audit(ctx, MutationEvent, actor, fmt.Sprintf("event %s edited", e.Name))
	return e, nil
}
