package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/pkg/metrics"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[model.UserID]model.UserRef
	statuses    map[model.UserID]model.PlusStatus
	suggestions []*model.Suggestion
	events      map[model.EventID]model.Event
	nextEventID model.EventID
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[model.UserID]model.UserRef),
		statuses:    make(map[model.UserID]model.PlusStatus),
		events:      make(map[model.EventID]model.Event),
		nextEventID: 1,
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency("memory", op, float64(time.Since(start).Microseconds())/1000)
}

// PutUser implements Store.
func (s *MemoryStore) PutUser(_ context.Context, u model.UserRef) error {
	defer observe("put_user", time.Now())
	if !u.ID.Valid() {
		return fmt.Errorf("put user %d: invalid id", u.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if st, ok := s.statuses[u.ID]; ok {
		st.User = u
		s.statuses[u.ID] = st
	}
	return nil
}

// User implements Store.
func (s *MemoryStore) User(_ context.Context, id model.UserID) (model.UserRef, error) {
	defer observe("user", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.UserRef{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return u, nil
}

// PutStatus implements Store.
func (s *MemoryStore) PutStatus(_ context.Context, st model.PlusStatus) error {
	defer observe("put_status", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[st.User.ID]
	if !ok {
		return fmt.Errorf("status for user %d: %w", st.User.ID, ErrNotFound)
	}
	st.User = u
	s.statuses[u.ID] = st
	return nil
}

// Status implements Store.
func (s *MemoryStore) Status(_ context.Context, id model.UserID) (model.PlusStatus, error) {
	defer observe("status", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.PlusStatus{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if st, ok := s.statuses[id]; ok {
		return st, nil
	}
	return model.PlusStatus{User: u}, nil
}

// Statuses implements Store.
func (s *MemoryStore) Statuses(_ context.Context) ([]model.PlusStatus, error) {
	defer observe("statuses", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PlusStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

// RecordVouch implements Store.
func (s *MemoryStore) RecordVouch(_ context.Context, voucher model.UserID, req model.VouchRequest) error {
	defer observe("record_vouch", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	vu, ok := s.users[req.VouchedID]
	if !ok {
		return fmt.Errorf("vouched user %d: %w", req.VouchedID, ErrNotFound)
	}
	if _, ok := s.users[voucher]; !ok {
		return fmt.Errorf("voucher %d: %w", voucher, ErrNotFound)
	}

	vouched, ok := s.statuses[req.VouchedID]
	if !ok {
		vouched = model.PlusStatus{User: vu}
	}
	vouched.VouchTier = req.Tier
	vouched.Region = req.Region
	vouched.VouchedBy = voucher
	s.statuses[req.VouchedID] = vouched

	v := s.statuses[voucher]
	v.User = s.users[voucher]
	v.CanVouchFor = model.TierNone
	s.statuses[voucher] = v
	return nil
}

// Suggestions implements Store.
func (s *MemoryStore) Suggestions(_ context.Context) ([]model.Suggestion, error) {
	defer observe("suggestions", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Suggestion, 0, len(s.suggestions))
	for _, sg := range s.suggestions {
		out = append(out, copySuggestion(sg))
	}
	return out, nil
}

// FindSuggestion implements Store.
func (s *MemoryStore) FindSuggestion(_ context.Context, suggested model.UserID, tier model.Tier) (model.Suggestion, error) {
	defer observe("find_suggestion", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sg := range s.suggestions {
		if sg.SuggestedUser.ID == suggested && sg.Tier == tier {
			return copySuggestion(sg), nil
		}
	}
	return model.Suggestion{}, fmt.Errorf("suggestion for user %d at %s: %w", suggested, tier, ErrNotFound)
}

// AddSuggestion implements Store.
func (s *MemoryStore) AddSuggestion(_ context.Context, sg model.Suggestion) error {
	defer observe("add_suggestion", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []model.UserID{sg.SuggestedUser.ID, sg.SuggesterUser.ID} {
		if _, ok := s.users[id]; !ok {
			return fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
	}
	for _, existing := range s.suggestions {
		if existing.SuggestedUser.ID == sg.SuggestedUser.ID && existing.Tier == sg.Tier {
			return fmt.Errorf("suggestion for user %d at %s: %w", sg.SuggestedUser.ID, sg.Tier, ErrDuplicate)
		}
	}
	sg.SuggestedUser = s.users[sg.SuggestedUser.ID]
	sg.SuggesterUser = s.users[sg.SuggesterUser.ID]
	c := copySuggestion(&sg)
	s.suggestions = append(s.suggestions, &c)
	return nil
}

// AddResuggestion implements Store.
func (s *MemoryStore) AddResuggestion(_ context.Context, id uuid.UUID, r model.Resuggestion) error {
	defer observe("add_resuggestion", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[r.SuggesterUser.ID]
	if !ok {
		return fmt.Errorf("user %d: %w", r.SuggesterUser.ID, ErrNotFound)
	}
	for _, sg := range s.suggestions {
		if sg.ID != id {
			continue
		}
		for _, existing := range sg.Resuggestions {
			if existing.SuggesterUser.ID == u.ID {
				return fmt.Errorf("comment by user %d: %w", u.ID, ErrDuplicate)
			}
		}
		r.SuggesterUser = u
		sg.Resuggestions = append(sg.Resuggestions, r)
		return nil
	}
	return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
}

// Events implements Store.
func (s *MemoryStore) Events(_ context.Context) ([]model.Event, error) {
	defer observe("events", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Event implements Store.
func (s *MemoryStore) Event(_ context.Context, id model.EventID) (model.Event, error) {
	defer observe("event", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return copyEvent(e), nil
}

// CreateEvent implements Store.
func (s *MemoryStore) CreateEvent(_ context.Context, e model.Event) (model.Event, error) {
	defer observe("create_event", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	poster, ok := s.users[e.Poster.ID]
	if !ok {
		return model.Event{}, fmt.Errorf("poster %d: %w", e.Poster.ID, ErrNotFound)
	}
	e.ID = s.nextEventID
	s.nextEventID++
	e.Poster = poster
	s.events[e.ID] = copyEvent(e)
	return copyEvent(e), nil
}

// UpdateEvent implements Store.
func (s *MemoryStore) UpdateEvent(_ context.Context, e model.Event) error {
	defer observe("update_event", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.events[e.ID]
	if !ok {
		return fmt.Errorf("event %d: %w", e.ID, ErrNotFound)
	}
	e.Poster = existing.Poster
	s.events[e.ID] = copyEvent(e)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func copySuggestion(sg *model.Suggestion) model.Suggestion {
	c := *sg
	c.Resuggestions = append(make([]model.Resuggestion, 0, len(sg.Resuggestions)), sg.Resuggestions...)
	return c
}

func copyEvent(e model.Event) model.Event {
	e.Tags = append(make([]model.TagCode, 0, len(e.Tags)), e.Tags...)
	return e
}
