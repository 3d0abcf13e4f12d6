package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Seed is the initial data loaded into an empty deployment.
type Seed struct {
	Users    []SeedUser   `yaml:"users"`
	Statuses []SeedStatus `yaml:"statuses,omitempty"`
	Events   []SeedEvent  `yaml:"events,omitempty"`
}

// SeedUser describes one user.
type SeedUser struct {
	ID            int64  `yaml:"id"`
	Username      string `yaml:"username"`
	Discriminator string `yaml:"discriminator"`
	DiscordID     string `yaml:"discord_id"`
}

// SeedStatus describes one plus status. Tiers use 0 for none.
type SeedStatus struct {
	UserID         int64  `yaml:"user_id"`
	MembershipTier int    `yaml:"membership_tier,omitempty"`
	VouchTier      int    `yaml:"vouch_tier,omitempty"`
	CanVouchFor    int    `yaml:"can_vouch_for,omitempty"`
	Region         string `yaml:"region,omitempty"`
}

// SeedEvent describes one calendar event posted by PosterID.
type SeedEvent struct {
	PosterID         int64     `yaml:"poster_id"`
	Name             string    `yaml:"name"`
	Date             time.Time `yaml:"date"`
	EventURL         string    `yaml:"event_url"`
	DiscordInviteURL string    `yaml:"discord_invite_url,omitempty"`
	Tags             []string  `yaml:"tags,omitempty"`
	Description      string    `yaml:"description,omitempty"`
	Format           string    `yaml:"format"`
}

// ParseSeed decodes a YAML seed document. Unknown fields are rejected.
func ParseSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return &seed, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return &seed, nil
}

// LoadSeedFile reads path and applies it with ApplySeed.
func (s *Service) LoadSeedFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer func() { _ = f.Close() }()

	seed, err := ParseSeed(f)
	if err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}
	return s.ApplySeed(ctx, seed)
}

// ApplySeed registers users, then statuses, then events. Events go through
// the same validation as CreateEvent.
func (s *Service) ApplySeed(ctx context.Context, seed *Seed) error {
	if _, _, err := s.components(); err != nil {
		return err
	}
	for _, u := range seed.Users {
		err := s.RegisterUser(ctx, model.UserRef{
			ID:            model.UserID(u.ID),
			Username:      u.Username,
			Discriminator: u.Discriminator,
			DiscordID:     u.DiscordID,
		})
		if err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}

	for _, st := range seed.Statuses {
		err := s.SetStatus(ctx, model.PlusStatus{
			User:           model.UserRef{ID: model.UserID(st.UserID)},
			MembershipTier: model.Tier(st.MembershipTier),
			VouchTier:      model.Tier(st.VouchTier),
			CanVouchFor:    model.Tier(st.CanVouchFor),
			Region:         model.Region(st.Region),
		})
		if err != nil {
			return fmt.Errorf("seed status %d: %w", st.UserID, err)
		}
	}

	for _, e := range seed.Events {
		tags := make([]model.TagCode, 0, len(e.Tags))
		for _, t := range e.Tags {
			tags = append(tags, model.TagCode(t))
		}
		_, err := s.CreateEvent(ctx, model.UserID(e.PosterID), model.EventInput{
			Name:             e.Name,
			Date:             e.Date,
			EventURL:         e.EventURL,
			DiscordInviteURL: e.DiscordInviteURL,
			Tags:             tags,
			Description:      e.Description,
			Format:           model.FormatCode(e.Format),
		})
		if err != nil {
			return fmt.Errorf("seed event %q: %w", e.Name, err)
		}
	}

	s.logger.Info(ctx, "seed applied",
		logger.Int("users", len(seed.Users)),
		logger.Int("statuses", len(seed.Statuses)),
		logger.Int("events", len(seed.Events)),
	)
	return nil
}
