package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore is a durable Store backed by SQLite in WAL mode.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.Get().Named("sqlite")}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info(ctx, "database opened", logger.String("path", path))
	return s, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) observe(op string, start time.Time) {
	metrics.RecordStoreLatency("sqlite", op, float64(time.Since(start).Microseconds())/1000)
}

// mapErr turns constraint violations into store sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w", what, ErrDuplicate)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

const userCols = "u.id, u.username, u.discriminator, u.discord_id"

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner, extra ...any) (model.UserRef, error) {
	var u model.UserRef
	dest := append([]any{&u.ID, &u.Username, &u.Discriminator, &u.DiscordID}, extra...)
	err := sc.Scan(dest...)
	return u, err
}

// PutUser implements Store.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.UserRef) error {
	defer s.observe("put_user", time.Now())
	if !u.ID.Valid() {
		return fmt.Errorf("put user %d: invalid id", u.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, discriminator, discord_id) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			discriminator = excluded.discriminator,
			discord_id = excluded.discord_id`,
		u.ID, u.Username, u.Discriminator, u.DiscordID)
	return mapErr(err, fmt.Sprintf("put user %d", u.ID))
}

// User implements Store.
func (s *SQLiteStore) User(ctx context.Context, id model.UserID) (model.UserRef, error) {
	defer s.observe("user", time.Now())
	row := s.db.QueryRowContext(ctx, "SELECT "+userCols+" FROM users u WHERE u.id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return model.UserRef{}, mapErr(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

// PutStatus implements Store.
func (s *SQLiteStore) PutStatus(ctx context.Context, st model.PlusStatus) error {
	defer s.observe("put_status", time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plus_statuses (user_id, membership_tier, vouch_tier, can_vouch_for, region, vouched_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			membership_tier = excluded.membership_tier,
			vouch_tier = excluded.vouch_tier,
			can_vouch_for = excluded.can_vouch_for,
			region = excluded.region,
			vouched_by = excluded.vouched_by`,
		st.User.ID, st.MembershipTier, st.VouchTier, st.CanVouchFor, st.Region, st.VouchedBy)
	return mapErr(err, fmt.Sprintf("status for user %d", st.User.ID))
}

const statusCols = `COALESCE(ps.membership_tier, 0), COALESCE(ps.vouch_tier, 0),
	COALESCE(ps.can_vouch_for, 0), COALESCE(ps.region, ''), COALESCE(ps.vouched_by, 0)`

func scanStatus(sc scanner) (model.PlusStatus, error) {
	var st model.PlusStatus
	u, err := scanUser(sc, &st.MembershipTier, &st.VouchTier, &st.CanVouchFor, &st.Region, &st.VouchedBy)
	st.User = u
	return st, err
}

// Status implements Store.
func (s *SQLiteStore) Status(ctx context.Context, id model.UserID) (model.PlusStatus, error) {
	defer s.observe("status", time.Now())
	row := s.db.QueryRowContext(ctx, "SELECT "+userCols+", "+statusCols+`
		FROM users u LEFT JOIN plus_statuses ps ON ps.user_id = u.id
		WHERE u.id = ?`, id)
	st, err := scanStatus(row)
	if err != nil {
		return model.PlusStatus{}, mapErr(err, fmt.Sprintf("user %d", id))
	}
	return st, nil
}

// Statuses implements Store.
func (s *SQLiteStore) Statuses(ctx context.Context) ([]model.PlusStatus, error) {
	defer s.observe("statuses", time.Now())
	rows, err := s.db.QueryContext(ctx, "SELECT "+userCols+", "+statusCols+`
		FROM plus_statuses ps JOIN users u ON u.id = ps.user_id
		ORDER BY u.id`)
	if err != nil {
		return nil, mapErr(err, "statuses")
	}
	defer rows.Close()

	out := []model.PlusStatus{}
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, mapErr(err, "statuses")
		}
		out = append(out, st)
	}
	return out, mapErr(rows.Err(), "statuses")
}

// RecordVouch implements Store.
func (s *SQLiteStore) RecordVouch(ctx context.Context, voucher model.UserID, req model.VouchRequest) error {
	defer s.observe("record_vouch", time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err, "begin vouch")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plus_statuses (user_id, vouch_tier, region, vouched_by) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			vouch_tier = excluded.vouch_tier,
			region = excluded.region,
			vouched_by = excluded.vouched_by`,
		req.VouchedID, req.Tier, req.Region, voucher); err != nil {
		return mapErr(err, fmt.Sprintf("vouched user %d", req.VouchedID))
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO plus_statuses (user_id) VALUES (?)
		ON CONFLICT (user_id) DO UPDATE SET can_vouch_for = 0`, voucher); err != nil {
		return mapErr(err, fmt.Sprintf("voucher %d", voucher))
	}
	return mapErr(tx.Commit(), "commit vouch")
}

const suggestionQuery = `
	SELECT s.id, s.tier, s.region, s.description, s.created_at,
		a.id, a.username, a.discriminator, a.discord_id,
		b.id, b.username, b.discriminator, b.discord_id
	FROM suggestions s
	JOIN users a ON a.id = s.suggested_id
	JOIN users b ON b.id = s.suggester_id`

func (s *SQLiteStore) querySuggestions(ctx context.Context, where string, args ...any) ([]model.Suggestion, error) {
	rows, err := s.db.QueryContext(ctx, suggestionQuery+" "+where+" ORDER BY s.created_at, s.rowid", args...)
	if err != nil {
		return nil, mapErr(err, "suggestions")
	}
	defer rows.Close()

	out := []model.Suggestion{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			sg      model.Suggestion
			id      string
			created int64
			a, b    model.UserRef
		)
		if err := rows.Scan(&id, &sg.Tier, &sg.Region, &sg.Description, &created,
			&a.ID, &a.Username, &a.Discriminator, &a.DiscordID,
			&b.ID, &b.Username, &b.Discriminator, &b.DiscordID); err != nil {
			return nil, mapErr(err, "suggestions")
		}
		if sg.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("suggestion id %q: %w", id, err)
		}
		sg.CreatedAt = time.Unix(0, created).UTC()
		sg.SuggestedUser, sg.SuggesterUser = a, b
		sg.Resuggestions = []model.Resuggestion{}
		index[sg.ID] = len(out)
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "suggestions")
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, 0, len(out))
	for _, sg := range out {
		ids = append(ids, sg.ID.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rrows, err := s.db.QueryContext(ctx, `
		SELECT r.suggestion_id, r.description, r.created_at, `+userCols+`
		FROM resuggestions r JOIN users u ON u.id = r.suggester_id
		WHERE r.suggestion_id IN (`+placeholders+`)
		ORDER BY r.seq`, ids...)
	if err != nil {
		return nil, mapErr(err, "resuggestions")
	}
	defer rrows.Close()

	for rrows.Next() {
		var (
			sid     string
			r       model.Resuggestion
			created int64
		)
		if err := rrows.Scan(&sid, &r.Description, &created,
			&r.SuggesterUser.ID, &r.SuggesterUser.Username, &r.SuggesterUser.Discriminator, &r.SuggesterUser.DiscordID); err != nil {
			return nil, mapErr(err, "resuggestions")
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		id, err := uuid.Parse(sid)
		if err != nil {
			return nil, fmt.Errorf("suggestion id %q: %w", sid, err)
		}
		i := index[id]
		out[i].Resuggestions = append(out[i].Resuggestions, r)
	}
	return out, mapErr(rrows.Err(), "resuggestions")
}

// Suggestions implements Store.
func (s *SQLiteStore) Suggestions(ctx context.Context) ([]model.Suggestion, error) {
	defer s.observe("suggestions", time.Now())
	return s.querySuggestions(ctx, "")
}

// FindSuggestion implements Store.
func (s *SQLiteStore) FindSuggestion(ctx context.Context, suggested model.UserID, tier model.Tier) (model.Suggestion, error) {
	defer s.observe("find_suggestion", time.Now())
	out, err := s.querySuggestions(ctx, "WHERE s.suggested_id = ? AND s.tier = ?", suggested, tier)
	if err != nil {
		return model.Suggestion{}, err
	}
	if len(out) == 0 {
		return model.Suggestion{}, fmt.Errorf("suggestion for user %d at %s: %w", suggested, tier, ErrNotFound)
	}
	return out[0], nil
}

// AddSuggestion implements Store.
func (s *SQLiteStore) AddSuggestion(ctx context.Context, sg model.Suggestion) error {
	defer s.observe("add_suggestion", time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suggestions (id, suggested_id, suggester_id, tier, region, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sg.ID.String(), sg.SuggestedUser.ID, sg.SuggesterUser.ID, sg.Tier, sg.Region, sg.Description, sg.CreatedAt.UnixNano())
	return mapErr(err, fmt.Sprintf("suggestion for user %d at %s", sg.SuggestedUser.ID, sg.Tier))
}

// AddResuggestion implements Store.
func (s *SQLiteStore) AddResuggestion(ctx context.Context, id uuid.UUID, r model.Resuggestion) error {
	defer s.observe("add_resuggestion", time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resuggestions (suggestion_id, suggester_id, description, created_at)
		VALUES (?, ?, ?, ?)`,
		id.String(), r.SuggesterUser.ID, r.Description, r.CreatedAt.UnixNano())
	return mapErr(err, fmt.Sprintf("comment by user %d on %s", r.SuggesterUser.ID, id))
}

const eventQuery = `
	SELECT e.id, e.name, e.date, e.event_url, e.discord_invite_url, e.tags, e.description, e.format, ` + userCols + `
	FROM events e JOIN users u ON u.id = e.poster_id`

func scanEvent(sc scanner) (model.Event, error) {
	var (
		e    model.Event
		date int64
		tags string
	)
	if err := sc.Scan(&e.ID, &e.Name, &date, &e.EventURL, &e.DiscordInviteURL, &tags, &e.Description, &e.Format,
		&e.Poster.ID, &e.Poster.Username, &e.Poster.Discriminator, &e.Poster.DiscordID); err != nil {
		return model.Event{}, err
	}
	e.Date = time.Unix(0, date).UTC()
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return model.Event{}, fmt.Errorf("event %d tags: %w", e.ID, err)
	}
	if e.Tags == nil {
		e.Tags = []model.TagCode{}
	}
	return e, nil
}

// Events implements Store.
func (s *SQLiteStore) Events(ctx context.Context) ([]model.Event, error) {
	defer s.observe("events", time.Now())
	rows, err := s.db.QueryContext(ctx, eventQuery+" ORDER BY e.date, e.id")
	if err != nil {
		return nil, mapErr(err, "events")
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapErr(err, "events")
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err(), "events")
}

// Event implements Store.
func (s *SQLiteStore) Event(ctx context.Context, id model.EventID) (model.Event, error) {
	defer s.observe("event", time.Now())
	e, err := scanEvent(s.db.QueryRowContext(ctx, eventQuery+" WHERE e.id = ?", id))
	if err != nil {
		return model.Event{}, mapErr(err, fmt.Sprintf("event %d", id))
	}
	return e, nil
}

func encodeTags(tags []model.TagCode) (string, error) {
	if tags == nil {
		tags = []model.TagCode{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

// CreateEvent implements Store.
func (s *SQLiteStore) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	defer s.observe("create_event", time.Now())
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return model.Event{}, fmt.Errorf("encode tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (name, date, event_url, discord_invite_url, poster_id, tags, description, format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.Date.UnixNano(), e.EventURL, e.DiscordInviteURL, e.Poster.ID, tags, e.Description, e.Format)
	if err != nil {
		return model.Event{}, mapErr(err, fmt.Sprintf("poster %d", e.Poster.ID))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, fmt.Errorf("event id: %w", err)
	}
	return s.Event(ctx, model.EventID(id))
}

// UpdateEvent implements Store.
func (s *SQLiteStore) UpdateEvent(ctx context.Context, e model.Event) error {
	defer s.observe("update_event", time.Now())
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET name = ?, date = ?, event_url = ?, discord_invite_url = ?,
			tags = ?, description = ?, format = ?
		WHERE id = ?`,
		e.Name, e.Date.UnixNano(), e.EventURL, e.DiscordInviteURL, tags, e.Description, e.Format, e.ID)
	if err != nil {
		return mapErr(err, fmt.Sprintf("event %d", e.ID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("event %d: %w", e.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("event %d: %w", e.ID, ErrNotFound)
	}
	return nil
}
