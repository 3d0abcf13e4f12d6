// Package voting computes the monthly plus voting window.
//
// Voting opens on the first Friday of every month at a configured UTC hour
// and stays open for a configured duration. While it is open, suggestions,
// comments and vouches are not accepted.
package voting

import "time"

// Defaults mirror the service configuration defaults.
const (
	DefaultStartHourUTC = 10
	DefaultDuration     = 72 * time.Hour
)

// Predicate reports whether voting is happening right now.
type Predicate interface {
	IsHappening() bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func() bool

// IsHappening implements Predicate.
func (f PredicateFunc) IsHappening() bool { return f() }

// Range is one month's voting window.
type Range struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	IsHappening bool      `json:"is_happening"`
}

// Window computes voting ranges.
type Window struct {
	startHour int
	duration  time.Duration
	now       func() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithStartHourUTC sets the hour voting opens. Values outside 0..23 are ignored.
func WithStartHourUTC(hour int) Option {
	return func(w *Window) {
		if hour >= 0 && hour <= 23 {
			w.startHour = hour
		}
	}
}

// WithDuration sets how long voting stays open.
func WithDuration(d time.Duration) Option {
	return func(w *Window) {
		if d > 0 {
			w.duration = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates a Window.
func New(opts ...Option) *Window {
	w := &Window{
		startHour: DefaultStartHourUTC,
		duration:  DefaultDuration,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Range returns the voting range of the current month.
func (w *Window) Range() Range {
	return w.RangeAt(w.now())
}

// RangeAt returns the voting range of the month containing t (in UTC).
func (w *Window) RangeAt(t time.Time) Range {
	t = t.UTC()
	start := firstFriday(t.Year(), t.Month(), w.startHour)
	end := start.Add(w.duration)
	return Range{
		Start:       start,
		End:         end,
		IsHappening: !t.Before(start) && t.Before(end),
	}
}

// IsHappening implements Predicate.
func (w *Window) IsHappening() bool {
	return w.Range().IsHappening
}

// NextStart returns the first voting start strictly after t.
func (w *Window) NextStart(t time.Time) time.Time {
	r := w.RangeAt(t)
	if t.UTC().Before(r.Start) {
		return r.Start
	}
	next := time.Date(t.UTC().Year(), t.UTC().Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstFriday(next.Year(), next.Month(), w.startHour)
}

func firstFriday(year int, month time.Month, hour int) time.Time {
	d := time.Date(year, month, 1, hour, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}
