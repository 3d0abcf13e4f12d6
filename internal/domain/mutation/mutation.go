// Package mutation implements the "mutate, notify, invalidate" flow shared by
// every form: validate the fields, send exactly one request, then either
// invalidate the affected query topics and reset the form, or surface the
// server message and keep the form as it was.
package mutation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Config describes one form bound to one remote mutation.
// F is the schema struct holding the user-editable fields, Req the request
// sent over the wire.
type Config[F any, Req any] struct {
	// Name is the remote mutation, e.g. "plus.vouch".
	Name string
	// Schema labels validation metrics.
	Schema    string
	Validator *validation.Validator
	// Guard runs after validation and before the request is built. A non-nil
	// error fails the attempt without a network call.
	Guard func(ctx context.Context, fields F) error
	// Build combines validated fields with caller context into a request.
	Build func(fields F) Req
	// Send performs the remote mutation.
	Send           func(ctx context.Context, req Req) error
	Invalidates    []querycache.Topic
	SuccessMessage string
	// Initial returns the field values the form resets to.
	Initial func() F
}

// Snapshot is the observable state of a form.
type Snapshot[F any] struct {
	State       State
	Visible     bool
	Fields      F
	FieldErrors validation.FieldErrors
	Err         error
}

// Form is a validated form bound to a remote mutation. It is safe for
// concurrent use. At most one submission is in flight at a time.
type Form[F any, Req any] struct {
	cfg Config[F, Req]
	settings

	mu          sync.Mutex
	state       State
	visible     bool
	fields      F
	fieldErrors validation.FieldErrors
	err         error
	unmounted   bool
}

// New creates a Form.
func New[F any, Req any](cfg Config[F, Req], opts ...Option) *Form[F, Req] {
	s := settings{
		notifier:    discard{},
		invalidator: noInvalidation{},
		logger:      logger.Get().Named("mutation"),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}

	f := &Form[F, Req]{cfg: cfg, settings: s}
	f.fields = f.initial()
	return f
}

func (f *Form[F, Req]) initial() F {
	if f.cfg.Initial != nil {
		return f.cfg.Initial()
	}
	var zero F
	return zero
}

// Open shows the form.
func (f *Form[F, Req]) Open() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
}

// Close hides the form and discards unsent edits and errors.
func (f *Form[F, Req]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	if f.state != Pending {
		f.fields = f.initial()
		f.fieldErrors = nil
	}
}

// Visible reports whether the form is shown.
func (f *Form[F, Req]) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// Edit applies fn to the current field values.
func (f *Form[F, Req]) Edit(fn func(*F)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.fields)
}

// Fields returns the current field values.
func (f *Form[F, Req]) Fields() F {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// State returns the state of the latest attempt.
func (f *Form[F, Req]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Snapshot returns the full observable state.
func (f *Form[F, Req]) Snapshot() Snapshot[F] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot[F]{
		State:       f.state,
		Visible:     f.visible,
		Fields:      f.fields,
		FieldErrors: f.fieldErrors,
		Err:         f.err,
	}
}

// Unmount detaches the form from its owner. Submissions still in flight
// finish their cache invalidation but apply no further local updates.
func (f *Form[F, Req]) Unmount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmounted = true
}

// Submit validates the current fields and, when they are valid, sends one
// request. It returns validation.FieldErrors for invalid fields, ErrBusy
// while another submission is pending and the remote error on failure.
func (f *Form[F, Req]) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.unmounted {
		f.mu.Unlock()
		return ErrUnmounted
	}
	if f.state == Pending {
		f.mu.Unlock()
		metrics.RecordMutationRejected(f.cfg.Name, "busy")
		return ErrBusy
	}
	// Claim the attempt before validating so a concurrent Submit sees Pending.
	prev := f.state
	f.state = Pending
	fields := f.fields
	f.mu.Unlock()

	if err := f.cfg.Validator.Validate(f.cfg.Schema, fields); err != nil {
		var fe validation.FieldErrors
		f.mu.Lock()
		f.state = prev
		if errors.As(err, &fe) {
			f.fieldErrors = fe
		}
		f.mu.Unlock()
		metrics.RecordMutationRejected(f.cfg.Name, "invalid")
		return err
	}

	f.mu.Lock()
	f.fieldErrors = nil
	f.err = nil
	f.mu.Unlock()

	start := time.Now()
	err := f.send(ctx, fields)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		metrics.RecordMutation(f.cfg.Name, "error", latency)
		f.fail(ctx, err)
		return err
	}

	metrics.RecordMutation(f.cfg.Name, "success", latency)
	f.succeed(ctx)
	return nil
}

func (f *Form[F, Req]) send(ctx context.Context, fields F) error {
	if f.cfg.Guard != nil {
		if err := f.cfg.Guard(ctx, fields); err != nil {
			return err
		}
	}
	return f.cfg.Send(ctx, f.cfg.Build(fields))
}

func (f *Form[F, Req]) succeed(ctx context.Context) {
	// Invalidation is shared state and happens even after unmount.
	f.invalidator.Invalidate(ctx, f.cfg.Invalidates...)

	f.mu.Lock()
	if f.unmounted {
		f.mu.Unlock()
		f.logger.Debug(ctx, "mutation resolved after unmount", logger.String("mutation", f.cfg.Name))
		return
	}
	f.state = Success
	f.visible = false
	f.fields = f.initial()
	f.mu.Unlock()

	f.notify(ctx, model.NotificationSuccess, f.cfg.SuccessMessage)
}

func (f *Form[F, Req]) fail(ctx context.Context, err error) {
	f.mu.Lock()
	if f.unmounted {
		f.mu.Unlock()
		f.logger.Debug(ctx, "mutation failed after unmount", logger.String("mutation", f.cfg.Name), logger.Error(err))
		return
	}
	f.state = Error
	f.err = err
	f.mu.Unlock()

	f.logger.Warn(ctx, "mutation failed", logger.String("mutation", f.cfg.Name), logger.Error(err))
	f.notify(ctx, model.NotificationError, Message(err))
}

func (f *Form[F, Req]) notify(ctx context.Context, kind model.NotificationKind, msg string) {
	if msg == "" {
		return
	}
	if err := f.notifier.Notify(ctx, model.NewNotification(kind, f.cfg.Name, msg)); err != nil {
		f.logger.Error(ctx, "notification dropped", logger.String("mutation", f.cfg.Name), logger.Error(err))
	}
}

// Message returns the display-ready message of err. Errors carrying a
// server message expose it through a UserMessage method.
func Message(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}

type discard struct{}

func (discard) Notify(context.Context, model.Notification) error { return nil }

type noInvalidation struct{}

func (noInvalidation) Invalidate(context.Context, ...querycache.Topic) int { return 0 }
