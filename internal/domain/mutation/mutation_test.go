package mutation_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/mutation"
	"github.com/okian/plushub/internal/domain/querycache"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

var (
	listTopic  = querycache.NewTopic("test.list")
	otherTopic = querycache.NewTopic("test.other")
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return nil
}

func (r *recordingNotifier) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.notes...)
}

type serverError struct{ msg string }

func (e serverError) Error() string       { return "remote: " + e.msg }
func (e serverError) UserMessage() string { return e.msg }

type harness struct {
	form          *mutation.Form[validation.CommentForm, model.SuggestionRequest]
	sent          []model.SuggestionRequest
	sendErr       error
	block         chan struct{}
	notifier      *recordingNotifier
	cache         *querycache.Cache
	invalidations map[string]int
	mu            sync.Mutex
}

func newHarness(limit int) *harness {
	h := &harness{
		notifier:      &recordingNotifier{},
		cache:         querycache.New(),
		invalidations: map[string]int{},
	}
	count := func(t querycache.Topic) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.invalidations[t.String()]++
	}
	h.cache.Subscribe(listTopic, count)
	h.cache.Subscribe(otherTopic, count)

	h.form = mutation.New(mutation.Config[validation.CommentForm, model.SuggestionRequest]{
		Name:           "plus.suggestion",
		Schema:         validation.SchemaComment,
		Validator:      validation.New(validation.WithDescriptionLimit(limit)),
		Build: func(f validation.CommentForm) model.SuggestionRequest {
			return model.SuggestionRequest{SuggestedID: 42, Tier: model.Tier2, Region: model.RegionNA, Description: f.Description}
		},
		Send: func(ctx context.Context, req model.SuggestionRequest) error {
			if h.block != nil {
				<-h.block
			}
			h.mu.Lock()
			defer h.mu.Unlock()
			h.sent = append(h.sent, req)
			return h.sendErr
		},
		Invalidates:    []querycache.Topic{listTopic, listTopic},
		SuccessMessage: "Comment added",
	}, mutation.WithNotifier(h.notifier), mutation.WithInvalidator(h.cache))
	return h
}

func (h *harness) sentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

func (h *harness) invalidated(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalidations[topic]
}

func TestSubmitValidation(t *testing.T) {
	Convey("Given an open comment form with a limit of 20", t, func() {
		ctx := context.Background()
		h := newHarness(20)
		h.form.Open()

		Convey("When the description is one over the limit", func() {
			h.form.Edit(func(f *validation.CommentForm) { f.Description = strings.Repeat("x", 21) })
			err := h.form.Submit(ctx)

			Convey("Then submission is blocked before any network call", func() {
				So(errors.Is(err, validation.ErrInvalid), ShouldBeTrue)
				So(h.sentCount(), ShouldEqual, 0)
				snap := h.form.Snapshot()
				So(snap.State, ShouldEqual, mutation.Idle)
				So(snap.Visible, ShouldBeTrue)
				So(snap.FieldErrors.Get("description"), ShouldEqual, "Must be at most 20 characters")
				So(h.invalidated("test.list"), ShouldEqual, 0)
			})
		})

		Convey("When the description is exactly at the limit", func() {
			text := strings.Repeat("y", 20)
			h.form.Edit(func(f *validation.CommentForm) { f.Description = text })
			err := h.form.Submit(ctx)

			Convey("Then exactly one call carries the text and the injected context", func() {
				So(err, ShouldBeNil)
				So(h.sent, ShouldResemble, []model.SuggestionRequest{{
					SuggestedID: 42,
					Tier:        model.Tier2,
					Region:      model.RegionNA,
					Description: text,
				}})
			})
		})
	})
}

func TestSubmitOutcome(t *testing.T) {
	Convey("Given an open form with a valid description", t, func() {
		ctx := context.Background()
		h := newHarness(500)
		h.form.Open()
		h.form.Edit(func(f *validation.CommentForm) { f.Description = "solid player" })

		Convey("When the server accepts the mutation", func() {
			So(h.form.Submit(ctx), ShouldBeNil)

			Convey("Then each declared topic is invalidated exactly once", func() {
				So(h.invalidated("test.list"), ShouldEqual, 1)
				So(h.invalidated("test.other"), ShouldEqual, 0)
			})

			Convey("Then the form collapses and resets", func() {
				snap := h.form.Snapshot()
				So(snap.State, ShouldEqual, mutation.Success)
				So(snap.Visible, ShouldBeFalse)
				So(snap.Fields.Description, ShouldBeEmpty)
				So(snap.Err, ShouldBeNil)
			})

			Convey("Then a success notification is emitted", func() {
				notes := h.notifier.all()
				So(notes, ShouldHaveLength, 1)
				So(notes[0].Kind, ShouldEqual, model.NotificationSuccess)
				So(notes[0].Source, ShouldEqual, "plus.suggestion")
				So(notes[0].Message, ShouldEqual, "Comment added")
			})
		})

		Convey("When the server rejects the mutation", func() {
			h.sendErr = serverError{msg: "Voting is in progress"}
			err := h.form.Submit(ctx)

			Convey("Then nothing is invalidated and the values are kept", func() {
				So(err, ShouldEqual, h.sendErr)
				So(h.invalidated("test.list"), ShouldEqual, 0)
				snap := h.form.Snapshot()
				So(snap.State, ShouldEqual, mutation.Error)
				So(snap.Visible, ShouldBeTrue)
				So(snap.Fields.Description, ShouldEqual, "solid player")
				So(snap.Err, ShouldEqual, h.sendErr)
			})

			Convey("Then the server message is surfaced", func() {
				notes := h.notifier.all()
				So(notes, ShouldHaveLength, 1)
				So(notes[0].Kind, ShouldEqual, model.NotificationError)
				So(notes[0].Message, ShouldEqual, "Voting is in progress")
			})

			Convey("Then a retry can succeed", func() {
				h.sendErr = nil
				So(h.form.Submit(ctx), ShouldBeNil)
				So(h.sentCount(), ShouldEqual, 2)
				So(h.form.State(), ShouldEqual, mutation.Success)
			})
		})
	})
}

func TestSubmitConcurrency(t *testing.T) {
	Convey("Given a form whose request is still in flight", t, func() {
		ctx := context.Background()
		h := newHarness(500)
		h.block = make(chan struct{})
		h.form.Open()
		h.form.Edit(func(f *validation.CommentForm) { f.Description = "in flight" })

		done := make(chan error, 1)
		go func() { done <- h.form.Submit(ctx) }()
		for h.form.State() != mutation.Pending {
			time.Sleep(time.Millisecond)
		}

		Convey("When submitting again", func() {
			err := h.form.Submit(ctx)
			close(h.block)
			first := <-done

			Convey("Then the second attempt is rejected as busy", func() {
				So(err, ShouldEqual, mutation.ErrBusy)
				So(first, ShouldBeNil)
				So(h.sentCount(), ShouldEqual, 1)
			})
		})

		Convey("When the owner unmounts before the response", func() {
			h.form.Unmount()
			close(h.block)
			So(<-done, ShouldBeNil)

			Convey("Then the cache is still invalidated", func() {
				So(h.invalidated("test.list"), ShouldEqual, 1)
			})

			Convey("Then no local update or notification happens", func() {
				So(h.notifier.all(), ShouldBeEmpty)
				snap := h.form.Snapshot()
				So(snap.State, ShouldEqual, mutation.Pending)
				So(snap.Visible, ShouldBeTrue)
				So(snap.Fields.Description, ShouldEqual, "in flight")
			})

			Convey("Then further submissions are refused", func() {
				So(h.form.Submit(ctx), ShouldEqual, mutation.ErrUnmounted)
			})
		})
	})
}

func TestConcurrentSubmit(t *testing.T) {
	Convey("Given an open form submitted from many goroutines at once", t, func() {
		const callers = 16
		ctx := context.Background()
		h := newHarness(500)
		h.block = make(chan struct{})
		h.form.Open()
		h.form.Edit(func(f *validation.CommentForm) { f.Description = "only once" })

		start := make(chan struct{})
		results := make(chan error, callers)
		for i := 0; i < callers; i++ {
			go func() {
				<-start
				results <- h.form.Submit(ctx)
			}()
		}
		close(start)

		busy, other := 0, 0
		timeout := time.After(5 * time.Second)
	collect:
		for busy+other < callers-1 {
			select {
			case err := <-results:
				if errors.Is(err, mutation.ErrBusy) {
					busy++
				} else {
					other++
				}
			case <-timeout:
				break collect
			}
		}
		close(h.block)

		Convey("Then exactly one request is sent and the rest are busy", func() {
			So(busy, ShouldEqual, callers-1)
			So(other, ShouldEqual, 0)
			So(<-results, ShouldBeNil)
			So(h.sentCount(), ShouldEqual, 1)
		})
	})
}

func TestGuardAndVisibility(t *testing.T) {
	Convey("Given a vouch form with a guard", t, func() {
		ctx := context.Background()
		eligible := false
		var calls int
		notifier := &recordingNotifier{}
		form := mutation.New(mutation.Config[validation.VouchForm, model.VouchRequest]{
			Name:   "plus.vouch",
			Schema: validation.SchemaVouch,
			Guard: func(context.Context, validation.VouchForm) error {
				if !eligible {
					return errors.New("You can no longer vouch")
				}
				return nil
			},
			Build: func(f validation.VouchForm) model.VouchRequest {
				return model.VouchRequest{VouchedID: model.UserID(f.VouchedID), Tier: model.Tier(f.Tier), Region: model.Region(f.Region)}
			},
			Send:    func(context.Context, model.VouchRequest) error { calls++; return nil },
			Initial: func() validation.VouchForm { return validation.VouchForm{Tier: 2, Region: "NA"} },
		}, mutation.WithNotifier(notifier))

		So(form.Fields(), ShouldResemble, validation.VouchForm{Tier: 2, Region: "NA"})
		form.Open()
		form.Edit(func(f *validation.VouchForm) { f.VouchedID = 9 })

		Convey("When the guard refuses", func() {
			err := form.Submit(ctx)

			Convey("Then no request is sent and the error is surfaced", func() {
				So(err, ShouldNotBeNil)
				So(calls, ShouldEqual, 0)
				So(form.State(), ShouldEqual, mutation.Error)
				So(notifier.all()[0].Message, ShouldEqual, "You can no longer vouch")
			})
		})

		Convey("When the guard allows", func() {
			eligible = true
			So(form.Submit(ctx), ShouldBeNil)
			So(calls, ShouldEqual, 1)
			So(form.Visible(), ShouldBeFalse)
			So(form.Fields(), ShouldResemble, validation.VouchForm{Tier: 2, Region: "NA"})
			So(notifier.all(), ShouldBeEmpty)
		})

		Convey("When the form is closed without submitting", func() {
			form.Close()
			So(form.Visible(), ShouldBeFalse)
			So(form.Fields().VouchedID, ShouldEqual, int64(0))
		})
	})
}

func TestStateString(t *testing.T) {
	Convey("Given the states", t, func() {
		So(mutation.Idle.String(), ShouldEqual, "idle")
		So(mutation.Pending.String(), ShouldEqual, "pending")
		So(mutation.Pending.Busy(), ShouldBeTrue)
		So(mutation.Success.String(), ShouldEqual, "success")
		So(mutation.Error.String(), ShouldEqual, "error")
		So(mutation.State(9).String(), ShouldEqual, "unknown")
		So(mutation.Message(errors.New("plain")), ShouldEqual, "plain")
	})
}
