package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/plushub/internal/adapters/http/api"
	service "github.com/okian/plushub/internal/app"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
	"github.com/okian/plushub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

// mockDependencies records calls and returns canned results.
type mockDependencies struct {
	mu sync.Mutex

	actor       model.UserID
	suggestReq  model.SuggestionRequest
	vouchReq    model.VouchRequest
	eventInput  model.EventInput
	eventID     model.EventID
	created     bool
	err         error
	suggestions []model.Suggestion
	statuses    []model.PlusStatus
	events      []model.Event
	votingRange voting.Range
}

func (m *mockDependencies) Suggest(_ context.Context, actor model.UserID, req model.SuggestionRequest) (model.Suggestion, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actor, m.suggestReq = actor, req
	if m.err != nil {
		return model.Suggestion{}, false, m.err
	}
	return model.Suggestion{SuggestedUser: model.UserRef{ID: req.SuggestedID}, Tier: req.Tier, Description: req.Description}, m.created, nil
}

func (m *mockDependencies) Vouch(_ context.Context, actor model.UserID, req model.VouchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actor, m.vouchReq = actor, req
	return m.err
}

func (m *mockDependencies) Suggestions(context.Context) ([]model.Suggestion, error) {
	return m.suggestions, m.err
}

func (m *mockDependencies) Statuses(context.Context) ([]model.PlusStatus, error) {
	return m.statuses, m.err
}

func (m *mockDependencies) Status(_ context.Context, id model.UserID) (model.PlusStatus, error) {
	if m.err != nil {
		return model.PlusStatus{}, m.err
	}
	return model.PlusStatus{User: model.UserRef{ID: id}, MembershipTier: model.Tier2}, nil
}

func (m *mockDependencies) Voting(context.Context) (voting.Range, error) {
	return m.votingRange, m.err
}

func (m *mockDependencies) Events(context.Context) ([]model.Event, error) {
	return m.events, m.err
}

func (m *mockDependencies) CreateEvent(_ context.Context, actor model.UserID, in model.EventInput) (model.Event, error) {
	m.actor, m.eventInput = actor, in
	if m.err != nil {
		return model.Event{}, m.err
	}
	e := model.Event{ID: 7, Poster: model.UserRef{ID: actor}}
	e.Apply(in)
	return e, nil
}

func (m *mockDependencies) UpdateEvent(_ context.Context, actor model.UserID, id model.EventID, in model.EventInput) (model.Event, error) {
	m.actor, m.eventID, m.eventInput = actor, id, in
	if m.err != nil {
		return model.Event{}, m.err
	}
	e := model.Event{ID: id, Poster: model.UserRef{ID: actor}}
	e.Apply(in)
	return e, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

type errorBody struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields"`
}

func newMux(deps *mockDependencies) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}})
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if user != "" {
		req.Header.Set(api.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&mockDependencies{})

		Convey("Then the health endpoint should serve metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint should serve JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unsupported methods should be not found", func() {
			So(do(mux, http.MethodGet, "/plus/suggestion", "1", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/plus/statuses", "1", "{}").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodDelete, "/calendar/events", "1", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestAuthMiddleware(t *testing.T) {
	Convey("Given the auth middleware", t, func() {
		var seen model.UserID
		h := api.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
			seen = api.UserFrom(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})

		Convey("When the header holds a user id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(api.HeaderUserID, "42")
			w := httptest.NewRecorder()
			h(w, req)

			Convey("Then the id should be in the context", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(seen, ShouldEqual, model.UserID(42))
			})
		})

		Convey("When the header is missing", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

			Convey("Then the request should be anonymous", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(seen, ShouldEqual, model.UserID(0))
			})
		})

		Convey("When the header is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(api.HeaderUserID, "sendou")
			w := httptest.NewRecorder()
			h(w, req)

			Convey("Then it should be unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decodeError(w).Code, ShouldEqual, "unauthorized")
			})
		})
	})
}

func TestPlusHandler(t *testing.T) {
	Convey("Given the plus endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)

		Convey("When posting a new suggestion", func() {
			deps.created = true
			w := do(mux, http.MethodPost, "/plus/suggestion", "1", `{"suggested_id":3,"tier":2,"region":"NA","description":"great"}`)

			Convey("Then it should be created for the authenticated user", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.actor, ShouldEqual, model.UserID(1))
				So(deps.suggestReq, ShouldResemble, model.SuggestionRequest{SuggestedID: 3, Tier: model.Tier2, Region: model.RegionNA, Description: "great"})

				var resp api.SuggestionResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Created, ShouldBeTrue)
				So(resp.Suggestion.Description, ShouldEqual, "great")
			})
		})

		Convey("When posting a comment on an existing suggestion", func() {
			w := do(mux, http.MethodPost, "/plus/suggestion", "1", `{"suggested_id":3,"tier":2,"region":"NA","description":"agreed"}`)

			Convey("Then it should answer 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When posting without a user", func() {
			w := do(mux, http.MethodPost, "/plus/suggestion", "", `{}`)

			Convey("Then it should be unauthorized", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/plus/vouch", "1", `{`)

			Convey("Then it should be a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When vouching", func() {
			w := do(mux, http.MethodPost, "/plus/vouch", "4", `{"vouched_id":3,"tier":3,"region":"EU"}`)

			Convey("Then the request should reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"vouched"`)
				So(deps.vouchReq, ShouldResemble, model.VouchRequest{VouchedID: 3, Tier: model.Tier3, Region: model.RegionEU})
			})
		})

		Convey("When the service rejects the mutation", func() {
			cases := []struct {
				name   string
				err    error
				status int
				code   string
			}{
				{"for voting", &service.Error{Op: "x", Kind: service.ErrVotingInProgress, Message: "Vouching is closed while voting is happening"}, http.StatusConflict, "voting_in_progress"},
				{"for eligibility", &service.Error{Op: "x", Kind: service.ErrNotEligible, Message: "You are not eligible to vouch for +1"}, http.StatusForbidden, "not_eligible"},
				{"for a duplicate", &service.Error{Op: "x", Kind: service.ErrDuplicate, Message: "Bob#2222 is already vouched for +2"}, http.StatusConflict, "duplicate"},
				{"for a missing user", &service.Error{Op: "x", Kind: service.ErrNotFound, Message: "Vouched user not found"}, http.StatusNotFound, "not_found"},
				{"for self vouching", &service.Error{Op: "x", Kind: service.ErrForbidden, Message: "You can't vouch for yourself"}, http.StatusForbidden, "forbidden"},
			}

			for _, tc := range cases {
				Convey("Then it should map the error "+tc.name, func() {
					deps.err = tc.err
					w := do(mux, http.MethodPost, "/plus/vouch", "1", `{"vouched_id":3,"tier":1,"region":"NA"}`)
					So(w.Code, ShouldEqual, tc.status)
					body := decodeError(w)
					So(body.Code, ShouldEqual, tc.code)
					So(body.Message, ShouldEqual, tc.err.(*service.Error).Message)
				})
			}
		})

		Convey("When the service fails validation", func() {
			fe := validation.FieldErrors{{Field: "description", Message: "Must be at most 500 characters"}}
			deps.err = &service.Error{Op: "x", Kind: service.ErrValidation, Message: fe.Error(), Err: fe}
			w := do(mux, http.MethodPost, "/plus/suggestion", "1", `{"suggested_id":3,"tier":2,"region":"NA","description":"x"}`)

			Convey("Then the field errors should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "validation_failed")
				So(body.Fields, ShouldResemble, []validation.FieldError{{Field: "description", Message: "Must be at most 500 characters"}})
			})
		})

		Convey("When the service fails unexpectedly", func() {
			deps.err = errors.New("disk on fire")
			w := do(mux, http.MethodGet, "/plus/suggestions", "", "")

			Convey("Then the cause should not leak", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w).Message, ShouldEqual, "Internal Server Error")
			})
		})

		Convey("When reading queries", func() {
			deps.suggestions = []model.Suggestion{{Tier: model.Tier1, Resuggestions: []model.Resuggestion{}}}
			deps.statuses = []model.PlusStatus{{User: model.UserRef{ID: 1}, MembershipTier: model.Tier1}}
			start := time.Date(2026, time.October, 2, 10, 0, 0, 0, time.UTC)
			deps.votingRange = voting.Range{Start: start, End: start.Add(72 * time.Hour)}

			Convey("Then suggestions should be listed", func() {
				w := do(mux, http.MethodGet, "/plus/suggestions", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var got []model.Suggestion
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, 1)
			})

			Convey("Then statuses should be listed", func() {
				w := do(mux, http.MethodGet, "/plus/statuses", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"membership_tier":1`)
			})

			Convey("Then the caller's status should need a user", func() {
				So(do(mux, http.MethodGet, "/plus/statuses/me", "", "").Code, ShouldEqual, http.StatusUnauthorized)

				w := do(mux, http.MethodGet, "/plus/statuses/me", "5", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var st model.PlusStatus
				So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
				So(st.User.ID, ShouldEqual, model.UserID(5))
			})

			Convey("Then the voting range should be served", func() {
				w := do(mux, http.MethodGet, "/plus/voting", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var got voting.Range
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Start.Equal(start), ShouldBeTrue)
				So(got.IsHappening, ShouldBeFalse)
			})
		})
	})
}

func TestCalendarHandler(t *testing.T) {
	Convey("Given the calendar endpoints", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps)
		body := `{"name":"Low Ink","date":"2026-11-01T18:00:00Z","event_url":"https://battlefy.com/low-ink","tags":["SZ"],"format":"SE"}`

		Convey("When posting an event", func() {
			w := do(mux, http.MethodPost, "/calendar/events", "2", body)

			Convey("Then it should be created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.actor, ShouldEqual, model.UserID(2))
				So(deps.eventInput.Name, ShouldEqual, "Low Ink")
				So(deps.eventInput.Tags, ShouldResemble, []model.TagCode{"SZ"})
			})
		})

		Convey("When editing an event", func() {
			w := do(mux, http.MethodPut, "/calendar/events/12", "2", body)

			Convey("Then the id should be taken from the path", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.eventID, ShouldEqual, model.EventID(12))
			})
		})

		Convey("When the edit is denied", func() {
			deps.err = &service.Error{Op: "x", Kind: service.ErrForbidden, Message: "Only the poster can edit this event"}
			w := do(mux, http.MethodPut, "/calendar/events/12", "3", body)

			Convey("Then it should be forbidden", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decodeError(w).Message, ShouldEqual, "Only the poster can edit this event")
			})
		})

		Convey("When the path is malformed", func() {
			So(do(mux, http.MethodPut, "/calendar/events/abc", "2", body).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPut, "/calendar/events/1/2", "2", body).Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPut, "/calendar/events/", "2", body).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When listing events", func() {
			deps.events = []model.Event{{ID: 1, Name: "In The Zone 22"}}
			w := do(mux, http.MethodGet, "/calendar/events", "", "")

			Convey("Then they should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "In The Zone 22")
			})
		})
	})
}
