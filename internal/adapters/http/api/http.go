// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/voting"
)

// maxBodyBytes bounds mutation request bodies.
const maxBodyBytes = 1 << 20

// PlusDependencies serve the plus endpoints.
type PlusDependencies interface {
	// Suggest creates a suggestion or comments on an existing one.
	Suggest(ctx context.Context, actor model.UserID, req model.SuggestionRequest) (model.Suggestion, bool, error)
	Vouch(ctx context.Context, actor model.UserID, req model.VouchRequest) error

	Suggestions(ctx context.Context) ([]model.Suggestion, error)
	Statuses(ctx context.Context) ([]model.PlusStatus, error)
	Status(ctx context.Context, id model.UserID) (model.PlusStatus, error)
	Voting(ctx context.Context) (voting.Range, error)
}

// CalendarDependencies serve the calendar endpoints.
type CalendarDependencies interface {
	Events(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, actor model.UserID, in model.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, actor model.UserID, id model.EventID, in model.EventInput) (model.Event, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlusDependencies
	CalendarDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	plusHandler     *PlusHandler
	calendarHandler *CalendarHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		plusHandler:     NewPlusHandler(deps),
		calendarHandler: NewCalendarHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(path, MetricsMiddleware(AuthMiddleware(h), endpoint))
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	route("/plus/suggestion", "plus_suggestion", s.plusHandler.HandlePostSuggestion)
	route("/plus/vouch", "plus_vouch", s.plusHandler.HandlePostVouch)
	route("/plus/suggestions", "plus_suggestions", s.plusHandler.HandleGetSuggestions)
	route("/plus/statuses", "plus_statuses", s.plusHandler.HandleGetStatuses)
	route("/plus/statuses/me", "plus_status_me", s.plusHandler.HandleGetMyStatus)
	route("/plus/voting", "plus_voting", s.plusHandler.HandleGetVoting)

	route("/calendar/events", "calendar_events", s.calendarHandler.HandleEvents)
	route("/calendar/events/", "calendar_event", s.calendarHandler.HandlePutEvent)
}

type errorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	resp := errorResponse{Code: code, Message: userMessage(status, err)}
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		resp.Fields = fe
	}
	writeJSON(w, status, resp)
}

// fail writes err with the status its kind maps to.
func fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return false
	}
	return true
}
