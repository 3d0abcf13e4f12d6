package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/plushub/internal/domain/model"
)

// CalendarHandler handles calendar event requests.
type CalendarHandler struct {
	deps CalendarDependencies
}

// NewCalendarHandler creates a new calendar handler.
func NewCalendarHandler(deps CalendarDependencies) *CalendarHandler {
	return &CalendarHandler{deps: deps}
}

// HandleEvents handles GET and POST /calendar/events requests.
func (h *CalendarHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *CalendarHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_events"
	events, err := h.deps.Events(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	actor, ok := requireUser(w, r, op)
	if !ok {
		return
	}
	var in model.EventInput
	if !decode(w, r, op, &in) {
		return
	}
	e, err := h.deps.CreateEvent(r.Context(), actor, in)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandlePutEvent handles PUT /calendar/events/{id} requests.
func (h *CalendarHandler) HandlePutEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_event"
	if r.Method != http.MethodPut {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /calendar/events/
	path := strings.TrimPrefix(r.URL.Path, "/calendar/events/")
	if path == "" || strings.Contains(path, "/") {
		fail(w, NewKind(op, ErrNotFound))
		return
	}
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil || id <= 0 {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	actor, ok := requireUser(w, r, op)
	if !ok {
		return
	}
	var in model.EventInput
	if !decode(w, r, op, &in) {
		return
	}
	e, err := h.deps.UpdateEvent(r.Context(), actor, model.EventID(id), in)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}
