package api

import (
	"net/http"

	"github.com/okian/plushub/internal/domain/model"
)

// PlusHandler handles suggestion, vouch and status requests.
type PlusHandler struct {
	deps PlusDependencies
}

// NewPlusHandler creates a new plus handler.
func NewPlusHandler(deps PlusDependencies) *PlusHandler {
	return &PlusHandler{deps: deps}
}

// SuggestionResponse is returned by POST /plus/suggestion. Created is false
// when the description was added as a comment.
type SuggestionResponse struct {
	Created    bool             `json:"created"`
	Suggestion model.Suggestion `json:"suggestion"`
}

// VouchResponse is returned by POST /plus/vouch.
type VouchResponse struct {
	Status string `json:"status"`
}

// HandlePostSuggestion handles POST /plus/suggestion requests.
func (h *PlusHandler) HandlePostSuggestion(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_suggestion"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	actor, ok := requireUser(w, r, op)
	if !ok {
		return
	}
	var req model.SuggestionRequest
	if !decode(w, r, op, &req) {
		return
	}

	sg, created, err := h.deps.Suggest(r.Context(), actor, req)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SuggestionResponse{Created: created, Suggestion: sg})
}

// HandlePostVouch handles POST /plus/vouch requests.
func (h *PlusHandler) HandlePostVouch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vouch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	actor, ok := requireUser(w, r, op)
	if !ok {
		return
	}
	var req model.VouchRequest
	if !decode(w, r, op, &req) {
		return
	}

	if err := h.deps.Vouch(r.Context(), actor, req); err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, VouchResponse{Status: "vouched"})
}

// HandleGetSuggestions handles GET /plus/suggestions requests.
func (h *PlusHandler) HandleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_suggestions"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list, err := h.deps.Suggestions(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetStatuses handles GET /plus/statuses requests.
func (h *PlusHandler) HandleGetStatuses(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_statuses"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list, err := h.deps.Statuses(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetMyStatus handles GET /plus/statuses/me requests.
func (h *PlusHandler) HandleGetMyStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_my_status"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	actor, ok := requireUser(w, r, op)
	if !ok {
		return
	}
	st, err := h.deps.Status(r.Context(), actor)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleGetVoting handles GET /plus/voting requests.
func (h *PlusHandler) HandleGetVoting(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_voting"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rng, err := h.deps.Voting(r.Context())
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rng)
}
