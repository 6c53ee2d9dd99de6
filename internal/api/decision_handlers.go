package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/adoptfeed/internal/decision"
	"github.com/onnwee/adoptfeed/internal/middleware"
	"github.com/onnwee/adoptfeed/internal/pet"
)

// CandidateGetter looks up a single candidate. pet.Repository satisfies it.
type CandidateGetter interface {
	GetCandidate(ctx context.Context, id string) (*pet.Candidate, error)
}

// DecisionResponse is the body returned after recording a decision.
type DecisionResponse struct {
	ID        string        `json:"id"`
	PetID     string        `json:"pet_id"`
	Kind      decision.Kind `json:"kind"`
	CreatedAt string        `json:"created_at"`
}

// DecisionListResponse is the body of GET /api/v1/me/decisions.
type DecisionListResponse struct {
	Decisions []DecisionResponse `json:"decisions"`
}

// DecisionHandlers records likes, applications and passes.
type DecisionHandlers struct {
	pets      CandidateGetter
	decisions decision.Store
}

// NewDecisionHandlers creates decision handlers.
func NewDecisionHandlers(pets CandidateGetter, decisions decision.Store) *DecisionHandlers {
	return &DecisionHandlers{pets: pets, decisions: decisions}
}

// Interest handles POST /api/v1/pets/{id}/interest.
func (h *DecisionHandlers) Interest(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, decision.KindLike)
}

// Apply handles POST /api/v1/pets/{id}/apply.
func (h *DecisionHandlers) Apply(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, decision.KindApply)
}

// Pass handles POST /api/v1/pets/{id}/pass.
func (h *DecisionHandlers) Pass(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, decision.KindPass)
}

// record stores the decision once. It answers 201 the first time and 200
// when the same decision already exists.
func (h *DecisionHandlers) record(w http.ResponseWriter, r *http.Request, kind decision.Kind) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeErrorCode(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	petID := r.PathValue("id")
	if _, err := uuid.Parse(petID); err != nil {
		writeErrorCode(w, r, ErrCodeBadRequest, "Invalid pet ID")
		return
	}

	if _, err := h.pets.GetCandidate(r.Context(), petID); err != nil {
		switch {
		case errors.Is(err, pet.ErrCandidateNotFound):
			writeErrorCode(w, r, ErrCodePetNotFound, "Pet not found")
		case errors.Is(err, pet.ErrRepositoryUnavailable):
			writeErrorCode(w, r, ErrCodeUnavailable, "Pets temporarily unavailable")
		default:
			slog.ErrorContext(r.Context(), "failed to load pet", "error", err, "pet_id", petID)
			writeErrorCode(w, r, ErrCodeInternal, "Failed to load pet")
		}
		return
	}

	d, created, err := h.decisions.Record(r.Context(), userID, petID, kind)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to record decision",
			"error", err, "user_id", userID, "pet_id", petID, "kind", kind)
		writeErrorCode(w, r, ErrCodeInternal, "Failed to record decision")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		slog.InfoContext(r.Context(), "decision recorded", "user_id", userID, "pet_id", petID, "kind", kind)
	}
	writeJSON(w, r, status, newDecisionResponse(*d))
}

// List handles GET /api/v1/me/decisions?kind=like|apply|pass. The kind
// defaults to like; "interest" is accepted as an alias.
func (h *DecisionHandlers) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeErrorCode(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	raw := r.URL.Query().Get("kind")
	switch raw {
	case "", "interest":
		raw = string(decision.KindLike)
	}
	kind, err := decision.ParseKind(raw)
	if err != nil {
		writeErrorCode(w, r, ErrCodeBadRequest, "Unknown decision kind")
		return
	}

	list, err := h.decisions.List(r.Context(), userID, kind)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list decisions", "error", err, "user_id", userID)
		writeErrorCode(w, r, ErrCodeInternal, "Failed to list decisions")
		return
	}

	resp := DecisionListResponse{Decisions: make([]DecisionResponse, 0, len(list))}
	for _, d := range list {
		resp.Decisions = append(resp.Decisions, newDecisionResponse(d))
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func newDecisionResponse(d decision.Decision) DecisionResponse {
	return DecisionResponse{
		ID:        d.ID,
		PetID:     d.PetID,
		Kind:      d.Kind,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}
