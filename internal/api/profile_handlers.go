package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/adoptfeed/internal/middleware"
	"github.com/onnwee/adoptfeed/internal/profile"
)

// maxProfileBodyBytes bounds PATCH bodies.
const maxProfileBodyBytes = 64 << 10

// ProfileService reads and updates adopter profiles. *profile.Service
// satisfies it.
type ProfileService interface {
	GetOrCreate(ctx context.Context, userID string) (*profile.AdopterProfile, error)
	Apply(ctx context.Context, userID string, u profile.Update) (*profile.AdopterProfile, error)
}

// ProfileHandlers serves the caller's adopter profile.
type ProfileHandlers struct {
	profiles ProfileService
}

// NewProfileHandlers creates profile handlers.
func NewProfileHandlers(svc ProfileService) *ProfileHandlers {
	return &ProfileHandlers{profiles: svc}
}

// GetProfile handles GET /api/v1/me/profile. The profile is created with
// defaults on first access.
func (h *ProfileHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeErrorCode(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	p, err := h.profiles.GetOrCreate(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load profile", "error", err, "user_id", userID)
		writeErrorCode(w, r, ErrCodeInternal, "Failed to load profile")
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// UpdateProfile handles PATCH /api/v1/me/profile. Only the fields of
// profile.Update are accepted; unknown fields are rejected.
func (h *ProfileHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeErrorCode(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var u profile.Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProfileBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		slog.DebugContext(r.Context(), "rejected profile body", "error", err)
		writeErrorCode(w, r, ErrCodeBadRequest, "Invalid request body")
		return
	}

	p, err := h.profiles.Apply(r.Context(), userID, u)
	if err != nil {
		var verr *profile.ValidationError
		switch {
		case errors.As(err, &verr):
			writeErrorCode(w, r, ErrCodeInvalidProfile, "Invalid fields: "+strings.Join(verr.Fields, ", "))
		case errors.Is(err, profile.ErrInvalidProfile):
			writeErrorCode(w, r, ErrCodeInvalidProfile, "Invalid profile")
		default:
			slog.ErrorContext(r.Context(), "failed to update profile", "error", err, "user_id", userID)
			writeErrorCode(w, r, ErrCodeInternal, "Failed to update profile")
		}
		return
	}

	slog.InfoContext(r.Context(), "profile updated", "user_id", userID)
	writeJSON(w, r, http.StatusOK, p)
}
