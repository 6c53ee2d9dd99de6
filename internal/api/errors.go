// Package api holds the HTTP handlers for the adoption feed service and the
// JSON error envelope they share.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/adoptfeed/internal/middleware"
)

// Error codes returned in the envelope's code field.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeAuthFailed       = "auth_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodePetNotFound      = "pet_not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInvalidCursor    = "invalid_cursor"
	ErrCodeInvalidProfile   = "invalid_profile"
	ErrCodeRateLimited      = middleware.ErrCodeRateLimited
	ErrCodeUnavailable      = "repository_unavailable"
	ErrCodeInternal         = "internal_error"
)

var statusByCode = map[string]int{
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeAuthFailed:       http.StatusUnauthorized,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodePetNotFound:      http.StatusNotFound,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
	ErrCodeInvalidCursor:    http.StatusBadRequest,
	ErrCodeInvalidProfile:   http.StatusBadRequest,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeUnavailable:      http.StatusServiceUnavailable,
	ErrCodeInternal:         http.StatusInternalServerError,
}

// ErrorResponse is the body of every non-2xx response:
//
//	{"error": {"code": "pet_not_found", "message": "Pet not found", "request_id": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail identifies the failure. RequestID is omitted outside the
// RequestID middleware.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes the envelope with status. Set the code on ctx with
// middleware.SetErrorCode first so the access log records it.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetRequestID(ctx),
	}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the status for an error code, 500 when unknown.
func StatusCodeMapping(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
