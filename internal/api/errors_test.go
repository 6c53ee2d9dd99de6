package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/adoptfeed/internal/middleware"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response body: %v, body: %s", err, w.Body.String())
	}
	return resp.Error
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		code    string
		message string
	}{
		{ErrCodePetNotFound, "Pet not found"},
		{ErrCodeInvalidCursor, "Invalid cursor"},
		{ErrCodeInvalidProfile, "Invalid fields: home_type"},
		{ErrCodeRateLimited, "Too many requests"},
		{ErrCodeUnavailable, "Feed temporarily unavailable"},
		{ErrCodeInternal, ""},
		{ErrCodeBadRequest, `Bad "cursor" <value> & more`},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			status := StatusCodeMapping(tt.code)
			WriteError(w, context.Background(), status, tt.code, tt.message)

			if w.Code != status {
				t.Errorf("status = %d, want %d", w.Code, status)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q", ct)
			}
			got := decodeError(t, w)
			if got.Code != tt.code || got.Message != tt.message {
				t.Errorf("got %+v, want code %q message %q", got, tt.code, tt.message)
			}
			if got.RequestID != "" {
				t.Errorf("request_id should be omitted without middleware, got %q", got.RequestID)
			}
		})
	}
}

func TestErrorResponse_Shape(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, context.Background(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid pet ID")

	var raw map[string]map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(raw) != 1 {
		t.Errorf("expected only the error key, got %v", raw)
	}
	if len(raw["error"]) != 2 {
		t.Errorf("expected code and message only, got %v", raw["error"])
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodePetNotFound, http.StatusNotFound},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeInvalidCursor, http.StatusBadRequest},
		{ErrCodeInvalidProfile, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.wantStatus {
				t.Errorf("StatusCodeMapping(%s) = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

// TestWriteErrorCode_ThroughMiddleware checks the envelope carries the
// request ID and the access log records the error code.
func TestWriteErrorCode_ThroughMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := middleware.RequestID(middleware.Logging(logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeErrorCode(w, r, ErrCodePetNotFound, "Pet not found")
		})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pets/abc/interest", nil)
	req.Header.Set(middleware.RequestIDHeader, "test-req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if got := decodeError(t, w); got.RequestID != "test-req-123" {
		t.Errorf("request_id = %q, want test-req-123", got.RequestID)
	}

	var entry struct {
		Level     string `json:"level"`
		Status    int    `json:"status"`
		RequestID string `json:"request_id"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	if entry.Level != "WARN" || entry.Status != http.StatusNotFound {
		t.Errorf("unexpected log level/status %s/%d", entry.Level, entry.Status)
	}
	if entry.RequestID != "test-req-123" || entry.ErrorCode != ErrCodePetNotFound {
		t.Errorf("unexpected log entry %+v", entry)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]string{"status": "created"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"status":"created"}` {
		t.Errorf("body = %s", w.Body.String())
	}
}
