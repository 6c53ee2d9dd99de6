package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	shouldFail bool
	err        error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.shouldFail {
		if m.err != nil {
			return m.err
		}
		return errors.New("health check failed")
	}
	return nil
}

// TestHealth_Success tests the basic health check endpoint.
func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		MetricsEnabled: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}

	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}

	if response.Timestamp == "" {
		t.Error("expected timestamp to be set")
	}

	// Verify timestamp is valid RFC3339
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

// TestHealth_MethodNotAllowed tests that non-GET requests are rejected.
func TestHealth_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()

	handlers.Health(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		redis      HealthChecker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         &mockHealthChecker{},
			redis:      &mockHealthChecker{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok", "metrics": "ok"},
		},
		{
			name:       "database unhealthy",
			db:         &mockHealthChecker{shouldFail: true},
			redis:      &mockHealthChecker{},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error", "redis": "ok"},
		},
		{
			name:       "redis unhealthy",
			db:         &mockHealthChecker{},
			redis:      &mockHealthChecker{shouldFail: true, err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "redis": "error"},
		},
		{
			name:       "both unhealthy",
			db:         &mockHealthChecker{shouldFail: true},
			redis:      &mockHealthChecker{shouldFail: true},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error", "redis": "error"},
		},
		{
			name:       "no checkers configured",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(HealthHandlersConfig{
				DBChecker:      tt.db,
				RedisChecker:   tt.redis,
				MetricsEnabled: true,
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handlers.Ready(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			response := decodeHealth(t, w)
			wantStatus := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "unhealthy"
			}
			if response.Status != wantStatus {
				t.Errorf("expected status %q, got %q", wantStatus, response.Status)
			}
			for name, want := range tt.wantChecks {
				if got := response.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReady_GeoDatasetDegraded(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  string
	}{
		{name: "loaded", count: 42, want: "ok"},
		{name: "missing", count: 0, want: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(HealthHandlersConfig{
				CentroidCount: func() int { return tt.count },
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handlers.Ready(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if got := decodeHealth(t, w).Checks["geo_dataset"]; got != tt.want {
				t.Errorf("geo_dataset = %q, want %q", got, tt.want)
			}
		})
	}
}

type slowChecker struct{}

func (slowChecker) HealthCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestReady_Timeout(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{
		DBChecker: slowChecker{},
		Timeout:   20 * time.Millisecond,
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	start := time.Now()
	handlers.Ready(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("readiness check took %v", elapsed)
	}
}

func TestReady_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/ready", nil)
	w := httptest.NewRecorder()
	handlers.Ready(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestHealthEndpoints_ContentType(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for path, h := range map[string]http.HandlerFunc{"/health": handlers.Health, "/ready": handlers.Ready} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			h(w, req)

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}
		})
	}
}
