package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/adoptfeed/internal/middleware"
)

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	// Database checker (nil when running on in-memory stores)
	dbChecker HealthChecker

	// Redis checker (nil when rate limiting is in-process)
	redisChecker HealthChecker

	// Geo dataset size; zero means radius filtering is degraded
	centroidCount func() int

	metricsEnabled bool
	timeout        time.Duration
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	CentroidCount  func() int
	MetricsEnabled bool

	// Timeout bounds all readiness checks; zero uses 5s.
	Timeout time.Duration
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &HealthHandlers{
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		centroidCount:  config.CentroidCount,
		metricsEnabled: config.MetricsEnabled,
		timeout:        config.Timeout,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// Returns 200 if the application is running and can serve requests.
// This is a basic check that the process is alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeMethodNotAllowed)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	// Liveness check is simple - if we can respond, we're alive
	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	// Basic runtime check - we're alive if we can execute this
	response.Checks["runtime"] = "ok"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}

// Ready handles GET /ready (readiness probe).
// Returns 200 if the application is ready to serve traffic.
// Checks external dependencies and returns 503 if any critical service is unavailable.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeMethodNotAllowed)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	// Unconfigured stores are reported ok: the service runs on in-memory
	// fallbacks without them.
	for _, c := range []struct {
		name    string
		checker HealthChecker
	}{
		{"database", h.dbChecker},
		{"redis", h.redisChecker},
	} {
		if c.checker == nil {
			checks[c.name] = "ok"
			continue
		}
		if err := c.checker.HealthCheck(ctx); err != nil {
			checks[c.name] = "error"
			healthy = false
			slog.WarnContext(ctx, c.name+" health check failed", "error", err)
			continue
		}
		checks[c.name] = "ok"
	}

	// A missing centroid table degrades radius filtering but does not make
	// the service unready.
	if h.centroidCount != nil {
		if h.centroidCount() > 0 {
			checks["geo_dataset"] = "ok"
		} else {
			checks["geo_dataset"] = "degraded"
		}
	}

	if h.metricsEnabled {
		checks["metrics"] = "ok"
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("failed to encode readiness response", "error", err)
	}
}
