package api

import (
	"net/http"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// RouterConfig holds the handlers and the per-route middleware.
// Nil middleware entries are skipped.
type RouterConfig struct {
	Feed      *FeedHandlers
	Profiles  *ProfileHandlers
	Decisions *DecisionHandlers
	Health    *HealthHandlers

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// OptionalAuth resolves a user when a token is present.
	OptionalAuth Middleware

	// RequiredAuth rejects requests without a valid token.
	RequiredAuth Middleware

	// DecisionLimit throttles decision writes per user. It runs after
	// RequiredAuth so the user is known.
	DecisionLimit Middleware

	ServiceName string
	Version     string
}

// NewRouter registers every route on a new ServeMux.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	if cfg.Feed != nil {
		mux.Handle("GET /api/v1/pets", chain(http.HandlerFunc(cfg.Feed.GetFeed), cfg.OptionalAuth))
	}

	if cfg.Profiles != nil {
		mux.Handle("GET /api/v1/me/profile", chain(http.HandlerFunc(cfg.Profiles.GetProfile), cfg.RequiredAuth))
		mux.Handle("PATCH /api/v1/me/profile", chain(http.HandlerFunc(cfg.Profiles.UpdateProfile), cfg.RequiredAuth))
	}

	if cfg.Decisions != nil {
		write := func(h http.HandlerFunc) http.Handler {
			return chain(h, cfg.RequiredAuth, cfg.DecisionLimit)
		}
		mux.Handle("POST /api/v1/pets/{id}/interest", write(cfg.Decisions.Interest))
		mux.Handle("POST /api/v1/pets/{id}/apply", write(cfg.Decisions.Apply))
		mux.Handle("POST /api/v1/pets/{id}/pass", write(cfg.Decisions.Pass))
		mux.Handle("GET /api/v1/me/decisions", chain(http.HandlerFunc(cfg.Decisions.List), cfg.RequiredAuth))
	}

	name, version := cfg.ServiceName, cfg.Version
	if name == "" {
		name = "adoptfeed-api"
	}
	if version == "" {
		version = "0.0.1"
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			writeErrorCode(w, r, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"service": name, "version": version})
	})

	return mux
}

// chain applies mws so that the first one listed runs first.
func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
