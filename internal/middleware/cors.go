package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the API. Wildcards
// are not supported.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds; zero omits the header.
	MaxAge int
}

// Defaults applied when CORSConfig leaves a list empty.
var (
	DefaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	DefaultCORSHeaders = []string{"Content-Type", "Authorization", RequestIDHeader}
)

// exposedHeaders are readable by browser clients on actual responses.
var exposedHeaders = strings.Join([]string{
	RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Reset",
}, ", ")

// ErrCodeOriginNotAllowed is written when a cross-origin request comes from
// an origin outside the allowlist.
const ErrCodeOriginNotAllowed = "origin_not_allowed"

// CORS answers preflight requests and tags responses for allowed origins.
// Requests without an Origin header pass through untouched. With an empty
// allowlist the middleware is a no-op.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = DefaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = DefaultCORSHeaders
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed[origin] {
				writeJSONError(w, r, http.StatusForbidden, ErrCodeOriginNotAllowed, "Origin not allowed")
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			h.Set("Access-Control-Expose-Headers", exposedHeaders)
			next.ServeHTTP(w, r)
		})
	}
}
