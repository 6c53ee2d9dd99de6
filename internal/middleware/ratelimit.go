package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter scopes. Each scope counts in its own key space.
const (
	ScopeGlobal    = "global"
	ScopeDecisions = "decisions"
)

// RateLimitConfig is a fixed window limit for one scope.
type RateLimitConfig struct {
	// Scope namespaces store keys and labels metrics.
	Scope             string
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate rejects non-positive limits and windows.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("requests per window must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("window duration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultGlobalLimit is applied per client IP to every request.
func DefaultGlobalLimit() RateLimitConfig {
	return RateLimitConfig{Scope: ScopeGlobal, RequestsPerWindow: 100, WindowDuration: time.Minute}
}

// DefaultDecisionLimit is applied per user to interest, apply and pass.
func DefaultDecisionLimit() RateLimitConfig {
	return RateLimitConfig{Scope: ScopeDecisions, RequestsPerWindow: 30, WindowDuration: time.Minute}
}

// RateLimitStore holds window counters. Allow reports whether the request
// fits in the current window and, when it does not, how many seconds remain.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, retryAfter int)
}

type window struct {
	count int
	ends  time.Time
}

// InMemoryRateLimitStore keeps window counters for a single process.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

// NewInMemoryRateLimitStore returns an empty store. Call Cleanup
// periodically to drop expired windows.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.ends) {
		s.windows[key] = &window{count: 1, ends: now.Add(config.WindowDuration)}
		return true, 0
	}
	if w.count < config.RequestsPerWindow {
		w.count++
		return true, 0
	}
	return false, retryAfterSeconds(w.ends.Sub(now))
}

// Cleanup drops windows that have ended.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if !now.Before(w.ends) {
			delete(s.windows, key)
		}
	}
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys on the client address, preferring the first hop of
// X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}

// UserKeyFunc keys on the authenticated user, or on the client address for
// anonymous requests. Keys carry a "user:" or "ip:" prefix.
func UserKeyFunc() KeyFunc {
	ipFunc := IPKeyFunc()
	return func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return "user:" + id
		}
		return "ip:" + ipFunc(r)
	}
}

func keyType(key string) string {
	if strings.HasPrefix(key, "user:") {
		return "user"
	}
	return "ip"
}

// RateLimiter rejects requests over config's limit with 429 and a JSON
// error body. Keys are namespaced by config.Scope. metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	scope := config.Scope
	if scope == "" {
		scope = ScopeGlobal
	}
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			allowed, retryAfter := store.Allow(r.Context(), scope+":"+key, config)
			if metrics != nil {
				metrics.ObserveRateLimit(scope, keyType(key), allowed)
			}

			w.Header().Set("X-RateLimit-Limit", limit)
			if !allowed {
				reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
				writeJSONError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
