package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/adoptfeed/internal/auth"
)

// Error codes written by Authenticate and RateLimiter.
const (
	ErrCodeAuthRequired = "auth_required"
	ErrCodeAuthFailed   = "auth_failed"
	ErrCodeRateLimited  = "rate_limited"
)

// TokenValidator validates bearer tokens. *auth.JWTService satisfies it.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Authenticate resolves the bearer token into a user ID stored with
// SetUserID. With required set, requests without a valid token get 401.
// Otherwise anonymous requests pass through, but a presented token that
// fails validation is still rejected.
func Authenticate(validator TokenValidator, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, present := bearerToken(r)
			if !present {
				if required {
					writeAuthError(w, r, ErrCodeAuthRequired, "Authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					msg = "Token has expired"
				}
				writeAuthError(w, r, ErrCodeAuthFailed, msg)
				return
			}

			userID := claims.UserID()
			reportUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}

func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeJSONError(w, r, http.StatusUnauthorized, code, message)
}

// writeJSONError writes the same envelope as api.WriteError, which this
// package cannot import.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	detail := map[string]string{"code": code, "message": message}
	if id := GetRequestID(r.Context()); id != "" {
		detail["request_id"] = id
	}
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{"error": detail})
}
