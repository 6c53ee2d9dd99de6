package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/adoptfeed/internal/auth"
)

// stubValidator maps tokens to user IDs.
type stubValidator map[string]string

func (s stubValidator) ValidateAccessToken(token string) (*auth.Claims, error) {
	userID, ok := s[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	if userID == "expired" {
		return nil, auth.ErrExpiredToken
	}
	claims := &auth.Claims{Type: auth.TokenTypeAccess}
	claims.Subject = userID
	return claims, nil
}

func TestAuthenticate(t *testing.T) {
	validator := stubValidator{"good": "user-1", "old": "expired"}

	tests := []struct {
		name       string
		required   bool
		header     string
		wantStatus int
		wantUser   string
		wantCode   string
	}{
		{name: "required with valid token", required: true, header: "Bearer good", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "lowercase scheme", required: true, header: "bearer good", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "required without token", required: true, wantStatus: http.StatusUnauthorized, wantCode: ErrCodeAuthRequired},
		{name: "required with bad token", required: true, header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantCode: ErrCodeAuthFailed},
		{name: "expired token", required: true, header: "Bearer old", wantStatus: http.StatusUnauthorized, wantCode: ErrCodeAuthFailed},
		{name: "wrong scheme", required: true, header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized, wantCode: ErrCodeAuthFailed},
		{name: "optional anonymous", required: false, wantStatus: http.StatusOK},
		{name: "optional with valid token", required: false, header: "Bearer good", wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "optional with bad token", required: false, header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantCode: ErrCodeAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := Authenticate(validator, tt.required)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
			if tt.wantCode == "" {
				return
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestAuthenticate_WithJWTService(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateAccessToken("user-7")
	if err != nil {
		t.Fatal(err)
	}

	var gotUser string
	handler := Authenticate(svc, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || gotUser != "user-7" {
		t.Errorf("status = %d, user = %q", rr.Code, gotUser)
	}
}
