package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/onnwee/adoptfeed/internal/feed"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
	"github.com/onnwee/adoptfeed/internal/ranking"
)

// stubFeed records the arguments it was called with.
type stubFeed struct {
	page   *feed.Page
	err    error
	userID string
	cursor string
	limit  int
}

func (s *stubFeed) Feed(ctx context.Context, userID, cursor string, limit int) (*feed.Page, error) {
	s.userID, s.cursor, s.limit = userID, cursor, limit
	if s.err != nil {
		return nil, s.err
	}
	if s.page == nil {
		return &feed.Page{}, nil
	}
	return s.page, nil
}

func TestGetFeed_Anonymous(t *testing.T) {
	s := newTestServer(t, 3)

	w := s.do(t, http.MethodGet, "/api/v1/pets", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(raw["next_cursor"]) != "null" {
		t.Errorf("expected next_cursor null, got %s", raw["next_cursor"])
	}

	resp := decodeJSON[FeedResponse](t, w)
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(resp.Items))
	}

	first := resp.Items[0]
	if first.PetID != testPetID(0) {
		t.Errorf("expected newest pet first, got %s", first.PetID)
	}
	if first.WhyShown == nil || len(first.WhyShown) != 0 {
		t.Errorf("expected empty why_shown, got %v", first.WhyShown)
	}
	if first.Organization.Geohash != "9q8yy" {
		t.Errorf("expected coarse geohash 9q8yy, got %q", first.Organization.Geohash)
	}
	if first.Organization.Name != "Happy Tails Rescue" {
		t.Errorf("unexpected organization %+v", first.Organization)
	}
}

func TestGetFeed_JSONArraysNeverNull(t *testing.T) {
	s := newTestServer(t, 1)

	w := s.do(t, http.MethodGet, "/api/v1/pets", "", nil)
	body := w.Body.String()
	for _, field := range []string{`"photos":[]`, `"temperament_tags":[]`, `"why_shown":[]`} {
		if !strings.Contains(body, field) {
			t.Errorf("expected %s in body %s", field, body)
		}
	}
}

func TestGetFeed_Paginates(t *testing.T) {
	s := newTestServer(t, 7)

	seen := make(map[string]bool)
	var sizes []int
	cursor := ""
	for i := 0; i < 5; i++ {
		target := "/api/v1/pets?limit=3"
		if cursor != "" {
			target += "&cursor=" + url.QueryEscape(cursor)
		}
		w := s.do(t, http.MethodGet, target, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("page %d: expected status 200, got %d", i, w.Code)
		}
		resp := decodeJSON[FeedResponse](t, w)
		sizes = append(sizes, len(resp.Items))
		for _, item := range resp.Items {
			if seen[item.PetID] {
				t.Fatalf("duplicate pet %s on page %d", item.PetID, i)
			}
			seen[item.PetID] = true
		}
		if resp.NextCursor == nil {
			break
		}
		cursor = *resp.NextCursor
	}

	if fmt.Sprint(sizes) != "[3 3 1]" {
		t.Errorf("expected page sizes [3 3 1], got %v", sizes)
	}
	if len(seen) != 7 {
		t.Errorf("expected 7 distinct pets, got %d", len(seen))
	}
}

func TestGetFeed_LimitParsing(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{name: "absent", query: "", want: 0},
		{name: "valid", query: "?limit=5", want: 5},
		{name: "not a number", query: "?limit=abc", want: 0},
		{name: "negative passed through", query: "?limit=-3", want: -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubFeed{}
			h := NewFeedHandlers(stub)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pets"+tt.query, nil)
			w := httptest.NewRecorder()
			h.GetFeed(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if stub.limit != tt.want {
				t.Errorf("expected limit %d, got %d", tt.want, stub.limit)
			}
		})
	}
}

func TestGetFeed_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid cursor",
			err:        &feed.InvalidCursorError{Reason: "malformed base64"},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeInvalidCursor,
		},
		{
			name:       "repository unavailable",
			err:        fmt.Errorf("failed to fetch candidates: %w", pet.ErrRepositoryUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrCodeUnavailable,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewFeedHandlers(&stubFeed{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pets?cursor=abc", nil)
			w := httptest.NewRecorder()
			h.GetFeed(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestGetFeed_InvalidCursorEndToEnd(t *testing.T) {
	s := newTestServer(t, 3)

	w := s.do(t, http.MethodGet, "/api/v1/pets?cursor=%25%25%25", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != ErrCodeInvalidCursor {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidCursor, code)
	}
}

func TestGetFeed_Personalized(t *testing.T) {
	s := newTestServer(t, 3)

	home := profile.HomeApartment
	if _, err := s.profiles.Apply(context.Background(), "user-1", profile.Update{HomeType: &home}); err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}

	w := s.do(t, http.MethodGet, "/api/v1/pets", "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	resp := decodeJSON[FeedResponse](t, w)
	for _, item := range resp.Items {
		if len(item.WhyShown) != 1 || item.WhyShown[0] != ranking.ReasonProfileHome {
			t.Errorf("pet %s: expected [%s], got %v", item.PetID, ranking.ReasonProfileHome, item.WhyShown)
		}
	}
}

func TestGetFeed_PassesUserAndCursor(t *testing.T) {
	stub := &stubFeed{}
	h := NewFeedHandlers(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pets?cursor=abc", nil)
	w := httptest.NewRecorder()
	h.GetFeed(w, req)

	if stub.userID != "" {
		t.Errorf("expected anonymous user, got %q", stub.userID)
	}
	if stub.cursor != "abc" {
		t.Errorf("expected cursor abc, got %q", stub.cursor)
	}
}

func TestGetFeed_RejectsBadToken(t *testing.T) {
	s := newTestServer(t, 3)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pets", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestNewFeedResponse_NextCursor(t *testing.T) {
	page := &feed.Page{
		Items: []ranking.RankedCandidate{
			{Candidate: pet.Candidate{ID: "a"}, Score: 1, Reasons: []string{ranking.ReasonSenior}},
		},
		NextCursor: feed.EncodeCursor(1, "a"),
	}

	resp := newFeedResponse(page)
	if resp.NextCursor == nil || *resp.NextCursor != page.NextCursor {
		t.Errorf("expected next cursor %q, got %v", page.NextCursor, resp.NextCursor)
	}
	if resp.Items[0].Organization.Geohash != "" {
		t.Errorf("expected no geohash without coordinates, got %q", resp.Items[0].Organization.Geohash)
	}
	if resp.Items[0].WhyShown[0] != ranking.ReasonSenior {
		t.Errorf("unexpected reasons %v", resp.Items[0].WhyShown)
	}
}
