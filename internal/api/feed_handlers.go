package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/adoptfeed/internal/feed"
	"github.com/onnwee/adoptfeed/internal/geo"
	"github.com/onnwee/adoptfeed/internal/middleware"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/ranking"
)

// FeedService computes feed pages. *feed.Service satisfies it.
type FeedService interface {
	Feed(ctx context.Context, userID, cursor string, limit int) (*feed.Page, error)
}

// OrganizationView is the public part of a listing organization. Only a
// coarse geohash of its location is exposed.
type OrganizationView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Geohash  string `json:"geohash,omitempty"`
}

// CandidateView is one feed item.
type CandidateView struct {
	PetID           string           `json:"pet_id"`
	Name            string           `json:"name"`
	Species         string           `json:"species,omitempty"`
	AgeGroup        string           `json:"age_group,omitempty"`
	Size            string           `json:"size,omitempty"`
	Photos          []string         `json:"photos"`
	AIDescription   string           `json:"ai_description"`
	TemperamentTags []string         `json:"temperament_tags"`
	WhyShown        []string         `json:"why_shown"`
	Organization    OrganizationView `json:"organization"`
}

// FeedResponse is the body of GET /api/v1/pets.
type FeedResponse struct {
	Items      []CandidateView `json:"items"`
	NextCursor *string         `json:"next_cursor"`
}

// FeedHandlers serves the ranked feed.
type FeedHandlers struct {
	feed FeedService
}

// NewFeedHandlers creates feed handlers.
func NewFeedHandlers(svc FeedService) *FeedHandlers {
	return &FeedHandlers{feed: svc}
}

// GetFeed handles GET /api/v1/pets?cursor=&limit=.
// Anonymous callers get an unpersonalized feed. An unparsable limit falls
// back to the default page size.
func (h *FeedHandlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	userID := middleware.GetUserID(r.Context())
	page, err := h.feed.Feed(r.Context(), userID, query.Get("cursor"), limit)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrInvalidCursor):
			writeErrorCode(w, r, ErrCodeInvalidCursor, "Invalid cursor")
		case errors.Is(err, pet.ErrRepositoryUnavailable):
			slog.WarnContext(r.Context(), "feed unavailable", "error", err)
			writeErrorCode(w, r, ErrCodeUnavailable, "Feed temporarily unavailable")
		default:
			slog.ErrorContext(r.Context(), "failed to compute feed", "error", err, "user_id", userID)
			writeErrorCode(w, r, ErrCodeInternal, "Failed to load feed")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, newFeedResponse(page))
}

func newFeedResponse(page *feed.Page) FeedResponse {
	resp := FeedResponse{Items: make([]CandidateView, 0, len(page.Items))}
	for _, rc := range page.Items {
		resp.Items = append(resp.Items, newCandidateView(rc))
	}
	if page.NextCursor != "" {
		next := page.NextCursor
		resp.NextCursor = &next
	}
	return resp
}

func newCandidateView(rc ranking.RankedCandidate) CandidateView {
	c := rc.Candidate
	org := OrganizationView{
		ID:       c.Organization.ID,
		Name:     c.Organization.Name,
		Location: c.Organization.Location,
	}
	if c.Organization.Coordinates != nil {
		org.Geohash = geo.CoarseCell(*c.Organization.Coordinates)
	}
	return CandidateView{
		PetID:           c.ID,
		Name:            c.Name,
		Species:         c.Species,
		AgeGroup:        c.AgeGroup,
		Size:            c.Size,
		Photos:          nonNil(c.Photos),
		AIDescription:   c.AIDescription,
		TemperamentTags: nonNil(c.TemperamentTags),
		WhyShown:        nonNil(rc.Reasons),
		Organization:    org,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
