package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/adoptfeed/internal/decision"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
	"github.com/onnwee/adoptfeed/internal/tracing"
)

// DefaultFetchLimit bounds how many active candidates are read per request
// before filtering.
const DefaultFetchLimit = 2000

// ProfileProvider supplies the adopter profile for a user.
type ProfileProvider interface {
	GetOrCreate(ctx context.Context, userID string) (*profile.AdopterProfile, error)
}

// ExclusionProvider supplies the candidate IDs a user has already acted on.
type ExclusionProvider interface {
	ExcludedIDs(ctx context.Context, userID string) (decision.Set, error)
}

// Service loads a user's inputs and computes their feed page.
type Service struct {
	candidates pet.Repository
	profiles   ProfileProvider
	exclusions ExclusionProvider
	engine     *Engine
	fetchLimit int
	metrics    *Metrics
	logger     *slog.Logger
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Candidates pet.Repository
	Profiles   ProfileProvider
	Exclusions ExclusionProvider
	Engine     *Engine

	// FetchLimit caps the repository read; zero uses DefaultFetchLimit.
	FetchLimit int

	Metrics *Metrics
	Logger  *slog.Logger
}

// NewService creates a feed service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = DefaultFetchLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = NewEngine(nil, nil, Options{}, cfg.Logger)
	}
	return &Service{
		candidates: cfg.Candidates,
		profiles:   cfg.Profiles,
		exclusions: cfg.Exclusions,
		engine:     cfg.Engine,
		fetchLimit: cfg.FetchLimit,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Feed returns the page after cursor for userID. An empty userID is served
// an anonymous feed with no profile and no exclusions.
func (s *Service) Feed(ctx context.Context, userID, cursor string, limit int) (page *Page, err error) {
	start := time.Now()
	ctx, endSpan := tracing.StartSpan(ctx, "feed.get")
	defer func() {
		endSpan(err)
		s.observe(page, err, time.Since(start))
	}()

	var (
		p          *profile.AdopterProfile
		exclusions decision.Set
	)
	if userID != "" {
		if s.profiles != nil {
			p, err = s.profiles.GetOrCreate(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to load profile: %w", err)
			}
		}
		if s.exclusions != nil {
			exclusions, err = s.exclusions.ExcludedIDs(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to load exclusions: %w", err)
			}
		}
	}

	candidates, err := s.candidates.FetchActiveCandidates(ctx, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	page, err = s.engine.GetFeed(candidates, p, exclusions, cursor, limit)
	if err != nil {
		return nil, err
	}

	tracing.SetAttributes(ctx,
		attribute.Int("feed.candidates", page.Stats.Input),
		attribute.Int("feed.ranked", page.Stats.Ranked),
		attribute.Int("feed.items", len(page.Items)),
		attribute.Bool("feed.has_more", page.HasMore()),
	)
	s.logger.DebugContext(ctx, "feed page computed",
		"user_id", userID,
		"input", page.Stats.Input,
		"after_filters", page.Stats.AfterFilters,
		"after_geo", page.Stats.AfterGeo,
		"after_exclusions", page.Stats.AfterExcluded,
		"ranked", page.Stats.Ranked,
		"items", len(page.Items),
		"boosted", page.Stats.Boosted)

	return page, nil
}

// ClampLimit exposes the engine's limit clamping to callers.
func (s *Service) ClampLimit(limit int) int {
	return s.engine.ClampLimit(limit)
}

func (s *Service) observe(page *Page, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(elapsed.Seconds())
	switch {
	case err == nil:
		s.metrics.IncRequest(OutcomeOK)
		s.metrics.ObservePage(page.Stats)
	case errors.Is(err, ErrInvalidCursor):
		s.metrics.IncRequest(OutcomeInvalidCursor)
	case errors.Is(err, pet.ErrRepositoryUnavailable):
		s.metrics.IncRequest(OutcomeUnavailable)
	default:
		s.metrics.IncRequest(OutcomeError)
	}
}
