package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/adoptfeed/internal/decision"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
)

type unavailableRepository struct{}

func (unavailableRepository) FetchActiveCandidates(context.Context, int) ([]pet.Candidate, error) {
	return nil, fmt.Errorf("%w: connection refused", pet.ErrRepositoryUnavailable)
}

func (unavailableRepository) GetCandidate(context.Context, string) (*pet.Candidate, error) {
	return nil, pet.ErrRepositoryUnavailable
}

func (unavailableRepository) SaveRiskClassification(context.Context, string, pet.RiskClassification) error {
	return pet.ErrRepositoryUnavailable
}

func seededRepository(n int) *pet.InMemoryRepository {
	repo := pet.NewInMemoryRepository()
	for i := 0; i < n; i++ {
		listed := listedBase.Add(-time.Duration(i) * time.Hour)
		c := makeCandidate(fmt.Sprintf("pet-%02d", i), listed)
		c.Size = pet.SizeSmall
		if i%4 == 0 {
			c.Risk = &pet.RiskClassification{LongStay: true}
		}
		repo.Upsert(c)
	}
	inactive := makeCandidate("pet-inactive", listedBase.Add(time.Hour))
	inactive.Status = pet.StatusInactive
	repo.Upsert(inactive)
	return repo
}

func newTestService(repo pet.Repository, metrics *Metrics) (*Service, *profile.Service, *decision.InMemoryStore) {
	profiles := profile.NewService(profile.NewInMemoryStore())
	decisions := decision.NewInMemoryStore()
	svc := NewService(ServiceConfig{
		Candidates: repo,
		Profiles:   profiles,
		Exclusions: decisions,
		Engine:     newTestEngine(Options{}),
		Metrics:    metrics,
	})
	return svc, profiles, decisions
}

func TestService_FeedSkipsInactive(t *testing.T) {
	svc, _, _ := newTestService(seededRepository(5), nil)

	page, err := svc.Feed(context.Background(), "user-1", "", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(page.Items))
	}
	for _, rc := range page.Items {
		if rc.Candidate.ID == "pet-inactive" {
			t.Error("inactive candidate served")
		}
	}
}

func TestService_FeedExcludesDecisions(t *testing.T) {
	svc, _, decisions := newTestService(seededRepository(6), nil)
	ctx := context.Background()

	if _, _, err := decisions.Record(ctx, "user-1", "pet-01", decision.KindPass); err != nil {
		t.Fatal(err)
	}
	if _, _, err := decisions.Record(ctx, "user-1", "pet-02", decision.KindApply); err != nil {
		t.Fatal(err)
	}

	page, err := svc.Feed(ctx, "user-1", "", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rc := range page.Items {
		if rc.Candidate.ID == "pet-01" || rc.Candidate.ID == "pet-02" {
			t.Errorf("excluded candidate %s served", rc.Candidate.ID)
		}
	}
	if len(page.Items) != 4 {
		t.Errorf("expected 4 items, got %d", len(page.Items))
	}

	// Another user still sees everything.
	other, err := svc.Feed(ctx, "user-2", "", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(other.Items) != 6 {
		t.Errorf("expected 6 items for another user, got %d", len(other.Items))
	}
}

func TestService_FeedAppliesProfile(t *testing.T) {
	svc, profiles, _ := newTestService(seededRepository(3), nil)
	ctx := context.Background()

	home := profile.HomeApartment
	if _, err := profiles.Apply(ctx, "user-1", profile.Update{HomeType: &home}); err != nil {
		t.Fatalf("apply profile: %v", err)
	}

	page, err := svc.Feed(ctx, "user-1", "", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rc := range page.Items {
		if !rc.Boosted() {
			t.Errorf("%s: expected a home match reason for a small candidate", rc.Candidate.ID)
		}
	}

	anon, err := svc.Feed(ctx, "", "", 20)
	if err != nil {
		t.Fatal(err)
	}
	for _, rc := range anon.Items {
		for _, r := range rc.Reasons {
			if r == "PROFILE_HOME_MATCH" {
				t.Errorf("anonymous feed should not carry profile reasons")
			}
		}
	}
}

func TestService_FeedPaginates(t *testing.T) {
	svc, _, _ := newTestService(seededRepository(23), nil)
	ctx := context.Background()

	seen := make(map[string]bool)
	cursor := ""
	for i := 0; i < 10; i++ {
		page, err := svc.Feed(ctx, "user-1", cursor, 5)
		if err != nil {
			t.Fatal(err)
		}
		for _, rc := range page.Items {
			if seen[rc.Candidate.ID] {
				t.Fatalf("duplicate %s", rc.Candidate.ID)
			}
			seen[rc.Candidate.ID] = true
		}
		if !page.HasMore() {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 23 {
		t.Errorf("visited %d of 23 candidates", len(seen))
	}
}

func TestService_FeedErrors(t *testing.T) {
	metrics := NewMetrics()

	t.Run("invalid cursor", func(t *testing.T) {
		svc, _, _ := newTestService(seededRepository(3), metrics)
		_, err := svc.Feed(context.Background(), "user-1", "%%%", 10)
		if !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected ErrInvalidCursor, got %v", err)
		}
	})

	t.Run("repository unavailable", func(t *testing.T) {
		svc, _, _ := newTestService(unavailableRepository{}, metrics)
		_, err := svc.Feed(context.Background(), "user-1", "", 10)
		if !errors.Is(err, pet.ErrRepositoryUnavailable) {
			t.Fatalf("expected ErrRepositoryUnavailable, got %v", err)
		}
	})

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues(OutcomeInvalidCursor)); got != 1 {
		t.Errorf("invalid_cursor count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues(OutcomeUnavailable)); got != 1 {
		t.Errorf("unavailable count = %v, want 1", got)
	}
}

func TestService_Metrics(t *testing.T) {
	metrics := NewMetrics()
	svc, _, _ := newTestService(seededRepository(8), metrics)

	for i := 0; i < 3; i++ {
		if _, err := svc.Feed(context.Background(), "", "", 5); err != nil {
			t.Fatal(err)
		}
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues(OutcomeOK)); got != 3 {
		t.Errorf("ok count = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(metrics.duration); got != 1 {
		t.Errorf("expected duration histogram to be collected, got %d", got)
	}
	if got := testutil.ToFloat64(metrics.geoFilterUsed); got != 0 {
		t.Errorf("geo filter count = %v, want 0", got)
	}
}

func TestService_ClampLimit(t *testing.T) {
	svc, _, _ := newTestService(seededRepository(1), nil)
	if got := svc.ClampLimit(500); got != MaxLimit {
		t.Errorf("ClampLimit(500) = %d, want %d", got, MaxLimit)
	}
}
