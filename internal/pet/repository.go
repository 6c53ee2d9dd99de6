package pet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrCandidateNotFound is returned when a candidate does not exist.
	ErrCandidateNotFound = errors.New("candidate not found")

	// ErrRepositoryUnavailable is returned when the candidate store cannot be
	// reached or the circuit breaker is open.
	ErrRepositoryUnavailable = errors.New("candidate repository unavailable")
)

// Repository loads candidates and persists their risk classification.
type Repository interface {
	// FetchActiveCandidates returns up to limit active candidates with their
	// organization and risk classification populated, most recently listed
	// first. A limit <= 0 returns every active candidate.
	FetchActiveCandidates(ctx context.Context, limit int) ([]Candidate, error)

	// GetCandidate returns a single candidate by ID.
	GetCandidate(ctx context.Context, id string) (*Candidate, error)

	// SaveRiskClassification creates or replaces a candidate's risk flags.
	SaveRiskClassification(ctx context.Context, id string, risk RiskClassification) error
}

// InMemoryRepository is a thread-safe in-memory Repository.
type InMemoryRepository struct {
	mu         sync.RWMutex
	candidates map[string]Candidate
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		candidates: make(map[string]Candidate),
	}
}

// Upsert stores a candidate, replacing any existing one with the same ID.
func (r *InMemoryRepository) Upsert(c Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Status == "" {
		c.Status = StatusActive
	}
	r.candidates[c.ID] = c.clone()
}

// FetchActiveCandidates returns active candidates ordered by listing recency.
func (r *InMemoryRepository) FetchActiveCandidates(ctx context.Context, limit int) ([]Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		if c.Status != StatusActive {
			continue
		}
		result = append(result, c.clone())
	}

	SortByRecency(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetCandidate returns a copy of the stored candidate.
func (r *InMemoryRepository) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.candidates[id]
	if !ok {
		return nil, ErrCandidateNotFound
	}
	out := c.clone()
	return &out, nil
}

// SaveRiskClassification replaces the risk flags of a stored candidate.
func (r *InMemoryRepository) SaveRiskClassification(ctx context.Context, id string, risk RiskClassification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.candidates[id]
	if !ok {
		return ErrCandidateNotFound
	}
	if risk.UpdatedAt.IsZero() {
		risk.UpdatedAt = time.Now().UTC()
	}
	c.Risk = &risk
	r.candidates[id] = c
	return nil
}

// SortByRecency orders candidates by listing time descending, then ID
// descending. Candidates without a listing time sort last.
func SortByRecency(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.ListedAt == nil && b.ListedAt == nil:
			return a.ID > b.ID
		case a.ListedAt == nil:
			return false
		case b.ListedAt == nil:
			return true
		case !a.ListedAt.Equal(*b.ListedAt):
			return a.ListedAt.After(*b.ListedAt)
		default:
			return a.ID > b.ID
		}
	})
}
