package profile

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrProfileNotFound is returned when a user has no stored profile.
var ErrProfileNotFound = errors.New("profile not found")

// Store persists adopter profiles keyed by user ID.
type Store interface {
	// Get returns the stored profile or ErrProfileNotFound.
	Get(ctx context.Context, userID string) (*AdopterProfile, error)

	// Save creates or replaces the profile.
	Save(ctx context.Context, p *AdopterProfile) error
}

// InMemoryStore is a thread-safe in-memory Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*AdopterProfile
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[string]*AdopterProfile)}
}

// Get returns a copy of the stored profile.
func (s *InMemoryStore) Get(ctx context.Context, userID string) (*AdopterProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.clone(), nil
}

// Save stores a copy of the profile.
func (s *InMemoryStore) Save(ctx context.Context, p *AdopterProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p.clone()
	if existing, ok := s.profiles[p.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.profiles[p.UserID] = stored
	return nil
}
