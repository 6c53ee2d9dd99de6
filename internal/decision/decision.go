// Package decision records adopter actions on candidates. Every liked,
// applied-to or passed candidate is excluded from that adopter's feed.
package decision

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of action an adopter took.
type Kind string

const (
	KindLike  Kind = "LIKE"
	KindApply Kind = "APPLY"
	KindPass  Kind = "PASS"
)

// ErrUnknownKind is returned for an unsupported decision kind.
var ErrUnknownKind = errors.New("unknown decision kind")

// ParseKind maps a case-insensitive name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindLike, KindApply, KindPass:
		return k, nil
	default:
		return "", ErrUnknownKind
	}
}

// Decision is a single recorded action.
type Decision struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PetID     string    `json:"pet_id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Set is the collection of candidate IDs excluded from a feed.
type Set map[string]struct{}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Store persists decisions. Recording is idempotent per (user, pet, kind).
type Store interface {
	// Record stores the decision if it does not exist yet and returns the
	// stored row. created is false when the decision already existed.
	Record(ctx context.Context, userID, petID string, kind Kind) (d *Decision, created bool, err error)

	// List returns a user's decisions of the given kind, newest first.
	List(ctx context.Context, userID string, kind Kind) ([]Decision, error)

	// ExcludedIDs returns every candidate the user has acted on.
	ExcludedIDs(ctx context.Context, userID string) (Set, error)
}

type decisionKey struct {
	userID string
	petID  string
	kind   Kind
}

// InMemoryStore is a thread-safe in-memory Store.
type InMemoryStore struct {
	mu        sync.RWMutex
	decisions map[decisionKey]Decision
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{decisions: make(map[decisionKey]Decision)}
}

// Record stores a decision once.
func (s *InMemoryStore) Record(ctx context.Context, userID, petID string, kind Kind) (*Decision, bool, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := decisionKey{userID: userID, petID: petID, kind: kind}
	if d, ok := s.decisions[key]; ok {
		return &d, false, nil
	}

	d := Decision{
		ID:        uuid.NewString(),
		UserID:    userID,
		PetID:     petID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	s.decisions[key] = d
	return &d, true, nil
}

// List returns a user's decisions of one kind, newest first.
func (s *InMemoryStore) List(ctx context.Context, userID string, kind Kind) ([]Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Decision
	for k, d := range s.decisions {
		if k.userID == userID && k.kind == kind {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ExcludedIDs returns the union of all of a user's decisions.
func (s *InMemoryStore) ExcludedIDs(ctx context.Context, userID string) (Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(Set)
	for k := range s.decisions {
		if k.userID == userID {
			set[k.petID] = struct{}{}
		}
	}
	return set, nil
}
