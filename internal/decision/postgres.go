package decision

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/onnwee/adoptfeed/internal/tracing"
)

// PostgresStore implements Store on the adopter_decisions table, which has a
// unique constraint on (user_id, pet_id, kind).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Record inserts the decision, or returns the existing row on conflict.
func (s *PostgresStore) Record(ctx context.Context, userID, petID string, kind Kind) (d *Decision, created bool, err error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, false, err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "adopter_decisions", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	// The no-op update makes RETURNING yield the existing row on conflict;
	// xmax is zero only for freshly inserted tuples.
	query := `
		INSERT INTO adopter_decisions (id, user_id, pet_id, kind, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, pet_id, kind) DO UPDATE SET kind = EXCLUDED.kind
		RETURNING id, user_id, pet_id, kind, created_at, (xmax = 0)`

	var out Decision
	err = s.db.QueryRowContext(ctx, query, uuid.NewString(), userID, petID, string(kind)).
		Scan(&out.ID, &out.UserID, &out.PetID, &out.Kind, &out.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record decision: %w", err)
	}
	return &out, created, nil
}

// List returns a user's decisions of one kind, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string, kind Kind) (out []Decision, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "adopter_decisions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, pet_id, kind, created_at
		FROM adopter_decisions
		WHERE user_id = $1 AND kind = $2
		ORDER BY created_at DESC, id DESC`, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.UserID, &d.PetID, &d.Kind, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ExcludedIDs returns every pet the user has acted on.
func (s *PostgresStore) ExcludedIDs(ctx context.Context, userID string) (set Set, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "adopter_decisions", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT pet_id FROM adopter_decisions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exclusions: %w", err)
	}
	defer rows.Close()

	set = make(Set)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}
