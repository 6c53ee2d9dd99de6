package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onnwee/adoptfeed/internal/tracing"
)

// PostgresStore implements Store on the adopter_profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get loads a profile by user ID.
func (s *PostgresStore) Get(ctx context.Context, userID string) (p *AdopterProfile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "adopter_profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT user_id, home_type, activity_level, experience_level,
		       has_kids, has_dogs, has_cats, home_postal_code,
		       preferred_sizes, preferred_age_groups, hard_constraints,
		       max_distance_miles, created_at, updated_at
		FROM adopter_profiles
		WHERE user_id = $1`

	var (
		out         AdopterProfile
		postal      sql.NullString
		sizes, ages pq.StringArray
		constraints pq.StringArray
		maxDistance sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx, query, userID).Scan(
		&out.UserID, &out.HomeType, &out.ActivityLevel, &out.ExperienceLevel,
		&out.HasKids, &out.HasDogs, &out.HasCats, &postal,
		&sizes, &ages, &constraints,
		&maxDistance, &out.CreatedAt, &out.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	out.HomePostalCode = postal.String
	out.Preferences.PreferredSizes = []string(sizes)
	out.Preferences.PreferredAgeGroups = []string(ages)
	out.Preferences.HardConstraints = []string(constraints)
	if maxDistance.Valid {
		d := maxDistance.Float64
		out.Preferences.MaxDistanceMiles = &d
	}
	return &out, nil
}

// Save upserts a profile.
func (s *PostgresStore) Save(ctx context.Context, p *AdopterProfile) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "adopter_profiles", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO adopter_profiles (
			user_id, home_type, activity_level, experience_level,
			has_kids, has_dogs, has_cats, home_postal_code,
			preferred_sizes, preferred_age_groups, hard_constraints,
			max_distance_miles, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			home_type = EXCLUDED.home_type,
			activity_level = EXCLUDED.activity_level,
			experience_level = EXCLUDED.experience_level,
			has_kids = EXCLUDED.has_kids,
			has_dogs = EXCLUDED.has_dogs,
			has_cats = EXCLUDED.has_cats,
			home_postal_code = EXCLUDED.home_postal_code,
			preferred_sizes = EXCLUDED.preferred_sizes,
			preferred_age_groups = EXCLUDED.preferred_age_groups,
			hard_constraints = EXCLUDED.hard_constraints,
			max_distance_miles = EXCLUDED.max_distance_miles,
			updated_at = NOW()`

	var maxDistance sql.NullFloat64
	if p.Preferences.MaxDistanceMiles != nil {
		maxDistance = sql.NullFloat64{Float64: *p.Preferences.MaxDistanceMiles, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, query,
		p.UserID, p.HomeType, p.ActivityLevel, p.ExperienceLevel,
		p.HasKids, p.HasDogs, p.HasCats, p.HomePostalCode,
		pq.Array(nonNil(p.Preferences.PreferredSizes)),
		pq.Array(nonNil(p.Preferences.PreferredAgeGroups)),
		pq.Array(nonNil(p.Preferences.HardConstraints)),
		maxDistance,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
