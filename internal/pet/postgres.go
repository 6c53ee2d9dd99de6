package pet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/onnwee/adoptfeed/internal/geo"
	"github.com/onnwee/adoptfeed/internal/tracing"
)

const candidateColumns = `
	p.id, p.name, p.species, p.size, p.age_group, p.status, p.listed_at,
	p.raw_description, p.ai_description, p.temperament_tags, p.photos,
	o.id, o.name, o.location, o.postal_code, o.latitude, o.longitude,
	r.is_long_stay, r.is_senior, r.is_medical, r.is_overlooked_breed_group,
	r.recently_returned, r.updated_at`

const candidateJoins = `
	FROM pets p
	JOIN organizations o ON o.id = p.organization_id
	LEFT JOIN risk_classifications r ON r.pet_id = p.id`

// PostgresRepository implements Repository on PostgreSQL. Organization and
// risk rows are joined in the same query so the feed never issues per-row
// lookups.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// FetchActiveCandidates returns active candidates, most recently listed first.
func (r *PostgresRepository) FetchActiveCandidates(ctx context.Context, limit int) (candidates []Candidate, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "pets", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT` + candidateColumns + candidateJoins + `
	WHERE p.status = $1
	ORDER BY p.listed_at DESC NULLS LAST, p.id DESC`
	args := []any{StatusActive}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return candidates, nil
}

// GetCandidate returns a single candidate by ID.
func (r *PostgresRepository) GetCandidate(ctx context.Context, id string) (c *Candidate, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "pets", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	row := r.db.QueryRowContext(ctx, `SELECT`+candidateColumns+candidateJoins+` WHERE p.id = $1`, id)
	c, err = scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCandidateNotFound
	}
	return c, err
}

// SaveRiskClassification upserts the risk row for a candidate.
func (r *PostgresRepository) SaveRiskClassification(ctx context.Context, id string, risk RiskClassification) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "risk_classifications", tracing.DBOperationUpsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO risk_classifications (
			pet_id, is_long_stay, is_senior, is_medical,
			is_overlooked_breed_group, recently_returned, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (pet_id) DO UPDATE SET
			is_long_stay = EXCLUDED.is_long_stay,
			is_senior = EXCLUDED.is_senior,
			is_medical = EXCLUDED.is_medical,
			is_overlooked_breed_group = EXCLUDED.is_overlooked_breed_group,
			recently_returned = EXCLUDED.recently_returned,
			updated_at = NOW()`

	_, err = r.db.ExecContext(ctx, query, id,
		risk.LongStay, risk.Senior, risk.Medical,
		risk.OverlookedBreedGroup, risk.RecentlyReturned)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrCandidateNotFound
		}
		return fmt.Errorf("failed to save risk classification: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*Candidate, error) {
	var (
		c                      Candidate
		size, ageGroup         sql.NullString
		listedAt               sql.NullTime
		rawDesc, aiDesc        sql.NullString
		orgLocation, orgPostal sql.NullString
		lat, lon               sql.NullFloat64
		longStay, senior       sql.NullBool
		medical, overlooked    sql.NullBool
		returned               sql.NullBool
		riskUpdated            sql.NullTime
		tags, photos           pq.StringArray
	)

	err := row.Scan(
		&c.ID, &c.Name, &c.Species, &size, &ageGroup, &c.Status, &listedAt,
		&rawDesc, &aiDesc, &tags, &photos,
		&c.Organization.ID, &c.Organization.Name, &orgLocation, &orgPostal, &lat, &lon,
		&longStay, &senior, &medical, &overlooked, &returned, &riskUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}

	c.Size = size.String
	c.AgeGroup = ageGroup.String
	if listedAt.Valid {
		t := listedAt.Time
		c.ListedAt = &t
	}
	c.RawDescription = rawDesc.String
	c.AIDescription = aiDesc.String
	c.TemperamentTags = []string(tags)
	c.Photos = []string(photos)
	c.Organization.Location = orgLocation.String
	c.Organization.PostalCode = orgPostal.String
	if lat.Valid && lon.Valid {
		c.Organization.Coordinates = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	if riskUpdated.Valid {
		c.Risk = &RiskClassification{
			LongStay:             longStay.Bool,
			Senior:               senior.Bool,
			Medical:              medical.Bool,
			OverlookedBreedGroup: overlooked.Bool,
			RecentlyReturned:     returned.Bool,
			UpdatedAt:            riskUpdated.Time,
		}
	}
	return &c, nil
}
