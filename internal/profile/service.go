package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidProfile is returned when an update fails validation.
var ErrInvalidProfile = errors.New("invalid profile")

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid profile fields: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidProfile }

// Update carries the editable profile fields. Nil fields are left unchanged.
type Update struct {
	HomeType        *string      `json:"home_type"`
	HasKids         *bool        `json:"has_kids"`
	HasDogs         *bool        `json:"has_dogs"`
	HasCats         *bool        `json:"has_cats"`
	ActivityLevel   *string      `json:"activity_level"`
	ExperienceLevel *string      `json:"experience_level"`
	HomePostalCode  *string      `json:"home_postal_code"`
	Preferences     *Preferences `json:"preferences"`
}

// Service implements get-or-create and validated partial updates.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService creates a profile service.
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// GetOrCreate returns the user's profile, creating it with defaults when
// absent.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*AdopterProfile, error) {
	p, err := s.store.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	p = NewDefault(userID)
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// Apply merges u into the user's profile, validates the result and saves it.
// Enum values are upper-cased before validation.
func (s *Service) Apply(ctx context.Context, userID string, u Update) (*AdopterProfile, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.HomeType != nil {
		p.HomeType = normalize(*u.HomeType)
	}
	if u.ActivityLevel != nil {
		p.ActivityLevel = normalize(*u.ActivityLevel)
	}
	if u.ExperienceLevel != nil {
		p.ExperienceLevel = normalize(*u.ExperienceLevel)
	}
	if u.HasKids != nil {
		p.HasKids = *u.HasKids
	}
	if u.HasDogs != nil {
		p.HasDogs = *u.HasDogs
	}
	if u.HasCats != nil {
		p.HasCats = *u.HasCats
	}
	if u.HomePostalCode != nil {
		p.HomePostalCode = strings.TrimSpace(*u.HomePostalCode)
	}
	if u.Preferences != nil {
		prefs := *u.Preferences
		prefs.PreferredSizes = normalizeAll(prefs.PreferredSizes)
		prefs.PreferredAgeGroups = normalizeAll(prefs.PreferredAgeGroups)
		prefs.HardConstraints = normalizeAll(prefs.HardConstraints)
		p.Preferences = prefs
	}

	if err := s.Validate(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// Validate checks enum values and preference ranges.
func (s *Service) Validate(p *AdopterProfile) error {
	err := s.validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace())
	}
	return &ValidationError{Fields: fields}
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
