// Package profile manages adopter profiles: household details and feed
// preferences that personalize ranking and filtering.
package profile

import (
	"time"
)

// Home types.
const (
	HomeApartment = "APARTMENT"
	HomeHouse     = "HOUSE"
	HomeOther     = "OTHER"
)

// Activity levels.
const (
	ActivityLow  = "LOW"
	ActivityMed  = "MED"
	ActivityHigh = "HIGH"
)

// Experience levels.
const (
	ExperienceNew         = "NEW"
	ExperienceSome        = "SOME"
	ExperienceExperienced = "EXPERIENCED"
)

// Preferences are the adopter's feed filters.
type Preferences struct {
	PreferredSizes     []string `json:"preferred_sizes,omitempty" validate:"omitempty,dive,oneof=S M L XL"`
	PreferredAgeGroups []string `json:"preferred_age_groups,omitempty" validate:"omitempty,dive,oneof=PUPPY ADULT SENIOR"`

	// HardConstraints are temperament tags every candidate must carry.
	HardConstraints []string `json:"hard_constraints,omitempty" validate:"omitempty,dive,required,max=64"`

	// MaxDistanceMiles enables radius filtering when positive.
	MaxDistanceMiles *float64 `json:"max_distance_miles,omitempty" validate:"omitempty,gte=0,lte=5000"`
}

// AdopterProfile describes an adopter's household.
type AdopterProfile struct {
	UserID          string      `json:"user_id"`
	HomeType        string      `json:"home_type" validate:"oneof=APARTMENT HOUSE OTHER"`
	ActivityLevel   string      `json:"activity_level" validate:"oneof=LOW MED HIGH"`
	ExperienceLevel string      `json:"experience_level" validate:"oneof=NEW SOME EXPERIENCED"`
	HasKids         bool        `json:"has_kids"`
	HasDogs         bool        `json:"has_dogs"`
	HasCats         bool        `json:"has_cats"`
	HomePostalCode  string      `json:"home_postal_code,omitempty" validate:"omitempty,max=16"`
	Preferences     Preferences `json:"preferences"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewDefault returns the profile created on first access.
func NewDefault(userID string) *AdopterProfile {
	now := time.Now().UTC()
	return &AdopterProfile{
		UserID:          userID,
		HomeType:        HomeOther,
		ActivityLevel:   ActivityMed,
		ExperienceLevel: ExperienceSome,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// MaxDistance returns the radius preference, or 0 when unset.
func (p *AdopterProfile) MaxDistance() float64 {
	if p == nil || p.Preferences.MaxDistanceMiles == nil {
		return 0
	}
	return *p.Preferences.MaxDistanceMiles
}

func (p *AdopterProfile) clone() *AdopterProfile {
	out := *p
	out.Preferences.PreferredSizes = append([]string(nil), p.Preferences.PreferredSizes...)
	out.Preferences.PreferredAgeGroups = append([]string(nil), p.Preferences.PreferredAgeGroups...)
	out.Preferences.HardConstraints = append([]string(nil), p.Preferences.HardConstraints...)
	if p.Preferences.MaxDistanceMiles != nil {
		d := *p.Preferences.MaxDistanceMiles
		out.Preferences.MaxDistanceMiles = &d
	}
	return &out
}
