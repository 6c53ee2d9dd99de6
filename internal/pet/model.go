// Package pet holds the adoptable animal model read by the feed and the
// repositories that load it.
package pet

import (
	"time"

	"github.com/onnwee/adoptfeed/internal/geo"
)

// Species values.
const (
	SpeciesDog = "DOG"
	SpeciesCat = "CAT"
)

// Status values. Only active candidates are eligible for the feed.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Size values.
const (
	SizeSmall      = "S"
	SizeMedium     = "M"
	SizeLarge      = "L"
	SizeExtraLarge = "XL"
)

// Age group values.
const (
	AgeGroupPuppy  = "PUPPY"
	AgeGroupAdult  = "ADULT"
	AgeGroupSenior = "SENIOR"
)

// Organization is the shelter or rescue that lists a candidate.
type Organization struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`

	// Coordinates is nil when the organization has no known location.
	Coordinates *geo.Point `json:"-"`
}

// RiskClassification carries the flags that earn a candidate a visibility
// boost.
type RiskClassification struct {
	LongStay             bool      `json:"is_long_stay"`
	Senior               bool      `json:"is_senior"`
	Medical              bool      `json:"is_medical"`
	OverlookedBreedGroup bool      `json:"is_overlooked_breed_group"`
	RecentlyReturned     bool      `json:"recently_returned"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Candidate is an adoptable animal eligible for the feed.
type Candidate struct {
	ID              string     `json:"pet_id"`
	Name            string     `json:"name"`
	Species         string     `json:"species"`
	Size            string     `json:"size,omitempty"`
	AgeGroup        string     `json:"age_group,omitempty"`
	Status          string     `json:"status"`
	ListedAt        *time.Time `json:"listed_at,omitempty"`
	RawDescription  string     `json:"raw_description,omitempty"`
	AIDescription   string     `json:"ai_description,omitempty"`
	TemperamentTags []string   `json:"temperament_tags"`
	Photos          []string   `json:"photos"`

	Organization Organization `json:"organization"`

	// Risk is nil when no classification has been computed.
	Risk *RiskClassification `json:"risk,omitempty"`
}

// Description returns the AI summary when present, otherwise the raw text.
func (c *Candidate) Description() string {
	if c.AIDescription != "" {
		return c.AIDescription
	}
	return c.RawDescription
}

// clone returns a deep copy so repository callers cannot mutate stored state.
func (c Candidate) clone() Candidate {
	out := c
	if c.ListedAt != nil {
		t := *c.ListedAt
		out.ListedAt = &t
	}
	out.TemperamentTags = append([]string(nil), c.TemperamentTags...)
	out.Photos = append([]string(nil), c.Photos...)
	if c.Organization.Coordinates != nil {
		p := *c.Organization.Coordinates
		out.Organization.Coordinates = &p
	}
	if c.Risk != nil {
		r := *c.Risk
		out.Risk = &r
	}
	return out
}
