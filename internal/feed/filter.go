package feed

import (
	"strings"

	"github.com/onnwee/adoptfeed/internal/decision"
	"github.com/onnwee/adoptfeed/internal/geo"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
)

// applyHardFilters drops candidates that fail the profile's size, age group
// or required-tag constraints. Comparisons are case-insensitive; an empty
// candidate field never satisfies a non-empty whitelist.
func applyHardFilters(candidates []pet.Candidate, p *profile.AdopterProfile) []pet.Candidate {
	if p == nil {
		return candidates
	}

	sizes := toSet(p.Preferences.PreferredSizes)
	ages := toSet(p.Preferences.PreferredAgeGroups)
	required := toSet(p.Preferences.HardConstraints)
	if len(sizes) == 0 && len(ages) == 0 && len(required) == 0 {
		return candidates
	}

	out := make([]pet.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(sizes) > 0 {
			if _, ok := sizes[normalize(c.Size)]; !ok {
				continue
			}
		}
		if len(ages) > 0 {
			if _, ok := ages[normalize(c.AgeGroup)]; !ok {
				continue
			}
		}
		if len(required) > 0 && !hasAllTags(c.TemperamentTags, required) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// radiusFilter admits candidates whose organization lies within miles of
// center. Organizations without stored coordinates are never admitted. The
// bounding box is an optional cheap pre-check.
type radiusFilter struct {
	center geo.Point
	miles  float64
	box    *geo.BoundingBox
}

func (f *radiusFilter) apply(candidates []pet.Candidate) []pet.Candidate {
	out := make([]pet.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Organization.Coordinates == nil {
			continue
		}
		point := *c.Organization.Coordinates
		if f.box != nil && !f.box.Contains(point) {
			continue
		}
		if geo.Haversine(f.center, point) <= f.miles {
			out = append(out, c)
		}
	}
	return out
}

func removeExcluded(candidates []pet.Candidate, exclusions decision.Set) []pet.Candidate {
	if len(exclusions) == 0 {
		return candidates
	}
	out := make([]pet.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !exclusions.Contains(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// capByRecency keeps the limit most recently listed candidates.
func capByRecency(candidates []pet.Candidate, limit int) []pet.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	sorted := make([]pet.Candidate, len(candidates))
	copy(sorted, candidates)
	pet.SortByRecency(sorted)
	return sorted[:limit]
}

func hasAllTags(tags []string, required map[string]struct{}) bool {
	have := toSet(tags)
	for tag := range required {
		if _, ok := have[tag]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = normalize(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
