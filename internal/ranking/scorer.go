package ranking

import (
	"sort"
	"strings"

	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
)

// Reason tags explaining why a candidate was boosted.
const (
	ReasonLongStay          = "LONG_STAY_BOOST"
	ReasonSenior            = "SENIOR_BOOST"
	ReasonMedical           = "MEDICAL_BOOST"
	ReasonOverlookedGroup   = "OVERLOOKED_GROUP_BOOST"
	ReasonRecentlyReturned  = "RECENTLY_RETURNED_BOOST"
	ReasonProfileActivity   = "PROFILE_ACTIVITY_MATCH"
	ReasonProfileHome       = "PROFILE_HOME_MATCH"
	ReasonProfileExperience = "PROFILE_EXPERIENCE_MATCH"
)

const secondsPerDay = 86400.0

var (
	activityKeywords   = []string{"active", "energetic"}
	experienceKeywords = []string{"gentle", "easy"}
)

// RankedCandidate is a candidate with its computed score and reasons.
type RankedCandidate struct {
	Candidate pet.Candidate
	Score     float64
	Reasons   []string
}

// Boosted reports whether any boost applied to the candidate.
func (rc RankedCandidate) Boosted() bool {
	return IsBoosted(rc.Reasons)
}

// IsBoosted reports whether reasons is non-empty. Profile-only matches count
// as boosted.
func IsBoosted(reasons []string) bool {
	return len(reasons) > 0
}

// Less reports whether a sorts before b: higher score first, then higher ID.
func Less(a, b RankedCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Candidate.ID > b.Candidate.ID
}

// Scorer computes deterministic relevance scores.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer. Nil weights use DefaultWeights.
func NewScorer(w *Weights) *Scorer {
	if w == nil {
		w = DefaultWeights()
	}
	return &Scorer{weights: *w}
}

// Weights returns a copy of the scorer's weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns the candidate's score and the reasons for any boosts.
// A nil profile skips profile matching.
func (s *Scorer) Score(c *pet.Candidate, p *profile.AdopterProfile) (float64, []string) {
	score := 0.0
	if c.ListedAt != nil {
		score = float64(c.ListedAt.UnixNano()) / 1e9 / secondsPerDay
	}

	var reasons []string

	if r := c.Risk; r != nil {
		w := s.weights.Risk
		boost := 0.0
		if r.LongStay {
			boost += w.LongStay
			reasons = append(reasons, ReasonLongStay)
		}
		if r.Senior {
			boost += w.Senior
			reasons = append(reasons, ReasonSenior)
		}
		if r.Medical {
			boost += w.Medical
			reasons = append(reasons, ReasonMedical)
		}
		if r.OverlookedBreedGroup {
			boost += w.OverlookedGroup
			reasons = append(reasons, ReasonOverlookedGroup)
		}
		if r.RecentlyReturned {
			boost += w.RecentlyReturned
			reasons = append(reasons, ReasonRecentlyReturned)
		}
		// Reasons are kept even when the cap absorbs their weight.
		if boost > s.weights.RiskCap {
			boost = s.weights.RiskCap
		}
		score += boost
	}

	if p != nil {
		w := s.weights.Profile
		desc := strings.ToLower(c.Description())

		if upper(p.ActivityLevel) == profile.ActivityHigh && containsAny(desc, activityKeywords) {
			score += w.ActivityMatch
			reasons = append(reasons, ReasonProfileActivity)
		}
		if upper(p.HomeType) == profile.HomeApartment {
			if size := upper(c.Size); size == pet.SizeSmall || size == pet.SizeMedium {
				score += w.HomeMatch
				reasons = append(reasons, ReasonProfileHome)
			}
		}
		if upper(p.ExperienceLevel) == profile.ExperienceNew && containsAny(desc, experienceKeywords) {
			score += w.ExperienceMatch
			reasons = append(reasons, ReasonProfileExperience)
		}
	}

	return score, reasons
}

// Rank scores every candidate and returns them in global order.
func (s *Scorer) Rank(candidates []pet.Candidate, p *profile.AdopterProfile) []RankedCandidate {
	ranked := make([]RankedCandidate, len(candidates))
	for i := range candidates {
		score, reasons := s.Score(&candidates[i], p)
		ranked[i] = RankedCandidate{Candidate: candidates[i], Score: score, Reasons: reasons}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	return ranked
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
