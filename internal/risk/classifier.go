// Package risk classifies adoptable animals that need extra visibility and
// keeps their stored classification current.
package risk

import (
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/adoptfeed/internal/pet"
)

// DefaultLongStayDays is the listing age after which a candidate counts as a
// long stay.
const DefaultLongStayDays = 21

var medicalKeywords = []string{
	"diabetes",
	"seizure",
	"blind",
	"deaf",
	"amput",
	"special needs",
	"medical",
	"needs medication",
	"wheelchair",
	"heartworm",
	"injury",
	"surgery",
}

var medicalPattern = compileKeywords(medicalKeywords)

func compileKeywords(keywords []string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
}

// Classifier derives risk flags from candidate data. It is conservative:
// flags it cannot determine stay false.
type Classifier struct {
	longStay time.Duration
}

// NewClassifier creates a classifier. longStayDays <= 0 uses
// DefaultLongStayDays.
func NewClassifier(longStayDays int) *Classifier {
	if longStayDays <= 0 {
		longStayDays = DefaultLongStayDays
	}
	return &Classifier{longStay: time.Duration(longStayDays) * 24 * time.Hour}
}

// Classify returns the flags for c as of now. Breed group and return history
// are not derivable from listing data, so those flags are carried over from
// the existing classification when one is present.
func (cl *Classifier) Classify(c pet.Candidate, now time.Time) pet.RiskClassification {
	rc := pet.RiskClassification{
		LongStay:  cl.isLongStay(c, now),
		Senior:    strings.EqualFold(c.AgeGroup, pet.AgeGroupSenior),
		Medical:   isMedical(c),
		UpdatedAt: now,
	}
	if c.Risk != nil {
		rc.OverlookedBreedGroup = c.Risk.OverlookedBreedGroup
		rc.RecentlyReturned = c.Risk.RecentlyReturned
	}
	return rc
}

func (cl *Classifier) isLongStay(c pet.Candidate, now time.Time) bool {
	if c.ListedAt == nil {
		return false
	}
	return now.Sub(*c.ListedAt) >= cl.longStay
}

func isMedical(c pet.Candidate) bool {
	text := c.RawDescription + "\n" + c.AIDescription
	if strings.TrimSpace(text) == "" {
		return false
	}
	return medicalPattern.MatchString(text)
}

// SameFlags reports whether a and b carry identical flags, ignoring UpdatedAt.
func SameFlags(a, b pet.RiskClassification) bool {
	return a.LongStay == b.LongStay &&
		a.Senior == b.Senior &&
		a.Medical == b.Medical &&
		a.OverlookedBreedGroup == b.OverlookedBreedGroup &&
		a.RecentlyReturned == b.RecentlyReturned
}
