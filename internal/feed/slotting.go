package feed

import (
	"math"

	"github.com/onnwee/adoptfeed/internal/ranking"
)

// DefaultBoostedRatio is the largest share of a page boosted candidates may
// take while non-boosted candidates remain.
const DefaultBoostedRatio = 0.60

// Slotter bounds the share of boosted candidates per page without swapping
// the relative order of any two selected items.
type Slotter struct {
	ratio float64
}

// NewSlotter creates a slotter. A ratio outside (0, 1] uses
// DefaultBoostedRatio.
func NewSlotter(ratio float64) *Slotter {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultBoostedRatio
	}
	return &Slotter{ratio: ratio}
}

// SelectPage picks up to pageSize items from ranked, which must be in global
// order. Boosted items beyond the cap are skipped in favour of later normal
// items; if the page is still short, the skipped items fill it in order.
// Selected items are returned in their input order. The result depends only
// on the inputs.
func (s *Slotter) SelectPage(ranked []ranking.RankedCandidate, pageSize int) []ranking.RankedCandidate {
	selected := s.selectIndices(ranked, pageSize)
	page := make([]ranking.RankedCandidate, 0, len(selected))
	for i, ok := range selected {
		if ok {
			page = append(page, ranked[i])
		}
	}
	return page
}

// DiversifyOrder rearranges ranked into pages of window items, each chosen
// by SelectPage from what the previous pages left. Items skipped by one page
// lead the next. The result is a permutation of ranked.
func (s *Slotter) DiversifyOrder(ranked []ranking.RankedCandidate, window int) []ranking.RankedCandidate {
	out := make([]ranking.RankedCandidate, 0, len(ranked))
	if window <= 0 {
		return append(out, ranked...)
	}

	remaining := ranked
	for len(remaining) > 0 {
		selected := s.selectIndices(remaining, window)

		rest := make([]ranking.RankedCandidate, 0, len(remaining))
		for i, ok := range selected {
			if ok {
				out = append(out, remaining[i])
			} else {
				rest = append(rest, remaining[i])
			}
		}
		remaining = rest
	}
	return out
}

// MaxBoosted returns the boosted cap for a page drawn from a pool with the
// given group sizes.
func (s *Slotter) MaxBoosted(pageSize, boostedCount, normalCount int) int {
	maxBoosted := int(math.Ceil(float64(pageSize) * s.ratio))
	if maxBoosted < 1 {
		maxBoosted = 1
	}
	if maxBoosted > boostedCount {
		maxBoosted = boostedCount
	}
	minNormal := min(1, normalCount)
	return min(maxBoosted, pageSize-minNormal)
}

func (s *Slotter) selectIndices(ranked []ranking.RankedCandidate, pageSize int) []bool {
	selected := make([]bool, len(ranked))
	if pageSize <= 0 || len(ranked) == 0 {
		return selected
	}

	boostedCount := 0
	for _, rc := range ranked {
		if rc.Boosted() {
			boostedCount++
		}
	}
	normalCount := len(ranked) - boostedCount

	if boostedCount == 0 || normalCount == 0 {
		for i := 0; i < len(ranked) && i < pageSize; i++ {
			selected[i] = true
		}
		return selected
	}

	maxBoosted := s.MaxBoosted(pageSize, boostedCount, normalCount)

	taken, boostedTaken := 0, 0
	for i := 0; i < len(ranked) && taken < pageSize; i++ {
		if ranked[i].Boosted() {
			if boostedTaken >= maxBoosted {
				continue
			}
			boostedTaken++
		}
		selected[i] = true
		taken++
	}

	for i := 0; i < len(ranked) && taken < pageSize; i++ {
		if !selected[i] {
			selected[i] = true
			taken++
		}
	}
	return selected
}
