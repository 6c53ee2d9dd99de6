// Package feed builds the personalized, paginated feed of adoptable animals:
// filtering, scoring, diversity slotting and cursor pagination.
package feed

import (
	"log/slog"

	"github.com/onnwee/adoptfeed/internal/decision"
	"github.com/onnwee/adoptfeed/internal/geo"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
	"github.com/onnwee/adoptfeed/internal/ranking"
)

// Feed defaults.
const (
	DefaultLimit         = 20
	MaxLimit             = 50
	DefaultMaxCandidates = 500
)

// Options tunes the engine. Zero values use the package defaults.
type Options struct {
	DefaultLimit  int
	MaxLimit      int
	MaxCandidates int
	BoostedRatio  float64

	// BoundingBoxPrefilter enables the lat/lon box check before haversine.
	BoundingBoxPrefilter bool
}

// Page is one page of the feed.
type Page struct {
	Items []ranking.RankedCandidate

	// NextCursor is empty when there are no further pages.
	NextCursor string

	// Stats describe how the candidate pool was narrowed.
	Stats Stats
}

// Stats records pool sizes at each pipeline stage.
type Stats struct {
	Input         int
	AfterFilters  int
	AfterGeo      int
	AfterExcluded int
	Ranked        int
	Boosted       int
	GeoApplied    bool
}

// HasMore reports whether a next cursor was issued.
func (p *Page) HasMore() bool {
	return p.NextCursor != ""
}

// Engine computes feed pages. GetFeed is a pure function of its arguments
// apart from the lazily loaded centroid table.
type Engine struct {
	scorer    *ranking.Scorer
	slotter   *Slotter
	centroids *geo.CentroidLookup
	opts      Options
	logger    *slog.Logger
}

// NewEngine creates an engine. centroids may be nil, which disables radius
// filtering.
func NewEngine(scorer *ranking.Scorer, centroids *geo.CentroidLookup, opts Options, logger *slog.Logger) *Engine {
	if scorer == nil {
		scorer = ranking.NewScorer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Engine{
		scorer:    scorer,
		slotter:   NewSlotter(opts.BoostedRatio),
		centroids: centroids,
		opts:      opts,
		logger:    logger,
	}
}

// ClampLimit maps a requested page size into [1, MaxLimit]. Zero selects the
// default; negative values become 1.
func (e *Engine) ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return e.opts.DefaultLimit
	case limit < 1:
		return 1
	case limit > e.opts.MaxLimit:
		return e.opts.MaxLimit
	default:
		return limit
	}
}

// GetFeed returns the page following cursor (the first page when cursor is
// empty). p and exclusions may be nil.
//
// The page order is the diversity-aware order of the whole capped pool, cut
// into windows of limit items. A cursor names the last item served; when
// that item is still present the next page starts right after it, so items
// deferred by the boosted cap are served on a later page rather than lost.
// When the item is gone the pool has changed and the remainder is every
// ranked item strictly after the cursor's (score, id).
//
// The order is built before exclusions are applied, so decisions recorded
// between pages do not move items ahead of the cursor. Excluded ids are
// dropped from the remainder.
func (e *Engine) GetFeed(candidates []pet.Candidate, p *profile.AdopterProfile, exclusions decision.Set, cursor string, limit int) (*Page, error) {
	limit = e.ClampLimit(limit)

	var after *Cursor
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = &c
	}

	stats := Stats{Input: len(candidates)}

	pool := applyHardFilters(candidates, p)
	stats.AfterFilters = len(pool)

	if rf := e.radiusFilterFor(p); rf != nil {
		pool = rf.apply(pool)
		stats.GeoApplied = true
	}
	stats.AfterGeo = len(pool)
	stats.AfterExcluded = len(removeExcluded(pool, exclusions))

	pool = capByRecency(pool, e.opts.MaxCandidates)

	global := e.scorer.Rank(pool, p)
	stats.Ranked = len(global)

	order := e.slotter.DiversifyOrder(global, limit)
	remainder := order
	if after != nil {
		remainder = e.after(order, global, *after, limit)
	}

	items := make([]ranking.RankedCandidate, 0, limit)
	for _, rc := range remainder {
		if len(items) == limit {
			break
		}
		if exclusions.Contains(rc.Candidate.ID) {
			continue
		}
		items = append(items, rc)
		if rc.Boosted() {
			stats.Boosted++
		}
	}

	page := &Page{Items: items, Stats: stats}
	if len(items) == limit {
		last := items[len(items)-1]
		page.NextCursor = EncodeCursor(last.Score, last.Candidate.ID)
	}
	return page, nil
}

// after returns the part of the feed order that follows c.
func (e *Engine) after(order, global []ranking.RankedCandidate, c Cursor, limit int) []ranking.RankedCandidate {
	for i, rc := range order {
		if c.Matches(rc) {
			return order[i+1:]
		}
	}

	rest := make([]ranking.RankedCandidate, 0, len(global))
	for _, rc := range global {
		if c.Before(rc) {
			rest = append(rest, rc)
		}
	}
	e.logger.Debug("cursor anchor not in pool, falling back to keyset order",
		"cursor_id", c.ID,
		"remaining", len(rest))
	return e.slotter.DiversifyOrder(rest, limit)
}

// radiusFilterFor returns the radius filter for p, or nil when none applies.
func (e *Engine) radiusFilterFor(p *profile.AdopterProfile) *radiusFilter {
	if p == nil || e.centroids == nil {
		return nil
	}
	miles := p.MaxDistance()
	if miles <= 0 {
		return nil
	}
	code, ok := geo.NormalizePostalCode(p.HomePostalCode)
	if !ok {
		return nil
	}
	center, ok := e.centroids.Lookup(code)
	if !ok {
		return nil
	}

	rf := &radiusFilter{center: center, miles: miles}
	if e.opts.BoundingBoxPrefilter {
		box := geo.BoundingBoxAround(center, miles)
		rf.box = &box
	}
	return rf
}
