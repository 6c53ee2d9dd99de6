package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricFeedRequests       = "feed_requests_total"
	MetricFeedDuration       = "feed_request_duration_seconds"
	MetricFeedPoolSize       = "feed_candidate_pool_size"
	MetricFeedPageBoosted    = "feed_page_boosted_items"
	MetricFeedGeoFilterTotal = "feed_geo_filter_applied_total"
)

// Outcome labels for feed requests.
const (
	OutcomeOK            = "ok"
	OutcomeInvalidCursor = "invalid_cursor"
	OutcomeUnavailable   = "unavailable"
	OutcomeError         = "error"
)

// Metrics contains Prometheus metrics for feed computation.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      prometheus.Histogram
	poolSize      prometheus.Histogram
	pageBoosted   prometheus.Histogram
	geoFilterUsed prometheus.Counter
}

// NewMetrics creates feed metrics. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFeedRequests,
				Help: "Total number of feed page computations by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedDuration,
			Help:    "Histogram of feed page computation time in seconds, including repository fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		poolSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedPoolSize,
			Help:    "Number of ranked candidates after filtering and capping",
			Buckets: []float64{0, 10, 50, 100, 250, 500},
		}),
		pageBoosted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricFeedPageBoosted,
			Help:    "Number of boosted items per served page",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 30},
		}),
		geoFilterUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricFeedGeoFilterTotal,
			Help: "Total number of feed pages computed with a radius filter",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.duration,
		m.poolSize,
		m.pageBoosted,
		m.geoFilterUsed,
	}
}

// IncRequest counts a feed computation with the given outcome.
func (m *Metrics) IncRequest(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a feed computation duration sample.
func (m *Metrics) ObserveDuration(seconds float64) {
	m.duration.Observe(seconds)
}

// ObservePage records pool and page statistics.
func (m *Metrics) ObservePage(stats Stats) {
	m.poolSize.Observe(float64(stats.Ranked))
	m.pageBoosted.Observe(float64(stats.Boosted))
	if stats.GeoApplied {
		m.geoFilterUsed.Inc()
	}
}
