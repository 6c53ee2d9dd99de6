package risk

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRiskBackfillTotal         = "risk_backfill_total"
	MetricRiskBackfillErrors        = "risk_backfill_errors_total"
	MetricRiskBackfillDuration      = "risk_backfill_duration_seconds"
	MetricRiskLastBackfillTimestamp = "risk_last_backfill_timestamp"
	MetricRiskClassifiedCandidates  = "risk_classified_candidates"
)

// Metrics contains Prometheus metrics for risk backfill runs.
// All operations are thread-safe.
type Metrics struct {
	backfillTotal    prometheus.Counter
	backfillErrors   prometheus.Counter
	backfillDuration prometheus.Histogram
	lastBackfill     prometheus.Gauge
	classifiedByFlag *prometheus.GaugeVec
}

// NewMetrics creates backfill metrics. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		backfillTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRiskBackfillTotal,
			Help: "Total number of completed risk backfill runs",
		}),
		backfillErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRiskBackfillErrors,
			Help: "Total number of candidates that failed classification or persistence",
		}),
		backfillDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRiskBackfillDuration,
			Help:    "Histogram of risk backfill duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		lastBackfill: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricRiskLastBackfillTimestamp,
			Help: "Unix timestamp of the last completed risk backfill",
		}),
		classifiedByFlag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricRiskClassifiedCandidates,
			Help: "Number of active candidates carrying each risk flag after the last backfill",
		}, []string{"flag"}),
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
		m.backfillTotal,
		m.backfillErrors,
		m.backfillDuration,
		m.lastBackfill,
		m.classifiedByFlag,
	}
}

// IncBackfillTotal increments the completed runs counter.
func (m *Metrics) IncBackfillTotal() {
	m.backfillTotal.Inc()
}

// IncBackfillErrors increments the errors counter.
func (m *Metrics) IncBackfillErrors() {
	m.backfillErrors.Inc()
}

// ObserveBackfillDuration records a run duration sample.
func (m *Metrics) ObserveBackfillDuration(seconds float64) {
	m.backfillDuration.Observe(seconds)
}

// SetLastBackfillTimestamp sets the last completed run timestamp.
func (m *Metrics) SetLastBackfillTimestamp(timestamp float64) {
	m.lastBackfill.Set(timestamp)
}

// SetFlagCounts publishes per-flag totals from a run.
func (m *Metrics) SetFlagCounts(counts FlagCounts) {
	m.classifiedByFlag.WithLabelValues("long_stay").Set(float64(counts.LongStay))
	m.classifiedByFlag.WithLabelValues("senior").Set(float64(counts.Senior))
	m.classifiedByFlag.WithLabelValues("medical").Set(float64(counts.Medical))
	m.classifiedByFlag.WithLabelValues("overlooked_breed_group").Set(float64(counts.OverlookedBreedGroup))
	m.classifiedByFlag.WithLabelValues("recently_returned").Set(float64(counts.RecentlyReturned))
}
