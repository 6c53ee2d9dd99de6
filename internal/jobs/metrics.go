// Package jobs records run outcomes for the service's periodic background
// jobs under a single set of job_type-labelled series.
package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricRunsTotal          = "background_job_runs_total"
	MetricRunDuration        = "background_job_run_duration_seconds"
	MetricErrorsTotal        = "background_job_errors_total"
	MetricLastSuccessSeconds = "background_job_last_success_timestamp_seconds"
)

// JobTypeRiskBackfill labels the risk classification backfill.
const JobTypeRiskBackfill = "risk_backfill"

// Run outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Error kinds counted by RecordError.
const (
	ErrorTypeTimeout = "timeout"
	ErrorTypeFetch   = "fetch_error"
	ErrorTypeSave    = "save_error"
)

// Metrics is safe for concurrent use.
type Metrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRunsTotal,
			Help: "Background job runs by job type and outcome",
		}, []string{"job_type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: MetricRunDuration,
			Help: "Background job run time",
			// Backfills scan every active candidate; large shelters take tens of seconds.
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job_type"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricErrorsTotal,
			Help: "Background job errors by job type and error kind",
		}, []string{"job_type", "error_type"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricLastSuccessSeconds,
			Help: "Unix time of the last successful run",
		}, []string{"job_type"}),
		now: time.Now,
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns the underlying collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.duration, m.errors, m.lastSuccess}
}

// RecordRun counts a finished run and its duration. Successful runs also
// move the last-success timestamp.
func (m *Metrics) RecordRun(jobType, status string, elapsed time.Duration) {
	m.runs.WithLabelValues(jobType, status).Inc()
	m.duration.WithLabelValues(jobType).Observe(elapsed.Seconds())
	if status == StatusSuccess {
		m.lastSuccess.WithLabelValues(jobType).Set(float64(m.now().Unix()))
	}
}

// RecordError counts one error of errorType inside a run.
func (m *Metrics) RecordError(jobType, errorType string) {
	m.errors.WithLabelValues(jobType, errorType).Inc()
}
