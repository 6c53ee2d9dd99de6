package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names exported by the HTTP middleware.
const (
	MetricRateLimitChecks       = "rate_limit_checks_total"
	MetricRateLimitStoreErrors  = "rate_limit_store_errors_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

// Rate limit check outcomes.
const (
	RateLimitAllowed = "allowed"
	RateLimitBlocked = "blocked"
)

// httpLabels are shared by every per-request collector. route is the
// templated path, never the raw URL.
var httpLabels = []string{"method", "route", "status"}

// Metrics holds the collectors written by HTTPMetrics, RateLimiter and the
// Redis rate limit store.
type Metrics struct {
	rateLimitChecks      *prometheus.CounterVec
	rateLimitStoreErrors prometheus.Counter
	requestDuration      *prometheus.HistogramVec
	requestsTotal        *prometheus.CounterVec
	responseSize         *prometheus.HistogramVec
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		rateLimitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitChecks,
			Help: "Rate limit decisions by limiter scope, key type and outcome",
		}, []string{"scope", "key_type", "outcome"}),
		rateLimitStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitStoreErrors,
			Help: "Rate limit store failures that let the request through",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: MetricHTTPRequestDuration,
			Help: "HTTP request latency",
			// Feed pages are computed in memory; most land well under 250ms.
			Buckets: []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, httpLabels),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "HTTP requests served",
		}, httpLabels),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPResponseSizeBytes,
			Help:    "HTTP response body size",
			Buckets: prometheus.ExponentialBuckets(128, 4, 7),
		}, httpLabels),
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
	return []prometheus.Collector{
		m.rateLimitChecks,
		m.rateLimitStoreErrors,
		m.requestDuration,
		m.requestsTotal,
		m.responseSize,
	}
}

// ObserveRateLimit counts one limiter decision.
func (m *Metrics) ObserveRateLimit(scope, keyType string, allowed bool) {
	outcome := RateLimitAllowed
	if !allowed {
		outcome = RateLimitBlocked
	}
	m.rateLimitChecks.WithLabelValues(scope, keyType, outcome).Inc()
}

// IncRateLimitStoreErrors counts a fail-open store error.
func (m *Metrics) IncRateLimitStoreErrors() {
	m.rateLimitStoreErrors.Inc()
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64, responseBytes int64) {
	labels := prometheus.Labels{"method": method, "route": route, "status": status}
	m.requestDuration.With(labels).Observe(seconds)
	m.requestsTotal.With(labels).Inc()
	m.responseSize.With(labels).Observe(float64(responseBytes))
}
