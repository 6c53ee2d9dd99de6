package pet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// MetricBreakerState is the gauge tracking the repository breaker state.
const MetricBreakerState = "candidate_repository_breaker_state"

// BreakerConfig tunes the circuit breaker around candidate fetches.
type BreakerConfig struct {
	Name string

	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32

	// Interval resets failure counts while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "candidate-repository",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerRepository wraps a Repository with a circuit breaker on reads.
// While the breaker is open, reads fail fast with ErrRepositoryUnavailable.
// Writes pass straight through.
type BreakerRepository struct {
	next       Repository
	fetchCB    *gobreaker.CircuitBreaker[[]Candidate]
	stateGauge prometheus.Gauge
	logger     *slog.Logger
}

// NewBreakerRepository wraps next. A nil logger falls back to slog.Default().
func NewBreakerRepository(next Repository, cfg BreakerConfig, logger *slog.Logger) *BreakerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}

	r := &BreakerRepository{
		next:   next,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricBreakerState,
			Help: "Candidate repository circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
	}

	threshold := cfg.ConsecutiveFailures
	r.fetchCB = gobreaker.NewCircuitBreaker[[]Candidate](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Cancelled requests say nothing about repository health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.stateGauge.Set(float64(to))
			logger.Warn("candidate repository breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	})
	return r
}

// FetchActiveCandidates fetches through the breaker.
func (r *BreakerRepository) FetchActiveCandidates(ctx context.Context, limit int) ([]Candidate, error) {
	candidates, err := r.fetchCB.Execute(func() ([]Candidate, error) {
		return r.next.FetchActiveCandidates(ctx, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
	return candidates, nil
}

// GetCandidate delegates to the wrapped repository.
func (r *BreakerRepository) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	return r.next.GetCandidate(ctx, id)
}

// SaveRiskClassification delegates to the wrapped repository.
func (r *BreakerRepository) SaveRiskClassification(ctx context.Context, id string, risk RiskClassification) error {
	return r.next.SaveRiskClassification(ctx, id, risk)
}

// State returns the current breaker state.
func (r *BreakerRepository) State() gobreaker.State {
	return r.fetchCB.State()
}

// Collectors returns the breaker's Prometheus collectors.
func (r *BreakerRepository) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.stateGauge}
}
