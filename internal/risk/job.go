package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/adoptfeed/internal/jobs"
	"github.com/onnwee/adoptfeed/internal/pet"
)

// Store reads active candidates and persists their classification.
// pet.Repository satisfies it.
type Store interface {
	FetchActiveCandidates(ctx context.Context, limit int) ([]pet.Candidate, error)
	SaveRiskClassification(ctx context.Context, id string, risk pet.RiskClassification) error
}

// JobMetrics records run outcomes shared with other background jobs.
// *jobs.Metrics satisfies it.
type JobMetrics interface {
	RecordRun(jobType, status string, elapsed time.Duration)
	RecordError(jobType, errorType string)
}

// BackfillJobConfig configures the risk backfill job.
type BackfillJobConfig struct {
	// Interval is the duration between backfill runs.
	Interval time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
	// Classifier derives the flags; nil uses NewClassifier(0).
	Classifier *Classifier
	Logger     *slog.Logger
	Metrics    *Metrics
	JobMetrics JobMetrics

	// Now overrides the clock.
	Now func() time.Time
}

// Backfill defaults.
const (
	DefaultBackfillInterval = time.Hour
	DefaultBackfillTimeout  = 5 * time.Minute
)

// FlagCounts tallies flags across a run.
type FlagCounts struct {
	LongStay             int
	Senior               int
	Medical              int
	OverlookedBreedGroup int
	RecentlyReturned     int
}

func (f *FlagCounts) add(rc pet.RiskClassification) {
	if rc.LongStay {
		f.LongStay++
	}
	if rc.Senior {
		f.Senior++
	}
	if rc.Medical {
		f.Medical++
	}
	if rc.OverlookedBreedGroup {
		f.OverlookedBreedGroup++
	}
	if rc.RecentlyReturned {
		f.RecentlyReturned++
	}
}

// Result summarizes a backfill run.
type Result struct {
	Processed int
	Updated   int
	Unchanged int
	Failed    int
	Flags     FlagCounts
	Duration  time.Duration
}

// BackfillJob periodically reclassifies every active candidate.
type BackfillJob struct {
	config BackfillJobConfig
	store  Store

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBackfillJob creates a backfill job over store.
func NewBackfillJob(config BackfillJobConfig, store Store) *BackfillJob {
	if config.Interval <= 0 {
		config.Interval = DefaultBackfillInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultBackfillTimeout
	}
	if config.Classifier == nil {
		config.Classifier = NewClassifier(0)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &BackfillJob{config: config, store: store}
}

// Start runs a backfill immediately and then once per interval in a
// background goroutine. Calling Start on a running job is a no-op.
func (j *BackfillJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the job to stop and waits for the current run to finish.
func (j *BackfillJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *BackfillJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *BackfillJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("risk backfill job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("risk backfill job stopping due to stop signal")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *BackfillJob) runLogged(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil {
		j.config.Logger.Error("risk backfill failed", "error", err)
	}
}

// RunOnce classifies every active candidate and saves flags that changed.
// Per-candidate save failures are counted and skipped; a fetch failure or
// timeout aborts the run and returns the partial result.
func (j *BackfillJob) RunOnce(parentCtx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	var result Result

	finish := func(status string) {
		result.Duration = time.Since(start)
		if j.config.Metrics != nil {
			j.config.Metrics.ObserveBackfillDuration(result.Duration.Seconds())
		}
		if j.config.JobMetrics != nil {
			j.config.JobMetrics.RecordRun(jobs.JobTypeRiskBackfill, status, result.Duration)
		}
	}

	candidates, err := j.store.FetchActiveCandidates(ctx, 0)
	if err != nil {
		j.recordError(jobs.ErrorTypeFetch)
		finish(jobs.StatusFailure)
		return result, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	now := j.config.Now().UTC()
	for i, c := range candidates {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("risk backfill timeout exceeded",
				"processed", i,
				"total", len(candidates),
				"timeout", j.config.Timeout)
			j.recordError(jobs.ErrorTypeTimeout)
			finish(jobs.StatusFailure)
			return result, fmt.Errorf("backfill interrupted after %d of %d candidates: %w", i, len(candidates), ctx.Err())
		default:
		}

		rc := j.config.Classifier.Classify(c, now)
		result.Processed++
		result.Flags.add(rc)

		if c.Risk != nil && SameFlags(*c.Risk, rc) {
			result.Unchanged++
			continue
		}
		if err := j.store.SaveRiskClassification(ctx, c.ID, rc); err != nil {
			j.config.Logger.Error("failed to save risk classification",
				"pet_id", c.ID,
				"error", err)
			j.recordError(jobs.ErrorTypeSave)
			result.Failed++
			continue
		}
		result.Updated++
	}

	status := jobs.StatusSuccess
	if result.Failed > 0 {
		status = jobs.StatusFailure
	}
	finish(status)

	if j.config.Metrics != nil {
		j.config.Metrics.IncBackfillTotal()
		j.config.Metrics.SetLastBackfillTimestamp(float64(now.Unix()))
		j.config.Metrics.SetFlagCounts(result.Flags)
	}

	j.config.Logger.Info("risk backfill completed",
		"duration_seconds", result.Duration.Seconds(),
		"processed", result.Processed,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"long_stay", result.Flags.LongStay,
		"senior", result.Flags.Senior,
		"medical", result.Flags.Medical)

	return result, nil
}

func (j *BackfillJob) recordError(errorType string) {
	if j.config.Metrics != nil {
		j.config.Metrics.IncBackfillErrors()
	}
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.RecordError(jobs.JobTypeRiskBackfill, errorType)
	}
}
