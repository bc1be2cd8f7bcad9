package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

// ErrNoService is returned when a RefreshJob has no aggregate service.
var ErrNoService = errors.New("refresh job has no aggregate service")

// RefreshJob runs the aggregation pipeline for the configured selection so
// the run log and the in-memory memo stay warm.
type RefreshJob struct {
	config  RefreshConfig
	service *aggregate.Service
	logger  zerolog.Logger
	now     func() time.Time

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns     int64
	FailedRuns    int64
	Observations  int64
	Fetches       int64
	FailedFetches int64
	Abandoned     int64

	LastRunID       string
	LastRefreshAt   time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Service *aggregate.Service
	Logger  zerolog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &RefreshJob{
		config:  cfg.Config.withDefaults(),
		service: cfg.Service,
		logger:  cfg.Logger.With().Str("job", "refresh").Logger(),
		now:     now,
		metrics: &RefreshMetrics{},
	}
}

// Config returns the effective configuration.
func (j *RefreshJob) Config() RefreshConfig {
	return j.config
}

// Run executes the refresh for the configured selection and window.
func (j *RefreshJob) Run(ctx context.Context) (*aggregate.Result, error) {
	req, err := j.config.Request(j.now())
	if err != nil {
		j.recordFailure()
		return nil, err
	}
	return j.RunRequest(ctx, req)
}

// RunRequest executes one forced run of req under the job timeout. The
// result is returned with a *RunFailedError when no upstream call succeeded.
func (j *RefreshJob) RunRequest(ctx context.Context, req aggregate.Request) (*aggregate.Result, error) {
	if j.service == nil {
		return nil, ErrNoService
	}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	j.logger.Info().
		Strs("zip_codes", req.ZipCodes()).
		Str("start", airquality.FormatDate(req.Start)).
		Str("end", airquality.FormatDate(req.End)).
		Msg("starting refresh")

	result := j.service.Aggregate(runCtx, req, aggregate.Options{Force: true, Trigger: runlog.TriggerWorker})
	j.updateMetrics(result)

	j.logger.Info().
		Str("run_id", result.RunID).
		Dur("duration", result.Duration()).
		Int("observations", len(result.Observations)).
		Int("fetches", result.Fetches).
		Int("failed", result.Failed()).
		Strs("abandoned", result.AbandonedZipCodes()).
		Int("warnings", len(result.Warnings)).
		Msg("refresh completed")

	if allFailed(result) {
		return result, &RunFailedError{RunID: result.RunID, Failed: result.Failed()}
	}
	return result, nil
}

// allFailed reports whether no upstream call of the run succeeded.
func allFailed(result *aggregate.Result) bool {
	succeeded := result.Fetches - result.Failed() - len(result.AbandonedZipCodes())
	return result.Fetches > 0 && succeeded <= 0
}

// RunFailedError reports a refresh in which no upstream call succeeded.
type RunFailedError struct {
	RunID  string
	Failed int
}

func (e *RunFailedError) Error() string {
	return "refresh " + e.RunID + ": every upstream fetch failed"
}

func (j *RefreshJob) recordFailure() {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()
	j.metrics.TotalRuns++
	j.metrics.FailedRuns++
}

func (j *RefreshJob) updateMetrics(result *aggregate.Result) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if allFailed(result) {
		j.metrics.FailedRuns++
	}
	j.metrics.Observations += int64(len(result.Observations))
	j.metrics.Fetches += int64(result.Fetches)
	j.metrics.FailedFetches += int64(result.Failed())
	j.metrics.Abandoned += int64(len(result.AbandonedZipCodes()))
	j.metrics.LastRunID = result.RunID
	j.metrics.LastRefreshAt = result.FinishedAt
	j.metrics.LastRunDuration = result.Duration()
	j.metrics.TotalDuration += result.Duration()
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		FailedRuns:      j.metrics.FailedRuns,
		Observations:    j.metrics.Observations,
		Fetches:         j.metrics.Fetches,
		FailedFetches:   j.metrics.FailedFetches,
		Abandoned:       j.metrics.Abandoned,
		LastRunID:       j.metrics.LastRunID,
		LastRefreshAt:   j.metrics.LastRefreshAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"failed_runs":       m.FailedRuns,
		"observations":      m.Observations,
		"fetches":           m.Fetches,
		"failed_fetches":    m.FailedFetches,
		"abandoned":         m.Abandoned,
		"last_run_id":       m.LastRunID,
		"last_refresh_at":   m.LastRefreshAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
