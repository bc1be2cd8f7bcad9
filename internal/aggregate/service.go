package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

// DefaultCacheTTL is how long a result is reused for an identical request.
const DefaultCacheTTL = 10 * time.Minute

// ServiceConfig holds configuration for creating a Service.
type ServiceConfig struct {
	Pipeline *Pipeline

	// Runs receives an audit record of every fresh run. Optional.
	Runs runlog.Repository

	// CacheTTL bounds result reuse. Negative disables the memo.
	// Default: 10 minutes
	CacheTTL time.Duration

	Logger zerolog.Logger
}

// Options control a single Aggregate call.
type Options struct {
	// Force bypasses the memo and always runs the pipeline.
	Force bool

	// Trigger is recorded in the run log.
	Trigger runlog.Trigger
}

// Service memoizes pipeline results in memory and records runs.
// Memoized results never outlive the process.
type Service struct {
	pipeline *Pipeline
	runs     runlog.Repository
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	cache   map[string]cacheEntry
	lastRun *Result
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// NewService creates a new aggregation service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	return &Service{
		pipeline: cfg.Pipeline,
		runs:     cfg.Runs,
		ttl:      ttl,
		logger:   cfg.Logger,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// Aggregate returns the result for req, reusing a memoized result for an
// identical request unless opts.Force is set.
func (s *Service) Aggregate(ctx context.Context, req Request, opts Options) *Result {
	key := req.Key()

	if !opts.Force {
		if cached := s.lookup(key); cached != nil {
			s.logger.Debug().Str("run_id", cached.RunID).Msg("serving memoized aggregation result")
			return cached
		}
	}

	result := s.pipeline.Run(ctx, req)

	s.mu.Lock()
	s.lastRun = result
	if s.ttl > 0 && !result.Cancelled {
		s.cache[key] = cacheEntry{result: result, expiresAt: s.now().Add(s.ttl)}
	}
	s.mu.Unlock()

	s.record(ctx, result, opts.Trigger)
	return result
}

func (s *Service) lookup(key string) *Result {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()

	if !ok {
		return nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.cache, key)
		s.mu.Unlock()
		return nil
	}

	cpy := *entry.result
	cpy.Cached = true
	return &cpy
}

func (s *Service) record(ctx context.Context, result *Result, trigger runlog.Trigger) {
	if s.runs == nil {
		return
	}
	if trigger == "" {
		trigger = runlog.TriggerAPI
	}

	// A cancelled request context must not lose the audit record.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.runs.Create(ctx, RunRecord(result, trigger)); err != nil {
		s.logger.Error().Err(err).Str("run_id", result.RunID).Msg("failed to record aggregation run")
	}
}

// LastRun returns the most recent fresh result, or nil before the first run.
func (s *Service) LastRun() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Purge drops every memoized result.
func (s *Service) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cacheEntry)
}

// RunRecord converts a result into its run log entry.
func RunRecord(result *Result, trigger runlog.Trigger) *runlog.Run {
	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, w.Message)
	}

	return &runlog.Run{
		ID:           result.RunID,
		Trigger:      trigger,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		ZipCodes:     result.Request.ZipCodes(),
		StartDate:    airquality.FormatDate(result.Request.Start),
		EndDate:      airquality.FormatDate(result.Request.End),
		Observations: len(result.Observations),
		Fetches:      result.Fetches,
		Failed:       result.Failed(),
		Abandoned:    result.AbandonedZipCodes(),
		Warnings:     warnings,
	}
}
