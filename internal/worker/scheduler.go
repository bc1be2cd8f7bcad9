package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs a RefreshJob on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *RefreshJob
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler for job. Runs never overlap.
func NewScheduler(job *RefreshJob, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		job:       job,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the refresh job, runs it once immediately and starts the
// underlying scheduler. Runs stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	interval := s.job.Config().Interval

	_, err := s.scheduler.Every(interval).Do(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.job.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	s.logger.Info().Dur("interval", interval).Msg("refresh scheduled")
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// NextRun returns when the refresh job runs next.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}
