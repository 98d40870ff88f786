// Package scheduler re-runs the dashboard mount fetches on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// RefreshFunc performs one refresh. Its error is logged, never retried.
type RefreshFunc func(ctx context.Context) error

// Scheduler periodically calls a RefreshFunc.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresh   RefreshFunc
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler that calls refresh every interval.
func New(interval time.Duration, refresh RefreshFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresh:   refresh,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the job and starts the underlying scheduler. The first run
// happens one interval from now; the caller has already mounted. A run that
// overlaps the previous one is skipped. ctx is passed to every run and
// stops the scheduler when done.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	_, err := s.scheduler.Every(s.interval).SingletonMode().WaitForSchedule().Do(func() {
		start := time.Now()
		s.logger.Debug("refresh started")
		if err := s.refresh(ctx); err != nil {
			s.logger.Info("refresh completed with failures", "err", err, "elapsed", time.Since(start))
			return
		}
		s.logger.Debug("refresh completed", "elapsed", time.Since(start))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
