// Package scheduler fires periodic scans of all feeds.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rss_queue/internal/rssqueue"
)

// Runner performs one pass over all feeds.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler periodically triggers a Runner.
type Scheduler struct {
	runner Runner
	log    *slog.Logger
	tick   time.Duration
}

// New creates a Scheduler with a 15-minute interval.
func New(runner Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		log:    log,
		tick:   15 * time.Minute,
	}
}

// SetTickInterval overrides the default 15-minute interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
// Ticks that fire while a pass is still running are dropped.
func (s *Scheduler) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, rssqueue.ErrRunning):
		s.log.Debug("previous run still in progress")
	case errors.Is(err, rssqueue.ErrCancelled):
		s.log.Info("run cancelled")
	case err != nil:
		s.log.Error("run feeds", "error", err)
	default:
		s.log.Debug("run complete", "duration", time.Since(start).Round(time.Millisecond))
	}
}
