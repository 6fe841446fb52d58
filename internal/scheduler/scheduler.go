// Package scheduler runs periodic maintenance of the file vault
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout bounds a single sweep
const sweepTimeout = 5 * time.Minute

// Sweeper removes stored bytes that no file record points at
type Sweeper interface {
	// Method Sweep deletes orphaned bytes and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs the orphan sweep on a cron schedule
type Scheduler struct {
	schedule cron.Schedule
	sweeper  Sweeper
	logger   *zap.Logger
	now      func() time.Time
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler for a standard cron expression or descriptor
// such as "0 * * * *", "@hourly" or "@every 30m"
func NewScheduler(expr string, sweeper Sweeper, logger *zap.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}

	return &Scheduler{
		schedule: schedule,
		sweeper:  sweeper,
		logger:   logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start starts the scheduler loop in the background
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Scheduler started")
	go s.run(ctx)
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.done
	s.logger.Info("Scheduler stopped")
}

// run waits for each activation of the schedule and sweeps.
// It returns when the schedule yields no further activation.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		now := s.now()
		next := s.schedule.Next(now)
		if next.IsZero() {
			s.logger.Warn("Sweep schedule has no further activations")
			return
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			s.sweep(ctx)
		case <-s.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("Orphan sweep failed", zap.Int("removed", removed), zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("Orphan sweep finished", zap.Int("removed", removed))
		return
	}
	s.logger.Debug("Orphan sweep found nothing to remove")
}
