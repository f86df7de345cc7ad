// Package scheduler runs periodic rebuilds with gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/documentation-builder/internal/logfields"
)

// Scheduler wraps a gocron scheduler running one rebuild job.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// New creates a scheduler.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// SchedulePeriodicBuild runs build every interval. Runs never overlap; a tick
// that fires while a build is running is skipped. It returns the job id.
func (s *Scheduler) SchedulePeriodicBuild(ctx context.Context, interval time.Duration, build func(context.Context) error) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.execute, ctx, build),
		gocron.WithName("periodic-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic build job: %w", err)
	}
	s.logger.Info("Scheduled periodic build", slog.Duration("interval", interval))
	return job.ID().String(), nil
}

func (s *Scheduler) execute(ctx context.Context, build func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Info("Executing scheduled build")
	if err := build(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("Scheduled build failed", logfields.Error(err))
	}
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
