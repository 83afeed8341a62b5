package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
)

// Scheduler wires the wall-clock driver with the run trigger.
type Scheduler struct {
	driver  ports.Scheduler
	trigger ports.RunTrigger
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, trigger ports.RunTrigger, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, trigger: trigger, logger: logging.OrDiscard(logger)}
}

// Start registers the run trigger with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.trigger == nil {
		return nil
	}
	return s.driver.Start(ctx, func(at time.Time) {
		s.fire(ctx, at)
	})
}

func (s *Scheduler) fire(ctx context.Context, at time.Time) {
	runID, err := s.trigger.Trigger(ctx, domain.OriginSchedule)
	switch {
	case errors.Is(err, ports.ErrRunInProgress):
		s.logger.Warn("scheduled run skipped, another run in progress", "at", at)
	case err != nil:
		s.logger.Error("scheduled run not started", "at", at, "error", err)
	default:
		s.logger.Info("scheduled run started", "at", at, "run_id", runID)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
