package usecase

import (
	"context"
	"log/slog"
	"time"

	"CTIScraper/internal/ports"
)

// Poller runs one ingestion pass.
type Poller interface {
	PollAll(ctx context.Context) (PollSummary, error)
}

// Scheduler wires the interval driver with the ingestion use case.
type Scheduler struct {
	driver ports.Scheduler
	poller Poller
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring polls.
func NewScheduler(driver ports.Scheduler, poller Poller, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, poller: poller, logger: logger.With("component", "scheduler")}
}

// Start registers the poll pass with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.poller == nil {
		return nil
	}

	job := func(trigger time.Time) {
		summary, err := s.poller.PollAll(ctx)
		if err != nil {
			s.logger.Error("scheduled poll failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.Info("scheduled poll done", "run_id", summary.RunID, "new_saved", summary.NewSaved, "errors", len(summary.Errors))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
