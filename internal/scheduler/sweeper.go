// Package scheduler runs retention across every label on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/imedwei/workspace-backups/internal/backup"
)

// LabelSource lists the labels present in the store.
type LabelSource interface {
	Labels(ctx context.Context) ([]string, error)
}

// Pruner applies retention to one label.
type Pruner interface {
	Prune(ctx context.Context, label string, maxKeep int) (int, error)
}

// Sweeper prunes every label to maxKeep on each tick.
type Sweeper struct {
	labels  LabelSource
	pruner  Pruner
	maxKeep int
	timeout time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewSweeper creates a sweeper. Each sweep is bounded by timeout.
func NewSweeper(labels LabelSource, pruner Pruner, maxKeep int, timeout time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		labels:  labels,
		pruner:  pruner,
		maxKeep: maxKeep,
		timeout: timeout,
		logger:  logger,
		// A sweep still running when the next one is due is not doubled up.
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start schedules sweeps using a standard five-field cron spec.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("Prune sweeper started", "schedule", spec, "max_keep", s.maxKeep)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Prune sweep still running at shutdown")
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("Prune sweep failed", "error", err)
	}
}

// Sweep prunes each label once and returns the total number removed.
// Failures on one label do not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	ctx = backup.WithTrigger(ctx, backup.TriggerSchedule)

	labels, err := s.labels.Labels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list labels: %w", err)
	}

	var (
		total int
		errs  []error
	)
	for _, label := range labels {
		n, err := s.pruner.Prune(ctx, label, s.maxKeep)
		total += n
		if err != nil {
			s.logger.Warn("Failed to prune label", "label", label, "error", err)
			errs = append(errs, err)
		}
	}

	s.logger.Info("Prune sweep completed",
		"labels", len(labels),
		"removed", total,
		"failed_labels", len(errs),
		"duration", time.Since(start),
	)
	return total, errors.Join(errs...)
}
