package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imedwei/workspace-backups/internal/metrics"
	"github.com/imedwei/workspace-backups/internal/storage"
	"github.com/imedwei/workspace-backups/internal/utils"
)

// Prune triggers, used as a metrics label.
const (
	TriggerCreate   = "create"
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
)

type triggerKey struct{}

// WithTrigger tags ctx with what caused a prune.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok {
		return t
	}
	return TriggerAPI
}

// RetentionPolicy keeps the most recent backups of each label and removes the rest.
type RetentionPolicy struct {
	store   storage.ObjectStore
	catalog *Catalog
	logger  *slog.Logger
}

// NewRetentionPolicy creates a retention policy over catalog's store.
func NewRetentionPolicy(store storage.ObjectStore, catalog *Catalog, logger *slog.Logger) *RetentionPolicy {
	return &RetentionPolicy{
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

// Prune removes all but the maxKeep most recent backups of label and
// returns how many removals were confirmed.
//
// Removals are independent: a failure is logged and skipped, and the
// returned error is a *PruneError naming every key that could not be
// removed. A key that is already gone counts neither as removed nor as
// failed, so overlapping prunes never double count.
func (p *RetentionPolicy) Prune(ctx context.Context, label string, maxKeep int) (int, error) {
	if err := ValidateLabel(label); err != nil {
		return 0, err
	}
	if maxKeep < 0 {
		return 0, fmt.Errorf("%w: maxKeep must be non-negative, got %d", ErrInvalidArgument, maxKeep)
	}

	trigger := triggerFrom(ctx)

	backups, err := p.catalog.List(ctx, label)
	if err != nil {
		metrics.PruneRuns.WithLabelValues(trigger, "failure").Inc()
		return 0, err
	}

	if len(backups) <= maxKeep {
		p.logger.Debug("Nothing to prune", "label", label, "backups", len(backups), "max_keep", maxKeep)
		metrics.RecordPrune(trigger, 0, 0)
		return 0, nil
	}

	SortNewestFirst(backups)
	stale := backups[maxKeep:]

	p.logger.Info("Pruning old backups",
		"label", label,
		"max_keep", maxKeep,
		"stale", len(stale),
		"trigger", trigger,
	)

	var (
		removed int
		failed  []string
		errs    []error
	)
	for _, b := range stale {
		if err := p.store.Remove(ctx, b.Key); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				p.logger.Debug("Backup already removed", "key", b.Key)
				continue
			}
			p.logger.Error("Failed to remove backup",
				"key", b.Key,
				"error", err,
			)
			failed = append(failed, b.Key)
			errs = append(errs, err)
			// Continue with other removals
			continue
		}

		removed++
		p.logger.Info("Removed backup",
			"key", b.Key,
			"size", utils.FormatBytes(b.Size),
			"last_modified", b.LastModified,
		)
	}

	metrics.RecordPrune(trigger, removed, len(failed))
	p.logger.Info("Prune completed", "label", label, "removed", removed, "failed", len(failed))

	if len(failed) > 0 {
		return removed, &PruneError{
			Label:  label,
			Failed: failed,
			Err:    unavailable("remove", errors.Join(errs...)),
		}
	}
	return removed, nil
}
