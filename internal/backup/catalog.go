package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imedwei/workspace-backups/internal/metrics"
	"github.com/imedwei/workspace-backups/internal/storage"
	"github.com/imedwei/workspace-backups/internal/utils"
)

// DefaultStatConcurrency bounds concurrent Stat calls when none is configured.
const DefaultStatConcurrency = 8

// Catalog lists backups and aggregates statistics from an object store.
type Catalog struct {
	store       storage.ObjectStore
	concurrency int
	logger      *slog.Logger
}

// NewCatalog creates a catalog. concurrency below 1 selects DefaultStatConcurrency.
func NewCatalog(store storage.ObjectStore, concurrency int, logger *slog.Logger) *Catalog {
	if concurrency < 1 {
		concurrency = DefaultStatConcurrency
	}
	return &Catalog{
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// List returns the backups under label, or all backups when label is empty,
// in store iteration order. Keys whose stat reports NotFound are skipped.
func (c *Catalog) List(ctx context.Context, label string) ([]Backup, error) {
	if label != "" {
		if err := ValidateLabel(label); err != nil {
			return nil, err
		}
	}

	keys, err := c.store.List(ctx, LabelPrefix(label))
	if err != nil {
		if len(keys) == 0 {
			return nil, unavailable("list backups", err)
		}
		c.logger.Warn("Listing interrupted, continuing with partial result",
			"label", label,
			"keys", len(keys),
			"error", err,
		)
	}

	type candidate struct {
		label, timestamp, key string
	}
	var candidates []candidate
	for _, key := range keys {
		l, ts, ok := ParseKey(key)
		if !ok || (label != "" && l != label) {
			continue
		}
		candidates = append(candidates, candidate{label: l, timestamp: ts, key: key})
	}

	results := make([]*Backup, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, cand := range candidates {
		g.Go(func() error {
			info, err := c.store.Stat(gctx, cand.key)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					c.logger.Debug("Backup vanished during listing", "key", cand.key)
					return nil
				}
				return unavailable(fmt.Sprintf("stat %s", cand.key), err)
			}
			b := fromObject(cand.label, cand.timestamp, info)
			results[i] = &b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	backups := make([]Backup, 0, len(results))
	for _, b := range results {
		if b != nil {
			backups = append(backups, *b)
		}
	}
	return backups, nil
}

// Stats holds aggregate figures over every backup in the store.
type Stats struct {
	TotalBackups   int        `json:"totalBackups"`
	TotalSize      int64      `json:"totalSize"`
	TotalSizeHuman string     `json:"totalSizeHuman"`
	Labels         []string   `json:"labels"`
	LatestBackup   *string    `json:"latestBackup"`
	LatestDate     *time.Time `json:"latestDate"`
	MostRecent     *Backup    `json:"mostRecent,omitempty"`
}

// Stats lists every backup and summarizes the result.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	backups, err := c.List(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := Summarize(backups)
	metrics.RecordCatalog(stats.TotalBackups, stats.TotalSize)
	return &stats, nil
}

// Labels returns the distinct labels in first-seen order.
func (c *Catalog) Labels(ctx context.Context) ([]string, error) {
	backups, err := c.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return Summarize(backups).Labels, nil
}

// Summarize folds a listing into Stats. The first backup wins ties on LastModified.
func Summarize(backups []Backup) Stats {
	stats := Stats{Labels: []string{}}
	seen := make(map[string]bool)

	for i := range backups {
		b := &backups[i]
		stats.TotalBackups++
		stats.TotalSize += b.Size

		if !seen[b.Label] {
			seen[b.Label] = true
			stats.Labels = append(stats.Labels, b.Label)
		}

		if stats.MostRecent == nil || b.LastModified.After(stats.MostRecent.LastModified) {
			stats.MostRecent = b
		}
	}

	stats.TotalSizeHuman = utils.FormatMegabytes(stats.TotalSize)
	if stats.MostRecent != nil {
		recent := *stats.MostRecent
		stats.MostRecent = &recent
		stats.LatestBackup = &recent.Key
		latest := recent.LastModified
		stats.LatestDate = &latest
	}
	return stats
}
