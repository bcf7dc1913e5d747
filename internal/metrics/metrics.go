// Package metrics provides Prometheus metrics for the backup service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupsCreated tracks upload URLs issued for new backups.
	BackupsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_backup_created_total",
		Help: "Total number of backup upload URLs issued",
	}, []string{"status"})

	// BackupsRestored tracks download URLs issued.
	BackupsRestored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_backup_restored_total",
		Help: "Total number of backup download URLs issued",
	}, []string{"status"})

	// BackupsDeleted tracks explicit deletions requested by clients.
	BackupsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workspace_backup_deleted_total",
		Help: "Total number of backups deleted on request",
	})

	// BackupsPruned tracks backups removed by retention. Backup labels are
	// client-chosen and never used as metric labels.
	BackupsPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_backup_pruned_total",
		Help: "Total number of backups removed by retention",
	}, []string{"trigger"})

	// PruneFailures tracks removals that failed during a prune.
	PruneFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_backup_prune_failures_total",
		Help: "Total number of backup removals that failed during pruning",
	}, []string{"trigger"})

	// PruneRuns tracks prune invocations by trigger.
	PruneRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_backup_prune_runs_total",
		Help: "Total number of prune runs",
	}, []string{"trigger", "status"})

	// StorageOperations tracks storage operations.
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workspace_backup_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "provider", "status"})

	// StorageOperationDuration tracks latency of storage operations.
	StorageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workspace_backup_storage_operation_duration_seconds",
		Help:    "Duration of storage operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"operation", "provider"})

	// CatalogBackups is the backup count seen by the last full listing.
	CatalogBackups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workspace_backup_catalog_backups",
		Help: "Number of backups in the catalog at the last stats call",
	})

	// CatalogBytes is the total archive size seen by the last full listing.
	CatalogBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workspace_backup_catalog_bytes",
		Help: "Total size of all backups at the last stats call",
	})

	// LastUploadIssuedTimestamp tracks when the last upload URL was issued.
	LastUploadIssuedTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workspace_backup_last_upload_issued_timestamp",
		Help: "Unix timestamp of the last issued upload URL",
	})

	// Info provides static information about the service.
	Info = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "workspace_backup_info",
		Help: "Information about the backup service",
	}, []string{"version", "storage_provider"})
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordBackupCreated records the outcome of an upload URL request.
func RecordBackupCreated(success bool, at time.Time) {
	BackupsCreated.WithLabelValues(status(success)).Inc()
	if success {
		LastUploadIssuedTimestamp.Set(float64(at.Unix()))
	}
}

// RecordBackupRestored records the outcome of a download URL request.
func RecordBackupRestored(success bool) {
	BackupsRestored.WithLabelValues(status(success)).Inc()
}

// RecordPrune records one prune run.
func RecordPrune(trigger string, removed, failed int) {
	PruneRuns.WithLabelValues(trigger, status(failed == 0)).Inc()
	if removed > 0 {
		BackupsPruned.WithLabelValues(trigger).Add(float64(removed))
	}
	if failed > 0 {
		PruneFailures.WithLabelValues(trigger).Add(float64(failed))
	}
}

// RecordStorageOperation records a storage operation.
func RecordStorageOperation(operation, provider string, success bool, duration time.Duration) {
	StorageOperations.WithLabelValues(operation, provider, status(success)).Inc()
	StorageOperationDuration.WithLabelValues(operation, provider).Observe(duration.Seconds())
}

// RecordCatalog updates the catalog gauges.
func RecordCatalog(backups int, bytes int64) {
	CatalogBackups.Set(float64(backups))
	CatalogBytes.Set(float64(bytes))
}
