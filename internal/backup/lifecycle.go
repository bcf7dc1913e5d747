package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/imedwei/workspace-backups/internal/metrics"
	"github.com/imedwei/workspace-backups/internal/storage"
	"github.com/imedwei/workspace-backups/internal/utils"
)

// Lifecycle coordinates backup creation, restore and deletion.
type Lifecycle struct {
	store  storage.ObjectStore
	policy *RetentionPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewLifecycle creates a lifecycle over store, pruning through policy.
func NewLifecycle(store storage.ObjectStore, policy *RetentionPolicy, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// CreateRequest describes a backup about to be uploaded.
type CreateRequest struct {
	Label     string
	MaxKeep   int
	FileCount int64
	TotalSize int64
}

// CreateResult is returned to the client that will upload the archive.
// The upload must be a PUT to UploadURL carrying exactly UploadHeaders.
type CreateResult struct {
	ID            string            `json:"id"`
	Key           string            `json:"key"`
	UploadURL     string            `json:"uploadUrl"`
	UploadHeaders map[string]string `json:"uploadHeaders"`
	Pruned        int               `json:"pruned"`
	PruneError    string            `json:"pruneError,omitempty"`
}

// RestoreResult carries a download URL for an existing backup.
type RestoreResult struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	DownloadURL string            `json:"downloadUrl"`
	Size        int64             `json:"size"`
	Metadata    map[string]string `json:"metadata"`
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// CreateBackup mints a new key, presigns its upload and prunes the label.
//
// The new archive is not yet in the store, so the prune only ever removes
// older backups. A prune failure is reported in the result, not as an error.
func (l *Lifecycle) CreateBackup(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := ValidateLabel(req.Label); err != nil {
		return nil, err
	}
	if req.MaxKeep < 0 || req.FileCount < 0 || req.TotalSize < 0 {
		return nil, fmt.Errorf("%w: counts must be non-negative", ErrInvalidArgument)
	}

	now := l.now().UTC()
	timestamp := utils.FormatTimestamp(now)
	key := FormatKey(req.Label, timestamp)
	id := FormatID(req.Label, timestamp)

	metadata := map[string]string{
		"label":     req.Label,
		"createdAt": now.Format("2006-01-02T15:04:05.000Z07:00"),
		"fileCount": strconv.FormatInt(req.FileCount, 10),
		"totalSize": strconv.FormatInt(req.TotalSize, 10),
	}

	uploadURL, err := l.store.PresignUpload(ctx, key, metadata, ContentType)
	if err != nil {
		metrics.RecordBackupCreated(false, now)
		return nil, unavailable("presign upload", err)
	}
	metrics.RecordBackupCreated(true, now)

	l.logger.Info("Issued backup upload URL",
		"id", id,
		"file_count", req.FileCount,
		"total_size", utils.FormatBytes(req.TotalSize),
	)

	result := &CreateResult{
		ID:            id,
		Key:           key,
		UploadURL:     uploadURL,
		UploadHeaders: map[string]string{"Content-Type": ContentType},
	}

	pruned, err := l.policy.Prune(WithTrigger(ctx, TriggerCreate), req.Label, req.MaxKeep)
	result.Pruned = pruned
	if err != nil {
		// Don't fail the create due to cleanup failure
		l.logger.Warn("Failed to prune old backups", "label", req.Label, "error", err)
		result.PruneError = err.Error()
	}

	return result, nil
}

// RestoreBackup presigns a download for an existing backup.
func (l *Lifecycle) RestoreBackup(ctx context.Context, label, timestamp string) (*RestoreResult, error) {
	info, key, err := l.stat(ctx, label, timestamp)
	if err != nil {
		metrics.RecordBackupRestored(false)
		return nil, err
	}

	downloadURL, err := l.store.PresignDownload(ctx, key)
	if err != nil {
		metrics.RecordBackupRestored(false)
		return nil, unavailable("presign download", err)
	}
	metrics.RecordBackupRestored(true)

	metadata := info.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	return &RestoreResult{
		ID:          FormatID(label, timestamp),
		Key:         key,
		DownloadURL: downloadURL,
		Size:        info.Size,
		Metadata:    metadata,
	}, nil
}

// DeleteBackup removes an existing backup. Deleting an absent backup,
// including one removed concurrently, reports ErrNotFound.
func (l *Lifecycle) DeleteBackup(ctx context.Context, label, timestamp string) (*DeleteResult, error) {
	_, key, err := l.stat(ctx, label, timestamp)
	if err != nil {
		return nil, err
	}

	if err := l.store.Remove(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable("remove", err)
	}

	metrics.BackupsDeleted.Inc()
	id := FormatID(label, timestamp)
	l.logger.Info("Deleted backup", "id", id)

	return &DeleteResult{Deleted: true, ID: id}, nil
}

func (l *Lifecycle) stat(ctx context.Context, label, timestamp string) (storage.ObjectInfo, string, error) {
	if err := ValidateLabel(label); err != nil {
		return storage.ObjectInfo{}, "", err
	}
	if err := ValidateTimestamp(timestamp); err != nil {
		return storage.ObjectInfo{}, "", err
	}

	key := FormatKey(label, timestamp)
	info, err := l.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.ObjectInfo{}, key, ErrNotFound
		}
		return storage.ObjectInfo{}, key, unavailable("stat", err)
	}
	return info, key, nil
}
