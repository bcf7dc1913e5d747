package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/imedwei/workspace-backups/internal/backup"
)

// DefaultLabel is used when a write request names no label.
const DefaultLabel = "default"

// Catalog is the read side of the backup core.
type Catalog interface {
	List(ctx context.Context, label string) ([]backup.Backup, error)
	Stats(ctx context.Context) (*backup.Stats, error)
}

// Pruner applies retention to a label.
type Pruner interface {
	Prune(ctx context.Context, label string, maxKeep int) (int, error)
}

// Lifecycle creates, restores and deletes backups.
type Lifecycle interface {
	CreateBackup(ctx context.Context, req backup.CreateRequest) (*backup.CreateResult, error)
	RestoreBackup(ctx context.Context, label, timestamp string) (*backup.RestoreResult, error)
	DeleteBackup(ctx context.Context, label, timestamp string) (*backup.DeleteResult, error)
}

// BackupHandler handles HTTP requests related to backups.
type BackupHandler struct {
	catalog        Catalog
	pruner         Pruner
	lifecycle      Lifecycle
	defaultMaxKeep int
	logger         *slog.Logger
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(catalog Catalog, pruner Pruner, lifecycle Lifecycle, defaultMaxKeep int, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		catalog:        catalog,
		pruner:         pruner,
		lifecycle:      lifecycle,
		defaultMaxKeep: defaultMaxKeep,
		logger:         logger,
	}
}

// ListResponse wraps a backup listing.
type ListResponse struct {
	Backups []backup.Backup `json:"backups"`
}

// PruneResponse reports the outcome of an explicit prune.
type PruneResponse struct {
	Pruned  int      `json:"pruned"`
	Label   string   `json:"label"`
	MaxKeep int      `json:"maxKeep"`
	Failed  []string `json:"failed,omitempty"`
	Error   string   `json:"error,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// HealthResponse is the body of the API health probe.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// List handles GET /backups?label=.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.catalog.List(r.Context(), r.URL.Query().Get("label"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if backups == nil {
		backups = []backup.Backup{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Backups: backups})
}

// Stats handles GET /stats.
func (h *BackupHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Create handles POST /backup?label=&fileCount=&totalSize=&maxKeep=.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := backup.CreateRequest{Label: queryLabel(r, DefaultLabel)}

	maxKeep, err := queryInt(r, "maxKeep", int64(h.defaultMaxKeep))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.MaxKeep = int(maxKeep)

	if req.FileCount, err = queryInt(r, "fileCount", 0); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.TotalSize, err = queryInt(r, "totalSize", 0); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.lifecycle.CreateBackup(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Prune handles POST /backup/prune?label=&maxKeep=.
func (h *BackupHandler) Prune(w http.ResponseWriter, r *http.Request) {
	label := queryLabel(r, DefaultLabel)
	maxKeep, err := queryInt(r, "maxKeep", int64(h.defaultMaxKeep))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pruned, err := h.pruner.Prune(backup.WithTrigger(r.Context(), backup.TriggerAPI), label, int(maxKeep))

	var pruneErr *backup.PruneError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, PruneResponse{Pruned: pruned, Label: label, MaxKeep: int(maxKeep)})
	case errors.As(err, &pruneErr):
		writeJSON(w, http.StatusInternalServerError, PruneResponse{
			Pruned:  pruned,
			Label:   label,
			MaxKeep: int(maxKeep),
			Failed:  pruneErr.Failed,
			Error:   err.Error(),
			Reason:  backup.ReasonPartialPruneFailure,
		})
	default:
		writeError(w, r, h.logger, err)
	}
}

// Restore handles GET /restore/{label}/{timestamp}.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	result, err := h.lifecycle.RestoreBackup(r.Context(), pathParam(r, "label"), pathParam(r, "timestamp"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /backup/{label}/{timestamp}.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.lifecycle.DeleteBackup(r.Context(), pathParam(r, "label"), pathParam(r, "timestamp"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Health handles GET /health.
func (h *BackupHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func invalidQuery(name, raw string) error {
	return fmt.Errorf("%w: %s must be a non-negative integer, got %q", backup.ErrInvalidArgument, name, raw)
}
