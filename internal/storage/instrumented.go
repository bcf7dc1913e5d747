package storage

import (
	"context"
	"errors"
	"time"

	"github.com/imedwei/workspace-backups/internal/metrics"
)

// InstrumentedStorage records a Prometheus sample for every store call.
// A NotFound answer counts as a successful call.
type InstrumentedStorage struct {
	store    ObjectStore
	provider string
}

// NewInstrumentedStorage wraps store, labelling samples with provider.
func NewInstrumentedStorage(store ObjectStore, provider string) *InstrumentedStorage {
	return &InstrumentedStorage{store: store, provider: provider}
}

func (s *InstrumentedStorage) observe(operation string, start time.Time, err error) {
	ok := err == nil || errors.Is(err, ErrNotFound)
	metrics.RecordStorageOperation(operation, s.provider, ok, time.Since(start))
}

// List implements ObjectStore.List.
func (s *InstrumentedStorage) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.store.List(ctx, prefix)
	s.observe("list", start, err)
	return keys, err
}

// Stat implements ObjectStore.Stat.
func (s *InstrumentedStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	start := time.Now()
	info, err := s.store.Stat(ctx, key)
	s.observe("stat", start, err)
	return info, err
}

// PresignUpload implements ObjectStore.PresignUpload.
func (s *InstrumentedStorage) PresignUpload(ctx context.Context, key string, metadata map[string]string, contentType string) (string, error) {
	start := time.Now()
	u, err := s.store.PresignUpload(ctx, key, metadata, contentType)
	s.observe("presign_upload", start, err)
	return u, err
}

// PresignDownload implements ObjectStore.PresignDownload.
func (s *InstrumentedStorage) PresignDownload(ctx context.Context, key string) (string, error) {
	start := time.Now()
	u, err := s.store.PresignDownload(ctx, key)
	s.observe("presign_download", start, err)
	return u, err
}

// Remove implements ObjectStore.Remove.
func (s *InstrumentedStorage) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Remove(ctx, key)
	s.observe("remove", start, err)
	return err
}

// Close implements io.Closer.
func (s *InstrumentedStorage) Close() error {
	return Close(s.store)
}
