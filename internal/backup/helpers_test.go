package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/imedwei/workspace-backups/internal/storage"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// faultyStore injects failures into an in-memory store.
type faultyStore struct {
	*storage.MemoryStorage

	mu          sync.Mutex
	listErr     error
	listKeys    []string // returned with listErr instead of the real listing
	statErr     map[string]error
	removeErr   map[string]error
	presignErr  error
	removeCalls []string
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStorage: storage.NewMemoryStorage(),
		statErr:       map[string]error{},
		removeErr:     map[string]error{},
	}
}

func (f *faultyStore) List(ctx context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return f.listKeys, f.listErr
	}
	return f.MemoryStorage.List(ctx, prefix)
}

func (f *faultyStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if err, ok := f.statErr[key]; ok {
		return storage.ObjectInfo{}, err
	}
	return f.MemoryStorage.Stat(ctx, key)
}

func (f *faultyStore) PresignUpload(ctx context.Context, key string, metadata map[string]string, contentType string) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return f.MemoryStorage.PresignUpload(ctx, key, metadata, contentType)
}

func (f *faultyStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	f.removeCalls = append(f.removeCalls, key)
	f.mu.Unlock()

	if err, ok := f.removeErr[key]; ok {
		return err
	}
	return f.MemoryStorage.Remove(ctx, key)
}

type fixture struct {
	store     *faultyStore
	catalog   *Catalog
	policy    *RetentionPolicy
	lifecycle *Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newFaultyStore()
	logger := discardLogger()
	catalog := NewCatalog(store, 4, logger)
	policy := NewRetentionPolicy(store, catalog, logger)
	return &fixture{
		store:     store,
		catalog:   catalog,
		policy:    policy,
		lifecycle: NewLifecycle(store, policy, logger),
	}
}

var t0 = time.Date(2025, 1, 21, 10, 0, 0, 0, time.UTC)

// seed stores a backup for label whose LastModified is t0 plus offset minutes.
func (f *fixture) seed(label, timestamp string, offset int, size int64) string {
	key := FormatKey(label, timestamp)
	f.store.Put(key, size, t0.Add(time.Duration(offset)*time.Minute), map[string]string{"label": label})
	return key
}
