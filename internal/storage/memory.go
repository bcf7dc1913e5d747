package storage

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage is an in-process ObjectStore used for local development and tests.
//
// Presigned URLs are not backed by anything; uploads "land" when Put is called.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]ObjectInfo
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]ObjectInfo)}
}

// Put stores or replaces an object.
func (m *MemoryStorage) Put(key string, size int64, lastModified time.Time, metadata map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = ObjectInfo{
		Key:          key,
		Size:         size,
		LastModified: lastModified,
		Metadata:     maps.Clone(metadata),
	}
}

// Has reports whether key is currently stored.
func (m *MemoryStorage) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[key]
	return ok
}

// List implements ObjectStore.List. Keys are returned in lexical order.
func (m *MemoryStorage) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Stat implements ObjectStore.Stat.
func (m *MemoryStorage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	info.Metadata = maps.Clone(info.Metadata)
	return info, nil
}

// PresignUpload implements ObjectStore.PresignUpload.
func (m *MemoryStorage) PresignUpload(ctx context.Context, key string, metadata map[string]string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q := url.Values{"method": {"PUT"}}
	if contentType != "" {
		q.Set("contentType", contentType)
	}
	for k, v := range metadata {
		q.Set("meta-"+k, v)
	}
	return memoryURL(key, q), nil
}

// PresignDownload implements ObjectStore.PresignDownload.
func (m *MemoryStorage) PresignDownload(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return memoryURL(key, url.Values{"method": {"GET"}}), nil
}

// Remove implements ObjectStore.Remove.
func (m *MemoryStorage) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("remove %s: %w", key, ErrNotFound)
	}
	delete(m.objects, key)
	return nil
}

func memoryURL(key string, q url.Values) string {
	u := url.URL{Scheme: "memory", Path: key, RawQuery: q.Encode()}
	return u.String()
}
