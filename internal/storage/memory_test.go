package storage

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/imedwei/workspace-backups/internal/metrics"
)

func TestMemoryStorage_ListStatRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	now := time.Date(2025, 1, 21, 10, 30, 45, 0, time.UTC)

	m.Put("/b/2.tar.gz", 20, now, nil)
	m.Put("/a/1.tar.gz", 10, now, map[string]string{"label": "a"})
	m.Put("/ab/3.tar.gz", 30, now, nil)

	keys, err := m.List(ctx, "/a/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if want := []string{"/a/1.tar.gz"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("List(/a/) = %v, want %v", keys, want)
	}

	keys, _ = m.List(ctx, "/")
	if want := []string{"/a/1.tar.gz", "/ab/3.tar.gz", "/b/2.tar.gz"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("List(/) = %v, want %v", keys, want)
	}

	info, err := m.Stat(ctx, "/a/1.tar.gz")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 10 || info.Metadata["label"] != "a" || !info.LastModified.Equal(now) {
		t.Errorf("Stat() = %+v", info)
	}

	if err := m.Remove(ctx, "/a/1.tar.gz"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := m.Stat(ctx, "/a/1.tar.gz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat() after remove error = %v, want ErrNotFound", err)
	}
	if err := m.Remove(ctx, "/a/1.tar.gz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorage_Presign(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	raw, err := m.PresignUpload(ctx, "/ws/1.tar.gz", map[string]string{"label": "ws"}, "application/gzip")
	if err != nil {
		t.Fatalf("PresignUpload() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Scheme != "memory" || u.Path != "/ws/1.tar.gz" {
		t.Errorf("upload URL = %v", raw)
	}
	q := u.Query()
	if q.Get("method") != "PUT" || q.Get("contentType") != "application/gzip" || q.Get("meta-label") != "ws" {
		t.Errorf("upload URL query = %v", q)
	}

	raw, _ = m.PresignDownload(ctx, "/ws/1.tar.gz")
	u, _ = url.Parse(raw)
	if u.Query().Get("method") != "GET" {
		t.Errorf("download URL = %v", raw)
	}
}

func TestMemoryStorage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewMemoryStorage().List(ctx, "/"); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestInstrumentedStorage_CountsNotFoundAsSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewInstrumentedStorage(NewMemoryStorage(), "memory-test")

	before := testutil.ToFloat64(metrics.StorageOperations.WithLabelValues("stat", "memory-test", "success"))
	if _, err := s.Stat(ctx, "/missing/1.tar.gz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Stat() error = %v, want ErrNotFound", err)
	}
	after := testutil.ToFloat64(metrics.StorageOperations.WithLabelValues("stat", "memory-test", "success"))

	if after-before != 1 {
		t.Errorf("stat success counter delta = %v, want 1", after-before)
	}
}
