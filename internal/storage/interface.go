// Package storage defines the object-store capability backing the backup catalog.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the capability set the backup core consumes.
//
// Keys are logical: they begin with "/" and never include the provider
// prefix. Implementations translate to and from bucket object names.
type ObjectStore interface {
	// List returns every key starting with prefix, in store iteration order.
	// If iteration fails part way through, the keys collected so far are
	// returned together with the error.
	List(ctx context.Context, prefix string) ([]string, error)

	// Stat returns size, modification time and metadata for key, or ErrNotFound.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// PresignUpload returns a time-limited URL a client can PUT the object to.
	PresignUpload(ctx context.Context, key string, metadata map[string]string, contentType string) (string, error)

	// PresignDownload returns a time-limited URL a client can GET the object from.
	PresignDownload(ctx context.Context, key string) (string, error)

	// Remove deletes key. Stores that can detect absence return ErrNotFound.
	Remove(ctx context.Context, key string) error
}

// ObjectInfo contains information about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	Metadata     map[string]string
}

// objectName maps a logical key to the bucket object name under prefix.
func objectName(prefix, key string) string {
	key = strings.TrimPrefix(key, "/")
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// logicalKey is the inverse of objectName. ok is false for names outside prefix.
func logicalKey(prefix, name string) (string, bool) {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		rest, found := strings.CutPrefix(name, prefix+"/")
		if !found {
			return "", false
		}
		name = rest
	}
	return "/" + name, true
}

// Close releases the resources held by store, if it holds any. Decorators
// forward to the store they wrap.
func Close(store ObjectStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
