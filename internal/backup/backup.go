// Package backup implements the backup catalog, retention and lifecycle
// on top of an object store.
package backup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/imedwei/workspace-backups/internal/storage"
	"github.com/imedwei/workspace-backups/internal/utils"
)

// KeySuffix is the fixed suffix of every backup archive key.
const KeySuffix = ".tar.gz"

// ContentType is declared on every presigned upload.
const ContentType = "application/gzip"

// Backup is a stored archive, derived from an object-store listing.
type Backup struct {
	Label        string            `json:"label"`
	Timestamp    string            `json:"timestamp"`
	ID           string            `json:"id"`
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"lastModified"`
	Metadata     map[string]string `json:"metadata"`
	// CreatedAt is decoded from Timestamp when it is in the canonical format.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// FormatKey returns "/{label}/{timestamp}.tar.gz".
func FormatKey(label, timestamp string) string {
	return "/" + label + "/" + timestamp + KeySuffix
}

// FormatID returns "{label}/{timestamp}".
func FormatID(label, timestamp string) string {
	return label + "/" + timestamp
}

// LabelPrefix is the listing prefix for one label, or for everything when label is empty.
func LabelPrefix(label string) string {
	if label == "" {
		return "/"
	}
	return "/" + label + "/"
}

// ParseKey splits a key of the form /{label}/{timestamp}.tar.gz.
// Keys with any other shape are not backups.
func ParseKey(key string) (label, timestamp string, ok bool) {
	rest, found := strings.CutPrefix(key, "/")
	if !found {
		return "", "", false
	}

	label, file, found := strings.Cut(rest, "/")
	if !found || strings.Contains(file, "/") {
		return "", "", false
	}

	timestamp, found = strings.CutSuffix(file, KeySuffix)
	if !found {
		return "", "", false
	}

	if validSegment(label) != nil || validSegment(timestamp) != nil {
		return "", "", false
	}
	return label, timestamp, true
}

// ValidateLabel reports whether label can be used as a key segment.
func ValidateLabel(label string) error {
	if err := validSegment(label); err != nil {
		return fmt.Errorf("%w: label %v", ErrInvalidArgument, err)
	}
	return nil
}

// ValidateTimestamp reports whether timestamp can be used as a key segment.
func ValidateTimestamp(timestamp string) error {
	if err := validSegment(timestamp); err != nil {
		return fmt.Errorf("%w: timestamp %v", ErrInvalidArgument, err)
	}
	return nil
}

func validSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("must not be empty")
	case s == "." || s == "..":
		return fmt.Errorf("must not be %q", s)
	case strings.Contains(s, "/"):
		return fmt.Errorf("must not contain '/'")
	}
	return nil
}

// fromObject builds a Backup from a parsed key and its stat.
func fromObject(label, timestamp string, info storage.ObjectInfo) Backup {
	b := Backup{
		Label:        label,
		Timestamp:    timestamp,
		ID:           FormatID(label, timestamp),
		Key:          FormatKey(label, timestamp),
		Size:         info.Size,
		LastModified: info.LastModified,
		Metadata:     info.Metadata,
	}
	if b.Metadata == nil {
		b.Metadata = map[string]string{}
	}
	if t, err := utils.ParseTimestamp(timestamp); err == nil {
		b.CreatedAt = &t
	}
	return b
}

// SortNewestFirst orders backups by LastModified descending, ties broken by key descending.
func SortNewestFirst(backups []Backup) {
	sort.SliceStable(backups, func(i, j int) bool {
		a, b := backups[i], backups[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Key > b.Key
	})
}
