package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedwei/workspace-backups/internal/storage"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		wantLabel     string
		wantTimestamp string
		wantOK        bool
	}{
		{
			name:          "canonical",
			key:           "/ws/2025-01-21T10-30-45-123Z.tar.gz",
			wantLabel:     "ws",
			wantTimestamp: "2025-01-21T10-30-45-123Z",
			wantOK:        true,
		},
		{
			name:          "free-form timestamp",
			key:           "/default/before-upgrade.tar.gz",
			wantLabel:     "default",
			wantTimestamp: "before-upgrade",
			wantOK:        true,
		},
		{name: "missing leading slash", key: "ws/a.tar.gz"},
		{name: "too many segments", key: "/ws/nested/a.tar.gz"},
		{name: "too few segments", key: "/a.tar.gz"},
		{name: "wrong suffix", key: "/ws/a.zip"},
		{name: "suffix only", key: "/ws/.tar.gz"},
		{name: "empty label", key: "//a.tar.gz"},
		{name: "dot label", key: "/../a.tar.gz"},
		{name: "directory marker", key: "/ws/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, timestamp, ok := ParseKey(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantTimestamp, timestamp)
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key := FormatKey("ws", "2025-01-21T10-30-45-123Z")
	assert.Equal(t, "/ws/2025-01-21T10-30-45-123Z.tar.gz", key)

	label, timestamp, ok := ParseKey(key)
	require.True(t, ok)
	assert.Equal(t, "ws/2025-01-21T10-30-45-123Z", FormatID(label, timestamp))
}

func TestValidateLabel(t *testing.T) {
	for _, label := range []string{"", ".", "..", "a/b"} {
		err := ValidateLabel(label)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "label %q", label)
	}
	assert.NoError(t, ValidateLabel("my-workspace"))
}

func TestFromObject_CreatedAt(t *testing.T) {
	info := storage.ObjectInfo{Size: 10, LastModified: t0}

	b := fromObject("ws", "2025-01-21T10-30-45-123Z", info)
	require.NotNil(t, b.CreatedAt)
	assert.Equal(t, time.Date(2025, 1, 21, 10, 30, 45, 123000000, time.UTC), *b.CreatedAt)
	assert.NotNil(t, b.Metadata)

	b = fromObject("ws", "before-upgrade", info)
	assert.Nil(t, b.CreatedAt)
}

func TestSortNewestFirst(t *testing.T) {
	backups := []Backup{
		{Key: "/a/1.tar.gz", LastModified: t0},
		{Key: "/a/3.tar.gz", LastModified: t0.Add(time.Minute)},
		{Key: "/a/2.tar.gz", LastModified: t0},
	}

	SortNewestFirst(backups)

	var keys []string
	for _, b := range backups {
		keys = append(keys, b.Key)
	}
	assert.Equal(t, []string{"/a/3.tar.gz", "/a/2.tar.gz", "/a/1.tar.gz"}, keys)
}

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, ReasonNotFound},
		{ValidateLabel(""), ReasonInvalidArgument},
		{unavailable("list", errBoom), ReasonStoreUnavailable},
		{&PruneError{Label: "a", Failed: []string{"/a/1.tar.gz"}, Err: unavailable("remove", errBoom)}, ReasonPartialPruneFailure},
		{errBoom, ReasonInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReasonFor(tt.err), "%v", tt.err)
	}
}
