package backup

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedwei/workspace-backups/internal/storage"
)

func keysOf(backups []Backup) []string {
	keys := make([]string, 0, len(backups))
	for _, b := range backups {
		keys = append(keys, b.Key)
	}
	return keys
}

func TestCatalog_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.seed("a", "1", 1, 10)
	f.seed("a", "2", 2, 20)
	f.seed("ab", "3", 3, 30)
	f.seed("b", "4", 4, 40)
	// Objects outside the key grammar.
	f.store.Put("/a/notes.txt", 1, t0, nil)
	f.store.Put("/a/nested/5.tar.gz", 1, t0, nil)
	f.store.Put("/loose.tar.gz", 1, t0, nil)

	all, err := f.catalog.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/1.tar.gz", "/a/2.tar.gz", "/ab/3.tar.gz", "/b/4.tar.gz"}, keysOf(all))

	onlyA, err := f.catalog.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/1.tar.gz", "/a/2.tar.gz"}, keysOf(onlyA))

	b := onlyA[1]
	assert.Equal(t, "a", b.Label)
	assert.Equal(t, "2", b.Timestamp)
	assert.Equal(t, "a/2", b.ID)
	assert.Equal(t, int64(20), b.Size)
	assert.Equal(t, t0.Add(2*time.Minute), b.LastModified)
	assert.Equal(t, "a", b.Metadata["label"])
}

func TestCatalog_List_InvalidLabel(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.List(context.Background(), "a/b")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestCatalog_List_SkipsVanishedKeys(t *testing.T) {
	f := newFixture(t)
	f.seed("a", "1", 1, 10)
	gone := f.seed("a", "2", 2, 20)
	f.store.statErr[gone] = storage.ErrNotFound

	backups, err := f.catalog.List(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/1.tar.gz"}, keysOf(backups))
}

func TestCatalog_List_StatFailure(t *testing.T) {
	f := newFixture(t)
	key := f.seed("a", "1", 1, 10)
	f.store.statErr[key] = errBoom

	_, err := f.catalog.List(context.Background(), "a")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Equal(t, ReasonStoreUnavailable, ReasonFor(err))
}

func TestCatalog_List_PartialListing(t *testing.T) {
	f := newFixture(t)
	f.seed("a", "1", 1, 10)
	f.seed("a", "2", 2, 20)
	f.store.listErr = errBoom
	f.store.listKeys = []string{"/a/1.tar.gz"}

	backups, err := f.catalog.List(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/1.tar.gz"}, keysOf(backups))
}

func TestCatalog_List_ListingFailsOutright(t *testing.T) {
	f := newFixture(t)
	f.store.listErr = errBoom

	_, err := f.catalog.List(context.Background(), "")
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestCatalog_Stats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.seed("b", "1", 1, 1024*1024)
	f.seed("a", "2", 5, 512*1024)
	f.seed("a", "3", 5, 0)

	stats, err := f.catalog.Stats(ctx)
	require.NoError(t, err)

	listed, err := f.catalog.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Summarize(listed), *stats)

	assert.Equal(t, 3, stats.TotalBackups)
	assert.Equal(t, int64(1536*1024), stats.TotalSize)
	assert.Equal(t, "1.50 MB", stats.TotalSizeHuman)
	// Lexical listing order: /a/2, /a/3, /b/1.
	assert.Equal(t, []string{"a", "b"}, stats.Labels)
	// /a/2 and /a/3 tie; the first listed wins.
	require.NotNil(t, stats.MostRecent)
	assert.Equal(t, "/a/2.tar.gz", stats.MostRecent.Key)
	require.NotNil(t, stats.LatestBackup)
	assert.Equal(t, "/a/2.tar.gz", *stats.LatestBackup)
	require.NotNil(t, stats.LatestDate)
	assert.Equal(t, t0.Add(5*time.Minute), *stats.LatestDate)

	labels, err := f.catalog.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, labels)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)

	assert.Equal(t, 0, stats.TotalBackups)
	assert.Equal(t, "0.00 MB", stats.TotalSizeHuman)
	assert.Empty(t, stats.Labels)
	assert.NotNil(t, stats.Labels)
	assert.Nil(t, stats.MostRecent)
	assert.Nil(t, stats.LatestBackup)
	assert.Nil(t, stats.LatestDate)

	body, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"latestBackup":null`)
	assert.Contains(t, string(body), `"latestDate":null`)
}
