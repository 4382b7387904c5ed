package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tachyon-launcher/internal/storage"
)

func newTestCache(t *testing.T, maxSize int64) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, maxSize, time.Hour), dir
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestPutThenGetHit(t *testing.T) {
	c, dir := newTestCache(t, 0)
	path := writeFile(t, dir, "a.bin", 100)

	require.NoError(t, c.Put(&storage.CacheEntry{Key: "a", FilePath: path, Size: 100, EntryType: TypeDownload}))

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, path, got)
}

func TestGetMissRemovesStaleEntry(t *testing.T) {
	c, dir := newTestCache(t, 0)
	c.maxAge = time.Millisecond
	path := writeFile(t, dir, "a.bin", 10)
	require.NoError(t, c.Put(&storage.CacheEntry{Key: "a", FilePath: path, Size: 10}))

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestPutEvictsLRUUnderPressure(t *testing.T) {
	c, dir := newTestCache(t, 150)
	p1 := writeFile(t, dir, "a.bin", 100)
	p2 := writeFile(t, dir, "b.bin", 100)

	require.NoError(t, c.Put(&storage.CacheEntry{Key: "a", FilePath: p1, Size: 100}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, c.Put(&storage.CacheEntry{Key: "b", FilePath: p2, Size: 100}))

	_, aOK := c.Get("a")
	_, bOK := c.Get("b")
	require.False(t, aOK)
	require.True(t, bOK)
}

func TestVerifyDetectsMissingAndSizeMismatch(t *testing.T) {
	c, dir := newTestCache(t, 0)
	missingPath := filepath.Join(dir, "gone.bin")
	require.NoError(t, c.Put(&storage.CacheEntry{Key: "gone", FilePath: missingPath, Size: 5}))

	wrongSizePath := writeFile(t, dir, "wrong.bin", 3)
	require.NoError(t, c.Put(&storage.CacheEntry{Key: "wrong", FilePath: wrongSizePath, Size: 100}))

	results, err := c.Verify()
	require.NoError(t, err)

	byKey := make(map[string]Status)
	for _, r := range results {
		byKey[r.Key] = r.Status
	}
	require.Equal(t, StatusMissing, byKey["gone"])
	require.Equal(t, StatusSizeMismatch, byKey["wrong"])
}

func TestRepairRemovesInvalidEntries(t *testing.T) {
	c, dir := newTestCache(t, 0)
	missingPath := filepath.Join(dir, "gone.bin")
	require.NoError(t, c.Put(&storage.CacheEntry{Key: "gone", FilePath: missingPath, Size: 5}))

	n, err := c.Repair()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok := c.Get("gone")
	require.False(t, ok)
}

func TestStatsCountsByType(t *testing.T) {
	c, dir := newTestCache(t, 0)
	p := writeFile(t, dir, "a.bin", 10)
	require.NoError(t, c.Put(&storage.CacheEntry{Key: "a", FilePath: p, Size: 10, EntryType: TypeDownload}))
	_, _ = c.Get("a")
	_, _ = c.Get("missing-key")

	stats, err := c.Stats()
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.CountByType[TypeDownload])
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.InDelta(t, 0.5, stats.HitRate, 0.001)
}
