package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tachyon-launcher/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestAppendAndList(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.Append(&storage.HistoryRecord{
		ID: "a", URL: "https://x/a", Filename: "a.zip",
		Size: 100, Status: "Completed", CompletedAt: time.Now(),
	}))

	records, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestSearchMatchesFilename(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.Append(&storage.HistoryRecord{ID: "a", URL: "https://x/a", Filename: "node-v20.tar.gz", CompletedAt: time.Now()}))
	require.NoError(t, s.Append(&storage.HistoryRecord{ID: "b", URL: "https://x/b", Filename: "go1.22.tar.gz", CompletedAt: time.Now()}))

	found, err := s.Search("node")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "a", found[0].ID)
}

func TestStatsAggregation(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.Append(&storage.HistoryRecord{ID: "a", Status: "Completed", Size: 100, AverageSpeed: 10, CompletedAt: time.Now()}))
	require.NoError(t, s.Append(&storage.HistoryRecord{ID: "b", Status: "Failed", Size: 50, CompletedAt: time.Now()}))

	stats, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalRecords)
	require.Equal(t, int64(150), stats.TotalBytes)
	require.InDelta(t, 0.5, stats.SuccessRate, 0.001)
}

func TestClearOlderThanDays(t *testing.T) {
	s := newTestService(t)
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, s.Append(&storage.HistoryRecord{ID: "old", Status: "Completed", CompletedAt: old}))
	require.NoError(t, s.Append(&storage.HistoryRecord{ID: "new", Status: "Completed", CompletedAt: time.Now()}))

	days := 5
	n, err := s.Clear(&days)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	records, _ := s.List(0)
	require.Len(t, records, 1)
	require.Equal(t, "new", records[0].ID)
}
