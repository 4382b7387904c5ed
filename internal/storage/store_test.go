package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetTask(t *testing.T) {
	s := openTestStore(t)

	task := &DownloadTask{ID: "t1", URL: "https://example.com/a.zip", State: "Queued", Priority: 5}
	require.NoError(t, s.SaveTask(task))

	got, err := s.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, "Queued", got.State)
	require.Equal(t, 5, got.Priority)
}

func TestGetAllTasksOrdering(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveTask(&DownloadTask{ID: "low", State: "Queued", Priority: 1, QueueOrder: 1}))
	require.NoError(t, s.SaveTask(&DownloadTask{ID: "high-later", State: "Queued", Priority: 5, QueueOrder: 2}))
	require.NoError(t, s.SaveTask(&DownloadTask{ID: "high-first", State: "Queued", Priority: 5, QueueOrder: 1}))

	tasks, err := s.GetAllTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, "high-first", tasks[0].ID)
	require.Equal(t, "high-later", tasks[1].ID)
	require.Equal(t, "low", tasks[2].ID)
}

func TestDeleteTerminalTasks(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveTask(&DownloadTask{ID: "done", State: "Completed"}))
	require.NoError(t, s.SaveTask(&DownloadTask{ID: "active", State: "Downloading"}))

	n, err := s.DeleteTerminalTasks()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.GetTask("done")
	require.Error(t, err)

	remaining, err := s.GetTask("active")
	require.NoError(t, err)
	require.Equal(t, "active", remaining.ID)
}

func TestCacheEntryByChecksumAndEviction(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	require.NoError(t, s.PutCacheEntry(&CacheEntry{
		Key: "k1", Checksum: "deadbeef", Size: 100, EntryType: "Download",
		CreatedAt: now, LastAccessed: now,
	}))

	got, err := s.GetCacheEntryByChecksum("deadbeef")
	require.NoError(t, err)
	require.Equal(t, "k1", got.Key)

	total, err := s.TotalCacheSize()
	require.NoError(t, err)
	require.Equal(t, int64(100), total)
}

func TestHistorySearch(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AppendHistory(&HistoryRecord{
		ID: "h1", URL: "https://example.com/zig-linux.tar.xz", Filename: "zig-linux.tar.xz",
		Status: "Completed", CompletedAt: time.Now(),
	}))

	results, err := s.SearchHistory("zig")
	require.NoError(t, err)
	require.Len(t, results, 1)

	none, err := s.SearchHistory("nonexistent")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SetSetting("provider.enabled.rustup", "true"))
	v, ok := s.GetSetting("provider.enabled.rustup")
	require.True(t, ok)
	require.Equal(t, "true", v)

	_, ok = s.GetSetting("missing.key")
	require.False(t, ok)
}
