package dlqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tachyon-launcher/internal/storage"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	q, err := New(store)
	require.NoError(t, err)
	return q
}

func addTask(t *testing.T, q *Queue, id string, priority int, dest string) {
	t.Helper()
	require.NoError(t, q.Add(&storage.DownloadTask{
		ID:          id,
		URL:         "https://example.com/" + id,
		Destination: dest,
		Priority:    priority,
	}))
}

func TestNextPendingPriorityThenFIFO(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "low", 1, "/tmp/low")
	addTask(t, q, "high", 5, "/tmp/high")
	addTask(t, q, "high2", 5, "/tmp/high2")

	first, err := q.NextPending(10)
	require.NoError(t, err)
	require.Equal(t, "high", first.ID)

	second, err := q.NextPending(10)
	require.NoError(t, err)
	require.Equal(t, "high2", second.ID)

	third, err := q.NextPending(10)
	require.NoError(t, err)
	require.Equal(t, "low", third.ID)
}

func TestNextPendingRespectsMaxConcurrent(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "a", 0, "/tmp/a")
	addTask(t, q, "b", 0, "/tmp/b")

	got, err := q.NextPending(1)
	require.NoError(t, err)
	require.NotNil(t, got)

	none, err := q.NextPending(1)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestNextPendingFailsFastOnDestinationCollision(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "first", 0, "/tmp/shared")
	addTask(t, q, "second", 0, "/tmp/shared")

	first, err := q.NextPending(10)
	require.NoError(t, err)
	require.Equal(t, "first", first.ID)

	second, err := q.NextPending(10)
	require.NoError(t, err)
	require.Nil(t, second)

	task, ok := q.Get("second")
	require.True(t, ok)
	require.Equal(t, StateFailed, task.State)
}

func TestPauseResumeTransitions(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "a", 0, "/tmp/a")

	require.NoError(t, q.Pause("a"))
	task, _ := q.Get("a")
	require.Equal(t, StatePaused, task.State)

	require.NoError(t, q.Resume("a"))
	task, _ = q.Get("a")
	require.Equal(t, StateQueued, task.State)

	err := q.Resume("a")
	require.Error(t, err)
	var invalid *ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
}

func TestCancelFromTerminalIsInvalid(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "a", 0, "/tmp/a")
	require.NoError(t, q.Cancel("a"))

	err := q.Cancel("a")
	require.Error(t, err)
}

func TestRetryTaskClearsProgress(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "a", 0, "/tmp/a")
	require.NoError(t, q.withTask("a", func(task *storage.DownloadTask) error {
		task.State = StateFailed
		task.DownloadedBytes = 1024
		task.Percent = 42
		task.Retries = 3
		return nil
	}))

	require.NoError(t, q.RetryTask("a"))
	task, _ := q.Get("a")
	require.Equal(t, StateQueued, task.State)
	require.Equal(t, int64(0), task.DownloadedBytes)
	require.Equal(t, float64(0), task.Percent)
	require.Equal(t, 0, task.Retries)
}

func TestClearFinishedRemovesTerminalOnly(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "done", 0, "/tmp/done")
	addTask(t, q, "pending", 0, "/tmp/pending")
	require.NoError(t, q.Cancel("done"))

	n, err := q.ClearFinished()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok := q.Get("done")
	require.False(t, ok)
	_, ok = q.Get("pending")
	require.True(t, ok)
}

func TestStatsAggregatesByState(t *testing.T) {
	q := newTestQueue(t)
	addTask(t, q, "a", 0, "/tmp/a")
	addTask(t, q, "b", 0, "/tmp/b")
	require.NoError(t, q.Cancel("a"))

	stats := q.Stats()
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.Cancelled)
}

func TestHostLimitBlocksBeyondCap(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Add(&storage.DownloadTask{ID: "a", URL: "https://shared.test/a", Destination: "/tmp/a"}))
	require.NoError(t, q.Add(&storage.DownloadTask{ID: "b", URL: "https://shared.test/b", Destination: "/tmp/b"}))
	q.SetHostLimit("shared.test", 1)

	first, err := q.NextPending(10)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := q.NextPending(10)
	require.NoError(t, err)
	require.Nil(t, second)

	q.OnTaskFinished(first.URL)
	third, err := q.NextPending(10)
	require.NoError(t, err)
	require.NotNil(t, third)
}
