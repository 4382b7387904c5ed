package hostapi

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tachyon-launcher/internal/cache"
	"tachyon-launcher/internal/config"
	"tachyon-launcher/internal/dlengine"
	"tachyon-launcher/internal/dlevents"
	"tachyon-launcher/internal/dlqueue"
	"tachyon-launcher/internal/envmanager"
	"tachyon-launcher/internal/history"
	"tachyon-launcher/internal/httpport"
	"tachyon-launcher/internal/provider"
	"tachyon-launcher/internal/ratelimit"
	"tachyon-launcher/internal/storage"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	q, err := dlqueue.New(store)
	require.NoError(t, err)
	c := cache.New(store, 0, 0)
	h := history.New(store)
	cfg := config.NewManager(store)
	reg := provider.NewRegistry()
	envMgr := envmanager.New(reg, cfg)
	bus := dlevents.NewBroadcaster()
	limiter := ratelimit.New(0)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	engine := dlengine.New(logger, q, c, h, httpport.New("test-agent"), limiter, bus, 2, 0)

	return New(logger, cfg, q, engine, c, h, envMgr, reg, limiter, bus)
}

func TestAddDownloadValidatesRequiredFields(t *testing.T) {
	f := newTestFacade(t)

	_, err := f.AddDownload(AddDownloadRequest{Destination: "/tmp/x"})
	require.Error(t, err)

	_, err = f.AddDownload(AddDownloadRequest{URL: "https://example.com/f"})
	require.Error(t, err)
}

func TestAddDownloadEnqueuesQueuedTask(t *testing.T) {
	f := newTestFacade(t)

	task, err := f.AddDownload(AddDownloadRequest{
		URL:         "https://example.com/archive.zip",
		Destination: t.TempDir() + "/archive.zip",
		Headers:     map[string]string{"X-Test": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, dlqueue.StateQueued, task.State)

	got, ok := f.GetDownload(task.ID)
	require.True(t, ok)
	require.Equal(t, task.ID, got.ID)

	list := f.ListDownloads()
	require.Len(t, list, 1)

	stats := f.DownloadStats()
	require.Equal(t, 1, stats.Pending)
}

func TestRetryFailedRejectsNonFailedTask(t *testing.T) {
	f := newTestFacade(t)
	task, err := f.AddDownload(AddDownloadRequest{URL: "https://example.com/a", Destination: t.TempDir() + "/a"})
	require.NoError(t, err)

	err = f.RetryFailed(task.ID)
	require.Error(t, err)
}

func TestRetryFailedRequeuesFailedTask(t *testing.T) {
	f := newTestFacade(t)
	task, err := f.AddDownload(AddDownloadRequest{URL: "https://example.com/a", Destination: t.TempDir() + "/a"})
	require.NoError(t, err)

	require.NoError(t, f.queue.ForceState(task.ID, dlqueue.StateFailed))
	require.NoError(t, f.RetryFailed(task.ID))

	got, ok := f.GetDownload(task.ID)
	require.True(t, ok)
	require.Equal(t, dlqueue.StateQueued, got.State)
}

func TestClearFinishedRemovesOnlyTerminalTasks(t *testing.T) {
	f := newTestFacade(t)
	active, err := f.AddDownload(AddDownloadRequest{URL: "https://example.com/a", Destination: t.TempDir() + "/a"})
	require.NoError(t, err)
	done, err := f.AddDownload(AddDownloadRequest{URL: "https://example.com/b", Destination: t.TempDir() + "/b"})
	require.NoError(t, err)
	require.NoError(t, f.queue.ForceState(done.ID, dlqueue.StateCompleted))

	n, err := f.ClearFinished()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok := f.GetDownload(done.ID)
	require.False(t, ok)
	_, ok = f.GetDownload(active.ID)
	require.True(t, ok)
}

func TestCacheStatsEmpty(t *testing.T) {
	f := newTestFacade(t)
	stats, err := f.CacheStats()
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.TotalSize)
}

func TestListEnvironmentsCoversEveryKnownType(t *testing.T) {
	f := newTestFacade(t)
	infos := f.ListEnvironments(context.Background())
	require.Len(t, infos, len(envmanager.EnvironmentType))
}

func TestSetSpeedLimitPersists(t *testing.T) {
	f := newTestFacade(t)
	require.NoError(t, f.SetSpeedLimit(1024))
	require.Equal(t, 1024, f.cfg.GetGlobalSpeedLimit())
}

func TestEventsSubscriptionReceivesTaskAdded(t *testing.T) {
	f := newTestFacade(t)
	ch, unsub := f.Events(4)
	defer unsub()

	task, err := f.AddDownload(AddDownloadRequest{URL: "https://example.com/a", Destination: t.TempDir() + "/a"})
	require.NoError(t, err)

	ev := <-ch
	require.Equal(t, dlevents.KindTaskAdded, ev.Kind)
	require.Equal(t, task.ID, ev.TaskID)
}
