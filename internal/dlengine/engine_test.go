package dlengine

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tachyon-launcher/internal/cache"
	"tachyon-launcher/internal/dlevents"
	"tachyon-launcher/internal/dlqueue"
	"tachyon-launcher/internal/history"
	"tachyon-launcher/internal/httpport"
	"tachyon-launcher/internal/ratelimit"
	"tachyon-launcher/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *dlqueue.Queue, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	q, err := dlqueue.New(store)
	require.NoError(t, err)

	c := cache.New(store, 0, time.Hour)
	h := history.New(store)
	bus := dlevents.NewBroadcaster()
	limiter := ratelimit.New(0)
	client := httpport.New("")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	e := New(logger, q, c, h, client, limiter, bus, 5, 10*time.Second)
	return e, q, dir
}

func TestEngineDownloadsSuccessfully(t *testing.T) {
	body := []byte("hello world, this is a test payload")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Write(body)
	}))
	defer srv.Close()

	e, q, dir := newTestEngine(t)
	dest := filepath.Join(dir, "out.bin")
	require.NoError(t, q.Add(&storage.DownloadTask{
		ID: "t1", URL: srv.URL, Destination: dest, MaxRetries: 3,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task, err := q.NextPending(5)
	require.NoError(t, err)
	require.NotNil(t, task)

	e.runTask(ctx, task, &control{})

	got, ok := q.Get("t1")
	require.True(t, ok)
	require.Equal(t, dlqueue.StateCompleted, got.State)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, body, data)
}

func TestEngineFailsFastOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e, q, dir := newTestEngine(t)
	dest := filepath.Join(dir, "missing.bin")
	require.NoError(t, q.Add(&storage.DownloadTask{ID: "t2", URL: srv.URL, Destination: dest, MaxRetries: 0}))

	task, err := q.NextPending(5)
	require.NoError(t, err)

	e.runTask(context.Background(), task, &control{})

	got, ok := q.Get("t2")
	require.True(t, ok)
	require.Equal(t, dlqueue.StateFailed, got.State)
}

func TestEngineChecksumMismatchDeletesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wrong content"))
	}))
	defer srv.Close()

	e, q, dir := newTestEngine(t)
	dest := filepath.Join(dir, "checked.bin")
	require.NoError(t, q.Add(&storage.DownloadTask{
		ID: "t3", URL: srv.URL, Destination: dest, MaxRetries: 0,
		VerifyChecksum: true, ExpectedChecksum: "deadbeef",
	}))

	task, err := q.NextPending(5)
	require.NoError(t, err)

	e.runTask(context.Background(), task, &control{})

	got, ok := q.Get("t3")
	require.True(t, ok)
	require.Equal(t, dlqueue.StateFailed, got.State)
	require.False(t, fileExists(dest))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
