package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
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
	"tachyon-launcher/internal/hostapi"
	"tachyon-launcher/internal/httpport"
	"tachyon-launcher/internal/provider"
	"tachyon-launcher/internal/ratelimit"
	"tachyon-launcher/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *config.Manager) {
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
	require.NoError(t, cfg.SetAPIEnabled(true))
	reg := provider.NewRegistry()
	envMgr := envmanager.New(reg, cfg)
	bus := dlevents.NewBroadcaster()
	limiter := ratelimit.New(0)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	engine := dlengine.New(logger, q, c, h, httpport.New("test-agent"), limiter, bus, 2, 0)
	facade := hostapi.New(logger, cfg, q, engine, c, h, envMgr, reg, limiter, bus)
	audit := NewAuditLogger(logger, dir)
	t.Cleanup(audit.Close)

	return New(facade, cfg, audit, logger), cfg
}

func doRequest(t *testing.T, s *Server, cfg *config.Manager, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:5555"
	req.Header.Set("X-Launcher-Token", cfg.GetAPIToken())
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestSecurityMiddlewareRejectsMissingToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/status", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	require.Equal(t, 401, rr.Code)
}

func TestSecurityMiddlewareRejectsNonLoopback(t *testing.T) {
	s, cfg := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/status", nil)
	req.RemoteAddr = "203.0.113.1:5555"
	req.Header.Set("X-Launcher-Token", cfg.GetAPIToken())
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	require.Equal(t, 403, rr.Code)
}

func TestSecurityMiddlewareRejectsWhenDisabled(t *testing.T) {
	s, cfg := newTestServer(t)
	require.NoError(t, cfg.SetAPIEnabled(false))
	rr := doRequest(t, s, cfg, "GET", "/v1/status", nil)
	require.Equal(t, 503, rr.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s, cfg := newTestServer(t)
	rr := doRequest(t, s, cfg, "GET", "/v1/status", nil)
	require.Equal(t, 200, rr.Code)
}

func TestAddAndGetDownload(t *testing.T) {
	s, cfg := newTestServer(t)
	body, err := json.Marshal(hostapi.AddDownloadRequest{
		URL:         "https://example.com/a.zip",
		Destination: t.TempDir() + "/a.zip",
	})
	require.NoError(t, err)

	rr := doRequest(t, s, cfg, "POST", "/v1/downloads", body)
	require.Equal(t, 201, rr.Code)

	var task storage.DownloadTask
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
	require.NotEmpty(t, task.ID)

	rr = doRequest(t, s, cfg, "GET", "/v1/downloads/"+task.ID, nil)
	require.Equal(t, 200, rr.Code)
}

func TestDownloadStatsEndpointDoesNotCollideWithIDRoute(t *testing.T) {
	s, cfg := newTestServer(t)
	rr := doRequest(t, s, cfg, "GET", "/v1/downloads/stats", nil)
	require.Equal(t, 200, rr.Code)

	var stats dlqueue.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
}

func TestListEnvironmentsEndpoint(t *testing.T) {
	s, cfg := newTestServer(t)
	rr := doRequest(t, s, cfg, "GET", "/v1/environments", nil)
	require.Equal(t, 200, rr.Code)

	var infos []envmanager.EnvironmentInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &infos))
	require.Len(t, infos, len(envmanager.EnvironmentType))
}

func TestDetectAllRequiresDirQueryParam(t *testing.T) {
	s, cfg := newTestServer(t)
	rr := doRequest(t, s, cfg, "GET", "/v1/environments/detect", nil)
	require.Equal(t, 400, rr.Code)
}

func TestCacheStatsEndpoint(t *testing.T) {
	s, cfg := newTestServer(t)
	rr := doRequest(t, s, cfg, "GET", "/v1/cache/stats", nil)
	require.Equal(t, 200, rr.Code)
}
