// Package httpapi binds internal/hostapi's Facade onto chi routes,
// generalizing the teacher's internal/api.ControlServer (localhost
// enforcement + X-Tachyon-Token header auth + concurrency-limit
// middleware, all on top of chi.Mux) from its narrow AI-bridge endpoint
// set to the full §6 host-callable surface.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tachyon-launcher/internal/config"
	"tachyon-launcher/internal/hostapi"
)

// Server is the chi-based HTTP binding over a hostapi.Facade.
type Server struct {
	facade *hostapi.Facade
	cfg    *config.Manager
	audit  *AuditLogger
	logger *slog.Logger
	router *chi.Mux

	activeReqs int64
}

// New builds a Server and registers every route. Start separately
// binds a listener once the caller decides it's time to serve.
func New(facade *hostapi.Facade, cfg *config.Manager, audit *AuditLogger, logger *slog.Logger) *Server {
	s := &Server{facade: facade, cfg: cfg, audit: audit, logger: logger, router: chi.NewRouter()}
	s.setupRoutes()
	return s
}

// Start binds 127.0.0.1:port and serves until ctx is cancelled. It is a
// no-op if the API is disabled in config, mirroring the teacher's
// startup feature-flag check in ControlServer.Start.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.GetAPIEnabled() {
		s.logger.Info("host API disabled, not starting listener")
		return nil
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.GetAPIPort())
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("host API failed to bind %s: %w", addr, err)
	}

	srv := &http.Server{Handler: s.router}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	s.logger.Info("host API listening", "addr", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) concurrencyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		max := int64(s.cfg.GetMaxConcurrent())
		if max <= 0 {
			max = 1
		}
		current := atomic.AddInt64(&s.activeReqs, 1)
		defer atomic.AddInt64(&s.activeReqs, -1)

		if current > max*4 {
			s.audit.Log(remoteIP(r), r.UserAgent(), r.Method+" "+r.URL.Path, http.StatusTooManyRequests, "overloaded")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// securityMiddleware enforces the same three checks as the teacher's
// ControlServer.securityMiddleware: the API must be enabled at
// request time (not just at startup), the caller must be on loopback,
// and the caller must present the configured token — generalized from
// a hardcoded header name's single purpose (AI bridge) to the full
// host-callable surface.
func (s *Server) securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceIP := remoteIP(r)
		action := r.Method + " " + r.URL.Path

		if !s.cfg.GetAPIEnabled() {
			s.audit.Log(sourceIP, r.UserAgent(), action, http.StatusServiceUnavailable, "API disabled")
			http.Error(w, "host API disabled", http.StatusServiceUnavailable)
			return
		}
		if sourceIP != "127.0.0.1" && sourceIP != "::1" {
			s.audit.Log(sourceIP, r.UserAgent(), action, http.StatusForbidden, "external access denied")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if token := r.Header.Get("X-Launcher-Token"); token != s.cfg.GetAPIToken() {
			s.audit.Log(sourceIP, r.UserAgent(), action, http.StatusUnauthorized, "invalid token")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.audit.Log(sourceIP, r.UserAgent(), action, http.StatusOK, "authorized")
		next.ServeHTTP(w, r)
	})
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityMiddleware)
	s.router.Use(s.concurrencyLimitMiddleware)

	s.router.Get("/v1/status", s.handleStatus)
	s.router.Get("/v1/events", s.handleEvents)

	s.router.Route("/v1/downloads", func(r chi.Router) {
		r.Post("/", s.handleAddDownload)
		r.Get("/", s.handleListDownloads)
		r.Get("/stats", s.handleDownloadStats)
		r.Post("/pause-all", s.handlePauseAll)
		r.Post("/resume-all", s.handleResumeAll)
		r.Post("/cancel-all", s.handleCancelAll)
		r.Post("/clear-finished", s.handleClearFinished)
		r.Post("/retry-all-failed", s.handleRetryAllFailed)
		r.Get("/{id}", s.handleGetDownload)
		r.Delete("/{id}", s.handleRemoveDownload)
		r.Post("/{id}/pause", s.handlePause)
		r.Post("/{id}/resume", s.handleResume)
		r.Post("/{id}/cancel", s.handleCancel)
		r.Post("/{id}/retry", s.handleRetryFailed)
		r.Get("/{id}/verify", s.handleVerifyFile)
	})

	s.router.Route("/v1/settings", func(r chi.Router) {
		r.Post("/speed-limit", s.handleSetSpeedLimit)
		r.Post("/max-concurrent", s.handleSetMaxConcurrent)
	})

	s.router.Post("/v1/shutdown", s.handleShutdown)

	s.router.Route("/v1/history", func(r chi.Router) {
		r.Get("/", s.handleHistoryList)
		r.Get("/search", s.handleHistorySearch)
		r.Get("/stats", s.handleHistoryStats)
		r.Get("/disk-usage", s.handleDiskUsage)
		r.Delete("/", s.handleHistoryClear)
		r.Delete("/{id}", s.handleHistoryRemove)
	})

	s.router.Route("/v1/cache", func(r chi.Router) {
		r.Get("/stats", s.handleCacheStats)
		r.Post("/clean-expired", s.handleCacheCleanExpired)
		r.Post("/clean-all", s.handleCacheCleanAll)
		r.Post("/verify", s.handleCacheVerify)
		r.Post("/repair", s.handleCacheRepair)
	})

	s.router.Route("/v1/environments", func(r chi.Router) {
		r.Get("/", s.handleListEnvironments)
		r.Get("/updates", s.handleCheckAllUpdates)
		r.Get("/detect", s.handleDetectAll)
		r.Get("/{type}", s.handleGetEnvironment)
		r.Get("/{type}/detect", s.handleDetectOne)
		r.Get("/{type}/versions", s.handleAvailableVersions)
		r.Get("/{type}/resolve", s.handleResolveAlias)
		r.Post("/{type}/install", s.handleInstallEnvironment)
		r.Post("/{type}/uninstall", s.handleUninstallEnvironment)
		r.Post("/{type}/use-global", s.handleUseGlobal)
		r.Post("/{type}/use-local", s.handleUseLocal)
		r.Post("/{type}/cleanup", s.handleCleanupVersions)
	})
}

var errMissingDir = fmt.Errorf("query parameter %q is required", "dir")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}

func queryBool(r *http.Request, key string, def bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// handleEvents streams the broadcast event channel as newline-delimited
// JSON, matching the teacher's preference for a plain push channel over
// a bespoke framing protocol.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, unsub := s.facade.Events(16)
	defer unsub()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
