// Package hostapi implements the host-callable surface of §6: every
// operation a shell (CLI, desktop UI, HTTP client) can invoke against
// the Download Engine, Content Cache, Environment Manager, and History
// service, collected behind one facade. It owns no storage or
// scheduling itself — it is pure wiring over dlqueue/dlengine/cache/
// history/envmanager/provider/detect, grounded on the teacher's
// internal/core.TachyonEngine, which plays the identical role of
// "the one type the transport layer holds a pointer to."
package hostapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"tachyon-launcher/internal/cache"
	"tachyon-launcher/internal/config"
	"tachyon-launcher/internal/detect"
	"tachyon-launcher/internal/dlengine"
	"tachyon-launcher/internal/dlevents"
	"tachyon-launcher/internal/dlqueue"
	"tachyon-launcher/internal/envmanager"
	"tachyon-launcher/internal/fsio"
	"tachyon-launcher/internal/history"
	"tachyon-launcher/internal/httpport"
	"tachyon-launcher/internal/provider"
	"tachyon-launcher/internal/ratelimit"
	"tachyon-launcher/internal/storage"
)

// Facade is the single entry point every transport (CLI, HTTP, an
// eventual desktop shell) binds to.
type Facade struct {
	logger  *slog.Logger
	cfg     *config.Manager
	queue   *dlqueue.Queue
	engine  *dlengine.Engine
	cache   *cache.Cache
	history *history.Service
	env     *envmanager.Manager
	reg     *provider.Registry
	limiter *ratelimit.Limiter
	bus     *dlevents.Broadcaster
}

// New wires a Facade over already-constructed components. Construction
// order (storage -> queue/cache/history -> engine -> envmanager) is the
// caller's responsibility (cmd/launcherd's job), not this package's.
func New(logger *slog.Logger, cfg *config.Manager, q *dlqueue.Queue, e *dlengine.Engine,
	c *cache.Cache, h *history.Service, env *envmanager.Manager, reg *provider.Registry,
	limiter *ratelimit.Limiter, bus *dlevents.Broadcaster) *Facade {
	return &Facade{
		logger:  logger,
		cfg:     cfg,
		queue:   q,
		engine:  e,
		cache:   c,
		history: h,
		env:     env,
		reg:     reg,
		limiter: limiter,
		bus:     bus,
	}
}

// ---- Download Engine (§6 download_*) ----

// AddDownloadRequest is download_add's argument shape.
type AddDownloadRequest struct {
	URL                    string
	Destination            string
	Name                   string
	ExpectedChecksum       string
	Provider               string
	Priority               int
	Headers                map[string]string
	MaxRetries             int
	RetryBackoffCapSeconds int
	VerifyChecksum         bool
	AllowResume            bool
	TimeoutSeconds         int
	AutoExtractDestination string
	AutoOrganize           bool
}

// AddDownload enqueues a new task in Queued state and wakes the engine.
func (f *Facade) AddDownload(req AddDownloadRequest) (*storage.DownloadTask, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("hostapi: download_add requires a URL")
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("hostapi: download_add requires a destination")
	}

	headers := make([]storage.HeaderPair, 0, len(req.Headers))
	for k, v := range req.Headers {
		headers = append(headers, storage.HeaderPair{Name: k, Value: v})
	}
	headersJSON, err := httpport.HeadersToJSON(headers)
	if err != nil {
		return nil, err
	}

	task := &storage.DownloadTask{
		ID:                     uuid.New().String(),
		URL:                    req.URL,
		Destination:            req.Destination,
		Name:                   req.Name,
		ExpectedChecksum:       req.ExpectedChecksum,
		Provider:               req.Provider,
		Priority:               req.Priority,
		HeadersJSON:            headersJSON,
		MaxRetries:             req.MaxRetries,
		RetryBackoffCapSeconds: req.RetryBackoffCapSeconds,
		VerifyChecksum:         req.VerifyChecksum,
		AllowResume:            req.AllowResume,
		TimeoutSeconds:         req.TimeoutSeconds,
		AutoExtractDestination: req.AutoExtractDestination,
		AutoOrganize:           req.AutoOrganize,
	}
	if err := f.queue.Add(task); err != nil {
		return nil, err
	}
	f.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskAdded, TaskID: task.ID})
	return task, nil
}

// GetDownload returns one task's current snapshot.
func (f *Facade) GetDownload(id string) (*storage.DownloadTask, bool) {
	return f.queue.Get(id)
}

// ListDownloads returns every known task, priority-then-FIFO ordered.
func (f *Facade) ListDownloads() []*storage.DownloadTask {
	return f.queue.ListAll()
}

// DownloadStats returns the aggregate queue snapshot.
func (f *Facade) DownloadStats() dlqueue.Stats {
	return f.queue.Stats()
}

// Pause/Resume/Cancel delegate straight to the engine, which owns the
// §4.5 state-machine guard.
func (f *Facade) Pause(id string) error  { return f.engine.Pause(id) }
func (f *Facade) Resume(id string) error { return f.engine.Resume(id) }
func (f *Facade) Cancel(id string) error { return f.engine.Cancel(id) }

// Remove deletes a task outright; active tasks are cancelled first so
// their worker goroutine observes the cancellation flag before the row
// disappears out from under it.
func (f *Facade) Remove(id string) error {
	if t, ok := f.queue.Get(id); ok && t.State == dlqueue.StateDownloading {
		_ = f.engine.Cancel(id)
	}
	return f.queue.Remove(id)
}

// PauseAll/ResumeAll/CancelAll apply their single-task op to every task
// currently in a state where the op is legal, ignoring individual
// §4.5 transition errors (a task that's already Completed simply isn't
// touched).
func (f *Facade) PauseAll() int {
	n := 0
	for _, t := range f.queue.ListAll() {
		if t.State == dlqueue.StateDownloading {
			if err := f.engine.Pause(t.ID); err == nil {
				n++
			}
		}
	}
	return n
}

func (f *Facade) ResumeAll() int {
	n := 0
	for _, t := range f.queue.ListAll() {
		if t.State == dlqueue.StatePaused {
			if err := f.engine.Resume(t.ID); err == nil {
				n++
			}
		}
	}
	return n
}

func (f *Facade) CancelAll() int {
	n := 0
	for _, t := range f.queue.ListAll() {
		if t.State == dlqueue.StateQueued || t.State == dlqueue.StateDownloading || t.State == dlqueue.StatePaused {
			if err := f.engine.Cancel(t.ID); err == nil {
				n++
			}
		}
	}
	return n
}

// ClearFinished removes every task in a terminal state.
func (f *Facade) ClearFinished() (int, error) {
	return f.queue.ClearFinished()
}

// RetryFailed resets a Failed task back to Queued with its transient
// fields cleared, letting the scheduler pick it up fresh.
func (f *Facade) RetryFailed(id string) error {
	t, ok := f.queue.Get(id)
	if !ok {
		return fmt.Errorf("hostapi: task %s not found", id)
	}
	if t.State != dlqueue.StateFailed {
		return fmt.Errorf("hostapi: task %s is %s, not Failed", id, t.State)
	}
	if err := f.queue.RetryTask(id); err != nil {
		return err
	}
	f.queue.Broadcast()
	return nil
}

// RetryAllFailed retries every currently Failed task.
func (f *Facade) RetryAllFailed() int {
	n := f.queue.RetryAllFailed()
	if n > 0 {
		f.queue.Broadcast()
	}
	return n
}

// SetSpeedLimit updates the process-wide token bucket (0 disables
// throttling).
func (f *Facade) SetSpeedLimit(bytesPerSec int) error {
	f.limiter.SetLimit(bytesPerSec)
	return f.cfg.SetGlobalSpeedLimit(bytesPerSec)
}

// SetMaxConcurrent updates the scheduler's concurrency ceiling.
func (f *Facade) SetMaxConcurrent(n int) error {
	f.engine.SetMaxConcurrent(n)
	return f.cfg.SetMaxConcurrent(n)
}

// Shutdown runs the engine's Shutdown (which flags every active worker
// cancelled and waits about 500ms; it does not wait for workers to
// exit) and returns when that finishes or ctx expires first.
func (f *Facade) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.engine.Shutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VerifyResult is verify_file's outcome.
type VerifyResult struct {
	Match    bool
	Actual   string
	Expected string
}

// VerifyFile recomputes a completed task's destination checksum and
// compares it against the recorded expected value.
func (f *Facade) VerifyFile(id string) (VerifyResult, error) {
	t, ok := f.queue.Get(id)
	if !ok {
		return VerifyResult{}, fmt.Errorf("hostapi: task %s not found", id)
	}
	actual, err := fsio.SHA256File(t.Destination)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{
		Match:    t.ExpectedChecksum == "" || actual == t.ExpectedChecksum,
		Actual:   actual,
		Expected: t.ExpectedChecksum,
	}, nil
}

// ---- History (§6 history_*) ----

func (f *Facade) HistoryList(limit int) ([]*storage.HistoryRecord, error) {
	return f.history.List(limit)
}

func (f *Facade) HistorySearch(term string) ([]*storage.HistoryRecord, error) {
	return f.history.Search(term)
}

func (f *Facade) HistoryStats() (history.Stats, error) {
	return f.history.Stats()
}

func (f *Facade) HistoryClear(olderThanDays *int) (int64, error) {
	return f.history.Clear(olderThanDays)
}

func (f *Facade) HistoryRemove(id string) error {
	return f.history.Remove(id)
}

func (f *Facade) DiskUsage(path string) (history.DiskUsage, error) {
	if path == "" {
		path = f.cfg.GetDefaultDownloadDir()
	}
	return f.history.DiskUsage(path)
}

// ---- Content Cache (§6 cache_*) ----

func (f *Facade) CacheStats() (cache.Stats, error) { return f.cache.Stats() }

func (f *Facade) CacheCleanExpired(useTrash bool) (int, error) {
	return f.cache.CleanExpired(useTrash)
}

func (f *Facade) CacheCleanAll(useTrash bool) (int, error) {
	return f.cache.CleanAll(useTrash)
}

func (f *Facade) CacheVerify() ([]cache.VerifyResult, error) { return f.cache.Verify() }

func (f *Facade) CacheRepair() (int, error) { return f.cache.Repair() }

// ---- Environment Manager (§6 env_*) ----

func (f *Facade) ListEnvironments(ctx context.Context) []envmanager.EnvironmentInfo {
	return f.env.ListEnvironments(ctx)
}

func (f *Facade) GetEnvironment(ctx context.Context, envType string) envmanager.EnvironmentInfo {
	return f.env.GetEnvironment(ctx, envType)
}

// InstallEnvironment resolves a provider for envType and installs
// version through it. The actual bytes for providers backed by a
// downloadable archive (e.g. Zig) flow through AddDownload first by
// convention of the caller; providers that shell out (rustup) install
// synchronously here.
func (f *Facade) InstallEnvironment(ctx context.Context, envType, providerID, version string) error {
	resolved, ok := f.env.Resolve(ctx, envType, providerID, version)
	if !ok {
		return fmt.Errorf("hostapi: no provider available for %s", envType)
	}
	p := f.reg.Get(resolved.ProviderID)
	if p == nil {
		return fmt.Errorf("hostapi: provider %s not registered", resolved.ProviderID)
	}
	return p.Install(ctx, envType, version)
}

func (f *Facade) UninstallEnvironment(ctx context.Context, envType, providerID, version string) error {
	resolved, ok := f.env.Resolve(ctx, envType, providerID, "")
	if !ok {
		return fmt.Errorf("hostapi: no provider available for %s", envType)
	}
	p := f.reg.Get(resolved.ProviderID)
	if p == nil {
		return fmt.Errorf("hostapi: provider %s not registered", resolved.ProviderID)
	}
	return p.Uninstall(ctx, envType, version)
}

func (f *Facade) UseGlobal(ctx context.Context, envType, providerID, version string) error {
	ep, err := f.resolveEnvProvider(ctx, envType, providerID, version)
	if err != nil {
		return err
	}
	return ep.SetGlobalVersion(ctx, version)
}

func (f *Facade) UseLocal(ctx context.Context, envType, providerID, version, projectDir string) error {
	ep, err := f.resolveEnvProvider(ctx, envType, providerID, version)
	if err != nil {
		return err
	}
	return ep.SetLocalVersion(ctx, projectDir, version)
}

func (f *Facade) resolveEnvProvider(ctx context.Context, envType, providerID, version string) (provider.EnvironmentProvider, error) {
	resolved, ok := f.env.Resolve(ctx, envType, providerID, version)
	if !ok {
		return nil, fmt.Errorf("hostapi: no provider available for %s", envType)
	}
	ep, ok := f.reg.GetEnvironmentProvider(resolved.ProviderID)
	if !ok {
		return nil, fmt.Errorf("hostapi: provider %s does not manage environments", resolved.ProviderID)
	}
	return ep, nil
}

// DetectEnvironment runs the Project Version Detector for one language
// starting at dir, using the config-enabled source list (or the
// built-in default if none is configured).
func (f *Facade) DetectEnvironment(envType, dir string) (detect.Result, bool) {
	sources := f.cfg.GetEnabledDetectionSources(envType)
	if len(sources) == 0 {
		sources = detect.DefaultEnabledSources(envType)
	}
	return detect.DetectVersion(envType, dir, sources)
}

// DetectAll runs DetectEnvironment for every known environment type and
// returns only the ones that matched.
func (f *Facade) DetectAll(dir string) map[string]detect.Result {
	out := make(map[string]detect.Result)
	for _, envType := range envmanager.EnvironmentType {
		if res, ok := f.DetectEnvironment(envType, dir); ok {
			out[envType] = res
		}
	}
	return out
}

func (f *Facade) AvailableVersions(ctx context.Context, envType, providerID string) ([]provider.VersionInfo, error) {
	resolved, ok := f.env.Resolve(ctx, envType, providerID, "")
	if !ok {
		return nil, fmt.Errorf("hostapi: no provider available for %s", envType)
	}
	p := f.reg.Get(resolved.ProviderID)
	if p == nil {
		return nil, fmt.Errorf("hostapi: provider %s not registered", resolved.ProviderID)
	}
	return p.GetVersions(ctx, envType)
}

// ResolveAlias implements §6's env_resolve_alias(env_type, alias):
// resolves a semantic version alias ("lts" | "latest" | "stable") to
// a concrete version string, without installing or switching
// anything.
func (f *Facade) ResolveAlias(ctx context.Context, envType, providerID, alias string) (envmanager.AliasResolution, error) {
	return f.env.ResolveAlias(ctx, envType, providerID, alias)
}

func (f *Facade) CheckAllUpdates(ctx context.Context) []envmanager.UpdateCheck {
	return f.env.CheckAllUpdates(ctx)
}

func (f *Facade) CleanupVersions(ctx context.Context, envType string, keep []string) ([]string, error) {
	return f.env.CleanupVersions(ctx, envType, keep)
}

// Events returns a new subscription to the broadcast event stream (§9),
// for a transport to fan out to its own clients (SSE, websocket, IPC).
func (f *Facade) Events(buffer int) (<-chan dlevents.Event, func()) {
	return f.bus.Subscribe(buffer)
}
