package dlengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tachyon-launcher/internal/cache"
	"tachyon-launcher/internal/dlevents"
	"tachyon-launcher/internal/dlqueue"
	"tachyon-launcher/internal/extract"
	"tachyon-launcher/internal/fsio"
	"tachyon-launcher/internal/history"
	"tachyon-launcher/internal/httpport"
	"tachyon-launcher/internal/metrics"
	"tachyon-launcher/internal/ratelimit"
	"tachyon-launcher/internal/storage"
)

const progressInterval = 100 * time.Millisecond

// control is the per-task flag pair a parked/running worker polls,
// grounded on original_source's TaskControl{paused,cancelled}.
type control struct {
	paused    atomic.Bool
	cancelled atomic.Bool
}

// Engine is the scheduler + worker pool implementing §4.4. It owns no
// storage directly; every durable effect goes through queue/cache/
// history.
type Engine struct {
	logger  *slog.Logger
	queue   *dlqueue.Queue
	cache   *cache.Cache
	history *history.Service
	http    *httpport.Client
	limiter *ratelimit.Limiter
	bus     *dlevents.Broadcaster

	maxConcurrent  int
	defaultTimeout time.Duration
	congestion     *congestionController

	mu      sync.Mutex
	active  map[string]*control
	stopped bool
	wakeCh  chan struct{}
}

// New builds an Engine. maxConcurrent comes from config.Manager at
// startup and may be changed later via SetMaxConcurrent; defaultTimeout
// applies to tasks without their own TimeoutSeconds (0 = no timeout).
func New(logger *slog.Logger, q *dlqueue.Queue, c *cache.Cache, h *history.Service,
	httpClient *httpport.Client, limiter *ratelimit.Limiter, bus *dlevents.Broadcaster,
	maxConcurrent int, defaultTimeout time.Duration) *Engine {
	return &Engine{
		logger:         logger,
		queue:          q,
		cache:          c,
		history:        h,
		http:           httpClient,
		limiter:        limiter,
		bus:            bus,
		maxConcurrent:  maxConcurrent,
		defaultTimeout: defaultTimeout,
		congestion:     newCongestionController(1, maxConcurrent),
		active:         make(map[string]*control),
		wakeCh:         make(chan struct{}, 1),
	}
}

func (e *Engine) SetMaxConcurrent(n int) {
	e.mu.Lock()
	e.maxConcurrent = n
	e.mu.Unlock()
	e.wake()
}

func (e *Engine) wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

// Run drives the scheduler loop until ctx is cancelled: pick the next
// eligible task, spawn a worker, repeat. It returns as soon as ctx is
// done or Shutdown has been called; it does not wait for active workers.
func (e *Engine) Run(ctx context.Context) {
	for {
		e.mu.Lock()
		stopped := e.stopped
		limit := e.maxConcurrent
		e.mu.Unlock()
		if stopped {
			return
		}

		task, err := e.queue.NextPending(limit)
		if err != nil {
			e.logger.Error("scheduler: next_pending failed", "error", err)
		}
		if task != nil {
			e.spawn(ctx, task)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wakeCh:
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Shutdown stops accepting new work, cancels every active task, and
// waits ~500ms for workers to unwind (§4.4 Shutdown).
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.stopped = true
	for _, c := range e.active {
		c.cancelled.Store(true)
	}
	e.mu.Unlock()
	time.Sleep(500 * time.Millisecond)
}

func (e *Engine) spawn(ctx context.Context, task *storage.DownloadTask) {
	c := &control{}
	e.mu.Lock()
	e.active[task.ID] = c
	e.mu.Unlock()

	metrics.ActiveDownloads.Inc()
	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.active, task.ID)
			e.mu.Unlock()
			e.queue.OnTaskFinished(task.URL)
			e.publishQueueUpdated()
			e.wake()
			metrics.ActiveDownloads.Dec()
		}()
		e.runTask(ctx, task, c)
	}()
}

// Pause transitions a task to Paused; if a worker is actively running
// it, the worker parks in place rather than being torn down.
func (e *Engine) Pause(id string) error {
	e.mu.Lock()
	c, active := e.active[id]
	e.mu.Unlock()

	if active {
		c.paused.Store(true)
		if err := e.queue.ForceState(id, dlqueue.StatePaused); err != nil {
			return err
		}
		e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskPaused, TaskID: id})
		return nil
	}
	if err := e.queue.Pause(id); err != nil {
		return err
	}
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskPaused, TaskID: id})
	return nil
}

// Resume un-parks an active worker directly, or re-queues a task that
// has no live worker.
func (e *Engine) Resume(id string) error {
	e.mu.Lock()
	c, active := e.active[id]
	e.mu.Unlock()

	if active {
		c.paused.Store(false)
		if err := e.queue.ForceState(id, dlqueue.StateDownloading); err != nil {
			return err
		}
		e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskResumed, TaskID: id})
		return nil
	}
	if err := e.queue.Resume(id); err != nil {
		return err
	}
	e.wake()
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskResumed, TaskID: id})
	return nil
}

// Cancel signals cancellation to an active worker, or cancels directly
// in the queue if none is running.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	c, active := e.active[id]
	e.mu.Unlock()

	if active {
		c.cancelled.Store(true)
		return nil // the worker's own Interrupted path finalizes the state
	}
	if err := e.queue.Cancel(id); err != nil {
		return err
	}
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskCancelled, TaskID: id})
	return nil
}

// persist writes every field of task back onto the live object dlqueue
// holds, since NextPending/Get only ever hand out value copies to keep
// callers from mutating queue state without going through the queue.
func (e *Engine) persist(task *storage.DownloadTask) error {
	return e.queue.Sync(task.ID, func(t *storage.DownloadTask) {
		*t = *task
	})
}

func (e *Engine) publishQueueUpdated() {
	stats := e.queue.Stats()
	metrics.QueueDepth.WithLabelValues(dlqueue.StateQueued).Set(float64(stats.Pending))
	metrics.QueueDepth.WithLabelValues(dlqueue.StateDownloading).Set(float64(stats.Downloading))
	metrics.QueueDepth.WithLabelValues(dlqueue.StatePaused).Set(float64(stats.Paused))
	e.bus.Publish(dlevents.Event{
		Kind: dlevents.KindQueueUpdated,
		Queue: &dlevents.QueueSnapshot{
			Pending:     stats.Pending,
			Downloading: stats.Downloading,
			Paused:      stats.Paused,
			Completed:   stats.Completed,
			Failed:      stats.Failed,
			Cancelled:   stats.Cancelled,
		},
	})
}

// runTask executes the §4.4 worker algorithm for one task attempt,
// handling cache-hit shortcut, then delegating to attemptDownload and
// applying the retry policy.
func (e *Engine) runTask(ctx context.Context, task *storage.DownloadTask, c *control) {
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskStarted, TaskID: task.ID})
	e.publishQueueUpdated()

	if task.ExpectedChecksum != "" && e.cache != nil {
		if path, ok := e.cache.GetByChecksum(task.ExpectedChecksum); ok {
			if err := fsio.Move(path, task.Destination); err == nil {
				e.finishCompleted(task, "cache-hit:"+task.ExpectedChecksum)
				return
			}
		}
	}

	taskCtx := ctx
	var cancel context.CancelFunc
	if task.TimeoutSeconds > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutSeconds)*time.Second)
	} else if e.defaultTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, e.defaultTimeout)
	} else {
		taskCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	attemptStart := time.Now()
	attemptErr := e.attemptDownload(taskCtx, task, c)
	e.recordCongestionOutcome(task.URL, time.Since(attemptStart), attemptErr != nil)

	if attemptErr == nil {
		e.finishCompleted(task, task.ID)
		return
	}

	var dErr *Err
	if !errors.As(attemptErr, &dErr) {
		dErr = &Err{Kind: KindNetwork, Message: attemptErr.Error()}
	}

	if dErr.Kind == KindInterrupted {
		e.finishTerminal(task, dlqueue.StateCancelled, dErr.Error())
		return
	}

	if retryable(dErr) && task.Retries < task.MaxRetries {
		metrics.RetriesTotal.Inc()
		sleep := backoff(task.Retries, task.RetryBackoffCapSeconds)
		if dErr.Kind == KindRateLimited {
			sleep = time.Duration(dErr.RetryAfter) * time.Second
		}
		task.Retries++
		e.logger.Info("retrying download", "id", task.ID, "attempt", task.Retries, "sleep", sleep, "reason", dErr.Kind)
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
		}
		task.State = dlqueue.StateQueued
		_ = e.persist(task)
		e.wake()
		return
	}

	e.finishTerminal(task, dlqueue.StateFailed, dErr.Error())
}

// recordCongestionOutcome feeds one attempt's outcome into the
// congestion controller and, when it yields a new advisory cap,
// applies it to the queue's per-host limit (§C: advisory only, never
// overrides the task state machine or retry policy).
func (e *Engine) recordCongestionOutcome(rawURL string, latency time.Duration, failed bool) {
	host := hostOf(rawURL)
	if host == "" {
		return
	}
	ideal := e.congestion.recordOutcome(host, latency, failed)
	if ideal > 0 {
		e.queue.SetHostLimit(host, ideal)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func backoff(retries int, capSeconds int) time.Duration {
	if capSeconds <= 0 {
		capSeconds = 60
	}
	seconds := 1 << retries
	if seconds > capSeconds {
		seconds = capSeconds
	}
	return time.Duration(seconds) * time.Second
}

// finishCompleted marks task Completed and records history. operationID
// is the task's own id normally, or the `cache-hit:<checksum>` token
// when short-circuited by a cache hit; it is written to the completion
// log entry only and is not returned to callers or stored on the task.
func (e *Engine) finishCompleted(task *storage.DownloadTask, operationID string) {
	now := time.Now().UTC()
	task.CompletedAt = &now
	task.Percent = 100
	task.State = dlqueue.StateCompleted
	_ = e.persist(task)
	if task.AutoExtractDestination != "" {
		e.extractTask(task)
	}
	if task.AutoOrganize {
		e.organizeTask(task)
	}
	e.recordHistory(task, dlqueue.StateCompleted, "")
	e.logger.Info("download completed", "id", task.ID, "operation_id", operationID)
	metrics.DownloadsTotal.WithLabelValues(dlqueue.StateCompleted).Inc()
	metrics.BytesDownloadedTotal.Add(float64(task.DownloadedBytes))
	if task.StartedAt != nil {
		metrics.DownloadDuration.Observe(now.Sub(*task.StartedAt).Seconds())
	}
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskCompleted, TaskID: task.ID})
}

func (e *Engine) finishTerminal(task *storage.DownloadTask, state string, reason string) {
	now := time.Now().UTC()
	task.CompletedAt = &now
	task.State = state
	_ = e.persist(task)
	e.recordHistory(task, state, reason)
	metrics.DownloadsTotal.WithLabelValues(state).Inc()
	kind := dlevents.KindTaskFailed
	if state == dlqueue.StateCancelled {
		kind = dlevents.KindTaskCancelled
	}
	e.bus.Publish(dlevents.Event{Kind: kind, TaskID: task.ID, Error: reason})
}

func (e *Engine) recordHistory(task *storage.DownloadTask, status, errMsg string) {
	if e.history == nil {
		return
	}
	var duration, avgSpeed float64
	if task.StartedAt != nil && task.CompletedAt != nil {
		duration = task.CompletedAt.Sub(*task.StartedAt).Seconds()
		if duration > 0 {
			avgSpeed = float64(task.DownloadedBytes) / duration
		}
	}
	rec := &storage.HistoryRecord{
		ID:           uuid.NewString(),
		URL:          task.URL,
		Filename:     task.Name,
		Destination:  task.Destination,
		Size:         task.DownloadedBytes,
		Checksum:     task.ExpectedChecksum,
		DurationSecs: duration,
		AverageSpeed: avgSpeed,
		Status:       status,
		Error:        errMsg,
		Provider:     task.Provider,
	}
	if task.StartedAt != nil {
		rec.StartedAt = *task.StartedAt
	}
	if task.CompletedAt != nil {
		rec.CompletedAt = *task.CompletedAt
	}
	if err := e.history.Append(rec); err != nil {
		e.logger.Warn("failed to append history record", "error", err)
	}
}

// attemptDownload runs exactly one attempt of the §4.4 worker
// algorithm (probe, resume, GET, rate-limited copy, verify).
func (e *Engine) attemptDownload(ctx context.Context, task *storage.DownloadTask, c *control) error {
	if err := fsio.MkdirAll(parentDir(task.Destination)); err != nil {
		return &Err{Kind: KindFileSystem, Message: err.Error()}
	}

	headers, err := httpport.HeadersFromJSON(task.HeadersJSON)
	if err != nil {
		headers = nil
	}

	var resumeFrom int64
	resuming := false
	if task.AllowResume && fsio.Exists(task.Destination) {
		if size := fsio.Size(task.Destination); size > 0 {
			resumeFrom = size
			resuming = true
		}
	}

	resp, err := e.http.Do(ctx, task.URL, headers, resumeFrom)
	if err != nil {
		return classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		info := httpport.ParseRateLimitHeaders(resp.Header)
		if info.Remaining == 0 && info.HasReset {
			retryAfter := int64(time.Until(info.Reset).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			return &Err{Kind: KindRateLimited, RetryAfter: retryAfter, Message: "rate limited"}
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &Err{Kind: KindHTTPError, Status: resp.StatusCode, Message: httpport.FriendlyHTTPError(resp.StatusCode)}
	}

	task.SupportsResume = resp.Header.Get("Accept-Ranges") == "bytes"
	if name := httpport.ParseContentDispositionFilename(resp.Header.Get("Content-Disposition")); name != "" {
		task.ServerFilename = name
	}

	var totalBytes int64 = -1
	if resp.ContentLength >= 0 {
		totalBytes = resp.ContentLength + resumeFrom
	}
	if totalBytes >= 0 {
		task.TotalBytes = &totalBytes
		if err := fsio.AllocateFile(task.Destination, totalBytes); err != nil {
			var spaceErr *fsio.InsufficientSpaceError
			if errors.As(err, &spaceErr) {
				return &Err{Kind: KindInsufficientSpace, Message: err.Error(), Required: spaceErr.Required, Available: spaceErr.Available}
			}
			return &Err{Kind: KindFileSystem, Message: err.Error()}
		}
	}

	file, err := fsio.OpenForWrite(task.Destination, resuming)
	if err != nil {
		return &Err{Kind: KindFileSystem, Message: err.Error()}
	}
	defer file.Close()

	if err := e.copyWithProgress(ctx, task, c, file, resp.Body, resumeFrom, totalBytes); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return &Err{Kind: KindFileSystem, Message: err.Error(), transient: true}
	}

	if task.VerifyChecksum && task.ExpectedChecksum != "" {
		actual, err := fsio.SHA256File(task.Destination)
		if err != nil {
			return &Err{Kind: KindFileSystem, Message: err.Error()}
		}
		if actual != task.ExpectedChecksum {
			_ = fsio.Remove(task.Destination, false)
			return &Err{Kind: KindChecksumMismatch, Expected: task.ExpectedChecksum, Actual: actual}
		}
	}

	if e.cache != nil && task.ExpectedChecksum != "" {
		_ = e.cache.Put(&storage.CacheEntry{
			Key:      task.ExpectedChecksum,
			FilePath: task.Destination,
			Size:     task.DownloadedBytes,
			Checksum: task.ExpectedChecksum,
			EntryType: "Download",
		})
	}

	return nil
}

func parentDir(path string) string {
	idx := lastSlash(path)
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return i
		}
	}
	return -1
}

func classifyTransportErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return &Err{Kind: KindTimeout, Message: httpport.FriendlyError(err)}
	}
	if ctx.Err() == context.Canceled {
		return &Err{Kind: KindInterrupted, Message: "cancelled"}
	}
	return &Err{Kind: KindNetwork, Message: httpport.FriendlyError(err)}
}

const copyChunkSize = 32 * 1024

// copyWithProgress streams resp.Body to file through the rate limiter,
// honoring pause/cancel flags and throttling progress events to ~100ms,
// per §4.4 step 12. Progress is delivered to callers via the event bus
// only; the queue's persisted row is written back at state-transition
// boundaries (finishCompleted/finishTerminal/retry), not on every
// chunk, so an external Pause/Cancel's direct state flip can never
// race with a worker's own persist call.
func (e *Engine) copyWithProgress(ctx context.Context, task *storage.DownloadTask, c *control,
	file io.Writer, body io.Reader, resumeFrom int64, totalBytes int64) error {

	buf := make([]byte, copyChunkSize)
	downloaded := resumeFrom
	task.DownloadedBytes = downloaded
	started := time.Now()
	lastEvent := time.Time{}

	for {
		if c.cancelled.Load() {
			return &Err{Kind: KindInterrupted, Message: "cancelled"}
		}
		for c.paused.Load() && !c.cancelled.Load() {
			time.Sleep(100 * time.Millisecond)
		}
		if c.cancelled.Load() {
			return &Err{Kind: KindInterrupted, Message: "cancelled"}
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if err := e.limiter.Acquire(ctx, n); err != nil {
				return classifyTransportErr(ctx, err)
			}
			if _, err := file.Write(buf[:n]); err != nil {
				return &Err{Kind: KindFileSystem, Message: err.Error()}
			}
			downloaded += int64(n)
			task.DownloadedBytes = downloaded

			if time.Since(lastEvent) >= progressInterval {
				e.publishProgress(task, downloaded, totalBytes, started)
				lastEvent = time.Now()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				e.publishProgress(task, downloaded, totalBytes, started)
				return nil
			}
			return classifyTransportErr(ctx, readErr)
		}
	}
}

// extractTask runs the §9 archive-extraction hook: unpack the
// completed download into task.AutoExtractDestination and emit
// TaskExtracting/TaskExtracted around the attempt. Extraction failure
// is logged but does not revert the task's Completed state — the
// download itself succeeded.
func (e *Engine) extractTask(task *storage.DownloadTask) {
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskExtracting, TaskID: task.ID})
	_, err := extract.Extract(task.Destination, task.AutoExtractDestination)
	if err != nil {
		e.logger.Warn("extraction failed", "id", task.ID, "error", err)
	}
	e.bus.Publish(dlevents.Event{Kind: dlevents.KindTaskExtracted, TaskID: task.ID, Error: errString(err)})
}

// organizeTask runs the opt-in SmartOrganizer hook (SPEC_FULL §C):
// move the completed file into a category subfolder and persist its
// new location. Failure is logged, not fatal — the download itself
// already succeeded.
func (e *Engine) organizeTask(task *storage.DownloadTask) {
	newPath, err := fsio.OrganizeIntoCategory(task.Destination)
	if err != nil {
		e.logger.Warn("smart organize failed", "id", task.ID, "error", err)
		return
	}
	task.Destination = newPath
	_ = e.persist(task)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Engine) publishProgress(task *storage.DownloadTask, downloaded, total int64, started time.Time) {
	elapsed := time.Since(started).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(downloaded) / elapsed
	}
	task.SpeedBytesSec = speed

	var totalPtr *int64
	var percent float64
	var etaPtr *int64
	if total > 0 {
		t := total
		totalPtr = &t
		percent = (float64(downloaded) / float64(total)) * 100
		if speed > 0 {
			remaining := total - downloaded
			eta := int64(float64(remaining) / speed)
			etaPtr = &eta
		}
	}
	task.Percent = percent

	e.bus.Publish(dlevents.Event{
		Kind:   dlevents.KindTaskProgress,
		TaskID: task.ID,
		Progress: &dlevents.Progress{
			DownloadedBytes: downloaded,
			TotalBytes:      totalPtr,
			SpeedBytesSec:   speed,
			Percent:         percent,
			ETASeconds:      etaPtr,
		},
	})
}
