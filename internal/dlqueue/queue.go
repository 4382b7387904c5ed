// Package dlqueue implements the Download Queue of §4.3: tasks keyed by
// id, a priority/FIFO ordering rule, and the state-machine transitions
// of §4.5. It is grounded on the teacher's two queue generations —
// internal/core/queue.go's container/heap PriorityQueue for the
// priority-desc/FIFO-tiebreak ordering, and internal/queue's
// SmartScheduler for the per-host concurrency limiting folded in here
// as the supplemented host-limit feature (SPEC_FULL §C).
package dlqueue

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"tachyon-launcher/internal/storage"
)

// ErrInvalidTransition is returned when a caller requests a state change
// the machine in §4.5 does not allow.
type ErrInvalidTransition struct {
	TaskID string
	From   string
	Action string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("task %s: cannot %s from state %s", e.TaskID, e.Action, e.From)
}

// ErrDestinationBusy describes an identical-destination collision. It is
// not returned by NextPending, which marks the colliding task Failed
// without recording an error message on it.
type ErrDestinationBusy struct {
	Destination string
}

func (e *ErrDestinationBusy) Error() string {
	return fmt.Sprintf("destination already in use by another active download: %s", e.Destination)
}

const (
	StateQueued      = "Queued"
	StateDownloading = "Downloading"
	StatePaused      = "Paused"
	StateCompleted   = "Completed"
	StateFailed      = "Failed"
	StateCancelled   = "Cancelled"
)

// Stats is the aggregate snapshot §4.3's stats() operation returns.
type Stats struct {
	Pending         int
	Downloading     int
	Paused          int
	Completed       int
	Failed          int
	Cancelled       int
	TotalBytes      int64
	DownloadedBytes int64
	OverallProgress float64
}

// Queue holds every known task in memory, durable via store, under a
// single exclusive lock (§5 "a single exclusive lock guards composition
// and state mutations; snapshots are cheap value copies").
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	tasks map[string]*storage.DownloadTask
	store *storage.Store

	hostLimits    map[string]int
	activePerHost map[string]int
}

// New loads every persisted task (e.g. after a restart) and returns a
// ready queue.
func New(store *storage.Store) (*Queue, error) {
	q := &Queue{
		tasks:         make(map[string]*storage.DownloadTask),
		store:         store,
		hostLimits:    make(map[string]int),
		activePerHost: make(map[string]int),
	}
	q.cond = sync.NewCond(&q.mu)

	existing, err := store.GetAllTasks()
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		q.tasks[t.ID] = t
	}
	return q, nil
}

// Add inserts a new task in Queued state, assigning it the next FIFO
// order number.
func (q *Queue) Add(t *storage.DownloadTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	order, err := q.store.NextQueueOrder()
	if err != nil {
		return err
	}
	t.QueueOrder = order
	t.State = StateQueued
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt

	if err := q.store.SaveTask(t); err != nil {
		return err
	}
	q.tasks[t.ID] = t
	q.cond.Broadcast()
	return nil
}

// Remove deletes a task entirely, regardless of state.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.tasks[id]; !ok {
		return fmt.Errorf("task %s not found", id)
	}
	delete(q.tasks, id)
	return q.store.DeleteTask(id)
}

// Get returns a snapshot copy of one task.
func (q *Queue) Get(id string) (*storage.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// withTask runs fn under the queue lock with the live (non-copy) task,
// persisting afterward. This is the queue's get_mut primitive.
func (q *Queue) withTask(id string, fn func(t *storage.DownloadTask) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if err := fn(t); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	return q.store.SaveTask(t)
}

// Sync applies apply to the live task object and persists it. The
// Engine uses this to write back progress/retry/metadata fields onto
// the snapshot copies NextPending handed out, since every Get/ListAll
// caller only ever sees value copies.
func (q *Queue) Sync(id string, apply func(t *storage.DownloadTask)) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		apply(t)
		return nil
	})
}

// ForceState sets a task's state directly without validating a §4.5
// transition. It exists for the Engine's internal worker-lifecycle
// bookkeeping (e.g. flipping Downloading<->Paused for a task whose
// worker goroutine is still alive and merely parked), which is not a
// user-facing transition request and must not be rejected by the state
// machine guard the Pause/Resume/Cancel methods enforce.
func (q *Queue) ForceState(id string, state string) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		t.State = state
		return nil
	})
}

// ListAll returns a snapshot of every task.
func (q *Queue) ListAll() []*storage.DownloadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*storage.DownloadTask, 0, len(q.tasks))
	for _, t := range q.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].QueueOrder < out[j].QueueOrder
	})
	return out
}

// ListActive returns every Downloading task.
func (q *Queue) ListActive() []*storage.DownloadTask {
	all := q.ListAll()
	out := all[:0:0]
	for _, t := range all {
		if t.State == StateDownloading {
			out = append(out, t)
		}
	}
	return out
}

func activeCount(tasks map[string]*storage.DownloadTask) int {
	n := 0
	for _, t := range tasks {
		if t.State == StateDownloading {
			n++
		}
	}
	return n
}

func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// SetHostLimit caps concurrent downloads against one host; 0 means
// unlimited (the teacher's SmartScheduler host-limit feature, §C).
func (q *Queue) SetHostLimit(host string, limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hostLimits[host] = limit
}

func (q *Queue) GetHostLimit(host string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hostLimits[host]
}

// NextPending returns the highest-priority Queued task (FIFO tiebreak)
// whose start would not violate maxConcurrent or a per-host limit, and
// marks it Downloading. Candidates whose destination collides with an
// already-active task are set to Failed instead of being scheduled and
// the search continues past them; no error message is stored on the
// task and no event is published for it.
func (q *Queue) NextPending(maxConcurrent int) (*storage.DownloadTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if activeCount(q.tasks) >= maxConcurrent {
		return nil, nil
	}

	activeDestinations := make(map[string]bool)
	for _, t := range q.tasks {
		if t.State == StateDownloading {
			activeDestinations[t.Destination] = true
		}
	}

	candidates := make([]*storage.DownloadTask, 0, len(q.tasks))
	for _, t := range q.tasks {
		if t.State == StateQueued {
			candidates = append(candidates, t)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].QueueOrder < candidates[j].QueueOrder
	})

	for _, t := range candidates {
		if activeDestinations[t.Destination] {
			t.State = StateFailed
			t.UpdatedAt = time.Now().UTC()
			_ = q.store.SaveTask(t)
			continue
		}

		host := extractHost(t.URL)
		if limit, ok := q.hostLimits[host]; ok && limit > 0 && q.activePerHost[host] >= limit {
			continue
		}

		t.State = StateDownloading
		now := time.Now().UTC()
		t.StartedAt = &now
		t.UpdatedAt = now
		if err := q.store.SaveTask(t); err != nil {
			return nil, err
		}
		if host != "" {
			q.activePerHost[host]++
		}
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

// OnTaskFinished releases a task's per-host slot, called by the Engine
// when a worker exits (success or failure).
func (q *Queue) OnTaskFinished(taskURL string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	host := extractHost(taskURL)
	if host == "" {
		return
	}
	if q.activePerHost[host] > 0 {
		q.activePerHost[host]--
	}
}

// Wait blocks the caller until Add or Broadcast signals the queue's
// condition variable; other state transitions do not signal it.
func (q *Queue) Wait() {
	q.mu.Lock()
	q.cond.Wait()
	q.mu.Unlock()
}

// Broadcast wakes every goroutine blocked in Wait.
func (q *Queue) Broadcast() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
