package dlqueue

import (
	"tachyon-launcher/internal/storage"
)

// Pause moves Queued or Downloading to Paused (§4.5). Any other state is
// an invalid transition, reported as an error with state left unchanged.
func (q *Queue) Pause(id string) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		switch t.State {
		case StateQueued, StateDownloading:
			t.State = StatePaused
			return nil
		default:
			return &ErrInvalidTransition{TaskID: id, From: t.State, Action: "pause"}
		}
	})
}

// Resume moves Paused back to Queued, re-eligible for scheduling.
func (q *Queue) Resume(id string) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		if t.State != StatePaused {
			return &ErrInvalidTransition{TaskID: id, From: t.State, Action: "resume"}
		}
		t.State = StateQueued
		return nil
	})
}

// Cancel moves any non-terminal state to Cancelled.
func (q *Queue) Cancel(id string) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		switch t.State {
		case StateCompleted, StateFailed, StateCancelled:
			return &ErrInvalidTransition{TaskID: id, From: t.State, Action: "cancel"}
		default:
			t.State = StateCancelled
			return nil
		}
	})
}

// SetPriority updates a task's priority in place; it does not change state.
func (q *Queue) SetPriority(id string, priority int) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		t.Priority = priority
		return nil
	})
}

// RetryTask moves a terminal task back to Queued, clearing transient
// fields exactly as §3's invariant requires ("clears progress,
// started_at, completed_at, retries").
func (q *Queue) RetryTask(id string) error {
	return q.withTask(id, func(t *storage.DownloadTask) error {
		switch t.State {
		case StateCompleted, StateFailed, StateCancelled:
			t.State = StateQueued
			t.DownloadedBytes = 0
			t.TotalBytes = nil
			t.SpeedBytesSec = 0
			t.Percent = 0
			t.ETASeconds = nil
			t.Retries = 0
			t.StartedAt = nil
			t.CompletedAt = nil
			return nil
		default:
			return &ErrInvalidTransition{TaskID: id, From: t.State, Action: "retry"}
		}
	})
}

// forEachID runs fn over every task id currently known; callers discard
// transition errors (bulk operations skip tasks that are not eligible
// rather than failing the whole batch).
func (q *Queue) forEachID(fn func(id string)) {
	q.mu.Lock()
	ids := make([]string, 0, len(q.tasks))
	for id := range q.tasks {
		ids = append(ids, id)
	}
	q.mu.Unlock()

	for _, id := range ids {
		fn(id)
	}
}

// PauseAll pauses every Queued/Downloading task, ignoring tasks already
// ineligible.
func (q *Queue) PauseAll() {
	q.forEachID(func(id string) { _ = q.Pause(id) })
}

// ResumeAll resumes every Paused task.
func (q *Queue) ResumeAll() {
	q.forEachID(func(id string) { _ = q.Resume(id) })
}

// CancelAll cancels every non-terminal task.
func (q *Queue) CancelAll() {
	q.forEachID(func(id string) { _ = q.Cancel(id) })
}

// RetryAllFailed retries every task in Failed state.
func (q *Queue) RetryAllFailed() int {
	q.mu.Lock()
	ids := make([]string, 0)
	for id, t := range q.tasks {
		if t.State == StateFailed {
			ids = append(ids, id)
		}
	}
	q.mu.Unlock()

	n := 0
	for _, id := range ids {
		if err := q.RetryTask(id); err == nil {
			n++
		}
	}
	return n
}

// ClearFinished removes every task in a terminal state.
func (q *Queue) ClearFinished() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed, err := q.store.DeleteTerminalTasks()
	if err != nil {
		return 0, err
	}
	for id, t := range q.tasks {
		switch t.State {
		case StateCompleted, StateFailed, StateCancelled:
			delete(q.tasks, id)
		}
	}
	return int(removed), nil
}

// Stats computes the aggregate snapshot (§4.3).
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, t := range q.tasks {
		switch t.State {
		case StateQueued:
			s.Pending++
		case StateDownloading:
			s.Downloading++
		case StatePaused:
			s.Paused++
		case StateCompleted:
			s.Completed++
		case StateFailed:
			s.Failed++
		case StateCancelled:
			s.Cancelled++
		}
		s.DownloadedBytes += t.DownloadedBytes
		if t.TotalBytes != nil {
			s.TotalBytes += *t.TotalBytes
		}
	}
	if s.TotalBytes > 0 {
		s.OverallProgress = float64(s.DownloadedBytes) / float64(s.TotalBytes)
	}
	return s
}
