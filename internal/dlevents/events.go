// Package dlevents implements the broadcast event stream described in
// spec §9 ("implement as a broadcast channel of Event values; the shell
// subscribes and fans out to its UI; no direct callback from core into
// UI code"). It replaces the teacher's direct Wails runtime.EventsEmit
// calls with a plain Go fan-out, since the UI here is an external
// collaborator rather than an in-process dependency.
package dlevents

import "sync"

// Kind identifies an event's shape. Task and queue kinds are raised by
// the Engine (and TaskAdded by hostapi); KindLog is raised by the
// logger's EventHandler.
type Kind string

const (
	KindTaskAdded     Kind = "task_added"
	KindTaskStarted   Kind = "task_started"
	KindTaskProgress  Kind = "task_progress"
	KindTaskCompleted Kind = "task_completed"
	KindTaskFailed    Kind = "task_failed"
	KindTaskPaused    Kind = "task_paused"
	KindTaskResumed   Kind = "task_resumed"
	KindTaskCancelled Kind = "task_cancelled"
	KindTaskExtracting Kind = "task_extracting"
	KindTaskExtracted Kind = "task_extracted"
	KindQueueUpdated  Kind = "queue_updated"
	KindLog           Kind = "log"
)

// Event is the single value type carried on the broadcast channel.
// Fields not relevant to a given Kind are left zero.
type Event struct {
	Kind     Kind
	TaskID   string
	Progress *Progress
	Error    string
	Files    []string
	Queue    *QueueSnapshot
	LogLevel string
	LogMsg   string
}

// Progress mirrors the progress snapshot of §3/§4.4 step 12.
type Progress struct {
	DownloadedBytes int64
	TotalBytes      *int64
	SpeedBytesSec   float64
	Percent         float64
	ETASeconds      *int64
}

// QueueSnapshot is the consistent totals snapshot a QueueUpdated event
// carries (§5 ordering guarantees).
type QueueSnapshot struct {
	Pending     int
	Downloading int
	Paused      int
	Completed   int
	Failed      int
	Cancelled   int
}

// Broadcaster fans one published Event out to every current subscriber.
// Events for subscribers that fall behind are dropped rather than allowed
// to block publishers, matching the teacher's non-blocking emit philosophy.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBroadcaster constructs an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new channel with the given buffer size and
// returns it along with an unsubscribe function.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsub
}

// Publish sends ev to every current subscriber without blocking; a full
// subscriber channel silently drops the event for that subscriber.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
