// Package dlengine implements the Download Engine of §4.4: the
// scheduler/worker pair that takes tasks off internal/dlqueue and
// fetches them, emitting internal/dlevents. Grounded on the teacher's
// internal/core.TachyonEngine (executeTask/downloadWorker), simplified
// from its multi-part chunk-swarm design to the single-stream-per-task
// algorithm §4.4 specifies, and on internal/engine's retry/backoff
// shape.
package dlengine

import "fmt"

// Err is the taxonomy of §7: the worker returns exactly one kind per
// attempt.
type Err struct {
	Kind       string
	Message    string
	RetryAfter int64 // seconds, RateLimited only
	Required   int64 // InsufficientSpace only
	Available  int64 // InsufficientSpace only
	Expected   string // ChecksumMismatch only
	Actual     string // ChecksumMismatch only
	Status     int    // HttpError only
	transient  bool   // FileSystem only: set when caused by a transient OS condition
}

func (e *Err) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
	case KindInsufficientSpace:
		return fmt.Sprintf("insufficient space: need %d, have %d", e.Required, e.Available)
	case KindChecksumMismatch:
		return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
	case KindHTTPError:
		return fmt.Sprintf("http error %d: %s", e.Status, e.Message)
	default:
		return e.Message
	}
}

const (
	KindNetwork           = "Network"
	KindTimeout           = "Timeout"
	KindHTTPError         = "HttpError"
	KindRateLimited       = "RateLimited"
	KindInsufficientSpace = "InsufficientSpace"
	KindChecksumMismatch  = "ChecksumMismatch"
	KindFileSystem        = "FileSystem"
	KindInterrupted       = "Interrupted"
)

// retryable reports whether the retry policy of §4.4 allows another
// attempt for this error kind/status.
func retryable(e *Err) bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindRateLimited:
		return true
	case KindHTTPError:
		return e.Status >= 500 || e.Status == 408 || e.Status == 429
	case KindFileSystem:
		return e.transient
	default:
		return false
	}
}
