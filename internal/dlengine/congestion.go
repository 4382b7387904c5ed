package dlengine

import (
	"sync"
	"time"
)

// congestionController is an AIMD (additive-increase/multiplicative-
// decrease) advisory signal per host, grounded on the teacher's
// internal/core.CongestionController. It never gates a worker directly
// — per SPEC_FULL §C it is advisory only — but its output feeds
// dlqueue's existing per-host limit (§C "folded into internal/dlqueue
// as SetHostLimit"), so a host trending toward errors or rising
// latency gets its concurrency cap tightened, and a host completing
// cleanly gets it loosened back up to maxConcurrent.
type congestionController struct {
	mu         sync.Mutex
	hosts      map[string]*hostStats
	minWorkers int
	maxWorkers int
}

type hostStats struct {
	smoothedRTT  time.Duration
	concurrency  int
	successCount int
	errorCount   int
}

func newCongestionController(minWorkers, maxWorkers int) *congestionController {
	if minWorkers < 1 {
		minWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	return &congestionController{
		hosts:      make(map[string]*hostStats),
		minWorkers: minWorkers,
		maxWorkers: maxWorkers,
	}
}

// recordOutcome updates a host's rolling stats after one attempt.
func (cc *congestionController) recordOutcome(host string, latency time.Duration, failed bool) int {
	if host == "" {
		return 0
	}
	cc.mu.Lock()
	defer cc.mu.Unlock()

	stats, ok := cc.hosts[host]
	if !ok {
		stats = &hostStats{concurrency: cc.maxWorkers, smoothedRTT: latency}
		cc.hosts[host] = stats
	}

	const alpha = 0.125
	stats.smoothedRTT = time.Duration((1-alpha)*float64(stats.smoothedRTT) + alpha*float64(latency))

	if failed {
		stats.errorCount++
	} else {
		stats.successCount++
	}

	switch {
	case stats.errorCount > 0:
		// Multiplicative decrease: back off hard on the first error in a window.
		stats.concurrency = stats.concurrency / 2
		if stats.concurrency < cc.minWorkers {
			stats.concurrency = cc.minWorkers
		}
		stats.errorCount = 0
	case stats.successCount >= stats.concurrency:
		// Additive increase: grow by one once we've seen a full window of successes.
		if stats.concurrency < cc.maxWorkers {
			stats.concurrency++
		}
		stats.successCount = 0
	}

	return stats.concurrency
}
