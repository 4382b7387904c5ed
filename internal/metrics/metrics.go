// Package metrics exposes the launcher's operational counters/gauges
// as Prometheus collectors, grounded on
// _examples/APTlantis-Mirror-Crates/internal/downloader/downloader.go's
// package-level metric vars + sync.Once MustRegister pattern — the
// only repo in the pack that wires prometheus/client_golang into a
// downloader.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tachyon_downloads_total", Help: "Completed download attempts by terminal state"},
		[]string{"state"},
	)
	BytesDownloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tachyon_bytes_downloaded_total", Help: "Total bytes written to disk across all downloads"},
	)
	DownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "tachyon_download_duration_seconds", Help: "Wall-clock time per download attempt", Buckets: prometheus.DefBuckets},
	)
	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tachyon_download_retries_total", Help: "Total retry attempts across all tasks"},
	)
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "tachyon_queue_depth", Help: "Current number of tasks by state"},
		[]string{"state"},
	)
	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tachyon_active_downloads", Help: "Currently downloading tasks"},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tachyon_cache_hits_total", Help: "Content cache hits"},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tachyon_cache_misses_total", Help: "Content cache misses"},
	)
	CacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "tachyon_cache_size_bytes", Help: "Total bytes currently held in the content cache"},
	)
)

// Register registers every collector exactly once; safe to call from
// multiple packages during startup.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DownloadsTotal, BytesDownloadedTotal, DownloadDuration, RetriesTotal,
			QueueDepth, ActiveDownloads, CacheHitsTotal, CacheMissesTotal, CacheSizeBytes,
		)
	})
}
