// Package history implements the Download History service of §4.7: a
// thin layer over storage's append-only history_records table adding
// the aggregate-stats computation the repository alone doesn't own.
// Grounded on the teacher's internal/analytics.StatsManager, which
// performs the same kind of over-all-records aggregation for its
// lifetime/daily stats (SPEC_FULL §C).
package history

import (
	"time"

	"tachyon-launcher/internal/fsio"
	"tachyon-launcher/internal/storage"
)

// Service wraps storage's history repository with the aggregate view
// §4.7 requires.
type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

// Append records a terminal download outcome, called by the Engine
// whenever a task reaches Completed/Failed/Cancelled.
func (s *Service) Append(r *storage.HistoryRecord) error {
	return s.store.AppendHistory(r)
}

// List returns records most-recent-first, capped at limit (0 = all).
func (s *Service) List(limit int) ([]*storage.HistoryRecord, error) {
	return s.store.ListHistory(limit)
}

// Search does a substring match on url/filename.
func (s *Service) Search(term string) ([]*storage.HistoryRecord, error) {
	return s.store.SearchHistory(term)
}

// Remove deletes one record by id.
func (s *Service) Remove(id string) error {
	return s.store.DeleteHistory(id)
}

// Clear removes every record, or only those older than olderThan days
// when non-nil.
func (s *Service) Clear(olderThanDays *int) (int64, error) {
	var cutoff *time.Time
	if olderThanDays != nil {
		t := time.Now().AddDate(0, 0, -*olderThanDays)
		cutoff = &t
	}
	return s.store.ClearHistory(cutoff)
}

// Stats is the aggregate view §4.7 requires: totals by status, total
// bytes, average speed, success rate.
type Stats struct {
	TotalRecords int
	CountByStatus map[string]int
	TotalBytes   int64
	AverageSpeed float64
	SuccessRate  float64
}

// Stats computes totals-by-status, total bytes, average speed, and
// success rate across every history record.
func (s *Service) Stats() (Stats, error) {
	records, err := s.store.AllHistory()
	if err != nil {
		return Stats{}, err
	}

	out := Stats{CountByStatus: make(map[string]int)}
	var speedSum float64
	var speedCount int
	for _, r := range records {
		out.TotalRecords++
		out.CountByStatus[r.Status]++
		out.TotalBytes += r.Size
		if r.AverageSpeed > 0 {
			speedSum += r.AverageSpeed
			speedCount++
		}
	}
	if speedCount > 0 {
		out.AverageSpeed = speedSum / float64(speedCount)
	}
	if out.TotalRecords > 0 {
		out.SuccessRate = float64(out.CountByStatus["Completed"]) / float64(out.TotalRecords)
	}
	return out, nil
}

// DiskUsage reports free space on the volume containing path, alongside
// the lifetime bytes this service has recorded as downloaded — the
// "disk-usage snapshot" SPEC_FULL §C folds in beside Stats, grounded on
// the teacher's analytics.StatsManager.GetDiskUsage.
type DiskUsage struct {
	Path          string
	FreeBytes     uint64
	LifetimeBytes int64
}

func (s *Service) DiskUsage(path string) (DiskUsage, error) {
	free, err := fsio.FreeSpace(path)
	if err != nil {
		return DiskUsage{}, err
	}
	stats, err := s.Stats()
	if err != nil {
		return DiskUsage{}, err
	}
	return DiskUsage{Path: path, FreeBytes: free, LifetimeBytes: stats.TotalBytes}, nil
}
