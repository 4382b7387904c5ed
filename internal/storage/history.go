package storage

import "time"

// AppendHistory inserts a new terminal-outcome record (§4.7).
func (s *Store) AppendHistory(r *HistoryRecord) error {
	return s.db.Create(r).Error
}

// ListHistory returns records newest-first, optionally capped at limit
// (0 = unlimited).
func (s *Store) ListHistory(limit int) ([]*HistoryRecord, error) {
	q := s.db.Order("completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []*HistoryRecord
	err := q.Find(&records).Error
	return records, err
}

// SearchHistory does a substring match on url or filename.
func (s *Store) SearchHistory(term string) ([]*HistoryRecord, error) {
	like := "%" + term + "%"
	var records []*HistoryRecord
	err := s.db.Where("url LIKE ? OR filename LIKE ?", like, like).
		Order("completed_at DESC").Find(&records).Error
	return records, err
}

// DeleteHistory removes one record by ID.
func (s *Store) DeleteHistory(id string) error {
	return s.db.Delete(&HistoryRecord{}, "id = ?", id).Error
}

// ClearHistory removes all records, or only those completed before the
// cutoff when olderThan is non-nil.
func (s *Store) ClearHistory(olderThan *time.Time) (int64, error) {
	q := s.db
	if olderThan != nil {
		q = q.Where("completed_at < ?", *olderThan)
	} else {
		q = q.Where("1 = 1")
	}
	res := q.Delete(&HistoryRecord{})
	return res.RowsAffected, res.Error
}

// AllHistory returns every record, used by the stats aggregation (§4.7).
func (s *Store) AllHistory() ([]*HistoryRecord, error) {
	var records []*HistoryRecord
	err := s.db.Find(&records).Error
	return records, err
}
