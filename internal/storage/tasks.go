package storage

import "gorm.io/gorm"

// SaveTask upserts a task row by ID.
func (s *Store) SaveTask(t *DownloadTask) error {
	return s.db.Save(t).Error
}

// GetTask fetches one task by ID, or (nil, gorm.ErrRecordNotFound).
func (s *Store) GetTask(id string) (*DownloadTask, error) {
	var t DownloadTask
	if err := s.db.First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAllTasks returns every task ordered by priority desc, queue order asc
// — the exact ordering next_pending relies on (§4.3 tie-break rule).
func (s *Store) GetAllTasks() ([]*DownloadTask, error) {
	var tasks []*DownloadTask
	err := s.db.Order("priority DESC, queue_order ASC").Find(&tasks).Error
	return tasks, err
}

// DeleteTask hard-deletes a task row.
func (s *Store) DeleteTask(id string) error {
	return s.db.Delete(&DownloadTask{}, "id = ?", id).Error
}

// NextQueueOrder returns a monotonically increasing sequence number for
// new tasks, used as the FIFO tiebreak key.
func (s *Store) NextQueueOrder() (int64, error) {
	var max int64
	err := s.db.Model(&DownloadTask{}).Select("COALESCE(MAX(queue_order), 0)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// DeleteTerminalTasks removes tasks in a terminal state, used by
// clear_finished (§4.3).
func (s *Store) DeleteTerminalTasks() (int64, error) {
	res := s.db.Where("state IN ?", []string{"Completed", "Failed", "Cancelled"}).Delete(&DownloadTask{})
	return res.RowsAffected, res.Error
}

// IsRecordNotFound reports whether err is gorm's not-found sentinel, so
// callers outside this package don't need to import gorm directly.
func IsRecordNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}
