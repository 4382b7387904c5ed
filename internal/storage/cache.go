package storage

import "time"

// PutCacheEntry upserts a cache entry by key.
func (s *Store) PutCacheEntry(e *CacheEntry) error {
	return s.db.Save(e).Error
}

// GetCacheEntry fetches an entry by key.
func (s *Store) GetCacheEntry(key string) (*CacheEntry, error) {
	var e CacheEntry
	if err := s.db.First(&e, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// GetCacheEntryByChecksum fetches an entry via the secondary checksum
// index (§4.6 get_by_checksum).
func (s *Store) GetCacheEntryByChecksum(checksum string) (*CacheEntry, error) {
	var e CacheEntry
	if err := s.db.First(&e, "checksum = ?", checksum).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteCacheEntry removes one entry row.
func (s *Store) DeleteCacheEntry(key string) error {
	return s.db.Delete(&CacheEntry{}, "key = ?", key).Error
}

// AllCacheEntries returns every entry, ordered by last_accessed ascending
// — the LRU eviction order (§4.6 put()).
func (s *Store) AllCacheEntries() ([]*CacheEntry, error) {
	var entries []*CacheEntry
	err := s.db.Order("last_accessed ASC, hit_count ASC").Find(&entries).Error
	return entries, err
}

// CacheEntriesByType returns entries of one entry_type, used by
// clean_type (§4.6).
func (s *Store) CacheEntriesByType(entryType string) ([]*CacheEntry, error) {
	var entries []*CacheEntry
	err := s.db.Where("entry_type = ?", entryType).Find(&entries).Error
	return entries, err
}

// CacheEntriesOlderThan returns entries created before the given cutoff,
// used by clean_expired.
func (s *Store) CacheEntriesOlderThan(cutoff time.Time) ([]*CacheEntry, error) {
	var entries []*CacheEntry
	err := s.db.Where("created_at < ?", cutoff).Find(&entries).Error
	return entries, err
}

// TotalCacheSize sums the size column across all entries.
func (s *Store) TotalCacheSize() (int64, error) {
	var total int64
	err := s.db.Model(&CacheEntry{}).Select("COALESCE(SUM(size), 0)").Scan(&total).Error
	return total, err
}

// InsertCacheSnapshot appends a trend-analysis sample.
func (s *Store) InsertCacheSnapshot(snap *CacheSnapshot) error {
	return s.db.Create(snap).Error
}

// PruneCacheSnapshotsOlderThan deletes snapshots past the retention
// window (§4.6 "prune snapshots older than N days").
func (s *Store) PruneCacheSnapshotsOlderThan(cutoff time.Time) (int64, error) {
	res := s.db.Where("timestamp < ?", cutoff).Delete(&CacheSnapshot{})
	return res.RowsAffected, res.Error
}
