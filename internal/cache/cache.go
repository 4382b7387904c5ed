// Package cache implements the Content Cache of §4.6: an index kept in
// storage.Store's cache_entries table, LRU eviction, staleness checks,
// and verify/repair. Grounded on the teacher's internal/analytics stats
// pattern for the atomics-then-periodic-flush telemetry style, and on
// storage/cache.go's ordering queries for the LRU eviction scan.
package cache

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"tachyon-launcher/internal/fsio"
	"tachyon-launcher/internal/metrics"
	"tachyon-launcher/internal/storage"
)

// EntryType mirrors §4.6's entry_type values.
const (
	TypeDownload EntryType = "Download"
	TypeMetadata EntryType = "Metadata"
	TypeIndex    EntryType = "Index"
	TypePartial  EntryType = "Partial"
)

type EntryType = string

// Status is verify()'s per-entry classification (§4.6 verify()).
type Status string

const (
	StatusValid           Status = "valid"
	StatusMissing         Status = "missing"
	StatusSizeMismatch    Status = "size_mismatch"
	StatusChecksumMismatch Status = "checksum_mismatch"
)

// Stats is stats()'s aggregate return value.
type Stats struct {
	TotalSize     int64
	CountByType   map[string]int64
	Hits          int64
	Misses        int64
	HitRate       float64
	OldestCreated *time.Time
	NewestCreated *time.Time
}

// Cache is the Content Cache over storage's cache_entries table. Every
// operation reads and writes that table directly; hit/miss counters are
// held in memory only.
type Cache struct {
	mu      sync.Mutex
	store   *storage.Store
	maxSize int64
	maxAge  time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	dirty      bool
	lastFlush  time.Time
	flushEvery time.Duration
}

// New constructs a Cache bound to store with the given limits (from
// config.Manager's cache.max_size_bytes / cache.max_age_seconds).
func New(store *storage.Store, maxSize int64, maxAge time.Duration) *Cache {
	return &Cache{
		store:      store,
		maxSize:    maxSize,
		maxAge:     maxAge,
		flushEvery: 30 * time.Second,
		lastFlush:  time.Now(),
	}
}

// Get returns the file path for key if the entry and its backing file
// both exist and it is not stale; otherwise it removes the entry (and
// file) and returns ok=false. A hit bumps last_accessed/hit_count.
func (c *Cache) Get(key string) (path string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key, func() (*storage.CacheEntry, error) {
		return c.store.GetCacheEntry(key)
	})
}

// GetByChecksum is the O(1) secondary-index lookup of §4.6.
func (c *Cache) GetByChecksum(checksum string) (path string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(checksum, func() (*storage.CacheEntry, error) {
		return c.store.GetCacheEntryByChecksum(checksum)
	})
}

func (c *Cache) getLocked(id string, lookup func() (*storage.CacheEntry, error)) (string, bool) {
	entry, err := lookup()
	if err != nil {
		c.misses.Add(1)
		metrics.CacheMissesTotal.Inc()
		return "", false
	}

	if time.Since(entry.CreatedAt) > c.maxAge || !fsio.Exists(entry.FilePath) {
		_ = c.store.DeleteCacheEntry(entry.Key)
		_ = fsio.Remove(entry.FilePath, false)
		c.misses.Add(1)
		metrics.CacheMissesTotal.Inc()
		return "", false
	}

	entry.LastAccessed = time.Now().UTC()
	entry.HitCount++
	_ = c.store.PutCacheEntry(entry)
	c.hits.Add(1)
	metrics.CacheHitsTotal.Inc()
	return entry.FilePath, true
}

// Put inserts entry, evicting LRU-first (tie-break hit_count ascending)
// until at least needed_size + max_size/10 bytes are free.
func (c *Cache) Put(entry *storage.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.LastAccessed = entry.CreatedAt

	if c.maxSize > 0 {
		total, err := c.store.TotalCacheSize()
		if err != nil {
			return err
		}
		headroom := entry.Size + c.maxSize/10
		if total+entry.Size > c.maxSize {
			if err := c.evictLocked(headroom - (c.maxSize - total)); err != nil {
				return err
			}
		}
	}

	c.dirty = true
	if err := c.store.PutCacheEntry(entry); err != nil {
		return err
	}
	if total, err := c.store.TotalCacheSize(); err == nil {
		metrics.CacheSizeBytes.Set(float64(total))
	}
	return nil
}

// evictLocked removes LRU entries until at least `need` additional
// bytes would be free, or there is nothing left to evict.
func (c *Cache) evictLocked(need int64) error {
	if need <= 0 {
		return nil
	}
	entries, err := c.store.AllCacheEntries() // already last_accessed ASC, hit_count ASC
	if err != nil {
		return err
	}
	var freed int64
	for _, e := range entries {
		if freed >= need {
			break
		}
		if err := c.store.DeleteCacheEntry(e.Key); err != nil {
			return err
		}
		_ = fsio.Remove(e.FilePath, false)
		freed += e.Size
	}
	return nil
}

// Remove deletes one entry and its backing file.
func (c *Cache) Remove(key string, useTrash bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, err := c.store.GetCacheEntry(key)
	if err != nil {
		return nil
	}
	if err := c.store.DeleteCacheEntry(key); err != nil {
		return err
	}
	return fsio.Remove(entry.FilePath, useTrash)
}

// CleanExpired sweeps every entry older than max_age.
func (c *Cache) CleanExpired(useTrash bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.store.CacheEntriesOlderThan(time.Now().Add(-c.maxAge))
	if err != nil {
		return 0, err
	}
	return c.removeAllLocked(entries, useTrash)
}

// CleanType removes every entry of the given type.
func (c *Cache) CleanType(entryType string, useTrash bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.store.CacheEntriesByType(entryType)
	if err != nil {
		return 0, err
	}
	return c.removeAllLocked(entries, useTrash)
}

// CleanAll removes every cache entry.
func (c *Cache) CleanAll(useTrash bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.store.AllCacheEntries()
	if err != nil {
		return 0, err
	}
	return c.removeAllLocked(entries, useTrash)
}

func (c *Cache) removeAllLocked(entries []*storage.CacheEntry, useTrash bool) (int, error) {
	n := 0
	for _, e := range entries {
		if err := c.store.DeleteCacheEntry(e.Key); err != nil {
			return n, err
		}
		_ = fsio.Remove(e.FilePath, useTrash)
		n++
	}
	return n, nil
}

// VerifyResult pairs one entry's key with its verify() classification.
type VerifyResult struct {
	Key    string
	Status Status
}

// Verify classifies every entry as valid, missing, size_mismatch, or
// checksum_mismatch (checksum only checked when the entry has one).
func (c *Cache) Verify() ([]VerifyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.store.AllCacheEntries()
	if err != nil {
		return nil, err
	}
	results := make([]VerifyResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, VerifyResult{Key: e.Key, Status: classify(e)})
	}
	return results, nil
}

func classify(e *storage.CacheEntry) Status {
	if !fsio.Exists(e.FilePath) {
		return StatusMissing
	}
	if fsio.Size(e.FilePath) != e.Size {
		return StatusSizeMismatch
	}
	if e.Checksum != "" {
		actual, err := fsio.SHA256File(e.FilePath)
		if err != nil || actual != e.Checksum {
			return StatusChecksumMismatch
		}
	}
	return StatusValid
}

// Repair removes every entry verify() did not classify as valid.
func (c *Cache) Repair() (int, error) {
	results, err := c.Verify()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range results {
		if r.Status != StatusValid {
			if err := c.Remove(r.Key, false); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Stats returns totals by type, hit rate, and the created_at extremes.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.store.AllCacheEntries()
	if err != nil {
		return Stats{}, err
	}

	s := Stats{CountByType: make(map[string]int64)}
	for _, e := range entries {
		s.TotalSize += e.Size
		s.CountByType[e.EntryType]++
		if s.OldestCreated == nil || e.CreatedAt.Before(*s.OldestCreated) {
			ts := e.CreatedAt
			s.OldestCreated = &ts
		}
		if s.NewestCreated == nil || e.CreatedAt.After(*s.NewestCreated) {
			ts := e.CreatedAt
			s.NewestCreated = &ts
		}
	}
	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s, nil
}

// Snapshot appends a trend-analysis sample and prunes samples older
// than retain.
func (c *Cache) Snapshot(retain time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, err := c.statsLocked()
	if err != nil {
		return err
	}
	countJSON, err := json.Marshal(stats.CountByType)
	if err != nil {
		return err
	}
	if err := c.store.InsertCacheSnapshot(&storage.CacheSnapshot{
		Timestamp:       time.Now().UTC(),
		TotalSize:       stats.TotalSize,
		CountByTypeJSON: string(countJSON),
	}); err != nil {
		return err
	}
	_, err = c.store.PruneCacheSnapshotsOlderThan(time.Now().Add(-retain))
	return err
}

func (c *Cache) statsLocked() (Stats, error) {
	entries, err := c.store.AllCacheEntries()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{CountByType: make(map[string]int64)}
	for _, e := range entries {
		s.TotalSize += e.Size
		s.CountByType[e.EntryType]++
	}
	return s, nil
}

// MaybeFlush clears the dirty flag and restarts the 30s debounce window
// once it has elapsed. Entries are already written to the store by each
// operation, so nothing else is written here; the hit/miss counters are
// not persisted and reset on restart.
func (c *Cache) MaybeFlush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || time.Since(c.lastFlush) < c.flushEvery {
		return
	}
	c.dirty = false
	c.lastFlush = time.Now()
}

// Flush clears the dirty flag immediately, bypassing the debounce
// window; like MaybeFlush it writes nothing to the store.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
	c.lastFlush = time.Now()
}
