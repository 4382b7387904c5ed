package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the gorm/sqlite connection shared by every durable
// component (queue persistence, cache index, history, settings).
type Store struct {
	db *gorm.DB
}

// DefaultDataDir returns the per-user data directory the external
// interfaces section (§6) describes ("<data>/cache/...", "<data>/history",
// ...), mirroring the teacher's use of os.UserConfigDir for its app dir.
func DefaultDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "TachyonLauncher"), nil
}

// Open creates (or reuses) the sqlite-backed index at <dataDir>/index.db
// and migrates every model this package owns.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite index: %w", err)
	}

	if err := db.AutoMigrate(
		&DownloadTask{},
		&CacheEntry{},
		&CacheSnapshot{},
		&HistoryRecord{},
		&AppSetting{},
		&InstalledVersionRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate index: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying gorm handle for package-private repositories
// (tasks.go, cache.go, history.go, settings.go) within this module.
func (s *Store) DB() *gorm.DB { return s.db }

// Checkpoint forces a WAL checkpoint, used on graceful shutdown so an
// abrupt process kill afterward cannot lose committed rows.
func (s *Store) Checkpoint() error {
	return s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
