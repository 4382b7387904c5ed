package storage

import "time"

// DownloadTask is the durable row behind a queued or in-flight download.
//
// State transitions are owned by dlqueue/dlengine; this type only carries
// the persisted shape (§3 DownloadTask, §4.5 state machine).
type DownloadTask struct {
	ID                     string `gorm:"primaryKey"`
	URL                    string `gorm:"index"`
	Destination            string
	Name                   string
	ExpectedChecksum       string
	Provider               string
	Priority               int `gorm:"index"`
	QueueOrder             int64 `gorm:"index"` // monotonic insertion order, FIFO tiebreak
	HeadersJSON            string
	MaxRetries             int
	RetryBackoffCapSeconds int
	VerifyChecksum         bool
	AllowResume            bool
	TimeoutSeconds         int
	AutoExtractDestination string
	AutoOrganize           bool

	State string `gorm:"index"` // Queued, Downloading, Paused, Completed, Failed, Cancelled

	DownloadedBytes int64
	TotalBytes      *int64
	SpeedBytesSec   float64
	Percent         float64
	ETASeconds      *int64

	Retries int

	StartedAt   *time.Time
	CompletedAt *time.Time

	SupportsResume bool
	ServerFilename string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DownloadTask) TableName() string { return "download_tasks" }

// HeaderPair preserves header ordering across JSON round trips, per §3
// ("headers (ordered list of (name,value))").
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CacheEntry is the durable row behind one Content Cache artifact (§4.6).
type CacheEntry struct {
	Key          string `gorm:"primaryKey"`
	FilePath     string
	Size         int64
	Checksum     string `gorm:"index"`
	CreatedAt    time.Time
	LastAccessed time.Time `gorm:"index"`
	ExpiresAt    *time.Time
	HitCount     int64
	EntryType    string `gorm:"index"` // Download, Metadata, Index, Partial
	MetadataJSON string
}

func (CacheEntry) TableName() string { return "cache_entries" }

// CacheSnapshot is one point-in-time (timestamp, total_size, count-by-type)
// sample used for trend analysis (§4.6 snapshot()).
type CacheSnapshot struct {
	ID             uint `gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"index"`
	TotalSize      int64
	CountByTypeJSON string
}

func (CacheSnapshot) TableName() string { return "cache_snapshots" }

// HistoryRecord is one append-only terminal download outcome (§4.7).
type HistoryRecord struct {
	ID           string `gorm:"primaryKey"`
	URL          string `gorm:"index"`
	Filename     string
	Destination  string
	Size         int64
	Checksum     string
	StartedAt    time.Time
	CompletedAt  time.Time `gorm:"index"`
	DurationSecs float64
	AverageSpeed float64
	Status       string `gorm:"index"` // Completed, Failed, Cancelled
	Error        string
	Provider     string
	MetadataJSON string
}

func (HistoryRecord) TableName() string { return "history_records" }

// AppSetting is a generic key/value row backing internal/config and the
// per-provider enabled/disabled bits and per-language detection source
// lists (all freeform, so one table covers them).
type AppSetting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (AppSetting) TableName() string { return "app_settings" }

// InstalledVersionRecord records one toolchain version a provider has
// installed, persisted so the Environment Manager's aggregate views
// survive a restart without re-invoking every provider's list_installed.
type InstalledVersionRecord struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	EnvType     string `gorm:"index"`
	ProviderID  string `gorm:"index"`
	Version     string
	InstallPath string
	Size        *int64
	InstalledAt *time.Time
	IsCurrent   bool
}

func (InstalledVersionRecord) TableName() string { return "installed_versions" }
