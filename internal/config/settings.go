package config

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"

	"tachyon-launcher/internal/storage"
)

// Keys for AppSettings in the index DB.
const (
	KeyGlobalSpeedLimitBytesSec = "download.global_speed_limit_bytes_sec"
	KeyMaxConcurrentDownloads   = "download.max_concurrent"
	KeyDefaultDownloadDir       = "download.default_dir"
	KeyEnableIntegrityCheck     = "download.enable_integrity_check"
	KeyUserAgent                = "download.user_agent"
	KeyCacheMaxSizeBytes        = "cache.max_size_bytes"
	KeyCacheMaxAgeSeconds       = "cache.max_age_seconds"
	KeyAPIEnabled               = "api.enabled"
	KeyAPIToken                 = "api.token"
	KeyAPIPort                  = "api.port"

	providerEnabledPrefix  = "provider.enabled."
	detectionSourcesPrefix = "detect.sources."
)

const (
	defaultMaxConcurrent    = 5
	defaultCacheMaxSize     = 10 * 1024 * 1024 * 1024 // 10GiB
	defaultCacheMaxAgeSecs  = 30 * 24 * 3600          // 30 days
	defaultAPIPort          = 4444
)

// Manager is a typed facade over the generic AppSetting key/value table,
// grounded on the teacher's ConfigManager (internal/config/settings.go)
// but carrying the download/cache/provider/detector knobs this spec's
// components need instead of the teacher's AI-bridge knobs.
type Manager struct {
	store *storage.Store
}

func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) getInt(key string, def int) int {
	val, ok := m.store.GetSetting(key)
	if !ok || val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}

func (m *Manager) setInt(key string, v int) error {
	return m.store.SetSetting(key, strconv.Itoa(v))
}

func (m *Manager) getBool(key string, def bool) bool {
	val, ok := m.store.GetSetting(key)
	if !ok || val == "" {
		return def
	}
	return val == "true"
}

func (m *Manager) setBool(key string, v bool) error {
	val := "false"
	if v {
		val = "true"
	}
	return m.store.SetSetting(key, val)
}

func (m *Manager) GetGlobalSpeedLimit() int { return m.getInt(KeyGlobalSpeedLimitBytesSec, 0) }
func (m *Manager) SetGlobalSpeedLimit(bps int) error {
	return m.setInt(KeyGlobalSpeedLimitBytesSec, bps)
}

func (m *Manager) GetMaxConcurrent() int { return m.getInt(KeyMaxConcurrentDownloads, defaultMaxConcurrent) }
func (m *Manager) SetMaxConcurrent(n int) error {
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return m.setInt(KeyMaxConcurrentDownloads, n)
}

func (m *Manager) GetDefaultDownloadDir() string {
	val, _ := m.store.GetSetting(KeyDefaultDownloadDir)
	return val
}

func (m *Manager) SetDefaultDownloadDir(dir string) error {
	return m.store.SetSetting(KeyDefaultDownloadDir, dir)
}

func (m *Manager) GetEnableIntegrityCheck() bool { return m.getBool(KeyEnableIntegrityCheck, true) }
func (m *Manager) SetEnableIntegrityCheck(v bool) error {
	return m.setBool(KeyEnableIntegrityCheck, v)
}

func (m *Manager) GetUserAgent() string {
	val, _ := m.store.GetSetting(KeyUserAgent)
	return val
}
func (m *Manager) SetUserAgent(ua string) error { return m.store.SetSetting(KeyUserAgent, ua) }

func (m *Manager) GetCacheMaxSize() int64 {
	return int64(m.getInt(KeyCacheMaxSizeBytes, defaultCacheMaxSize))
}
func (m *Manager) SetCacheMaxSize(bytes int64) error {
	return m.setInt(KeyCacheMaxSizeBytes, int(bytes))
}

func (m *Manager) GetCacheMaxAgeSeconds() int64 {
	return int64(m.getInt(KeyCacheMaxAgeSeconds, defaultCacheMaxAgeSecs))
}
func (m *Manager) SetCacheMaxAgeSeconds(secs int64) error {
	return m.setInt(KeyCacheMaxAgeSeconds, int(secs))
}

func (m *Manager) GetAPIEnabled() bool         { return m.getBool(KeyAPIEnabled, false) }
func (m *Manager) SetAPIEnabled(v bool) error   { return m.setBool(KeyAPIEnabled, v) }
func (m *Manager) GetAPIPort() int              { return m.getInt(KeyAPIPort, defaultAPIPort) }
func (m *Manager) SetAPIPort(port int) error    { return m.setInt(KeyAPIPort, port) }

// GetAPIToken returns the bearer token guarding internal/httpapi,
// generating and persisting one on first use (teacher's pattern).
func (m *Manager) GetAPIToken() string {
	val, ok := m.store.GetSetting(KeyAPIToken)
	if ok && val != "" {
		return val
	}
	token := generateSecureToken()
	_ = m.store.SetSetting(KeyAPIToken, token)
	return token
}

func generateSecureToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "tachyon-fallback-token-change-me"
	}
	return hex.EncodeToString(b)
}

// IsProviderEnabled reports whether a provider id is enabled; providers
// default to enabled until explicitly disabled (§4.8 Registry enabled bits).
func (m *Manager) IsProviderEnabled(providerID string) bool {
	return m.getBool(providerEnabledPrefix+providerID, true)
}

// SetProviderEnabled flips a provider's enabled bit.
func (m *Manager) SetProviderEnabled(providerID string, enabled bool) error {
	return m.setBool(providerEnabledPrefix+providerID, enabled)
}

// GetEnabledDetectionSources returns the persisted ordered, enabled
// detection-source list for a logical env type, or nil if unset (caller
// falls back to the per-language defaults, §4.10).
func (m *Manager) GetEnabledDetectionSources(envType string) []string {
	val, ok := m.store.GetSetting(detectionSourcesPrefix + envType)
	if !ok || val == "" {
		return nil
	}
	return strings.Split(val, "\x1f")
}

// SetEnabledDetectionSources persists an ordered, enabled detection-source
// list for a logical env type.
func (m *Manager) SetEnabledDetectionSources(envType string, sources []string) error {
	return m.store.SetSetting(detectionSourcesPrefix+envType, strings.Join(sources, "\x1f"))
}

// FactoryReset clears the fixed download/cache/API keys, restoring their
// defaults. Per-provider enabled bits and per-language detection-source
// lists are not cleared.
func (m *Manager) FactoryReset() error {
	keys := []string{
		KeyGlobalSpeedLimitBytesSec, KeyMaxConcurrentDownloads, KeyDefaultDownloadDir,
		KeyEnableIntegrityCheck, KeyUserAgent, KeyCacheMaxSizeBytes, KeyCacheMaxAgeSeconds,
		KeyAPIEnabled, KeyAPIToken, KeyAPIPort,
	}
	for _, k := range keys {
		if err := m.store.DeleteSetting(k); err != nil {
			return err
		}
	}
	return nil
}
