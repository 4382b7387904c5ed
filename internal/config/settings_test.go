package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"tachyon-launcher/internal/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(store)
}

func TestDefaults(t *testing.T) {
	m := newTestManager(t)
	require.Equal(t, defaultMaxConcurrent, m.GetMaxConcurrent())
	require.True(t, m.GetEnableIntegrityCheck())
	require.True(t, m.IsProviderEnabled("rustup"))
	require.Nil(t, m.GetEnabledDetectionSources("node"))
}

func TestMaxConcurrentClamped(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SetMaxConcurrent(99))
	require.Equal(t, 10, m.GetMaxConcurrent())
	require.NoError(t, m.SetMaxConcurrent(0))
	require.Equal(t, 1, m.GetMaxConcurrent())
}

func TestAPITokenPersistsAcrossCalls(t *testing.T) {
	m := newTestManager(t)
	first := m.GetAPIToken()
	require.NotEmpty(t, first)
	require.Equal(t, first, m.GetAPIToken())
}

func TestDetectionSourcesRoundTrip(t *testing.T) {
	m := newTestManager(t)
	sources := []string{".nvmrc", ".node-version", "package.json (engines.node)"}
	require.NoError(t, m.SetEnabledDetectionSources("node", sources))
	require.Equal(t, sources, m.GetEnabledDetectionSources("node"))
}

func TestProviderEnabledToggle(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SetProviderEnabled("fnm", false))
	require.False(t, m.IsProviderEnabled("fnm"))
}
