package envmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tachyon-launcher/internal/provider"
)

func TestNormalizeEnvType(t *testing.T) {
	require.Equal(t, "node", normalizeEnvType("fnm"))
	require.Equal(t, "node", normalizeEnvType("system-node"))
	require.Equal(t, "rust", normalizeEnvType("rustup"))
	require.Equal(t, "cpp", normalizeEnvType("vcpkg"))
	require.Equal(t, "ocaml", normalizeEnvType("system-ocaml"))
	require.Equal(t, "whatever", normalizeEnvType("whatever"))
}

func TestCandidateProviderIDs(t *testing.T) {
	require.Equal(t, []string{"volta", "fnm", "nvm", "mise", "asdf", "system-node"}, candidateProviderIDs("node"))
	require.Equal(t, []string{"rustup", "mise", "asdf", "system-rust"}, candidateProviderIDs("rust"))
}

func TestVersionMatches(t *testing.T) {
	require.True(t, versionMatches("1.2.3", "v1.2.3"))
	require.True(t, versionMatches("1.2", "1.2.3"))
	require.False(t, versionMatches("1.20", "1.2"))
	require.True(t, versionMatches("go1.21.0", "1.21.0"))
	require.False(t, versionMatches("1.2.3", "1.2.4"))
}

type fakeEnvProvider struct {
	id        string
	available bool
	installed []provider.InstalledVersion
	current   string
	hasCur    bool
	versions  []provider.VersionInfo
}

func (f *fakeEnvProvider) ID() string                          { return f.id }
func (f *fakeEnvProvider) DisplayName() string                  { return f.id }
func (f *fakeEnvProvider) Capabilities() []provider.Capability  { return nil }
func (f *fakeEnvProvider) SupportedPlatforms() []provider.Platform { return nil }
func (f *fakeEnvProvider) Priority() int                        { return 0 }
func (f *fakeEnvProvider) IsAvailable(ctx context.Context) bool  { return f.available }
func (f *fakeEnvProvider) Search(ctx context.Context, q string, o provider.SearchOptions) ([]provider.PackageSummary, error) {
	return nil, nil
}
func (f *fakeEnvProvider) GetPackageInfo(ctx context.Context, name string) (provider.PackageInfo, error) {
	return provider.PackageInfo{}, nil
}
func (f *fakeEnvProvider) GetVersions(ctx context.Context, name string) ([]provider.VersionInfo, error) {
	return f.versions, nil
}
func (f *fakeEnvProvider) Install(ctx context.Context, name, version string) error { return nil }
func (f *fakeEnvProvider) Uninstall(ctx context.Context, name, version string) error {
	return nil
}
func (f *fakeEnvProvider) ListInstalled(ctx context.Context) ([]provider.InstalledVersion, error) {
	return f.installed, nil
}
func (f *fakeEnvProvider) CheckUpdates(ctx context.Context) ([]provider.VersionInfo, error) {
	return nil, nil
}
func (f *fakeEnvProvider) ListInstalledVersions(ctx context.Context) ([]provider.InstalledVersion, error) {
	return f.installed, nil
}
func (f *fakeEnvProvider) GetCurrentVersion(ctx context.Context) (string, bool, error) {
	return f.current, f.hasCur, nil
}
func (f *fakeEnvProvider) SetGlobalVersion(ctx context.Context, version string) error { return nil }
func (f *fakeEnvProvider) SetLocalVersion(ctx context.Context, dir, version string) error {
	return nil
}
func (f *fakeEnvProvider) DetectVersion(ctx context.Context, dir string) (string, string, bool, error) {
	return "", "", false, nil
}
func (f *fakeEnvProvider) GetEnvModifications(ctx context.Context, version string) (provider.EnvModifications, error) {
	return provider.EnvModifications{}, nil
}
func (f *fakeEnvProvider) VersionFileName() string { return "" }

func TestResolveProviderExplicitIDWinsEvenIfDisabled(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{id: "rustup", available: true})
	reg.SetEnabled("rustup", false)

	resolved, ok := resolveProvider(context.Background(), reg, "rust", "rustup", "")
	require.True(t, ok)
	require.Equal(t, "rustup", resolved.ProviderID)
	require.False(t, resolved.Enabled)
}

func TestResolveProviderVersionHintPrefersMatchingInstall(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{id: "fnm", available: true, installed: []provider.InstalledVersion{{Version: "18.0.0"}}})
	reg.Register(&fakeEnvProvider{id: "volta", available: true, installed: []provider.InstalledVersion{{Version: "20.0.0"}}})

	resolved, ok := resolveProvider(context.Background(), reg, "node", "", "18.0.0")
	require.True(t, ok)
	require.Equal(t, "fnm", resolved.ProviderID)
}

func TestResolveProviderFallsBackToFirstAvailable(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{id: "fnm", available: false})
	reg.Register(&fakeEnvProvider{id: "volta", available: true})

	resolved, ok := resolveProvider(context.Background(), reg, "node", "", "")
	require.True(t, ok)
	require.Equal(t, "volta", resolved.ProviderID)
}

func TestManagerListEnvironments(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{id: "rustup", available: true, current: "1.75.0", hasCur: true})
	m := New(reg, nil)

	envs := m.ListEnvironments(context.Background())
	require.Len(t, envs, len(EnvironmentType))

	var rust EnvironmentInfo
	for _, e := range envs {
		if e.EnvType == "rust" {
			rust = e
		}
	}
	require.True(t, rust.ProviderFound)
	require.Equal(t, "rustup", rust.ProviderID)
	require.True(t, rust.Available)
	require.Equal(t, "1.75.0", rust.CurrentVersion)
}

func TestCheckAllUpdatesFindsNewerVersion(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{
		id: "rustup", available: true, current: "1.70.0", hasCur: true,
		versions: []provider.VersionInfo{{Version: "1.70.0"}, {Version: "1.80.0"}},
	})
	m := New(reg, nil)

	updates := m.CheckAllUpdates(context.Background())
	require.Len(t, updates, 1)
	require.Equal(t, "rust", updates[0].EnvType)
	require.Equal(t, "1.80.0", updates[0].LatestVersion)
}

type fakeLTSProvider struct {
	fakeEnvProvider
	ltsVersions map[string]bool
}

func (f *fakeLTSProvider) IsLTSVersion(version string) bool { return f.ltsVersions[version] }

func TestResolveAliasLatestPicksNewestSemver(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{
		id: "adoptium", available: true,
		versions: []provider.VersionInfo{{Version: "17.0.1"}, {Version: "21.0.3"}, {Version: "11.0.9"}},
	})
	m := New(reg, nil)

	resolved, err := m.ResolveAlias(context.Background(), "java", "adoptium", "latest")
	require.NoError(t, err)
	require.Equal(t, "adoptium", resolved.ProviderID)
	require.Equal(t, "21.0.3", resolved.Version)
}

func TestResolveAliasLTSUsesProviderFilter(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeLTSProvider{
		fakeEnvProvider: fakeEnvProvider{
			id: "adoptium", available: true,
			versions: []provider.VersionInfo{{Version: "17.0.1"}, {Version: "21.0.3"}, {Version: "22.0.0"}},
		},
		ltsVersions: map[string]bool{"17.0.1": true, "21.0.3": true},
	})
	m := New(reg, nil)

	resolved, err := m.ResolveAlias(context.Background(), "java", "adoptium", "lts")
	require.NoError(t, err)
	require.Equal(t, "21.0.3", resolved.Version)
}

func TestResolveAliasLiteralChannelMatch(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{
		id: "rustup", available: true,
		versions: []provider.VersionInfo{{Version: "stable"}, {Version: "beta", Prerelease: true}, {Version: "nightly", Prerelease: true}},
	})
	m := New(reg, nil)

	resolved, err := m.ResolveAlias(context.Background(), "rust", "rustup", "stable")
	require.NoError(t, err)
	require.Equal(t, "stable", resolved.Version)
}

func TestResolveAliasNoVersionsErrors(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{id: "adoptium", available: true})
	m := New(reg, nil)

	_, err := m.ResolveAlias(context.Background(), "java", "adoptium", "latest")
	require.Error(t, err)
}

func TestCleanupVersionsKeepsCurrent(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(&fakeEnvProvider{
		id: "rustup", available: true, current: "1.80.0", hasCur: true,
		installed: []provider.InstalledVersion{{Version: "1.70.0"}, {Version: "1.80.0"}},
	})
	m := New(reg, nil)

	removed, err := m.CleanupVersions(context.Background(), "rust", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"1.70.0"}, removed)
}
