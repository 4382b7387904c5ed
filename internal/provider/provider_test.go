package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	id string
}

func (f *fakeProvider) ID() string                         { return f.id }
func (f *fakeProvider) DisplayName() string                { return f.id }
func (f *fakeProvider) Capabilities() []Capability          { return []Capability{CapList} }
func (f *fakeProvider) SupportedPlatforms() []Platform      { return []Platform{PlatformLinux} }
func (f *fakeProvider) Priority() int                       { return 1 }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeProvider) Search(ctx context.Context, q string, o SearchOptions) ([]PackageSummary, error) {
	return nil, nil
}
func (f *fakeProvider) GetPackageInfo(ctx context.Context, name string) (PackageInfo, error) {
	return PackageInfo{}, nil
}
func (f *fakeProvider) GetVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	return nil, nil
}
func (f *fakeProvider) Install(ctx context.Context, name, version string) error   { return nil }
func (f *fakeProvider) Uninstall(ctx context.Context, name, version string) error { return nil }
func (f *fakeProvider) ListInstalled(ctx context.Context) ([]InstalledVersion, error) {
	return nil, nil
}
func (f *fakeProvider) CheckUpdates(ctx context.Context) ([]VersionInfo, error) { return nil, nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{id: "fake"})

	p := r.Get("fake")
	require.NotNil(t, p)
	require.Equal(t, "fake", p.ID())
	require.True(t, r.IsEnabled("fake"))
}

func TestRegistryDisableUnknownDefaultsFalse(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.IsEnabled("nope"))
}

func TestRegistrySetEnabled(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{id: "fake"})
	r.SetEnabled("fake", false)
	require.False(t, r.IsEnabled("fake"))
}

func TestRegistryGetEnvironmentProviderMiss(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{id: "fake"})
	_, ok := r.GetEnvironmentProvider("fake")
	require.False(t, ok)
}

func TestRustupProviderCapabilitiesAndID(t *testing.T) {
	p := NewRustupProvider(nil)
	require.Equal(t, "rustup", p.ID())
	require.Contains(t, p.Capabilities(), CapVersionSwitch)
	require.Contains(t, p.SupportedPlatforms(), PlatformWindows)
}

func TestParseToolchainList(t *testing.T) {
	out := "stable-x86_64-unknown-linux-gnu (default)\nnightly-x86_64-unknown-linux-gnu\n"
	parsed := parseToolchainList(out)
	require.Len(t, parsed, 2)
	require.True(t, parsed[0].IsCurrent)
	require.False(t, parsed[1].IsCurrent)
}

func TestZigProviderVersionFileName(t *testing.T) {
	p := NewZigProvider(nil)
	require.Equal(t, ".zig-version", p.VersionFileName())
	require.Equal(t, "zig", p.ID())
}

func TestZigDetectVersionFromDotFile(t *testing.T) {
	dir := t.TempDir()
	p := NewZigProvider(nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".zig-version"), []byte("0.13.0"), 0o644))

	version, source, ok, err := p.DetectVersion(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0.13.0", version)
	require.Contains(t, source, ".zig-version")
}

func TestAdoptiumProviderCapabilitiesAndID(t *testing.T) {
	p := NewAdoptiumProvider(nil)
	require.Equal(t, "adoptium", p.ID())
	require.Equal(t, 82, p.Priority())
	require.Contains(t, p.Capabilities(), CapUpdate)
	require.Equal(t, ".java-version", p.VersionFileName())
}

func TestFeatureVersionOf(t *testing.T) {
	require.Equal(t, 21, featureVersionOf("jdk@21"))
	require.Equal(t, 17, featureVersionOf("java@17"))
	require.Equal(t, 21, featureVersionOf(""))
}

func TestParseFeatureVersion(t *testing.T) {
	n, ok := parseFeatureVersion("21.0.3+9")
	require.True(t, ok)
	require.Equal(t, 21, n)

	_, ok = parseFeatureVersion("not-a-version")
	require.False(t, ok)
}

func TestAdoptiumVersionDataFullVersion(t *testing.T) {
	v := adoptiumVersionData{Major: 21, Minor: 0, Security: 3, Build: 9}
	require.Equal(t, "21.0.3+9", v.fullVersion())

	v2 := adoptiumVersionData{Major: 21, Minor: 0, Security: 3}
	require.Equal(t, "21.0.3", v2.fullVersion())
}

func TestAdoptiumDetectVersionFromPom(t *testing.T) {
	dir := t.TempDir()
	p := NewAdoptiumProvider(nil)
	pom := "<project><properties><java.version>17</java.version></properties></project>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pom.xml"), []byte(pom), 0o644))

	version, source, ok, err := p.DetectVersion(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "17", version)
	require.Contains(t, source, "pom.xml")
}

func TestUvProviderCapabilitiesAndID(t *testing.T) {
	p := NewUvProvider(nil)
	require.Equal(t, "uv", p.ID())
	require.Equal(t, ".python-version", p.VersionFileName())
}

func TestParseUvPythonList(t *testing.T) {
	out := "cpython-3.12.3-linux-x86_64-gnu    /home/user/.local/share/uv/python/cpython-3.12.3/bin/python3.12\n" +
		"cpython-3.11.9-linux-x86_64-gnu    <download available>\n"
	versions := parseUvPythonList(out)
	require.Equal(t, []string{"3.12.3", "3.11.9"}, versions)
}

func TestUvDetectVersionFromPyproject(t *testing.T) {
	dir := t.TempDir()
	p := NewUvProvider(nil)
	toml := "[project]\nrequires-python = \">=3.11\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(toml), 0o644))

	version, source, ok, err := p.DetectVersion(context.Background(), dir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3.11", version)
	require.Contains(t, source, "pyproject.toml")
}
