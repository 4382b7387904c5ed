package provider

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tachyon-launcher/internal/fsio"
)

// UvProvider shells out to uv, grounded on
// original_source/src-tauri/src/provider/uv.rs's `UvProvider`. uv
// manages standalone CPython interpreter versions via `uv python
// ...`, distinct from its package-management `uv pip ...` surface
// (out of scope here — this provider only plays the
// EnvironmentProvider role for the "python" environment type).
type UvProvider struct {
	runner  *fsio.Runner
	timeout time.Duration
}

func NewUvProvider(runner *fsio.Runner) *UvProvider {
	if runner == nil {
		runner = fsio.NewRunner()
	}
	return &UvProvider{runner: runner, timeout: 120 * time.Second}
}

func (p *UvProvider) ID() string          { return "uv" }
func (p *UvProvider) DisplayName() string { return "uv Python Version Manager" }

func (p *UvProvider) Capabilities() []Capability {
	return []Capability{
		CapInstall, CapUninstall, CapSearch, CapList, CapUpdate,
		CapVersionSwitch, CapMultiVersion, CapProjectLocal,
	}
}

func (p *UvProvider) SupportedPlatforms() []Platform {
	return []Platform{PlatformLinux, PlatformMacOS, PlatformWindows}
}

func (p *UvProvider) Priority() int { return 90 }

func (p *UvProvider) run(ctx context.Context, args ...string) (string, error) {
	res, err := p.runner.Run(ctx, p.timeout, "uv", args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("uv %s: %s", strings.Join(args, " "), strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

func (p *UvProvider) IsAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("uv"); err != nil {
		return false
	}
	_, err := p.run(ctx, "--version")
	return err == nil
}

func (p *UvProvider) Search(ctx context.Context, query string, _ SearchOptions) ([]PackageSummary, error) {
	out, err := p.run(ctx, "python", "list")
	if err != nil {
		return nil, err
	}
	var results []PackageSummary
	for _, v := range parseUvPythonList(out) {
		if query != "" && !strings.Contains(v, query) {
			continue
		}
		results = append(results, PackageSummary{
			Name:          "python@" + v,
			Description:   "CPython " + v,
			LatestVersion: v,
			Provider:      p.ID(),
		})
	}
	return results, nil
}

func (p *UvProvider) GetPackageInfo(ctx context.Context, name string) (PackageInfo, error) {
	versions, err := p.GetVersions(ctx, name)
	if err != nil {
		return PackageInfo{}, err
	}
	vers := make([]string, 0, len(versions))
	for _, v := range versions {
		vers = append(vers, v.Version)
	}
	return PackageInfo{
		Name:              name,
		Description:       "CPython interpreter managed by uv",
		AvailableVersions: vers,
		Homepage:          "https://docs.astral.sh/uv/",
		Provider:          p.ID(),
	}, nil
}

func (p *UvProvider) GetVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	out, err := p.run(ctx, "python", "list", "--all-versions")
	if err != nil {
		return nil, err
	}
	var versions []VersionInfo
	for _, v := range parseUvPythonList(out) {
		versions = append(versions, VersionInfo{Version: v})
	}
	return versions, nil
}

func (p *UvProvider) Install(ctx context.Context, name, version string) error {
	_, err := p.run(ctx, "python", "install", version)
	return err
}

func (p *UvProvider) Uninstall(ctx context.Context, name, version string) error {
	_, err := p.run(ctx, "python", "uninstall", version)
	return err
}

func (p *UvProvider) ListInstalled(ctx context.Context) ([]InstalledVersion, error) {
	return p.ListInstalledVersions(ctx)
}

func (p *UvProvider) CheckUpdates(ctx context.Context) ([]VersionInfo, error) {
	return nil, nil
}

// uvInterpreterRe matches one `uv python list` row, e.g.
// "cpython-3.12.3-linux-x86_64-gnu    /home/user/.local/share/uv/python/.../bin/python3.12"
var uvInterpreterRe = regexp.MustCompile(`^(?:cpython|pypy)-(\d+(?:\.\d+){1,2})[-\s]\S*\s*(\S*)?`)

// parseUvPythonList extracts the version substring out of each
// "cpython-<version>-<platform>" row, matching uv.rs's approach of
// scanning for the prefix then reading digits/dots up to the first
// other character.
func parseUvPythonList(out string) []string {
	var versions []string
	seen := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := uvInterpreterRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !seen[m[1]] {
			seen[m[1]] = true
			versions = append(versions, m[1])
		}
	}
	return versions
}

// parseUvInstallPath extracts the path column from a `uv python list`
// row, falling back to "" when the row has no resolvable binary path
// (an available-but-not-installed entry).
func parseUvInstallPath(line string) string {
	m := uvInterpreterRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil || len(m) < 3 {
		return ""
	}
	if strings.HasPrefix(m[2], "<") {
		return ""
	}
	return m[2]
}

// --- EnvironmentProvider ---

func (p *UvProvider) ListInstalledVersions(ctx context.Context) ([]InstalledVersion, error) {
	out, err := p.run(ctx, "python", "list", "--only-installed")
	if err != nil {
		return nil, err
	}
	current, _, _ := p.GetCurrentVersion(ctx)
	var installed []InstalledVersion
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := uvInterpreterRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		version := m[1]
		installPath := parseUvInstallPath(line)
		installed = append(installed, InstalledVersion{
			Version:     version,
			InstallPath: installPath,
			IsCurrent:   version == current,
		})
	}
	return installed, nil
}

func (p *UvProvider) GetCurrentVersion(ctx context.Context) (string, bool, error) {
	out, err := p.run(ctx, "python", "find")
	if err != nil {
		return "", false, nil
	}
	base := filepath.Base(strings.TrimSpace(out))
	if v, ok := strings.CutPrefix(base, "python"); ok && v != "" {
		return v, true, nil
	}
	return "", false, nil
}

func (p *UvProvider) SetGlobalVersion(ctx context.Context, version string) error {
	_, err := p.run(ctx, "python", "pin", "--global", version)
	return err
}

func (p *UvProvider) SetLocalVersion(ctx context.Context, dir, version string) error {
	return os.WriteFile(filepath.Join(dir, p.VersionFileName()), []byte(version), 0o644)
}

var pyprojectRequiresRe = regexp.MustCompile(`requires-python\s*=\s*"([^"]+)"`)

// DetectVersion walks upward from dir checking .python-version, then
// .tool-versions, then pyproject.toml's requires-python constraint
// (stripping >=/^/~= prefixes to a bare version), matching uv.rs's
// detect_version order.
func (p *UvProvider) DetectVersion(ctx context.Context, dir string) (string, string, bool, error) {
	cur := dir
	for {
		if data, err := os.ReadFile(filepath.Join(cur, p.VersionFileName())); err == nil {
			if v := strings.TrimSpace(string(data)); v != "" {
				return v, filepath.Join(cur, p.VersionFileName()), true, nil
			}
		}
		if data, err := os.ReadFile(filepath.Join(cur, ".tool-versions")); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if v, ok := strings.CutPrefix(line, "python "); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v), filepath.Join(cur, ".tool-versions"), true, nil
				}
			}
		}
		if data, err := os.ReadFile(filepath.Join(cur, "pyproject.toml")); err == nil {
			if m := pyprojectRequiresRe.FindStringSubmatch(string(data)); m != nil {
				v := strings.TrimLeft(m[1], ">=^~ ")
				if v != "" {
					return v, filepath.Join(cur, "pyproject.toml"), true, nil
				}
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	if v, ok, _ := p.GetCurrentVersion(ctx); ok {
		return v, "", true, nil
	}
	return "", "", false, nil
}

func (p *UvProvider) GetEnvModifications(ctx context.Context, version string) (EnvModifications, error) {
	out, err := p.run(ctx, "python", "find", version)
	if err != nil {
		return EnvModifications{}, err
	}
	bin := strings.TrimSpace(out)
	return EnvModifications{PrependPath: []string{filepath.Dir(bin)}}, nil
}

func (p *UvProvider) VersionFileName() string { return ".python-version" }
