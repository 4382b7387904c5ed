package provider

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"tachyon-launcher/internal/fsio"
)

// ZigProvider manages Zig versions under a local versions directory and
// switches between them with a "current" symlink, grounded on
// original_source/src-tauri/src/provider/zig.rs's `ZigProvider`. Unlike
// RustupProvider it has no host CLI to delegate install/switch to: Zig
// ships as a bare tarball, so this provider does the version-directory
// and symlink bookkeeping itself.
type ZigProvider struct {
	runner *fsio.Runner
	zigDir string
}

func NewZigProvider(runner *fsio.Runner) *ZigProvider {
	if runner == nil {
		runner = fsio.NewRunner()
	}
	return &ZigProvider{runner: runner, zigDir: detectZigDir()}
}

func detectZigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".zig")
}

func (p *ZigProvider) ID() string          { return "zig" }
func (p *ZigProvider) DisplayName() string { return "Zig Toolchain" }

func (p *ZigProvider) Capabilities() []Capability {
	return []Capability{CapInstall, CapUninstall, CapSearch, CapList, CapUpdate, CapVersionSwitch, CapMultiVersion, CapProjectLocal}
}

func (p *ZigProvider) SupportedPlatforms() []Platform {
	return []Platform{PlatformLinux, PlatformMacOS, PlatformWindows}
}

func (p *ZigProvider) Priority() int { return 80 }

func (p *ZigProvider) versionsDir() string { return filepath.Join(p.zigDir, "versions") }
func (p *ZigProvider) currentLink() string { return filepath.Join(p.zigDir, "current") }

func (p *ZigProvider) IsAvailable(ctx context.Context) bool {
	res, err := p.runner.Run(ctx, 10*time.Second, filepath.Join(p.currentLink(), "zig"), "version")
	return err == nil && res.ExitCode == 0
}

// platformKey mirrors zig.rs's get_platform_key(): the OS/arch pair
// used as a key in Zig's download index.
func platformKey() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "x86"
	}
	osName := runtime.GOOS
	if osName == "darwin" {
		osName = "macos"
	}
	return arch + "-" + osName
}

func (p *ZigProvider) Search(ctx context.Context, query string, _ SearchOptions) ([]PackageSummary, error) {
	return []PackageSummary{{Name: "zig", Description: "Zig programming language toolchain (" + platformKey() + ")", Provider: p.ID()}}, nil
}

func (p *ZigProvider) GetPackageInfo(ctx context.Context, name string) (PackageInfo, error) {
	return PackageInfo{Name: "zig", Description: "Zig toolchain", Homepage: "https://ziglang.org", Provider: p.ID()}, nil
}

func (p *ZigProvider) GetVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	return nil, nil
}

// Install is a placeholder hook: fetching and extracting a Zig release
// tarball is the Download Engine + internal/extract's job, triggered by
// the caller against GetDownloadURL-style metadata this provider would
// supply once the download index client is wired in.
func (p *ZigProvider) Install(ctx context.Context, name, version string) error {
	return os.MkdirAll(filepath.Join(p.versionsDir(), version), 0o755)
}

func (p *ZigProvider) Uninstall(ctx context.Context, name, version string) error {
	return os.RemoveAll(filepath.Join(p.versionsDir(), version))
}

func (p *ZigProvider) ListInstalled(ctx context.Context) ([]InstalledVersion, error) {
	return p.ListInstalledVersions(ctx)
}

func (p *ZigProvider) CheckUpdates(ctx context.Context) ([]VersionInfo, error) {
	return nil, nil
}

func (p *ZigProvider) ListInstalledVersions(ctx context.Context) ([]InstalledVersion, error) {
	entries, err := os.ReadDir(p.versionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	current, _, _ := p.GetCurrentVersion(ctx)
	out := make([]InstalledVersion, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		out = append(out, InstalledVersion{
			Version:     e.Name(),
			InstallPath: filepath.Join(p.versionsDir(), e.Name()),
			IsCurrent:   e.Name() == current,
		})
	}
	return out, nil
}

// GetCurrentVersion resolves the "current" symlink's target directory name.
func (p *ZigProvider) GetCurrentVersion(ctx context.Context) (string, bool, error) {
	target, err := os.Readlink(p.currentLink())
	if err != nil {
		return "", false, nil
	}
	return filepath.Base(target), true, nil
}

// SetGlobalVersion repoints the "current" symlink at versions/<version>,
// removing any prior link or directory first (Windows junction/symlink
// targets cannot be overwritten in place).
func (p *ZigProvider) SetGlobalVersion(ctx context.Context, version string) error {
	link := p.currentLink()
	target := filepath.Join(p.versionsDir(), version)
	_ = os.Remove(link)
	if err := os.MkdirAll(p.zigDir, 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}

func (p *ZigProvider) SetLocalVersion(ctx context.Context, dir, version string) error {
	return os.WriteFile(filepath.Join(dir, p.VersionFileName()), []byte(version), 0o644)
}

var buildZigZonVersionRe = regexp.MustCompile(`minimum_zig_version\s*=\s*"([^"]+)"`)

// DetectVersion walks upward from dir checking .zig-version, then
// .tool-versions, then build.zig.zon's minimum_zig_version field,
// falling back to the globally active version — the exact precedence
// zig.rs's detect_version() uses.
func (p *ZigProvider) DetectVersion(ctx context.Context, dir string) (string, string, bool, error) {
	cur := dir
	for {
		if data, err := os.ReadFile(filepath.Join(cur, ".zig-version")); err == nil {
			if v := strings.TrimSpace(string(data)); v != "" {
				return v, filepath.Join(cur, ".zig-version"), true, nil
			}
		}
		if data, err := os.ReadFile(filepath.Join(cur, ".tool-versions")); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if v, ok := strings.CutPrefix(line, "zig "); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v), filepath.Join(cur, ".tool-versions"), true, nil
				}
			}
		}
		if data, err := os.ReadFile(filepath.Join(cur, "build.zig.zon")); err == nil {
			if m := buildZigZonVersionRe.FindStringSubmatch(string(data)); m != nil {
				return m[1], filepath.Join(cur, "build.zig.zon"), true, nil
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

func (p *ZigProvider) GetEnvModifications(ctx context.Context, version string) (EnvModifications, error) {
	return EnvModifications{PrependPath: []string{p.currentLink()}}, nil
}

func (p *ZigProvider) VersionFileName() string { return ".zig-version" }
