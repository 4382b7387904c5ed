package provider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tachyon-launcher/internal/fsio"
)

// RustupProvider shells out to rustup, grounded on
// original_source/src-tauri/src/provider/rustup.rs's `RustupProvider`.
// It implements EnvironmentProvider: rustup both installs toolchains
// and switches the active one per-directory via overrides.
type RustupProvider struct {
	runner  *fsio.Runner
	timeout time.Duration
}

func NewRustupProvider(runner *fsio.Runner) *RustupProvider {
	if runner == nil {
		runner = fsio.NewRunner()
	}
	return &RustupProvider{runner: runner, timeout: 120 * time.Second}
}

func (p *RustupProvider) ID() string          { return "rustup" }
func (p *RustupProvider) DisplayName() string { return "Rust Toolchain Manager" }

func (p *RustupProvider) Capabilities() []Capability {
	return []Capability{
		CapInstall, CapUninstall, CapSearch, CapList, CapUpdate,
		CapVersionSwitch, CapMultiVersion, CapProjectLocal,
	}
}

func (p *RustupProvider) SupportedPlatforms() []Platform {
	return []Platform{PlatformLinux, PlatformMacOS, PlatformWindows}
}

func (p *RustupProvider) Priority() int { return 100 }

func (p *RustupProvider) run(ctx context.Context, args ...string) (string, error) {
	res, err := p.runner.Run(ctx, p.timeout, "rustup", args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("rustup %s: %s", strings.Join(args, " "), strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

func (p *RustupProvider) IsAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("rustup"); err != nil {
		return false
	}
	_, err := p.run(ctx, "--version")
	return err == nil
}

func (p *RustupProvider) Search(ctx context.Context, query string, _ SearchOptions) ([]PackageSummary, error) {
	channels := []string{"stable", "beta", "nightly"}
	var out []PackageSummary
	for _, ch := range channels {
		if query == "" || strings.Contains(ch, query) {
			out = append(out, PackageSummary{
				Name:          "rust@" + ch,
				Description:   "Rust " + ch + " release channel",
				LatestVersion: ch,
				Provider:      p.ID(),
			})
		}
	}
	return out, nil
}

func (p *RustupProvider) GetPackageInfo(ctx context.Context, name string) (PackageInfo, error) {
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
		Description:       "Rust toolchain",
		AvailableVersions: vers,
		Homepage:          "https://rust-lang.org",
		Provider:          p.ID(),
	}, nil
}

func (p *RustupProvider) GetVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	return []VersionInfo{
		{Version: "stable"},
		{Version: "beta", Prerelease: true},
		{Version: "nightly", Prerelease: true},
	}, nil
}

// Install installs a toolchain via `rustup toolchain install <version>`.
func (p *RustupProvider) Install(ctx context.Context, name, version string) error {
	_, err := p.run(ctx, "toolchain", "install", version)
	return err
}

func (p *RustupProvider) Uninstall(ctx context.Context, name, version string) error {
	_, err := p.run(ctx, "toolchain", "uninstall", version)
	return err
}

// ListInstalled parses `rustup toolchain list` output, one toolchain
// name per line with an optional "(default)"/"(active)" suffix.
func (p *RustupProvider) ListInstalled(ctx context.Context) ([]InstalledVersion, error) {
	out, err := p.run(ctx, "toolchain", "list")
	if err != nil {
		return nil, err
	}
	return parseToolchainList(out), nil
}

func parseToolchainList(out string) []InstalledVersion {
	var installed []InstalledVersion
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "no installed") {
			continue
		}
		isCurrent := strings.Contains(line, "(default)") || strings.Contains(line, "(active)")
		name := strings.TrimSpace(strings.NewReplacer("(default)", "", "(active)", "").Replace(line))
		if name == "" {
			continue
		}
		installed = append(installed, InstalledVersion{Version: name, IsCurrent: isCurrent})
	}
	return installed
}

func (p *RustupProvider) CheckUpdates(ctx context.Context) ([]VersionInfo, error) {
	out, err := p.run(ctx, "check")
	if err != nil {
		return nil, err
	}
	var updates []VersionInfo
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Update available") {
			updates = append(updates, VersionInfo{Version: strings.TrimSpace(line)})
		}
	}
	return updates, nil
}

// --- EnvironmentProvider ---

func (p *RustupProvider) ListInstalledVersions(ctx context.Context) ([]InstalledVersion, error) {
	return p.ListInstalled(ctx)
}

func (p *RustupProvider) GetCurrentVersion(ctx context.Context) (string, bool, error) {
	installed, err := p.ListInstalled(ctx)
	if err != nil {
		return "", false, err
	}
	for _, v := range installed {
		if v.IsCurrent {
			return v.Version, true, nil
		}
	}
	return "", false, nil
}

func (p *RustupProvider) SetGlobalVersion(ctx context.Context, version string) error {
	_, err := p.run(ctx, "default", version)
	return err
}

// SetLocalVersion uses `rustup override set` to pin a toolchain to dir,
// the directory-scoped mechanism rustup.rs groups under "override".
func (p *RustupProvider) SetLocalVersion(ctx context.Context, dir, version string) error {
	_, err := p.run(ctx, "override", "set", version, "--path", dir)
	return err
}

func (p *RustupProvider) DetectVersion(ctx context.Context, dir string) (string, string, bool, error) {
	return "", "", false, nil
}

func (p *RustupProvider) GetEnvModifications(ctx context.Context, version string) (EnvModifications, error) {
	out, err := p.run(ctx, "which", "rustc")
	if err != nil {
		return EnvModifications{}, err
	}
	bin := strings.TrimSpace(out)
	idx := strings.LastIndex(bin, "/")
	if idx < 0 {
		idx = strings.LastIndex(bin, "\\")
	}
	var dir string
	if idx >= 0 {
		dir = bin[:idx]
	}
	return EnvModifications{PrependPath: []string{dir}}, nil
}

func (p *RustupProvider) VersionFileName() string { return "rust-toolchain.toml" }
