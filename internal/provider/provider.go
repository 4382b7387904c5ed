// Package provider implements the Provider Registry and trait of §4.8:
// a common interface every toolchain manager implements, plus a
// registry mapping id -> instance with enabled/disabled bits. Grounded
// on original_source/src-tauri/src/provider/*.rs's `Provider`/
// `EnvironmentProvider` traits; rustup.rs, zig.rs, adoptium.rs, and
// uv.rs are implemented in full as RustupProvider, ZigProvider,
// AdoptiumProvider, and UvProvider. wsl.rs and xmake.rs were not ported
// — see DESIGN.md's Provider Registry entry for why. The exec-based
// `is_available`/CLI-invocation pattern is grounded on the teacher's
// internal/security.Scanner, generalized from a single antivirus-
// scanner shape into N pluggable provider implementations.
package provider

import (
	"context"
)

// Capability enumerates what a provider can do (§4.8).
type Capability string

const (
	CapInstall       Capability = "install"
	CapUninstall     Capability = "uninstall"
	CapSearch        Capability = "search"
	CapList          Capability = "list"
	CapUpdate        Capability = "update"
	CapVersionSwitch Capability = "version_switch"
	CapMultiVersion  Capability = "multi_version"
	CapProjectLocal  Capability = "project_local"
)

// Platform mirrors the three desktop targets this launcher supports.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformMacOS   Platform = "darwin"
	PlatformWindows Platform = "windows"
)

// PackageSummary is one search() result row.
type PackageSummary struct {
	Name          string
	Description   string
	LatestVersion string
	Provider      string
}

// PackageInfo is get_package_info()'s richer single-package detail.
type PackageInfo struct {
	Name              string
	Description       string
	AvailableVersions []string
	Homepage          string
	Provider          string
}

// VersionInfo is one entry of get_versions().
type VersionInfo struct {
	Version    string
	Prerelease bool
	ReleasedAt string
}

// InstalledVersion is one entry of list_installed()/list_installed_versions().
type InstalledVersion struct {
	Version     string
	InstallPath string
	Size        int64
	IsCurrent   bool
}

// EnvModifications is the PATH-prepend/env-var-set record that,
// applied to a child shell, makes a chosen version active (§4.8).
type EnvModifications struct {
	PrependPath []string
	SetVars     map[string]string
}

// SearchOptions narrows a search() call (prerelease inclusion, limit).
type SearchOptions struct {
	IncludePrerelease bool
	Limit             int
}

// Provider is the common contract every toolchain manager implements
// (§4.8 paragraph 1).
type Provider interface {
	ID() string
	DisplayName() string
	Capabilities() []Capability
	SupportedPlatforms() []Platform
	Priority() int
	IsAvailable(ctx context.Context) bool
	Search(ctx context.Context, query string, opts SearchOptions) ([]PackageSummary, error)
	GetPackageInfo(ctx context.Context, name string) (PackageInfo, error)
	GetVersions(ctx context.Context, name string) ([]VersionInfo, error)
	Install(ctx context.Context, name, version string) error
	Uninstall(ctx context.Context, name, version string) error
	ListInstalled(ctx context.Context) ([]InstalledVersion, error)
	CheckUpdates(ctx context.Context) ([]VersionInfo, error)
}

// EnvironmentProvider is the extended contract environment-managing
// providers (language version managers) implement on top of Provider.
type EnvironmentProvider interface {
	Provider
	ListInstalledVersions(ctx context.Context) ([]InstalledVersion, error)
	GetCurrentVersion(ctx context.Context) (string, bool, error)
	SetGlobalVersion(ctx context.Context, version string) error
	SetLocalVersion(ctx context.Context, dir, version string) error
	DetectVersion(ctx context.Context, dir string) (string, string, bool, error) // version, source, ok
	GetEnvModifications(ctx context.Context, version string) (EnvModifications, error)
	VersionFileName() string
}

// LTSVersionFilter is implemented by providers whose ecosystem
// distinguishes long-term-support releases from regular ones (e.g.
// Adoptium's `available_lts_releases`), letting env_resolve_alias's
// "lts" case filter GetVersions down to the LTS subset. Providers
// without an LTS concept simply don't implement it.
type LTSVersionFilter interface {
	IsLTSVersion(version string) bool
}

// Registry stores providers by id and records per-id enabled/disabled
// flags (§4.8 paragraph 3).
type Registry struct {
	providers map[string]Provider
	enabled   map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		enabled:   make(map[string]bool),
	}
}

// Register adds a provider, enabled by default.
func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
	if _, ok := r.enabled[p.ID()]; !ok {
		r.enabled[p.ID()] = true
	}
}

// Get returns provider P, or nil if unknown.
func (r *Registry) Get(id string) Provider {
	return r.providers[id]
}

// GetEnvironmentProvider returns P as an EnvironmentProvider if it
// implements the extended contract.
func (r *Registry) GetEnvironmentProvider(id string) (EnvironmentProvider, bool) {
	p, ok := r.providers[id].(EnvironmentProvider)
	return p, ok
}

// IsEnabled reports a provider's enabled/disabled bit; unknown
// providers are treated as disabled.
func (r *Registry) IsEnabled(id string) bool {
	enabled, ok := r.enabled[id]
	return ok && enabled
}

// SetEnabled flips a provider's enabled bit.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.enabled[id] = enabled
}

// All returns every registered provider, unordered.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}
