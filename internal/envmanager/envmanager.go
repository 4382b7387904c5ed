// Package envmanager implements the Environment Manager (§4.9): it
// normalizes a logical language/runtime name, builds an ordered list
// of candidate provider ids for it, resolves which provider actually
// owns a given environment today, and aggregates list/get/check-update
// operations across every known environment type. Grounded line-for-
// line on original_source/src-tauri/src/core/environment.rs.
package envmanager

import (
	"context"
	"fmt"
	"sort"
	"strings"

	hashiversion "github.com/hashicorp/go-version"

	"tachyon-launcher/internal/config"
	"tachyon-launcher/internal/provider"
)

// EnvironmentType lists every language/runtime this launcher manages,
// mirroring environment.rs's `SystemEnvironmentType::all()`.
var EnvironmentType = []string{
	"node", "python", "go", "rust", "ruby", "java", "kotlin", "scala",
	"groovy", "php", "dotnet", "deno", "zig", "dart", "bun", "lua", "c", "cpp",
}

// normalizeEnvType maps a raw, possibly provider-prefixed env type
// string to its logical tag, e.g. "system-node" -> "node". Grounded
// on environment.rs's `normalize_env_type()` exact mapping table.
func normalizeEnvType(raw string) string {
	switch raw {
	case "node", "fnm", "nvm", "volta", "system-node":
		return "node"
	case "python", "pyenv", "uv", "system-python":
		return "python"
	case "go", "goenv", "system-go":
		return "go"
	case "rust", "rustup", "system-rust":
		return "rust"
	case "ruby", "rbenv", "system-ruby":
		return "ruby"
	case "java", "sdkman", "adoptium", "system-java":
		return "java"
	case "kotlin", "sdkman-kotlin", "system-kotlin":
		return "kotlin"
	case "scala", "sdkman-scala":
		return "scala"
	case "groovy", "sdkman-groovy":
		return "groovy"
	case "php", "phpbrew", "system-php":
		return "php"
	case "dotnet", "system-dotnet":
		return "dotnet"
	case "deno", "system-deno":
		return "deno"
	case "zig", "system-zig":
		return "zig"
	case "dart", "fvm", "system-dart":
		return "dart"
	case "bun", "system-bun":
		return "bun"
	case "lua", "system-lua":
		return "lua"
	case "c", "system-c":
		return "c"
	case "cpp", "system-cpp", "msvc", "msys2", "vcpkg", "conan", "xmake":
		return "cpp"
	}
	if after, ok := strings.CutPrefix(raw, "system-"); ok {
		return after
	}
	return raw
}

// candidateProviderIDs returns the ordered provider ids to try for a
// logical env type: dedicated managers first, then the polyglot
// managers (mise, asdf), then a system fallback. Grounded on
// environment.rs's `candidate_provider_ids()` exact per-language table.
func candidateProviderIDs(envType string) []string {
	switch envType {
	case "node":
		return []string{"volta", "fnm", "nvm", "mise", "asdf", "system-node"}
	case "python":
		return []string{"pyenv", "uv", "mise", "asdf", "system-python"}
	case "go":
		return []string{"goenv", "mise", "asdf", "system-go"}
	case "rust":
		return []string{"rustup", "mise", "asdf", "system-rust"}
	case "ruby":
		return []string{"rbenv", "mise", "asdf", "system-ruby"}
	case "java":
		return []string{"sdkman", "adoptium", "mise", "asdf", "system-java"}
	case "kotlin":
		return []string{"sdkman-kotlin", "mise", "asdf", "system-kotlin"}
	case "scala":
		return []string{"sdkman-scala", "mise", "asdf", "system-scala"}
	case "groovy":
		return []string{"sdkman-groovy", "mise", "asdf", "system-groovy"}
	case "php":
		return []string{"phpbrew", "mise", "asdf", "system-php"}
	case "dotnet":
		return []string{"dotnet", "system-dotnet"}
	case "deno":
		return []string{"deno", "mise", "asdf", "system-deno"}
	case "zig":
		return []string{"zig", "mise", "asdf", "system-zig"}
	case "dart":
		return []string{"fvm", "mise", "asdf", "system-dart"}
	case "bun":
		return []string{"bun", "system-bun"}
	case "lua":
		return []string{"system-lua"}
	case "c":
		return []string{"system-c"}
	case "cpp":
		return []string{"msvc", "msys2", "vcpkg", "conan", "xmake", "system-cpp"}
	default:
		return []string{"system-" + envType}
	}
}

// versionMatches implements environment.rs's version_matches(): trims
// whitespace, strips a leading 'v', special-cases stripping a "go"
// prefix from both sides only when followed by a digit, checks exact
// equality, then checks a prefix match in either direction where the
// character immediately after the shared prefix is '.', '-', or end
// of string (a "boundary" match, so "1.2" matches "1.2.3" but not
// "1.20").
func versionMatches(a, b string) bool {
	a = normalizeVersionToken(a)
	b = normalizeVersionToken(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return boundaryPrefixMatch(a, b) || boundaryPrefixMatch(b, a)
}

func normalizeVersionToken(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")
	if after, ok := strings.CutPrefix(v, "go"); ok && after != "" && isDigit(after[0]) {
		v = after
	}
	return v
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// boundaryPrefixMatch reports whether short is a prefix of long and
// the next character in long after that prefix is a boundary marker.
func boundaryPrefixMatch(short, long string) bool {
	if !strings.HasPrefix(long, short) || short == long {
		return false
	}
	next := long[len(short)]
	return next == '.' || next == '-'
}

// ResolvedEnvironment is the outcome of resolveProvider: which provider
// id owns this environment and whether that provider is enabled. It
// does not record which resolution step chose the provider.
type ResolvedEnvironment struct {
	ProviderID string
	Enabled    bool
}

// resolveProvider implements environment.rs's resolve_provider()'s
// 4-step policy:
//  1. an explicit provider id is used verbatim, even if disabled.
//  2. back-compat: envType itself already names a known, enabled
//     provider id.
//  3. normalize envType to its logical tag and build the candidate
//     list, filtered to providers the registry actually knows about.
//  4. partition candidates into enabled/disabled; within each group,
//     try matching versionHint against list_installed_versions first,
//     then the first available() provider, else the group's first
//     candidate.
func resolveProvider(ctx context.Context, reg *provider.Registry, envType, explicitProviderID, versionHint string) (ResolvedEnvironment, bool) {
	if explicitProviderID != "" {
		if p := reg.Get(explicitProviderID); p != nil {
			return ResolvedEnvironment{ProviderID: p.ID(), Enabled: reg.IsEnabled(p.ID())}, true
		}
	}

	if p := reg.Get(envType); p != nil && reg.IsEnabled(envType) {
		return ResolvedEnvironment{ProviderID: envType, Enabled: true}, true
	}

	logical := normalizeEnvType(envType)
	candidates := candidateProviderIDs(logical)

	var known []string
	for _, id := range candidates {
		if reg.Get(id) != nil {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return ResolvedEnvironment{}, false
	}

	var enabled, disabled []string
	for _, id := range known {
		if reg.IsEnabled(id) {
			enabled = append(enabled, id)
		} else {
			disabled = append(disabled, id)
		}
	}

	if resolved, ok := resolveFromGroup(ctx, reg, enabled, versionHint, true); ok {
		return resolved, true
	}
	if resolved, ok := resolveFromGroup(ctx, reg, disabled, versionHint, false); ok {
		return resolved, true
	}
	return ResolvedEnvironment{}, false
}

func resolveFromGroup(ctx context.Context, reg *provider.Registry, group []string, versionHint string, enabled bool) (ResolvedEnvironment, bool) {
	if len(group) == 0 {
		return ResolvedEnvironment{}, false
	}
	if versionHint != "" {
		for _, id := range group {
			envP, ok := reg.GetEnvironmentProvider(id)
			if !ok {
				continue
			}
			installed, err := envP.ListInstalledVersions(ctx)
			if err != nil {
				continue
			}
			for _, v := range installed {
				if versionMatches(v.Version, versionHint) {
					return ResolvedEnvironment{ProviderID: id, Enabled: enabled}, true
				}
			}
		}
	}
	for _, id := range group {
		p := reg.Get(id)
		if p != nil && p.IsAvailable(ctx) {
			return ResolvedEnvironment{ProviderID: id, Enabled: enabled}, true
		}
	}
	return ResolvedEnvironment{ProviderID: group[0], Enabled: enabled}, true
}

// EnvironmentInfo is one row of list_environments()/get_environment().
type EnvironmentInfo struct {
	EnvType        string
	ProviderID     string
	ProviderFound  bool
	Available      bool
	CurrentVersion string
	HasCurrent     bool
	Installed      []provider.InstalledVersion
}

// Manager aggregates Environment Manager operations over a provider
// registry and the persisted per-provider enabled bits.
type Manager struct {
	reg    *provider.Registry
	config *config.Manager
}

func New(reg *provider.Registry, cfg *config.Manager) *Manager {
	return &Manager{reg: reg, config: cfg}
}

// Resolve exposes resolveProvider for callers (e.g. the host API) that
// need just the provider-id decision without the full environment info.
func (m *Manager) Resolve(ctx context.Context, envType, explicitProviderID, versionHint string) (ResolvedEnvironment, bool) {
	return resolveProvider(ctx, m.reg, envType, explicitProviderID, versionHint)
}

// GetEnvironment resolves envType to a provider and reports its current
// availability/installed/active-version state (environment.rs's
// `get_environment()`).
func (m *Manager) GetEnvironment(ctx context.Context, envType string) EnvironmentInfo {
	resolved, ok := resolveProvider(ctx, m.reg, envType, "", "")
	if !ok {
		return EnvironmentInfo{EnvType: envType, ProviderFound: false}
	}
	envP, isEnvProvider := m.reg.GetEnvironmentProvider(resolved.ProviderID)
	p := m.reg.Get(resolved.ProviderID)
	info := EnvironmentInfo{EnvType: envType, ProviderID: resolved.ProviderID, ProviderFound: true}
	if p != nil {
		info.Available = p.IsAvailable(ctx)
	}
	if isEnvProvider {
		if installed, err := envP.ListInstalledVersions(ctx); err == nil {
			info.Installed = installed
		}
		if v, has, err := envP.GetCurrentVersion(ctx); err == nil {
			info.CurrentVersion, info.HasCurrent = v, has
		}
	}
	return info
}

// ListEnvironments runs GetEnvironment for every known environment
// type, in the fixed order of EnvironmentType (environment.rs's
// `list_environments()`).
func (m *Manager) ListEnvironments(ctx context.Context) []EnvironmentInfo {
	out := make([]EnvironmentInfo, 0, len(EnvironmentType))
	for _, envType := range EnvironmentType {
		out = append(out, m.GetEnvironment(ctx, envType))
	}
	return out
}

// UpdateCheck is one outdated-version finding of CheckAllUpdates.
type UpdateCheck struct {
	EnvType        string
	ProviderID     string
	CurrentVersion string
	LatestVersion  string
}

// CheckAllUpdates compares each environment's current version against
// its provider's newest known version using semver ordering, reporting
// every environment where a strictly newer version exists. This is
// SPEC_FULL.md's supplemented feature (the distilled spec never
// mentions update checking, but environment.rs's sibling
// `check_all_env_updates` does it per-environment, so it is carried
// here as an aggregate operation across every resolved provider).
func (m *Manager) CheckAllUpdates(ctx context.Context) []UpdateCheck {
	var out []UpdateCheck
	for _, info := range m.ListEnvironments(ctx) {
		if !info.ProviderFound || !info.HasCurrent {
			continue
		}
		current, err := hashiversion.NewVersion(normalizeVersionToken(info.CurrentVersion))
		if err != nil {
			continue
		}
		envP, ok := m.reg.GetEnvironmentProvider(info.ProviderID)
		if !ok {
			continue
		}
		versions, err := envP.GetVersions(ctx, info.EnvType)
		if err != nil || len(versions) == 0 {
			continue
		}
		latest := latestParsableVersion(versions)
		if latest == nil {
			continue
		}
		if latest.GreaterThan(current) {
			out = append(out, UpdateCheck{
				EnvType:        info.EnvType,
				ProviderID:     info.ProviderID,
				CurrentVersion: info.CurrentVersion,
				LatestVersion:  latest.Original(),
			})
		}
	}
	return out
}

func latestParsableVersion(versions []provider.VersionInfo) *hashiversion.Version {
	var best *hashiversion.Version
	for _, v := range versions {
		if v.Prerelease {
			continue
		}
		parsed, err := hashiversion.NewVersion(normalizeVersionToken(v.Version))
		if err != nil {
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
		}
	}
	return best
}

// CleanupVersions removes every installed version of envType except
// the currently-active one and any version listed in keep, returning
// the versions it removed. Supplements the distilled spec's silence on
// disk-space reclamation with a feature environment.rs's callers rely
// on (uninstalling stale toolchains after an upgrade).
func (m *Manager) CleanupVersions(ctx context.Context, envType string, keep []string) ([]string, error) {
	info := m.GetEnvironment(ctx, envType)
	if !info.ProviderFound {
		return nil, nil
	}
	envP, ok := m.reg.GetEnvironmentProvider(info.ProviderID)
	if !ok {
		return nil, nil
	}
	keepSet := make(map[string]bool, len(keep)+1)
	for _, k := range keep {
		keepSet[k] = true
	}
	if info.HasCurrent {
		keepSet[info.CurrentVersion] = true
	}

	installed, err := envP.ListInstalledVersions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].Version < installed[j].Version })

	var removed []string
	for _, v := range installed {
		if keepSet[v.Version] {
			continue
		}
		if err := envP.Uninstall(ctx, envType, v.Version); err != nil {
			return removed, err
		}
		removed = append(removed, v.Version)
	}
	return removed, nil
}

// AliasResolution is env_resolve_alias's result (§6): which provider
// was consulted and the concrete version its alias resolved to.
type AliasResolution struct {
	ProviderID string
	Version    string
}

// ResolveAlias implements §6's env_resolve_alias(env_type, alias):
// resolve envType to a provider via the usual resolveProvider policy,
// then turn a semantic alias ("lts" | "latest" | "stable") into one
// concrete version string drawn from that provider's GetVersions().
// Grounded on the `resolve_version_alias` step every provider.rs's
// get_versions() caller in environment.rs performs before installing.
func (m *Manager) ResolveAlias(ctx context.Context, envType, providerID, alias string) (AliasResolution, error) {
	resolved, ok := resolveProvider(ctx, m.reg, envType, providerID, "")
	if !ok {
		return AliasResolution{}, fmt.Errorf("no provider available for %q", envType)
	}
	p := m.reg.Get(resolved.ProviderID)
	if p == nil {
		return AliasResolution{}, fmt.Errorf("provider %q not registered", resolved.ProviderID)
	}
	versions, err := p.GetVersions(ctx, envType)
	if err != nil {
		return AliasResolution{}, fmt.Errorf("get versions from %s: %w", resolved.ProviderID, err)
	}
	if len(versions) == 0 {
		return AliasResolution{}, fmt.Errorf("provider %q returned no versions", resolved.ProviderID)
	}
	version, err := resolveVersionAlias(p, versions, alias)
	if err != nil {
		return AliasResolution{}, err
	}
	return AliasResolution{ProviderID: resolved.ProviderID, Version: version}, nil
}

// resolveVersionAlias maps alias to one of versions' Version strings.
// It tries, in order:
//  1. a literal match (handles channel-style providers like rustup
//     whose "stable"/"beta"/"nightly" entries are themselves aliases).
//  2. for "lts", a LTSVersionFilter type-assertion on p, falling back
//     to "stable" semantics if the provider doesn't implement one.
//  3. semver ordering via hashiversion: "latest" takes the newest
//     version including prereleases, "stable"/"lts" the newest
//     excluding them.
func resolveVersionAlias(p provider.Provider, versions []provider.VersionInfo, alias string) (string, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		alias = "stable"
	}
	for _, v := range versions {
		if strings.EqualFold(v.Version, alias) {
			return v.Version, nil
		}
	}

	switch alias {
	case "lts":
		if filter, ok := p.(provider.LTSVersionFilter); ok {
			if v := newestVersion(versions, false, filter.IsLTSVersion); v != "" {
				return v, nil
			}
		}
		if v := newestVersion(versions, false, nil); v != "" {
			return v, nil
		}
	case "latest":
		if v := newestVersion(versions, true, nil); v != "" {
			return v, nil
		}
		for _, v := range versions {
			if strings.EqualFold(v.Version, "nightly") {
				return v.Version, nil
			}
		}
	default: // "stable" and any other unrecognized alias
		if v := newestVersion(versions, false, nil); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("could not resolve alias %q against %d candidate versions", alias, len(versions))
}

// newestVersion returns the semver-greatest Version string in
// versions, optionally filtered by keep (nil keeps everything).
// includePrerelease controls whether VersionInfo.Prerelease entries
// are eligible.
func newestVersion(versions []provider.VersionInfo, includePrerelease bool, keep func(string) bool) string {
	var best *hashiversion.Version
	var bestRaw string
	for _, v := range versions {
		if v.Prerelease && !includePrerelease {
			continue
		}
		if keep != nil && !keep(v.Version) {
			continue
		}
		parsed, err := hashiversion.NewVersion(normalizeVersionToken(v.Version))
		if err != nil {
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
			bestRaw = v.Version
		}
	}
	return bestRaw
}
