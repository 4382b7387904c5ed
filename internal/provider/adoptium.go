package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"tachyon-launcher/internal/httpport"
)

const adoptiumAPIBase = "https://api.adoptium.net/v3"

// AdoptiumProvider manages Eclipse Temurin JDK versions fetched from
// the Adoptium API, grounded on
// original_source/src-tauri/src/provider/adoptium.rs's AdoptiumProvider.
// It has no host CLI to shell out to (unlike RustupProvider): every
// search/list/update decision is driven by the REST API, and like
// ZigProvider it keeps its own versions directory plus a "current"
// symlink as the only local state.
type AdoptiumProvider struct {
	http    *httpport.Client
	jdksDir string
}

func NewAdoptiumProvider(client *httpport.Client) *AdoptiumProvider {
	if client == nil {
		client = httpport.New("")
	}
	return &AdoptiumProvider{http: client, jdksDir: detectJDKsDir()}
}

func detectJDKsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".launcher", "jdks")
}

func (p *AdoptiumProvider) versionsDir() string { return filepath.Join(p.jdksDir, "versions") }
func (p *AdoptiumProvider) currentLink() string { return filepath.Join(p.jdksDir, "current") }

func (p *AdoptiumProvider) ID() string          { return "adoptium" }
func (p *AdoptiumProvider) DisplayName() string { return "Adoptium Temurin JDK" }

func (p *AdoptiumProvider) Capabilities() []Capability {
	return []Capability{
		CapInstall, CapUninstall, CapSearch, CapList, CapUpdate,
		CapVersionSwitch, CapMultiVersion,
	}
}

func (p *AdoptiumProvider) SupportedPlatforms() []Platform {
	return []Platform{PlatformLinux, PlatformMacOS, PlatformWindows}
}

func (p *AdoptiumProvider) Priority() int { return 82 }

// IsAvailable reports whether a jdks directory path could be derived
// from the home directory; whether it exists or is writable is not
// checked. Adoptium is a pure REST-backed provider with no local tool
// dependency.
func (p *AdoptiumProvider) IsAvailable(ctx context.Context) bool {
	return p.jdksDir != ""
}

func adoptiumAPIOS() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "mac"
	default:
		return "linux"
	}
}

func adoptiumAPIArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "arm64":
		return "aarch64"
	case "386":
		return "x32"
	case "arm":
		return "arm"
	default:
		return "x64"
	}
}

type adoptiumAvailableReleases struct {
	AvailableLTSReleases     []int `json:"available_lts_releases"`
	AvailableReleases        []int `json:"available_releases"`
	MostRecentFeatureRelease int   `json:"most_recent_feature_release"`
	MostRecentLTS            int   `json:"most_recent_lts"`
}

type adoptiumVersionData struct {
	Major    int `json:"major"`
	Minor    int `json:"minor"`
	Security int `json:"security"`
	Build    int `json:"build"`
}

func (v adoptiumVersionData) fullVersion() string {
	if v.Build > 0 {
		return fmt.Sprintf("%d.%d.%d+%d", v.Major, v.Minor, v.Security, v.Build)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Security)
}

type adoptiumReleaseAsset struct {
	Binary struct {
		Package struct {
			Link string `json:"link"`
			Name string `json:"name"`
		} `json:"package"`
	} `json:"binary"`
	Version adoptiumVersionData `json:"version"`
}

func (p *AdoptiumProvider) getJSON(ctx context.Context, url string, out any) error {
	resp, err := p.http.Do(ctx, url, nil, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("adoptium api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *AdoptiumProvider) fetchAvailableReleases(ctx context.Context) (adoptiumAvailableReleases, error) {
	var out adoptiumAvailableReleases
	err := p.getJSON(ctx, adoptiumAPIBase+"/info/available_releases", &out)
	return out, err
}

func (p *AdoptiumProvider) fetchFeatureReleases(ctx context.Context, feature int) ([]adoptiumReleaseAsset, error) {
	url := fmt.Sprintf(
		"%s/assets/feature_releases/%d/ga?os=%s&architecture=%s&image_type=jdk&jvm_impl=hotspot&vendor=eclipse&page_size=20&sort_order=DESC",
		adoptiumAPIBase, feature, adoptiumAPIOS(), adoptiumAPIArch(),
	)
	var out []adoptiumReleaseAsset
	err := p.getJSON(ctx, url, &out)
	return out, err
}

// parseFeatureVersion extracts the leading major-version digits out of
// a full JDK version string ("21.0.3+9" -> 21).
func parseFeatureVersion(version string) (int, bool) {
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}

// featureVersionOf resolves a package name ("jdk@21", "java@21", "21")
// to its Adoptium feature-version number, defaulting to 21 (the
// current LTS) when the name carries no parseable digits.
func featureVersionOf(name string) int {
	v := strings.TrimPrefix(name, "jdk@")
	v = strings.TrimPrefix(v, "java@")
	if v == "" {
		return 21
	}
	if n, ok := parseFeatureVersion(v); ok {
		return n
	}
	return 21
}

func (p *AdoptiumProvider) Search(ctx context.Context, query string, _ SearchOptions) ([]PackageSummary, error) {
	releases, err := p.fetchAvailableReleases(ctx)
	if err != nil {
		return nil, err
	}
	ltsSet := make(map[int]bool, len(releases.AvailableLTSReleases))
	for _, v := range releases.AvailableLTSReleases {
		ltsSet[v] = true
	}
	var out []PackageSummary
	for i := len(releases.AvailableReleases) - 1; i >= 0; i-- {
		v := releases.AvailableReleases[i]
		vs := strconv.Itoa(v)
		if query != "" && !strings.Contains(vs, query) && !strings.Contains(fmt.Sprintf("jdk-%d", v), query) {
			continue
		}
		label := fmt.Sprintf("JDK %d", v)
		if ltsSet[v] {
			label += " (LTS)"
		}
		out = append(out, PackageSummary{
			Name:          fmt.Sprintf("jdk@%d", v),
			Description:   "Eclipse Temurin " + label,
			LatestVersion: vs,
			Provider:      p.ID(),
		})
	}
	return out, nil
}

func (p *AdoptiumProvider) GetPackageInfo(ctx context.Context, name string) (PackageInfo, error) {
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
		Description:       "Eclipse Temurin JDK",
		AvailableVersions: vers,
		Homepage:          "https://adoptium.net",
		Provider:          p.ID(),
	}, nil
}

func (p *AdoptiumProvider) GetVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	assets, err := p.fetchFeatureReleases(ctx, featureVersionOf(name))
	if err != nil {
		return nil, err
	}
	out := make([]VersionInfo, 0, len(assets))
	for _, a := range assets {
		out = append(out, VersionInfo{Version: a.Version.fullVersion()})
	}
	return out, nil
}

// IsLTSVersion reports whether version's feature number is one of the
// Adoptium API's currently-advertised LTS releases (satisfies
// LTSVersionFilter for env_resolve_alias's "lts" case).
func (p *AdoptiumProvider) IsLTSVersion(version string) bool {
	feature, ok := parseFeatureVersion(version)
	if !ok {
		return false
	}
	releases, err := p.fetchAvailableReleases(context.Background())
	if err != nil {
		return false
	}
	for _, v := range releases.AvailableLTSReleases {
		if v == feature {
			return true
		}
	}
	return false
}

// Install creates the versions/<version> directory (version defaults to
// the feature number derived from name) and nothing else. As with
// ZigProvider, it downloads no archive bytes; GetVersions returns
// version strings only, without the assets' download links.
func (p *AdoptiumProvider) Install(ctx context.Context, name, version string) error {
	if version == "" {
		version = strconv.Itoa(featureVersionOf(name))
	}
	return os.MkdirAll(filepath.Join(p.versionsDir(), version), 0o755)
}

func (p *AdoptiumProvider) Uninstall(ctx context.Context, name, version string) error {
	return os.RemoveAll(filepath.Join(p.versionsDir(), version))
}

func (p *AdoptiumProvider) ListInstalled(ctx context.Context) ([]InstalledVersion, error) {
	return p.ListInstalledVersions(ctx)
}

func (p *AdoptiumProvider) CheckUpdates(ctx context.Context) ([]VersionInfo, error) {
	installed, err := p.ListInstalledVersions(ctx)
	if err != nil {
		return nil, err
	}
	var updates []VersionInfo
	for _, v := range installed {
		feature, ok := parseFeatureVersion(v.Version)
		if !ok {
			continue
		}
		assets, err := p.fetchFeatureReleases(ctx, feature)
		if err != nil || len(assets) == 0 {
			continue
		}
		if latest := assets[0].Version.fullVersion(); latest != v.Version {
			updates = append(updates, VersionInfo{Version: latest})
		}
	}
	return updates, nil
}

// --- EnvironmentProvider ---

func (p *AdoptiumProvider) ListInstalledVersions(ctx context.Context) ([]InstalledVersion, error) {
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

func (p *AdoptiumProvider) GetCurrentVersion(ctx context.Context) (string, bool, error) {
	target, err := os.Readlink(p.currentLink())
	if err != nil {
		return "", false, nil
	}
	return filepath.Base(target), true, nil
}

func (p *AdoptiumProvider) SetGlobalVersion(ctx context.Context, version string) error {
	link := p.currentLink()
	target := filepath.Join(p.versionsDir(), version)
	_ = os.Remove(link)
	if err := os.MkdirAll(p.jdksDir, 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}

func (p *AdoptiumProvider) SetLocalVersion(ctx context.Context, dir, version string) error {
	return os.WriteFile(filepath.Join(dir, p.VersionFileName()), []byte(version), 0o644)
}

var javaPomVersionRe = regexp.MustCompile(`<(?:java\.version|maven\.compiler\.release)>(\d+(?:\.\d+)*)</`)

// DetectVersion walks upward from dir checking .java-version, then
// .tool-versions, then pom.xml's java.version/maven.compiler.release,
// falling back to the globally active version.
func (p *AdoptiumProvider) DetectVersion(ctx context.Context, dir string) (string, string, bool, error) {
	cur := dir
	for {
		if data, err := os.ReadFile(filepath.Join(cur, ".java-version")); err == nil {
			if v := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(string(data)), "temurin-"), ".LTS"); v != "" {
				return v, filepath.Join(cur, ".java-version"), true, nil
			}
		}
		if data, err := os.ReadFile(filepath.Join(cur, ".tool-versions")); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if v, ok := strings.CutPrefix(line, "java "); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v), filepath.Join(cur, ".tool-versions"), true, nil
				}
			}
		}
		if data, err := os.ReadFile(filepath.Join(cur, "pom.xml")); err == nil {
			if m := javaPomVersionRe.FindStringSubmatch(string(data)); m != nil {
				return m[1], filepath.Join(cur, "pom.xml"), true, nil
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

func (p *AdoptiumProvider) GetEnvModifications(ctx context.Context, version string) (EnvModifications, error) {
	home := filepath.Join(p.versionsDir(), version)
	if version == "" {
		home = p.currentLink()
	}
	return EnvModifications{
		PrependPath: []string{filepath.Join(home, "bin")},
		SetVars:     map[string]string{"JAVA_HOME": home},
	}, nil
}

func (p *AdoptiumProvider) VersionFileName() string { return ".java-version" }
