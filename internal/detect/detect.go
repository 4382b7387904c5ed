// Package detect implements the Project Version Detector (§4.10): for
// a logical language tag and a starting directory, walk upward
// applying an ordered list of detection sources until one yields a
// pinned version. Grounded line-for-line on
// original_source/src-tauri/src/core/project_env_detect.rs.
package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Result is one detect_env_version() hit: the value found, the source
// label that fired, and the file it was read from.
type Result struct {
	Value      string
	Source     string
	SourcePath string
}

// DefaultSources returns the full ordered list of detection sources
// for a language, in priority order. Grounded on project_env_detect.rs's
// default_detection_sources().
func DefaultSources(envType string) []string {
	switch envType {
	case "node":
		return []string{".nvmrc", ".node-version", ".tool-versions", "package.json (volta.node)", "package.json (engines.node)"}
	case "python":
		return []string{".python-version", "pyproject.toml (project.requires-python)", "pyproject.toml (tool.poetry.dependencies.python)", "uv.toml (requires-python)", "Pipfile (requires.python_version)", "runtime.txt", ".tool-versions"}
	case "go":
		return []string{"go.mod (toolchain)", "go.mod (go)", ".go-version", ".tool-versions"}
	case "rust":
		return []string{"rust-toolchain", "rust-toolchain.toml", ".tool-versions"}
	case "ruby":
		return []string{".ruby-version", "Gemfile", ".tool-versions"}
	case "java":
		return []string{".java-version", ".sdkmanrc", ".tool-versions", "pom.xml (java.version)", "build.gradle (sourceCompatibility)"}
	case "kotlin":
		return []string{".kotlin-version", ".sdkmanrc", ".tool-versions"}
	case "scala":
		return []string{"build.sbt", ".scala-version", ".sdkmanrc", ".tool-versions"}
	case "php":
		return []string{".php-version", "composer.json (require.php)", ".tool-versions"}
	case "dotnet":
		return []string{"global.json (sdk.version)", ".tool-versions"}
	case "deno":
		return []string{".deno-version", ".dvmrc", ".tool-versions"}
	case "bun":
		return []string{".bun-version", ".tool-versions", "package.json (engines.bun)"}
	case "zig":
		return []string{".zig-version", "build.zig.zon (minimum_zig_version)", ".tool-versions"}
	case "dart":
		return []string{"pubspec.yaml (environment.sdk)", ".fvmrc", ".dart-version", ".tool-versions"}
	case "lua":
		return []string{".lua-version", ".tool-versions"}
	case "groovy":
		return []string{".sdkmanrc", ".tool-versions"}
	default:
		return nil
	}
}

// DefaultEnabledSources returns the first two entries of DefaultSources,
// the factory-default enabled subset per §4.10.
func DefaultEnabledSources(envType string) []string {
	all := DefaultSources(envType)
	if len(all) > 2 {
		return append([]string{}, all[:2]...)
	}
	return append([]string{}, all...)
}

// DetectVersion walks upward from startDir, trying sources (in order)
// at each directory until one fires, the nearest directory wins over
// any more-distant match.
func DetectVersion(envType, startDir string, sources []string) (Result, bool) {
	current := startDir
	for {
		for _, source := range sources {
			if res, ok := detectFromSource(envType, current, source); ok {
				return res, true
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return Result{}, false
}

func detectFromSource(envType, dir, source string) (Result, bool) {
	switch envType {
	case "node":
		return detectNode(dir, source)
	case "python":
		return detectPython(dir, source)
	case "go":
		return detectGo(dir, source)
	case "rust":
		return detectRust(dir, source)
	case "dotnet":
		return detectDotnet(dir, source)
	case "scala":
		return detectScala(dir, source)
	case "zig":
		return detectZig(dir, source)
	case "dart":
		return detectDart(dir, source)
	default:
		return detectGeneric(envType, dir, source)
	}
}

// detectGeneric handles ruby/java/kotlin/php/deno/bun/lua/groovy without
// a per-language switch arm each: it reads dot-prefixed version files
// and .tool-versions only. The manifest sources DefaultSources lists for
// some of these languages (Gemfile, pom.xml, build.gradle, composer.json,
// package.json (engines.bun)) are not read and never yield a value.
func detectGeneric(envType, dir, source string) (Result, bool) {
	if strings.HasPrefix(source, ".") && !strings.Contains(source, "(") && source != ".tool-versions" {
		return readVersionFile(filepath.Join(dir, source), source)
	}
	if source == ".tool-versions" {
		return readToolVersions(dir, toolVersionsAliases(envType), source)
	}
	return Result{}, false
}

func toolVersionsAliases(envType string) []string {
	switch envType {
	case "node":
		return []string{"nodejs", "node"}
	case "go":
		return []string{"golang", "go"}
	case "dotnet":
		return []string{"dotnet", "dotnet-core"}
	default:
		return []string{envType}
	}
}

func detectNode(dir, source string) (Result, bool) {
	switch source {
	case ".nvmrc":
		return readVersionFile(filepath.Join(dir, ".nvmrc"), source)
	case ".node-version":
		return readVersionFile(filepath.Join(dir, ".node-version"), source)
	case ".tool-versions":
		return readToolVersions(dir, []string{"nodejs", "node"}, source)
	case "package.json (volta.node)":
		return readPackageJSONField(dir, []string{"volta", "node"}, source)
	case "package.json (engines.node)":
		return readPackageJSONField(dir, []string{"engines", "node"}, source)
	}
	return Result{}, false
}

func detectPython(dir, source string) (Result, bool) {
	switch source {
	case ".python-version":
		return readVersionFile(filepath.Join(dir, ".python-version"), source)
	case "pyproject.toml (project.requires-python)":
		return readTOMLPath(filepath.Join(dir, "pyproject.toml"), source, "project", "requires-python")
	case "pyproject.toml (tool.poetry.dependencies.python)":
		return readTOMLPath(filepath.Join(dir, "pyproject.toml"), source, "tool", "poetry", "dependencies", "python")
	case "uv.toml (requires-python)":
		return readTOMLPath(filepath.Join(dir, "uv.toml"), source, "requires-python")
	case "Pipfile (requires.python_version)":
		return readTOMLPath(filepath.Join(dir, "Pipfile"), source, "requires", "python_version")
	case "runtime.txt":
		res, ok := readVersionFile(filepath.Join(dir, "runtime.txt"), source)
		if !ok {
			return res, ok
		}
		res.Value = strings.TrimPrefix(res.Value, "python-")
		return res, true
	case ".tool-versions":
		return readToolVersions(dir, []string{"python"}, source)
	}
	return Result{}, false
}

// go.mod toolchain/go directive parsing.
var goModDirectiveRe = regexp.MustCompile(`(?m)^\s*(toolchain|go)\s+(\S+)\s*$`)

func detectGo(dir, source string) (Result, bool) {
	switch source {
	case ".go-version":
		return readVersionFile(filepath.Join(dir, ".go-version"), source)
	case "go.mod (toolchain)":
		return readGoModDirective(dir, "toolchain", source, true)
	case "go.mod (go)":
		return readGoModDirective(dir, "go", source, false)
	case ".tool-versions":
		return readToolVersions(dir, []string{"golang", "go"}, source)
	}
	return Result{}, false
}

func readGoModDirective(dir, directive, source string, stripGoPrefix bool) (Result, bool) {
	path := filepath.Join(dir, "go.mod")
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	for _, m := range goModDirectiveRe.FindAllStringSubmatch(string(content), -1) {
		if m[1] != directive {
			continue
		}
		value := m[2]
		if stripGoPrefix {
			if value == "local" || value == "default" {
				continue
			}
			value = strings.TrimPrefix(value, "go")
		}
		if value == "" {
			continue
		}
		return Result{Value: value, Source: source, SourcePath: path}, true
	}
	return Result{}, false
}

// detectRust: rust-toolchain (bare channel or TOML) takes precedence
// over rust-toolchain.toml when both exist in the same directory.
func detectRust(dir, source string) (Result, bool) {
	switch source {
	case "rust-toolchain":
		return readRustToolchainFile(filepath.Join(dir, "rust-toolchain"), source)
	case "rust-toolchain.toml":
		return readTOMLPath(filepath.Join(dir, "rust-toolchain.toml"), source, "toolchain", "channel")
	case ".tool-versions":
		return readToolVersions(dir, []string{"rust"}, source)
	}
	return Result{}, false
}

func readRustToolchainFile(path, source string) (Result, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	var doc map[string]any
	if err := toml.Unmarshal(content, &doc); err == nil {
		if tc, ok := doc["toolchain"].(map[string]any); ok {
			if channel, ok := tc["channel"].(string); ok && strings.TrimSpace(channel) != "" {
				return Result{Value: strings.TrimSpace(channel), Source: source, SourcePath: path}, true
			}
		}
	}
	if v, ok := firstNonEmptyNonComment(string(content)); ok {
		return Result{Value: v, Source: source, SourcePath: path}, true
	}
	return Result{}, false
}

func detectDotnet(dir, source string) (Result, bool) {
	switch source {
	case "global.json (sdk.version)":
		return readJSONPath(filepath.Join(dir, "global.json"), source, "sdk", "version")
	case ".tool-versions":
		return readToolVersions(dir, []string{"dotnet", "dotnet-core"}, source)
	}
	return Result{}, false
}

var buildSbtScalaVersionRe = regexp.MustCompile(`scalaVersion\s*:=\s*"([^"]+)"`)

func detectScala(dir, source string) (Result, bool) {
	switch source {
	case "build.sbt":
		path := filepath.Join(dir, "build.sbt")
		content, err := os.ReadFile(path)
		if err != nil {
			return Result{}, false
		}
		if m := buildSbtScalaVersionRe.FindStringSubmatch(string(content)); m != nil && strings.TrimSpace(m[1]) != "" {
			return Result{Value: strings.TrimSpace(m[1]), Source: source, SourcePath: path}, true
		}
		return Result{}, false
	case ".scala-version":
		return readVersionFile(filepath.Join(dir, ".scala-version"), source)
	case ".tool-versions":
		return readToolVersions(dir, []string{"scala"}, source)
	}
	return Result{}, false
}

var buildZigZonMinVersionRe = regexp.MustCompile(`\.minimum_zig_version\s*=\s*"([^"]+)"`)

func detectZig(dir, source string) (Result, bool) {
	switch source {
	case ".zig-version":
		return readVersionFile(filepath.Join(dir, ".zig-version"), source)
	case "build.zig.zon (minimum_zig_version)":
		path := filepath.Join(dir, "build.zig.zon")
		content, err := os.ReadFile(path)
		if err != nil {
			return Result{}, false
		}
		if m := buildZigZonMinVersionRe.FindStringSubmatch(string(content)); m != nil {
			return Result{Value: m[1], Source: source, SourcePath: path}, true
		}
		return Result{}, false
	case ".tool-versions":
		return readToolVersions(dir, []string{"zig"}, source)
	}
	return Result{}, false
}

func detectDart(dir, source string) (Result, bool) {
	switch source {
	case "pubspec.yaml (environment.sdk)":
		path := filepath.Join(dir, "pubspec.yaml")
		content, err := os.ReadFile(path)
		if err != nil {
			return Result{}, false
		}
		var doc map[string]any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return Result{}, false
		}
		env, ok := doc["environment"].(map[string]any)
		if !ok {
			return Result{}, false
		}
		sdk, ok := env["sdk"].(string)
		if !ok || strings.TrimSpace(sdk) == "" {
			return Result{}, false
		}
		return Result{Value: sdk, Source: source, SourcePath: path}, true
	case ".fvmrc":
		return readJSONPath(filepath.Join(dir, ".fvmrc"), source, "flutter")
	case ".dart-version":
		return readVersionFile(filepath.Join(dir, ".dart-version"), source)
	case ".tool-versions":
		return readToolVersions(dir, []string{"dart", "flutter"}, source)
	}
	return Result{}, false
}

// --- shared primitives, grounded on project_env_detect.rs's read_* helpers ---

func readVersionFile(path, source string) (Result, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	v, ok := firstNonEmptyNonComment(string(content))
	if !ok {
		return Result{}, false
	}
	return Result{Value: v, Source: source, SourcePath: path}, true
}

func firstNonEmptyNonComment(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, true
	}
	return "", false
}

func readToolVersions(dir string, keys []string, source string) (Result, bool) {
	path := filepath.Join(dir, ".tool-versions")
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	for _, line := range strings.Split(string(content), "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		tool := fields[0]
		matched := false
		for _, k := range keys {
			if k == tool {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		version := strings.TrimSpace(fields[1])
		if version == "" {
			continue
		}
		return Result{Value: version, Source: source, SourcePath: path}, true
	}
	return Result{}, false
}

func readPackageJSONField(dir string, jsonPath []string, source string) (Result, bool) {
	path := filepath.Join(dir, "package.json")
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		return Result{}, false
	}
	var cur any = doc
	for _, seg := range jsonPath {
		m, ok := cur.(map[string]any)
		if !ok {
			return Result{}, false
		}
		cur, ok = m[seg]
		if !ok {
			return Result{}, false
		}
	}
	s, ok := cur.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return Result{}, false
	}
	return Result{Value: strings.TrimSpace(s), Source: source, SourcePath: path}, true
}

func readJSONPath(path, source string, jsonPath ...string) (Result, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	var doc map[string]any
	if err := json.Unmarshal(content, &doc); err != nil {
		return Result{}, false
	}
	var cur any = doc
	for _, seg := range jsonPath {
		m, ok := cur.(map[string]any)
		if !ok {
			return Result{}, false
		}
		cur, ok = m[seg]
		if !ok {
			return Result{}, false
		}
	}
	s, ok := cur.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return Result{}, false
	}
	return Result{Value: strings.TrimSpace(s), Source: source, SourcePath: path}, true
}

func readTOMLPath(path, source string, tomlPath ...string) (Result, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, false
	}
	var doc map[string]any
	if err := toml.Unmarshal(content, &doc); err != nil {
		return Result{}, false
	}
	var cur any = doc
	for _, seg := range tomlPath {
		m, ok := cur.(map[string]any)
		if !ok {
			return Result{}, false
		}
		cur, ok = m[seg]
		if !ok {
			return Result{}, false
		}
	}
	s, ok := cur.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return Result{}, false
	}
	return Result{Value: strings.TrimSpace(s), Source: source, SourcePath: path}, true
}
