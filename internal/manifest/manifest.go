// Package manifest loads the buildk.toml project manifest.
//
//	kotlin = "/opt/kotlin"
//
//	[project]
//	src = "src"
//	main = "Main.kt"
//
//	[dependencies]
//	org.jetbrains.kotlinx_kotlinx-coroutines-core = "1.8.0"
//
//	[test-dependencies]
//	io.mockk_mockk = "1.13.10"
//
//	[repositories]
//	google = "https://maven.google.com"
//
// Dependency keys are "namespace_name". Dots in the namespace are TOML
// dotted keys, they are descended and joined back together.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/utils"
)

// FileName is the manifest looked up from the working directory upwards
const FileName = "buildk.toml"

// Project layout defaults, relative to the manifest directory
const (
	DefaultSrc  = "src"
	DefaultTest = "test"
	DefaultMain = "Main.kt"
	DefaultOut  = "out"
)

// Project is the [project] section. Paths are absolute once loaded.
type Project struct {
	Src  string `toml:"src"`
	Test string `toml:"test"`
	Main string `toml:"main"`
	Out  string `toml:"out"`
}

// OutSrc is where compiled sources go
func (p Project) OutSrc() string {
	return filepath.Join(p.Out, "src")
}

// OutTest is where compiled tests go
func (p Project) OutTest() string {
	return filepath.Join(p.Out, "test")
}

// OutReports receives test reports
func (p Project) OutReports() string {
	return filepath.Join(p.OutTest(), "report")
}

// MainFile returns the absolute path of the main source file
func (p Project) MainFile() string {
	if filepath.IsAbs(p.Main) {
		return p.Main
	}

	return filepath.Join(p.Src, p.Main)
}

type document struct {
	Kotlin              string            `toml:"kotlin"`
	Project             Project           `toml:"project"`
	Dependencies        map[string]any    `toml:"dependencies"`
	RuntimeDependencies map[string]any    `toml:"runtime-dependencies"`
	TestDependencies    map[string]any    `toml:"test-dependencies"`
	Repositories        map[string]string `toml:"repositories"`
}

// Manifest is a loaded project manifest
type Manifest struct {
	// Path of the manifest file
	Path string

	// Dir is the project root, the directory holding the manifest
	Dir string

	// KotlinHome overrides the configured Kotlin installation
	KotlinHome string

	Project Project

	// Declarations in section order (compile, runtime, test), keys sorted
	Declarations []dependency.Declaration

	// Repositories declared in file order, without Maven Central
	Repositories []dependency.Repository
}

// Find returns the manifest in dir or the closest parent, "" when there is none
func Find(dir string) string {
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// Load reads and parses the manifest at path
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return Parse(abs, data)
}

// Parse parses manifest content, resolving project paths against the
// directory of path
func Parse(path string, data []byte) (*Manifest, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	m := &Manifest{
		Path:       path,
		Dir:        dir,
		KotlinHome: doc.Kotlin,
		Project:    resolveProject(dir, doc.Project),
	}

	sections := []struct {
		table map[string]any
		kind  dependency.Kind
	}{
		{doc.Dependencies, dependency.Compile},
		{doc.RuntimeDependencies, dependency.Runtime},
		{doc.TestDependencies, dependency.Test},
	}

	for _, s := range sections {
		decls, err := declarations(s.table, s.kind)
		if err != nil {
			return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
		}

		m.Declarations = append(m.Declarations, decls...)
	}

	repos, err := repositories(data, doc.Repositories)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	m.Repositories = repos

	return m, nil
}

func resolveProject(dir string, p Project) Project {
	abs := func(value, fallback string) string {
		if value == "" {
			value = fallback
		}

		if filepath.IsAbs(value) {
			return value
		}

		return filepath.Join(dir, value)
	}

	main := p.Main
	if main == "" {
		main = DefaultMain
	}

	return Project{
		Src:  abs(p.Src, DefaultSrc),
		Test: abs(p.Test, DefaultTest),
		Main: main,
		Out:  abs(p.Out, DefaultOut),
	}
}

// flatten descends nested tables, joining the keys with "."
func flatten(table map[string]any, prefix string, out map[string]any) {
	for key, value := range table {
		if prefix != "" {
			key = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			flatten(nested, key, out)
			continue
		}

		out[key] = value
	}
}

func declarations(table map[string]any, kind dependency.Kind) ([]dependency.Declaration, error) {
	flat := make(map[string]any, len(table))
	flatten(table, "", flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	decls := make([]dependency.Declaration, 0, len(keys))
	for _, key := range keys {
		version, ok := flat[key].(string)
		if !ok || version == "" {
			return nil, fmt.Errorf("dependency %q: version must be a non-empty string", key)
		}

		namespace, name, err := utils.SplitManifestKey(key)
		if err != nil {
			return nil, err
		}

		decls = append(decls, dependency.Declaration{
			Namespace: namespace,
			Name:      name,
			Version:   version,
			Kind:      kind,
		})
	}

	return decls, nil
}

// repositories orders the [repositories] table as written in the file
func repositories(data []byte, table map[string]string) ([]dependency.Repository, error) {
	if len(table) == 0 {
		return nil, nil
	}

	order, err := keyOrder(data, "repositories")
	if err != nil {
		return nil, err
	}

	// Keys the scan can't place, inline tables for one, go last by name
	var rest []string
	for name := range table {
		if !slices.Contains(order, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	repos := make([]dependency.Repository, 0, len(table))
	for _, name := range append(order, rest...) {
		url, ok := table[name]
		if !ok {
			continue
		}

		repos = append(repos, dependency.Repository{Name: name, URL: strings.TrimSuffix(url, "/")})
	}

	return repos, nil
}

// keyOrder returns the keys of a top level table in document order
func keyOrder(data []byte, table string) ([]string, error) {
	var p unstable.Parser
	p.Reset(data)

	var current string
	var keys []string

	for p.NextExpression() {
		e := p.Expression()

		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			current = joinKey(e.Key())
		case unstable.KeyValue:
			if current == table {
				keys = append(keys, joinKey(e.Key()))
			}
		}
	}

	if err := p.Error(); err != nil {
		return nil, err
	}

	return keys, nil
}

func joinKey(it unstable.Iterator) string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}

	return strings.Join(parts, ".")
}
