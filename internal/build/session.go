// Package build runs the build steps of a project: compiling sources and
// tests, running tests and the program, packaging a release, and fetching
// dependencies. Every step goes through the session's build cache.
package build

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/buildk/internal/cache"
	"github.com/Norgate-AV/buildk/internal/compiler"
	"github.com/Norgate-AV/buildk/internal/config"
	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/fetch"
	"github.com/Norgate-AV/buildk/internal/manifest"
	"github.com/Norgate-AV/buildk/internal/process"
	"github.com/Norgate-AV/buildk/internal/srcgraph"
)

// SourcePattern selects Kotlin sources below a source root
const SourcePattern = "**/*.kt"

// ReleaseJar is the file name of the packaged release inside the output directory
const ReleaseJar = "app.jar"

// ErrNoSources is returned when a step has nothing to compile
var ErrNoSources = errors.New("no source files")

// Session owns everything one build needs. Close it to persist the cache.
type Session struct {
	Manifest *manifest.Manifest
	Config   *config.Config

	Cache      *cache.Cache
	Resolver   *dependency.Resolver
	Builder    *compiler.CommandBuilder
	Runner     process.Runner
	Downloader fetch.Downloader
	Sorter     *srcgraph.Sorter

	// Packages are the resolved manifest and platform packages
	Packages *dependency.PackageSet

	logger *slog.Logger
}

// NewSession prepares a build of the project described by m. The Kotlin
// home is taken from cfg, then the manifest, then $KOTLIN_HOME.
func NewSession(m *manifest.Manifest, cfg *config.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	kotlinHome := cfg.KotlinHome
	if kotlinHome == "" {
		kotlinHome = m.KotlinHome
	}

	toolchain := compiler.NewToolchain(kotlinHome, cfg.JavaHome)

	var c *cache.Cache
	if cfg.NoCache {
		c = cache.Disabled(logger)
	} else {
		c = cache.Load(toolchain.Kotlinc(), CachePath(m, cfg), logger)
		c.Failures = cfg.CacheFailures
	}

	resolver := dependency.NewResolver(cfg.CacheRoot, dependency.Repositories(m.Repositories...), logger)

	return &Session{
		Manifest:   m,
		Config:     cfg,
		Cache:      c,
		Resolver:   resolver,
		Builder:    compiler.NewCommandBuilder(toolchain),
		Runner:     process.NewExecRunner(),
		Downloader: fetch.HTTPDownloader{UserAgent: "buildk"},
		Sorter:     &srcgraph.Sorter{Logger: logger},
		Packages:   resolver.Resolve(m.Declarations),
		logger:     logger,
	}
}

// CachePath returns the configured build cache file, by default cache.json
// in the project output directory
func CachePath(m *manifest.Manifest, cfg *config.Config) string {
	if cfg.CachePath != "" {
		return cfg.CachePath
	}

	return filepath.Join(m.Project.Out, cache.DefaultFileName)
}

// Project returns the project layout
func (s *Session) Project() manifest.Project {
	return s.Manifest.Project
}

// Close persists the build cache
func (s *Session) Close() error {
	return s.Cache.Close()
}

// Clean removes the output directory and the build cache. The in-memory
// cache is invalidated so Close can't write it back.
func (s *Session) Clean() error {
	s.Cache.Invalidate()

	out := s.Project().Out
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("failed to remove %s: %w", out, err)
	}

	if path := s.Cache.Path(); path != "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove build cache: %w", err)
		}
	}

	s.logger.Debug("Cleaned build output", "out", out)

	return nil
}

// Tree returns the compile order of the sources and the tests
func (s *Session) Tree() (src, test []string, err error) {
	src, err = s.order(s.Project().Src)
	if err != nil {
		return nil, nil, err
	}

	test, err = s.order(s.Project().Test)
	if err != nil {
		return nil, nil, err
	}

	return src, test, nil
}

// order discovers the sources below dir in compile order
func (s *Session) order(dir string) ([]string, error) {
	files, err := srcgraph.Discover(dir, SourcePattern)
	if err != nil {
		return nil, err
	}

	return s.Sorter.BuildOrder(files)
}

// jars returns the artifacts of the cached packages of the given kinds and
// their transitives
func (s *Session) jars(kinds ...dependency.Kind) []string {
	roots := dependency.NewPackageSet()
	for _, k := range kinds {
		roots.AddAll(s.Packages.OfKind(k))
	}

	seen := make(map[string]bool)
	var jars []string

	for _, pkg := range s.Resolver.Closure(roots).Items() {
		jar := pkg.JarPath()
		if seen[jar] || !s.Resolver.IsCached(pkg) {
			continue
		}

		seen[jar] = true
		jars = append(jars, jar)
	}

	return jars
}

// platform returns the resolved platform package called name
func (s *Session) platform(name string) (dependency.Package, bool) {
	for _, pkg := range s.Packages.Items() {
		if pkg.Name == name {
			return pkg, true
		}
	}

	return dependency.Package{}, false
}
