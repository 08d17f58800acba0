package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/buildk/internal/cache"
	"github.com/Norgate-AV/buildk/internal/config"
	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/fetch"
	"github.com/Norgate-AV/buildk/internal/manifest"
	"github.com/Norgate-AV/buildk/internal/pkgindex"
	"github.com/Norgate-AV/buildk/internal/process"
	"github.com/Norgate-AV/buildk/internal/srcgraph"
)

// fakeRunner records commands and creates the -d destination like kotlinc would
type fakeRunner struct {
	commands []*process.Command
	output   process.Output
}

func (r *fakeRunner) Run(_ context.Context, cmd *process.Command) (process.Output, error) {
	r.commands = append(r.commands, cmd)

	for i, arg := range cmd.Args {
		if arg != "-d" || i+1 >= len(cmd.Args) || !r.output.Success {
			continue
		}

		dest := cmd.Args[i+1]
		if strings.HasSuffix(dest, ".jar") {
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return process.Output{}, err
			}

			if err := os.WriteFile(dest, []byte("jar"), 0o644); err != nil {
				return process.Output{}, err
			}
		} else if err := os.MkdirAll(dest, 0o755); err != nil {
			return process.Output{}, err
		}
	}

	return r.output, nil
}

func (r *fakeRunner) last() *process.Command {
	return r.commands[len(r.commands)-1]
}

func success(stdout string) process.Output {
	code := 0
	return process.Output{Success: true, Code: &code, Status: "exit status 0", Stdout: []byte(stdout)}
}

func failure(stderr string) process.Output {
	code := 1
	return process.Output{Code: &code, Status: "exit status 1", Stderr: []byte(stderr)}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func touch(t *testing.T, path string) {
	t.Helper()

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))
}

func newTestSession(t *testing.T, dir, toml string) (*Session, *fakeRunner) {
	t.Helper()

	// Rewriting the compiler would change its fingerprint
	home := filepath.Join(dir, "kotlin")
	if kotlinc := filepath.Join(home, "bin", "kotlinc"); !fileExists(kotlinc) {
		writeFile(t, kotlinc, "#!/bin/sh\n")
	}

	m, err := manifest.Parse(filepath.Join(dir, manifest.FileName), []byte(toml))
	require.NoError(t, err)

	cfg := &config.Config{
		KotlinHome:    home,
		CacheRoot:     filepath.Join(dir, "cache"),
		CacheFailures: cache.KeepFailures,
	}

	s := NewSession(m, cfg, nil)
	runner := &fakeRunner{output: success("")}
	s.Runner = runner

	return s, runner
}

// writeProject lays out src/Main.kt importing src/util/Strings.kt
func writeProject(t *testing.T, dir string) (main, util string) {
	t.Helper()

	util = writeFile(t, filepath.Join(dir, "src", "util", "Strings.kt"), "package app.util.strings\n\nfun shout(s: String) = s.uppercase()\n")
	main = writeFile(t, filepath.Join(dir, "src", "Main.kt"), "package app\n\nimport app.util.shout\n\nfun main() = println(shout(\"hi\"))\n")

	return main, util
}

func TestBuildSrc(t *testing.T) {
	dir := t.TempDir()
	main, util := writeProject(t, dir)
	s, runner := newTestSession(t, dir, "")

	outcome, err := s.BuildSrc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Executed, outcome.Conclusion)
	assert.Equal(t, []string{util, main}, outcome.Files, "Imported files compile first")

	require.Len(t, runner.commands, 1)
	cmd := runner.last()
	assert.Equal(t, filepath.Join(dir, "kotlin", "bin", "kotlinc"), cmd.Program)
	assert.Equal(t, []string{util, main, "-d", s.Project().OutSrc()}, cmd.Args)

	// Nothing changed
	outcome, err = s.BuildSrc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Cached, outcome.Conclusion)
	assert.Len(t, runner.commands, 1)

	// A modified file triggers a new compile
	touch(t, util)
	outcome, err = s.BuildSrc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Executed, outcome.Conclusion)
	assert.Len(t, runner.commands, 2)
}

func TestBuildSrc_PersistsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)

	s, _ := newTestSession(t, dir, "")
	_, err := s.BuildSrc(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "out", cache.DefaultFileName))

	s, runner := newTestSession(t, dir, "")
	assert.True(t, s.Cache.Warm())

	outcome, err := s.BuildSrc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Cached, outcome.Conclusion)
	assert.Empty(t, runner.commands)
}

func TestBuildSrc_MissingOutputRecompiles(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	s, runner := newTestSession(t, dir, "")

	_, err := s.BuildSrc(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(s.Project().OutSrc()))

	outcome, err := s.BuildSrc(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Executed, outcome.Conclusion)
	assert.Len(t, runner.commands, 2, "The stored result can't restore deleted classes")
}

func TestBuildSrc_FailureIsReplayed(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	s, runner := newTestSession(t, dir, "")
	runner.output = failure("error: unresolved reference: shout")

	_, err := s.BuildSrc(context.Background())
	var failed *process.FailedError
	require.True(t, errors.As(err, &failed))
	assert.False(t, failed.Cached)

	outcome, err := s.BuildSrc(context.Background())
	require.True(t, errors.As(err, &failed))
	assert.True(t, failed.Cached)
	assert.Equal(t, cache.Cached, outcome.Conclusion)
	assert.Contains(t, outcome.Stderr, "unresolved reference")
	assert.Len(t, runner.commands, 1)
}

func TestBuildSrc_Errors(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		s, _ := newTestSession(t, t.TempDir(), "")

		_, err := s.BuildSrc(context.Background())
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("cyclic sources", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "src", "A.kt"), "package p.a.types\nimport p.b.B\n")
		writeFile(t, filepath.Join(dir, "src", "B.kt"), "package p.b.types\nimport p.a.A\n")
		s, runner := newTestSession(t, dir, "")

		_, err := s.BuildSrc(context.Background())
		var cycle *srcgraph.CyclicDependencyError
		assert.True(t, errors.As(err, &cycle))
		assert.Empty(t, runner.commands)
	})
}

func TestBuildSrc_ClasspathFromCachedPackages(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	s, runner := newTestSession(t, dir, "[dependencies]\ng_lib = \"1.0\"\n[test-dependencies]\ng_mock = \"2.0\"\n")

	lib := dependency.NewPackage(s.Config.CacheRoot, "g", "lib", "1.0", dependency.Compile)
	mock := dependency.NewPackage(s.Config.CacheRoot, "g", "mock", "2.0", dependency.Test)
	for _, pkg := range []dependency.Package{lib, mock} {
		writeFile(t, pkg.JarPath(), "jar")
		writeFile(t, filepath.Join(pkg.Location, dependency.MavenFile), "<project></project>")
	}

	_, err := s.BuildSrc(context.Background())
	require.NoError(t, err)

	assert.Contains(t, runner.last().String(), "-cp "+lib.JarPath()+" ")
	assert.NotContains(t, runner.last().String(), mock.JarPath(), "Test packages stay off the source classpath")
}

func TestBuildTest(t *testing.T) {
	dir := t.TempDir()
	main, _ := writeProject(t, dir)
	testFile := writeFile(t, filepath.Join(dir, "test", "MainTest.kt"), "package app\n\nimport kotlin.test.Test\n")
	s, runner := newTestSession(t, dir, "")

	outcome, err := s.BuildTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Executed, outcome.Conclusion)
	assert.Equal(t, []string{testFile}, outcome.Files)
	assert.Equal(t, []string{testFile, "-cp", s.Project().OutSrc(), "-d", s.Project().OutTest()}, runner.last().Args)

	outcome, err = s.BuildTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Cached, outcome.Conclusion)

	// Tests compile against the sources
	touch(t, main)
	outcome, err = s.BuildTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Executed, outcome.Conclusion)
}

func TestTest(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	writeFile(t, filepath.Join(dir, "test", "MainTest.kt"), "package app\n")
	s, runner := newTestSession(t, dir, "")

	_, err := s.Test(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test launcher")

	launcher, ok := s.platform(launcherPackage)
	require.True(t, ok)
	writeFile(t, launcher.JarPath(), "jar")
	writeFile(t, filepath.Join(launcher.Location, dependency.MavenFile), "<project></project>")

	runner.output = success("3 tests successful")
	outcomes, err := s.Test(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	junit := outcomes[2]
	assert.Equal(t, StepJUnit, junit.Step)
	assert.Equal(t, cache.Executed, junit.Conclusion)
	assert.Equal(t, "3 tests successful", junit.Stdout)

	args := runner.last().Args
	assert.Equal(t, []string{"-jar", launcher.JarPath()}, args[:2])
	assert.Contains(t, args, "--scan-classpath")
	assert.Contains(t, args, s.Project().OutReports())

	calls := len(runner.commands)
	outcomes, err = s.Test(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Cached, outcomes[2].Conclusion)
	assert.Len(t, runner.commands, calls, "Unchanged tests are not run again")
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	s, runner := newTestSession(t, dir, "")
	runner.output = success("HI\n")

	for range 2 {
		outcomes, err := s.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Equal(t, cache.Executed, outcomes[1].Conclusion)
		assert.Equal(t, "HI\n", outcomes[1].Stdout)
	}

	cmd := runner.last()
	assert.Equal(t, filepath.Join(dir, "kotlin", "bin", "kotlin"), cmd.Program)
	assert.Equal(t, "app.MainKt", cmd.Args[len(cmd.Args)-1])
	assert.Len(t, runner.commands, 3, "One compile, then every run executes")

	runner.output = failure("Exception in thread \"main\"")
	_, err := s.Run(context.Background())
	var failed *process.FailedError
	require.True(t, errors.As(err, &failed))
	assert.Contains(t, failed.Stderr, "Exception")
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	s, runner := newTestSession(t, dir, "")

	_, err := s.BuildSrc(context.Background())
	require.NoError(t, err)

	outcome, err := s.Release(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Executed, outcome.Conclusion, "Building sources doesn't make the release up to date")

	args := runner.last().Args
	assert.Contains(t, args, "-include-runtime")
	assert.Equal(t, s.ReleasePath(), args[len(args)-1])
	assert.FileExists(t, s.ReleasePath())

	outcome, err = s.Release(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.Cached, outcome.Conclusion)
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)
	s, runner := newTestSession(t, dir, "")

	_, err := s.BuildSrc(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.BuildSrc(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Clean())
	require.NoError(t, s.Close())
	assert.NoDirExists(t, s.Project().Out)
	assert.NoFileExists(t, s.Cache.Path())

	// A fresh session starts cold
	s, runner = newTestSession(t, dir, "")
	assert.False(t, s.Cache.Warm())

	_, err = s.BuildSrc(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.commands, 1)
}

func TestTree(t *testing.T) {
	dir := t.TempDir()
	main, util := writeProject(t, dir)
	s, _ := newTestSession(t, dir, "")

	src, test, err := s.Tree()
	require.NoError(t, err)
	assert.Equal(t, []string{util, main}, src)
	assert.Empty(t, test)
}

func TestDeps(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, dir, "[dependencies]\ng_lib = \"1.0\"\n")

	lib := dependency.NewPackage(s.Config.CacheRoot, "g", "lib", "1.0", dependency.Compile)
	writeFile(t, lib.JarPath(), "jar")
	writeFile(t, filepath.Join(lib.Location, dependency.MavenFile),
		"<project><dependencies><dependency><groupId>g</groupId><artifactId>core</artifactId><version>3.0</version></dependency></dependencies></project>")

	idx, err := pkgindex.Open(s.Config.CacheRoot)
	require.NoError(t, err)
	require.NoError(t, idx.Record(pkgindex.Record{Coordinate: lib.Coordinate(), Repository: "mavenCentral"}))
	require.NoError(t, idx.Close())

	statuses, err := s.Deps()
	require.NoError(t, err)

	byCoordinate := map[string]DepStatus{}
	for _, st := range statuses {
		byCoordinate[st.Package.Coordinate()] = st
	}

	require.Contains(t, byCoordinate, "g:lib:1.0")
	assert.True(t, byCoordinate["g:lib:1.0"].Cached)
	require.NotNil(t, byCoordinate["g:lib:1.0"].Origin)
	assert.Equal(t, "mavenCentral", byCoordinate["g:lib:1.0"].Origin.Repository)

	assert.Equal(t, 0, byCoordinate["g:lib:1.0"].Depth)

	require.Contains(t, byCoordinate, "g:core:3.0", "Transitives are listed")
	assert.Equal(t, 1, byCoordinate["g:core:3.0"].Depth)
	assert.False(t, byCoordinate["g:core:3.0"].Cached)
	assert.Nil(t, byCoordinate["g:core:3.0"].Origin)

	assert.Contains(t, byCoordinate, "org.jetbrains.kotlin:kotlin-stdlib:2.0.0")
}

// mapDownloader serves files from memory
type mapDownloader map[string]string

func (d mapDownloader) Fetch(_ context.Context, url, dest string) error {
	content, ok := d[url]
	if !ok {
		return fmt.Errorf("%w: %s: unexpected status 404", fetch.ErrDownload, url)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	return os.WriteFile(dest, []byte(content), 0o644)
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, dir, "[dependencies]\ng_lib = \"1.0\"\n")

	base := dependency.MavenCentral.URL + "/g/lib/1.0/lib-1.0"
	s.Downloader = mapDownloader{
		base + ".jar": "jar",
		base + ".pom": "<project></project>",
	}

	report, err := s.Fetch(context.Background())
	require.NotNil(t, report)

	// Platform packages aren't served
	assert.ErrorIs(t, err, fetch.ErrDownload)

	var coordinates []string
	for _, pkg := range report.Downloaded {
		coordinates = append(coordinates, pkg.Coordinate())
	}
	assert.Contains(t, coordinates, "g:lib:1.0")

	lib := dependency.NewPackage(s.Config.CacheRoot, "g", "lib", "1.0", dependency.Compile)
	assert.True(t, s.Resolver.IsCached(lib))
}

func TestCachePath(t *testing.T) {
	m := &manifest.Manifest{Project: manifest.Project{Out: "/project/out"}}

	assert.Equal(t, filepath.Join("/project/out", cache.DefaultFileName), CachePath(m, &config.Config{}))
	assert.Equal(t, "/elsewhere/cache.json", CachePath(m, &config.Config{CachePath: "/elsewhere/cache.json"}))
}

func TestNewSession_NoCache(t *testing.T) {
	dir := t.TempDir()
	writeProject(t, dir)

	m, err := manifest.Parse(filepath.Join(dir, manifest.FileName), nil)
	require.NoError(t, err)

	s := NewSession(m, &config.Config{CacheRoot: filepath.Join(dir, "cache"), NoCache: true}, nil)
	assert.True(t, s.Cache.Ephemeral())
	assert.Equal(t, 4, s.Packages.Len(), "Platform packages are always resolved")
}

func TestIndexed(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, dir, "")

	idx, err := pkgindex.Open(s.Config.CacheRoot)
	require.NoError(t, err)
	for _, coordinate := range []string{"g:lib:1.0", "g:core:3.0", "other:util:2.0", "bare:1.0"} {
		require.NoError(t, idx.Record(pkgindex.Record{Coordinate: coordinate, Repository: "mavenCentral"}))
	}
	require.NoError(t, idx.Close())

	records, err := s.Indexed("")
	require.NoError(t, err)
	assert.Len(t, records, 4)

	records, err = s.Indexed("g")
	require.NoError(t, err)

	var coordinates []string
	for _, rec := range records {
		coordinates = append(coordinates, rec.Coordinate)
	}
	assert.ElementsMatch(t, []string{"g:lib:1.0", "g:core:3.0"}, coordinates)

	count, err := s.ClearIndex()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	records, err = s.Indexed("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeps_TreeOrder(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestSession(t, dir, "[dependencies]\ng_lib = \"1.0\"\n")

	dep := func(name, version string) string {
		return "<dependency><groupId>g</groupId><artifactId>" + name + "</artifactId><version>" + version + "</version></dependency>"
	}

	lib := dependency.NewPackage(s.Config.CacheRoot, "g", "lib", "1.0", dependency.Compile)
	core := dependency.NewPackage(s.Config.CacheRoot, "g", "core", "3.0", dependency.Compile)
	writeFile(t, filepath.Join(lib.Location, dependency.MavenFile), "<project><dependencies>"+dep("core", "3.0")+"</dependencies></project>")

	// core points back at lib, which must not be descended into again
	writeFile(t, filepath.Join(core.Location, dependency.MavenFile), "<project><dependencies>"+dep("lib", "1.0")+dep("leaf", "0.1")+"</dependencies></project>")

	statuses, err := s.Deps()
	require.NoError(t, err)

	var tree []string
	for _, st := range statuses {
		if st.Package.Namespace == "g" {
			tree = append(tree, fmt.Sprintf("%d %s", st.Depth, st.Package.Coordinate()))
		}
	}

	assert.Equal(t, []string{"0 g:lib:1.0", "1 g:core:3.0", "2 g:leaf:0.1"}, tree)
}
