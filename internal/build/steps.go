package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/buildk/internal/cache"
	"github.com/Norgate-AV/buildk/internal/compiler"
	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/fingerprint"
	"github.com/Norgate-AV/buildk/internal/process"
	"github.com/Norgate-AV/buildk/internal/srcgraph"
)

// Step names, also used to scope file tracking in the cache
const (
	StepSrc     = "src"
	StepTest    = "test"
	StepJUnit   = "junit"
	StepRun     = "run"
	StepRelease = "release"
)

// launcherPackage runs the tests
const launcherPackage = "junit-platform-console-standalone"

// Outcome is the result of one build step
type Outcome struct {
	Step       string
	Conclusion cache.Conclusion
	Files      []string
	Stdout     string
	Stderr     string
}

// inputs are the files a step depends on, fingerprinted for that step
type inputs struct {
	step    string
	keys    []uint64
	pending map[uint64]string
}

func (s *Session) track(in *inputs, files []string) error {
	if in.pending == nil {
		in.pending = make(map[uint64]string)
	}

	for _, f := range files {
		key, tracked, err := s.Cache.StepFileState(in.step, f)
		if err != nil {
			return fmt.Errorf("failed to fingerprint %s: %w", f, err)
		}

		in.keys = append(in.keys, key)
		if !tracked {
			in.pending[key] = f
		}
	}

	return nil
}

func (in *inputs) seed() uint64 {
	return fingerprint.Combine(in.keys...)
}

func (s *Session) mark(in *inputs) {
	for key, f := range in.pending {
		s.Cache.MarkFile(key, f)
	}
}

// sources returns the compile order below dir, ErrNoSources when empty
func (s *Session) sources(dir string) ([]string, error) {
	order, err := s.order(dir)
	if err != nil {
		return nil, err
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSources, dir)
	}

	return order, nil
}

// compile runs kotlinc unless no input changed and the output exists. When
// only the output is missing the stored result is bypassed.
func (s *Session) compile(ctx context.Context, in *inputs, opts compiler.CompileOptions) (Outcome, error) {
	outcome := Outcome{Step: in.step, Conclusion: cache.Cached, Files: opts.Sources}

	_, statErr := os.Stat(opts.Dest)
	missing := errors.Is(statErr, os.ErrNotExist)

	if len(in.pending) == 0 && !missing {
		s.logger.Debug("Up to date", "step", in.step, "files", len(opts.Sources))
		return outcome, nil
	}

	cmd, err := s.Builder.Compile(opts)
	if err != nil {
		return outcome, err
	}

	// Inputs unchanged since a successful run but the output is gone
	invoke := s.Cache.CachedInvoke
	if len(in.pending) == 0 {
		invoke = s.Cache.Refresh
	}

	res, err := invoke(ctx, s.Runner, cmd, in.seed())
	outcome.Conclusion = res.Conclusion
	outcome.Stdout = res.Stdout
	outcome.Stderr = res.Stderr

	if err != nil {
		return outcome, fmt.Errorf("failed to compile %s: %w", in.step, err)
	}

	s.mark(in)

	return outcome, nil
}

// BuildSrc compiles the project sources into the output directory
func (s *Session) BuildSrc(ctx context.Context) (Outcome, error) {
	order, err := s.sources(s.Project().Src)
	if err != nil {
		return Outcome{Step: StepSrc}, err
	}

	in := &inputs{step: StepSrc}
	if err := s.track(in, order); err != nil {
		return Outcome{Step: StepSrc}, err
	}

	return s.compile(ctx, in, compiler.CompileOptions{
		Sources:   order,
		Classpath: s.jars(dependency.Compile),
		Dest:      s.Project().OutSrc(),
	})
}

// BuildTest compiles the tests against the compiled sources. Changing a
// source also recompiles the tests.
func (s *Session) BuildTest(ctx context.Context) (Outcome, error) {
	src, err := s.sources(s.Project().Src)
	if err != nil {
		return Outcome{Step: StepTest}, err
	}

	tests, err := s.sources(s.Project().Test)
	if err != nil {
		return Outcome{Step: StepTest}, err
	}

	in := &inputs{step: StepTest}
	if err := s.track(in, src); err != nil {
		return Outcome{Step: StepTest}, err
	}

	if err := s.track(in, tests); err != nil {
		return Outcome{Step: StepTest}, err
	}

	classpath := append([]string{s.Project().OutSrc()}, s.jars(dependency.Compile, dependency.Test)...)

	return s.compile(ctx, in, compiler.CompileOptions{
		Sources:   tests,
		Classpath: classpath,
		Dest:      s.Project().OutTest(),
	})
}

// Test builds sources and tests then runs the tests with the JUnit console
// launcher. A run over unchanged inputs replays the stored result.
func (s *Session) Test(ctx context.Context) ([]Outcome, error) {
	var outcomes []Outcome

	for _, step := range []func(context.Context) (Outcome, error){s.BuildSrc, s.BuildTest} {
		outcome, err := step(ctx)
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, err
		}
	}

	launcher, ok := s.platform(launcherPackage)
	if !ok || !s.Resolver.IsCached(launcher) {
		return outcomes, fmt.Errorf("test launcher %s is missing, run fetch first", launcherPackage)
	}

	src, err := s.order(s.Project().Src)
	if err != nil {
		return outcomes, err
	}

	tests, err := s.order(s.Project().Test)
	if err != nil {
		return outcomes, err
	}

	in := &inputs{step: StepJUnit}
	if err := s.track(in, append(src, tests...)); err != nil {
		return outcomes, err
	}

	classpath := append([]string{s.Project().OutSrc(), s.Project().OutTest()},
		s.jars(dependency.Compile, dependency.Runtime, dependency.Test)...)

	cmd, err := s.Builder.Test(compiler.TestOptions{
		Launcher:   launcher.JarPath(),
		Classpath:  classpath,
		ReportsDir: s.Project().OutReports(),
	})
	if err != nil {
		return outcomes, err
	}

	res, err := s.Cache.CachedInvoke(ctx, s.Runner, cmd, in.seed())
	outcomes = append(outcomes, Outcome{
		Step:       StepJUnit,
		Conclusion: res.Conclusion,
		Files:      tests,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
	})

	if err != nil {
		return outcomes, fmt.Errorf("tests failed: %w", err)
	}

	return outcomes, nil
}

// Run builds the sources and runs the main class. Running is never cached.
func (s *Session) Run(ctx context.Context) ([]Outcome, error) {
	build, err := s.BuildSrc(ctx)
	outcomes := []Outcome{build}
	if err != nil {
		return outcomes, err
	}

	mainFile := s.Project().MainFile()
	header, err := srcgraph.ParseHeader(mainFile)
	if err != nil {
		return outcomes, fmt.Errorf("failed to read main file: %w", err)
	}

	classpath := append([]string{s.Project().OutSrc()}, s.jars(dependency.Compile, dependency.Runtime)...)

	cmd, err := s.Builder.Run(classpath, compiler.MainClass(mainFile, header.DeclaredPackage()))
	if err != nil {
		return outcomes, err
	}

	out, err := s.Runner.Run(ctx, cmd)
	if err != nil {
		return outcomes, err
	}

	stdout, stderr, err := out.Text()
	if err != nil {
		return outcomes, fmt.Errorf("%s: %w", cmd, err)
	}

	outcomes = append(outcomes, Outcome{
		Step:       StepRun,
		Conclusion: cache.Executed,
		Stdout:     stdout,
		Stderr:     stderr,
	})

	if !out.Success {
		return outcomes, &process.FailedError{
			Action: cmd.String(),
			Code:   out.Code,
			Status: out.Status,
			Stdout: stdout,
			Stderr: stderr,
		}
	}

	return outcomes, nil
}

// ReleasePath returns the packaged jar location
func (s *Session) ReleasePath() string {
	return filepath.Join(s.Project().Out, ReleaseJar)
}

// Release packages the sources with the Kotlin runtime into one jar
func (s *Session) Release(ctx context.Context) (Outcome, error) {
	order, err := s.sources(s.Project().Src)
	if err != nil {
		return Outcome{Step: StepRelease}, err
	}

	in := &inputs{step: StepRelease}
	if err := s.track(in, order); err != nil {
		return Outcome{Step: StepRelease}, err
	}

	return s.compile(ctx, in, compiler.CompileOptions{
		Sources:        order,
		Classpath:      s.jars(dependency.Compile, dependency.Runtime),
		Dest:           s.ReleasePath(),
		IncludeRuntime: true,
	})
}
