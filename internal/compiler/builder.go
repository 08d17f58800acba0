package compiler

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/buildk/internal/process"
)

// ClasspathSeparator joins classpath entries on the command line
const ClasspathSeparator = ":"

// CompileOptions describes one kotlinc invocation
type CompileOptions struct {
	// Sources in compile order
	Sources []string

	// Classpath entries, jars or class directories
	Classpath []string

	// Dest is the class output directory, or the jar for a release
	Dest string

	// IncludeRuntime bundles the Kotlin runtime into a jar destination
	IncludeRuntime bool
}

// TestOptions describes a JUnit console launcher run
type TestOptions struct {
	// Launcher is the junit-platform-console-standalone jar
	Launcher string

	Classpath []string

	// ReportsDir receives the XML reports, empty for none
	ReportsDir string
}

// CommandBuilder builds toolchain commands
type CommandBuilder struct {
	toolchain Toolchain
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(toolchain Toolchain) *CommandBuilder {
	return &CommandBuilder{toolchain: toolchain}
}

// Toolchain returns the toolchain commands are built for
func (cb *CommandBuilder) Toolchain() Toolchain {
	return cb.toolchain
}

// BuildCommandArgs builds the kotlinc arguments
func (cb *CommandBuilder) BuildCommandArgs(opts CompileOptions) ([]string, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("no source files to compile")
	}

	if opts.Dest == "" {
		return nil, errors.New("no output destination")
	}

	var cmdArgs []string

	for _, file := range opts.Sources {
		absFile, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", file, err)
		}

		cmdArgs = append(cmdArgs, absFile)
	}

	if cp := joinClasspath(opts.Classpath); cp != "" {
		cmdArgs = append(cmdArgs, "-cp", cp)
	}

	if opts.IncludeRuntime {
		cmdArgs = append(cmdArgs, "-include-runtime")
	}

	cmdArgs = append(cmdArgs, "-d", opts.Dest)

	return cmdArgs, nil
}

// Compile returns the kotlinc command for opts
func (cb *CommandBuilder) Compile(opts CompileOptions) (*process.Command, error) {
	args, err := cb.BuildCommandArgs(opts)
	if err != nil {
		return nil, err
	}

	return process.New(cb.toolchain.Kotlinc(), args...), nil
}

// Test returns the command running every test on the classpath through the
// JUnit console launcher
func (cb *CommandBuilder) Test(opts TestOptions) (*process.Command, error) {
	if opts.Launcher == "" {
		return nil, errors.New("no test launcher jar")
	}

	cmd := process.New(cb.toolchain.Java(), "-jar", opts.Launcher)

	if cp := joinClasspath(opts.Classpath); cp != "" {
		cmd.Arg("-cp", cp)
	}

	cmd.Arg("--scan-classpath", "--details", "none")

	if opts.ReportsDir != "" {
		cmd.Arg("--reports-dir", opts.ReportsDir)
	}

	return cmd, nil
}

// Run returns the command starting mainClass
func (cb *CommandBuilder) Run(classpath []string, mainClass string) (*process.Command, error) {
	if mainClass == "" {
		return nil, errors.New("no main class")
	}

	cmd := process.New(cb.toolchain.Kotlin())

	if cp := joinClasspath(classpath); cp != "" {
		cmd.Arg("-cp", cp)
	}

	return cmd.Arg(mainClass), nil
}

// PrintBuildInfo prints verbose build information
func (cb *CommandBuilder) PrintBuildInfo(w io.Writer, cmd *process.Command, files []string) {
	fmt.Fprintf(w, "Compiler: %s\nKotlin home: %s\nFiles: %v\nCommand: %s\n",
		cb.toolchain.Kotlinc(), cb.toolchain.KotlinHome, files, cmd)
}

func joinClasspath(entries []string) string {
	kept := make([]string, 0, len(entries))
	for _, e := range entries {
		if e != "" {
			kept = append(kept, e)
		}
	}

	return strings.Join(kept, ClasspathSeparator)
}
