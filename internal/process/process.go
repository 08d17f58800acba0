// Package process spawns external tools and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrEncoding is returned when captured output isn't valid UTF-8
var ErrEncoding = errors.New("output is not valid utf-8")

// Command describes a single tool invocation
type Command struct {
	// Program is the executable to run (bare name or path)
	Program string

	// Args are passed in order
	Args []string

	// Dir is the working directory, empty for the current one
	Dir string

	// Env overrides entries of the inherited environment
	Env map[string]string
}

// New creates a command for the given program
func New(program string, args ...string) *Command {
	return &Command{Program: program, Args: args}
}

// Arg appends arguments
func (c *Command) Arg(args ...string) *Command {
	c.Args = append(c.Args, args...)
	return c
}

// WithDir sets the working directory
func (c *Command) WithDir(dir string) *Command {
	c.Dir = dir
	return c
}

// WithEnv sets an environment override
func (c *Command) WithEnv(key, value string) *Command {
	if c.Env == nil {
		c.Env = make(map[string]string)
	}

	c.Env[key] = value
	return c
}

// String renders the command line, used as the human readable action
func (c *Command) String() string {
	var sb strings.Builder

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%s ", k, c.Env[k])
	}

	sb.WriteString(c.Program)
	for _, arg := range c.Args {
		sb.WriteString(" ")
		sb.WriteString(arg)
	}

	return sb.String()
}

// Output is the captured result of a finished process
type Output struct {
	Success bool
	// Code is nil when the process was terminated by a signal
	Code   *int
	Status string
	Stdout []byte
	Stderr []byte
}

// Text decodes both streams, failing with ErrEncoding on invalid UTF-8
func (o Output) Text() (stdout, stderr string, err error) {
	if !utf8.Valid(o.Stdout) {
		return "", "", fmt.Errorf("failed to convert stdout: %w", ErrEncoding)
	}

	if !utf8.Valid(o.Stderr) {
		return "", "", fmt.Errorf("failed to convert stderr: %w", ErrEncoding)
	}

	return string(o.Stdout), string(o.Stderr), nil
}

// Runner executes commands. A non-zero exit is reported through
// Output.Success, the error is reserved for failing to run at all.
type Runner interface {
	Run(ctx context.Context, cmd *Command) (Output, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command with captured (not inherited) stdout and stderr
func (r *ExecRunner) Run(ctx context.Context, cmd *Command) (Output, error) {
	c := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	c.Dir = cmd.Dir

	if len(cmd.Env) > 0 {
		c.Env = os.Environ()
		for k, v := range cmd.Env {
			c.Env = append(c.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()

	out := Output{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Output{}, fmt.Errorf("could not execute process %s: %w", cmd, err)
		}

		out.Status = exitErr.ProcessState.String()
		if code := exitErr.ExitCode(); code >= 0 {
			out.Code = &code
		}

		return out, nil
	}

	code := 0
	out.Success = true
	out.Code = &code

	return out, nil
}

// FailedError carries the captured diagnostics of an unsuccessful invocation
type FailedError struct {
	Action string
	Code   *int
	Status string
	Stdout string
	Stderr string
	Cached bool
}

func (e *FailedError) Error() string {
	var sb strings.Builder

	sb.WriteString("process didn't exit successfully")
	if e.Cached {
		sb.WriteString(" (cache)")
	}

	fmt.Fprintf(&sb, ": %s (%s)", e.Action, e.describeStatus())

	if strings.TrimSpace(e.Stdout) != "" {
		sb.WriteString("\n--- stdout\n")
		sb.WriteString(e.Stdout)
	}

	if strings.TrimSpace(e.Stderr) != "" {
		sb.WriteString("\n--- stderr\n")
		sb.WriteString(e.Stderr)
	}

	return sb.String()
}

func (e *FailedError) describeStatus() string {
	if e.Status != "" {
		return e.Status
	}

	if e.Code != nil {
		return fmt.Sprintf("exit status: %d", *e.Code)
	}

	return "never executed"
}

// ExitCode returns the exit code or -1 when there is none
func (e *FailedError) ExitCode() int {
	if e.Code == nil {
		return -1
	}

	return *e.Code
}
