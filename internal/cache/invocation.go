package cache

import (
	"context"
	"fmt"

	"github.com/Norgate-AV/buildk/internal/fingerprint"
	"github.com/Norgate-AV/buildk/internal/process"
)

// Invocation is the captured outcome of one tool run
type Invocation struct {
	// Action describes what ran, usually the command line
	Action string `json:"action"`

	// Success is true when the process exited with status zero
	Success bool `json:"success"`

	// Status is the human readable exit status
	Status string `json:"status"`

	// Code is the exit code, absent when the process was killed by a signal
	Code *int `json:"code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// File marks a tracked file state rather than a tool run
	File bool `json:"file,omitempty"`
}

// Error returns the invocation as a *process.FailedError, nil on success
func (i Invocation) Error(cached bool) error {
	if i.Success {
		return nil
	}

	return &process.FailedError{
		Action: i.Action,
		Code:   i.Code,
		Status: i.Status,
		Stdout: i.Stdout,
		Stderr: i.Stderr,
		Cached: cached,
	}
}

// Conclusion tells whether a result came from the cache
type Conclusion int

const (
	Executed Conclusion = iota
	Cached
)

func (c Conclusion) String() string {
	if c == Cached {
		return "cached"
	}

	return "executed"
}

// Result is returned by CachedInvoke
type Result struct {
	Stdout     string
	Stderr     string
	Conclusion Conclusion
	Code       *int
}

// Key returns the cache key of cmd with the given seed
func Key(cmd *process.Command, seed uint64) uint64 {
	args := append([]string{cmd.Program}, cmd.Args...)
	return fingerprint.Invocation(seed, args, cmd.Env)
}

// CachedInvoke returns the stored result for cmd when present, including a
// stored failure, without running anything. Otherwise it runs cmd, stores
// the outcome and returns it. Unsuccessful outcomes are returned as a
// *process.FailedError alongside the result, for hits and misses alike.
func (c *Cache) CachedInvoke(ctx context.Context, runner process.Runner, cmd *process.Command, seed uint64) (Result, error) {
	key := Key(cmd, seed)

	if inv, ok := c.Lookup(key); ok {
		c.logger.Debug("Cache hit", "action", inv.Action, "key", key)

		res := Result{Stdout: inv.Stdout, Stderr: inv.Stderr, Conclusion: Cached, Code: inv.Code}
		return res, inv.Error(true)
	}

	c.logger.Debug("Cache miss", "action", cmd.String(), "key", key)

	return c.invoke(ctx, runner, cmd, key)
}

// Refresh runs cmd even when a result is stored and replaces it, for
// outputs that went missing since the stored run
func (c *Cache) Refresh(ctx context.Context, runner process.Runner, cmd *process.Command, seed uint64) (Result, error) {
	return c.invoke(ctx, runner, cmd, Key(cmd, seed))
}

func (c *Cache) invoke(ctx context.Context, runner process.Runner, cmd *process.Command, key uint64) (Result, error) {
	out, err := runner.Run(ctx, cmd)
	if err != nil {
		return Result{}, err
	}

	stdout, stderr, err := out.Text()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", cmd, err)
	}

	inv := Invocation{
		Action:  cmd.String(),
		Success: out.Success,
		Status:  out.Status,
		Code:    out.Code,
		Stdout:  stdout,
		Stderr:  stderr,
	}

	if inv.Success || c.Failures != SkipFailures {
		c.Insert(key, inv)
	}

	res := Result{Stdout: stdout, Stderr: stderr, Conclusion: Executed, Code: out.Code}
	return res, inv.Error(false)
}
