// Package cache provides the build cache for compiler and tool invocations.
//
// The cache maps a fingerprint of an invocation (arguments, environment and
// a caller supplied seed) to its captured result:
//
//  1. Every entry is keyed by a stable 64-bit fingerprint
//  2. The whole cache is tied to the fingerprint of the compiler executable,
//     replacing or upgrading the compiler discards every entry
//  3. The cache is one JSON document, rewritten atomically on Close and only
//     when something changed
//
// One Cache belongs to one build session. Concurrent writers on the same
// file are not coordinated; the last Close wins.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/buildk/internal/fingerprint"
)

const (
	// DefaultFileName is the cache file inside the output directory
	DefaultFileName = "cache.json"
)

// FailurePolicy decides whether failed invocations are remembered
type FailurePolicy string

const (
	// KeepFailures stores failed invocations and replays them on a hit
	KeepFailures FailurePolicy = "keep"

	// SkipFailures never stores failed invocations, so they re-run
	SkipFailures FailurePolicy = "skip"
)

// ParseFailurePolicy validates a configured policy
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", KeepFailures:
		return KeepFailures, nil
	case SkipFailures:
		return SkipFailures, nil
	default:
		return "", fmt.Errorf("invalid cache failure policy %q, expected %q or %q", s, KeepFailures, SkipFailures)
	}
}

// document is the persisted form
type document struct {
	Fingerprint uint64                `json:"fingerprint"`
	Entries     map[uint64]Invocation `json:"entries"`
}

// Cache is a session scoped build cache
type Cache struct {
	path        string
	fingerprint uint64
	entries     map[uint64]Invocation
	dirty       bool
	ephemeral   bool
	warm        bool
	logger      *slog.Logger

	// Failures controls whether failed invocations are stored
	Failures FailurePolicy
}

// Load opens the cache stored at path for the given compiler. The cache is
// warm when the stored compiler fingerprint matches, cold otherwise. When
// the compiler can't be resolved the cache is ephemeral and never written.
func Load(compiler, path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Cache{
		path:     path,
		entries:  make(map[uint64]Invocation),
		logger:   logger,
		Failures: KeepFailures,
	}

	fp, err := fingerprint.Executable(compiler)
	if err != nil {
		logger.Warn("Compiler not found, caching disabled for this run", "compiler", compiler, "error", err)
		c.ephemeral = true
		return c
	}

	c.fingerprint = fp

	doc, err := read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("No build cache found", "path", path)
	case err != nil:
		logger.Warn("Ignoring unreadable build cache", "path", path, "error", err)
	case doc.Fingerprint != fp:
		logger.Info("Compiler changed, discarding build cache", "path", path, "entries", len(doc.Entries))
	default:
		if doc.Entries != nil {
			c.entries = doc.Entries
		}

		c.warm = true
		logger.Debug("Loaded build cache", "path", path, "entries", len(c.entries))
	}

	return c
}

// Disabled returns an empty cache that is never persisted
func Disabled(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Cache{
		entries:   make(map[uint64]Invocation),
		ephemeral: true,
		logger:    logger,
		Failures:  KeepFailures,
	}
}

func read(path string) (document, error) {
	var doc document

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse cache: %w", err)
	}

	return doc, nil
}

// Path returns the cache file location
func (c *Cache) Path() string {
	return c.path
}

// Fingerprint returns the compiler fingerprint the cache is tied to
func (c *Cache) Fingerprint() uint64 {
	return c.fingerprint
}

// Warm reports whether prior entries were loaded
func (c *Cache) Warm() bool {
	return c.warm
}

// Ephemeral reports whether the cache will never be persisted
func (c *Cache) Ephemeral() bool {
	return c.ephemeral
}

// Dirty reports whether the cache changed since it was loaded
func (c *Cache) Dirty() bool {
	return c.dirty
}

// Lookup returns the stored invocation for key
func (c *Cache) Lookup(key uint64) (Invocation, bool) {
	inv, ok := c.entries[key]
	return inv, ok
}

// Insert stores inv under key and marks the cache dirty
func (c *Cache) Insert(key uint64, inv Invocation) {
	c.entries[key] = inv
	c.dirty = true
}

// TrackFile records the current state of a file. It returns true when this
// (path, modification time) hasn't been seen before, i.e. the file changed.
func (c *Cache) TrackFile(path string) (bool, error) {
	key, tracked, err := c.FileState(path)
	if err != nil || tracked {
		return false, err
	}

	c.MarkFile(key, path)
	return true, nil
}

// FileState fingerprints a file and reports whether that state is tracked,
// without recording anything
func (c *Cache) FileState(path string) (key uint64, tracked bool, err error) {
	return c.StepFileState("", path)
}

// StepFileState is FileState for a file as the input of one build step.
// Steps sharing a file track its state independently.
func (c *Cache) StepFileState(step, path string) (key uint64, tracked bool, err error) {
	key, err = fingerprint.File(path)
	if err != nil {
		return 0, false, err
	}

	if step != "" {
		key = fingerprint.Combine(fingerprint.New().String(step).Sum(), key)
	}

	_, tracked = c.entries[key]
	return key, tracked, nil
}

// MarkFile records a file state obtained from FileState
func (c *Cache) MarkFile(key uint64, path string) {
	c.Insert(key, Invocation{Action: path, Success: true, File: true})
}

// Invalidate drops pending changes so Close writes nothing
func (c *Cache) Invalidate() {
	c.dirty = false
}

// Stats returns the number of entries, tool runs and tracked files alike
func (c *Cache) Stats() int {
	return len(c.entries)
}

// Counts splits the entries into stored tool runs and tracked file states
func (c *Cache) Counts() (invocations, files int) {
	for _, inv := range c.entries {
		if inv.File {
			files++
		} else {
			invocations++
		}
	}

	return invocations, files
}

// Close writes the cache when it changed. Write failures are logged and
// never returned.
func (c *Cache) Close() error {
	if !c.dirty || c.ephemeral || c.path == "" {
		return nil
	}

	if err := c.flush(); err != nil {
		c.logger.Warn("Failed to write build cache", "path", c.path, "error", err)
		return nil
	}

	c.dirty = false
	c.logger.Debug("Saved build cache", "path", c.path, "entries", len(c.entries))

	return nil
}

func (c *Cache) flush() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(document{Fingerprint: c.fingerprint, Entries: c.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to replace cache: %w", err)
	}

	return nil
}
