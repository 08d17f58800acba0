// Package fingerprint provides stable 64-bit digests used as cache keys.
//
// Digests are computed with xxhash, which is unseeded, so the same inputs
// produce the same fingerprint across process restarts. Variable length
// values are length-prefixed before being written so adjacent values can't
// run into each other ("ab"+"c" and "a"+"bc" hash differently).
package fingerprint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	// ErrNotFound is returned when an executable can't be located
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a file fingerprint is requested for
	// something that isn't a regular file
	ErrInvalidInput = errors.New("invalid input")
)

// Hasher accumulates typed values into a single digest
type Hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

// New creates an empty hasher
func New() *Hasher {
	return &Hasher{d: xxhash.New()}
}

// Uint64 writes a fixed width integer
func (h *Hasher) Uint64(v uint64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
	return h
}

// Bytes writes a length-prefixed byte slice
func (h *Hasher) Bytes(b []byte) *Hasher {
	h.Uint64(uint64(len(b)))
	_, _ = h.d.Write(b)
	return h
}

// String writes a length-prefixed string
func (h *Hasher) String(s string) *Hasher {
	h.Uint64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
	return h
}

// Strings writes the count followed by every element in order
func (h *Hasher) Strings(values []string) *Hasher {
	h.Uint64(uint64(len(values)))
	for _, v := range values {
		h.String(v)
	}

	return h
}

// Time writes a timestamp with nanosecond precision
func (h *Hasher) Time(t time.Time) *Hasher {
	h.Uint64(uint64(t.Unix()))
	h.Uint64(uint64(t.Nanosecond()))
	return h
}

// Sum returns the digest of everything written so far
func (h *Hasher) Sum() uint64 {
	return h.d.Sum64()
}

// Bytes fingerprints an arbitrary byte sequence
func Bytes(b []byte) uint64 {
	return New().Bytes(b).Sum()
}

// Combine folds an ordered list of fingerprints into one
func Combine(values ...uint64) uint64 {
	h := New().Uint64(uint64(len(values)))
	for _, v := range values {
		h.Uint64(v)
	}

	return h.Sum()
}

// ResolveExecutable returns the absolute path of an executable.
// A bare name (no path separator) is looked up in PATH.
func ResolveExecutable(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty executable name: %w", ErrNotFound)
	}

	if filepath.Base(name) == name {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("no executable for %q found in PATH: %w", name, ErrNotFound)
		}

		return filepath.Abs(path)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", name, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("executable %s: %w", abs, ErrNotFound)
		}

		return "", fmt.Errorf("failed to stat %s: %w", abs, err)
	}

	if info.IsDir() {
		return "", fmt.Errorf("executable %s is a directory: %w", abs, ErrNotFound)
	}

	return abs, nil
}

// Executable fingerprints an executable by its resolved path and
// modification time. Replacing or upgrading the binary changes the result.
func Executable(name string) (uint64, error) {
	path, err := ResolveExecutable(name)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return New().String(path).Time(info.ModTime()).Sum(), nil
}

// Invocation fingerprints a tool invocation. The seed folds in content not
// visible in the arguments (e.g. the combined fingerprint of changed sources).
// Environment entries are sorted by key so map order is irrelevant.
func Invocation(seed uint64, args []string, env map[string]string) uint64 {
	h := New().Uint64(seed).Strings(args)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h.Uint64(uint64(len(keys)))
	for _, k := range keys {
		h.String(k).String(env[k])
	}

	return h.Sum()
}

// File fingerprints a regular file by path and modification time
func File(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file: %w", path, ErrInvalidInput)
	}

	return New().String(path).Time(info.ModTime()).Sum(), nil
}
