// Package srcgraph orders Kotlin source files so that every file is compiled
// after the files whose package it imports.
//
// Relationships come from the file header only: the package declaration and
// import lines at the top of the file. No parsing beyond that takes place.
package srcgraph

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Norgate-AV/buildk/internal/utils"
)

// SourceHeader is the package and imports declared at the top of a file.
// Both are normalized to their namespace, "a.b.C" becomes "a.b".
type SourceHeader struct {
	File    string
	Package string
	Imports []string

	// declared is the package as written
	declared string
}

// DeclaredPackage returns the package declaration as written in the file
func (h SourceHeader) DeclaredPackage() string {
	return h.declared
}

// DependsOn reports whether h imports the package of other
func (h SourceHeader) DependsOn(other SourceHeader) bool {
	if other.Package == "" {
		return false
	}

	for _, imp := range h.Imports {
		if imp == other.Package {
			return true
		}
	}

	return false
}

// Extractor reads the header of a source file
type Extractor interface {
	Extract(path string) (SourceHeader, error)
}

// HeaderExtractor scans the leading package and import lines
type HeaderExtractor struct{}

// Extract implements Extractor
func (HeaderExtractor) Extract(path string) (SourceHeader, error) {
	return ParseHeader(path)
}

// ParseHeader scans package and import lines, skipping blank lines, and
// stops at the first line that is neither
func ParseHeader(path string) (SourceHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceHeader{}, fmt.Errorf("failed to read header: %w", err)
	}
	defer f.Close()

	header := SourceHeader{File: path}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "package "):
			header.declared = clean(strings.TrimPrefix(line, "package "))
			header.Package = utils.TruncateLast(header.declared, ".")
			continue
		case strings.HasPrefix(line, "import "):
			imp := clean(strings.TrimPrefix(line, "import "))
			header.Imports = append(header.Imports, utils.TruncateLast(imp, "."))
			continue
		}

		break
	}

	if err := scanner.Err(); err != nil {
		return SourceHeader{}, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	return header, nil
}

// clean strips a trailing semicolon and an import alias
func clean(name string) string {
	name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ";"))
	if i := strings.Index(name, " as "); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	return name
}
