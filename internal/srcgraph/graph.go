package srcgraph

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dominikbraun/graph"
)

// CyclicDependencyError is returned when no valid compile order exists
type CyclicDependencyError struct {
	// File is the dependent whose edge closed the cycle
	File string

	// Dependency is the provider File was about to depend on
	Dependency string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %s and %s import each other (directly or transitively)", e.File, e.Dependency)
}

// Graph connects source headers from provider to dependent
type Graph struct {
	g     graph.Graph[string, SourceHeader]
	order map[string]int
}

// NewGraph creates a graph over headers. Providers get an edge to every
// header importing their package; files importing their own package get no
// self edge.
func NewGraph(headers []SourceHeader) (*Graph, error) {
	g := graph.New(func(h SourceHeader) string { return h.File }, graph.Directed(), graph.PreventCycles())
	order := make(map[string]int, len(headers))

	for i, h := range headers {
		if err := g.AddVertex(h); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				continue
			}

			return nil, fmt.Errorf("failed to add %s: %w", h.File, err)
		}

		order[h.File] = i
	}

	for _, u := range headers {
		for _, v := range headers {
			if u.File == v.File || !v.DependsOn(u) {
				continue
			}

			err := g.AddEdge(u.File, v.File)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, &CyclicDependencyError{File: v.File, Dependency: u.File}
			default:
				return nil, fmt.Errorf("failed to connect %s to %s: %w", u.File, v.File, err)
			}
		}
	}

	return &Graph{g: g, order: order}, nil
}

// Order returns the files providers first. Files without a relationship
// keep their input order.
func (g *Graph) Order() ([]string, error) {
	return graph.StableTopologicalSort(g.g, func(a, b string) bool {
		return g.order[a] < g.order[b]
	})
}

// Sorter computes build orders with a swappable header extractor
type Sorter struct {
	Extractor Extractor
	Logger    *slog.Logger
}

// BuildOrder orders files with the line scanning extractor
func BuildOrder(files []string) ([]string, error) {
	return (&Sorter{Extractor: HeaderExtractor{}}).BuildOrder(files)
}

// BuildOrder extracts every header and sorts the files providers first.
// Unreadable files are left out of the order.
func (s *Sorter) BuildOrder(files []string) ([]string, error) {
	headers := s.Headers(files)

	g, err := NewGraph(headers)
	if err != nil {
		return nil, err
	}

	return g.Order()
}

// Headers extracts the header of every readable file, in input order
func (s *Sorter) Headers(files []string) []SourceHeader {
	extractor := s.Extractor
	if extractor == nil {
		extractor = HeaderExtractor{}
	}

	log := s.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	headers := make([]SourceHeader, 0, len(files))
	for _, file := range files {
		h, err := extractor.Extract(file)
		if err != nil {
			log.Debug("Excluding unreadable source", "file", file, "error", err)
			continue
		}

		headers = append(headers, h)
	}

	return headers
}

// Discover returns the files under root matching pattern (e.g. "**/*.kt"),
// sorted by path. A missing root yields no files.
func Discover(root, pattern string) ([]string, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var matches []string

	fsys := os.DirFS(root)
	err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(root, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	sort.Strings(matches)

	return matches, nil
}
