package build

import (
	"context"
	"errors"
	"fmt"

	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/fetch"
	"github.com/Norgate-AV/buildk/internal/pkgindex"
	"github.com/Norgate-AV/buildk/internal/utils"
)

// DepStatus describes one package of the dependency tree
type DepStatus struct {
	Package dependency.Package
	Cached  bool

	// Depth is 0 for project packages and grows by one per transitive level
	Depth int

	// Origin is where the package was fetched from, nil when unknown
	Origin *pkgindex.Record
}

// Deps lists every project package followed by its transitives, depth
// first. A package reachable through several parents is listed under each,
// a package already among its own ancestors is not descended into again.
func (s *Session) Deps() ([]DepStatus, error) {
	idx, err := pkgindex.Open(s.Config.CacheRoot)
	if err != nil {
		s.logger.Warn("Package index unavailable", "error", err)
	} else {
		defer idx.Close()
	}

	var statuses []DepStatus
	ancestors := make(map[string]bool)

	var descend func(pkg dependency.Package, depth int) error
	descend = func(pkg dependency.Package, depth int) error {
		status := DepStatus{Package: pkg, Cached: s.Resolver.IsCached(pkg), Depth: depth}

		if idx != nil {
			rec, err := idx.Lookup(pkg.Coordinate())
			switch {
			case err == nil:
				status.Origin = &rec
			case !errors.Is(err, pkgindex.ErrNotFound):
				return err
			}
		}

		statuses = append(statuses, status)

		coordinate := pkg.Coordinate()
		ancestors[coordinate] = true
		defer delete(ancestors, coordinate)

		for _, transitive := range s.Resolver.Transitives(pkg).Items() {
			if ancestors[transitive.Coordinate()] {
				continue
			}

			if err := descend(transitive, depth+1); err != nil {
				return err
			}
		}

		return nil
	}

	for _, pkg := range s.Packages.Items() {
		if err := descend(pkg, 0); err != nil {
			return nil, err
		}
	}

	return statuses, nil
}

// Fetch downloads every project package and its transitives that isn't
// cached yet
func (s *Session) Fetch(ctx context.Context) (*fetch.Report, error) {
	idx, err := pkgindex.Open(s.Config.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open package index: %w", err)
	}
	defer idx.Close()

	f := fetch.New(s.Resolver, s.Downloader, idx, s.logger)
	f.Jobs = s.Config.Jobs

	return f.Fetch(ctx, s.Packages)
}

// Indexed lists the fetched packages recorded in the package index,
// restricted to one namespace unless namespace is empty
func (s *Session) Indexed(namespace string) ([]pkgindex.Record, error) {
	idx, err := pkgindex.Open(s.Config.CacheRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open package index: %w", err)
	}
	defer idx.Close()

	records, err := idx.List()
	if err != nil {
		return nil, err
	}

	if namespace == "" {
		return records, nil
	}

	var matched []pkgindex.Record
	for _, rec := range records {
		ns, _, _, err := utils.SplitCoordinate(rec.Coordinate)
		if err != nil {
			s.logger.Debug("Skipping malformed index record", "coordinate", rec.Coordinate, "error", err)
			continue
		}

		if ns == namespace {
			matched = append(matched, rec)
		}
	}

	return matched, nil
}

// ClearIndex drops every record of the package index and returns how many
// there were. Downloaded files are left in place.
func (s *Session) ClearIndex() (int, error) {
	idx, err := pkgindex.Open(s.Config.CacheRoot)
	if err != nil {
		return 0, fmt.Errorf("failed to open package index: %w", err)
	}
	defer idx.Close()

	count, err := idx.Stats()
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	if err := idx.Clear(); err != nil {
		return 0, err
	}

	s.logger.Debug("Cleared package index", "path", idx.Path(), "records", count)

	return count, nil
}
