package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/buildk/internal/dependency"
	"github.com/Norgate-AV/buildk/internal/pkgindex"
)

// Report summarizes a fetch run
type Report struct {
	Downloaded []dependency.Package
	Cached     []dependency.Package
	Failed     []error
}

// Err joins every failure, nil when all packages are available
func (r *Report) Err() error {
	return errors.Join(r.Failed...)
}

// Fetcher downloads the closure of a set of packages. Each top-level package
// gets its own worker which walks its transitives sequentially.
type Fetcher struct {
	Resolver   *dependency.Resolver
	Downloader Downloader

	// Index records downloads, optional
	Index *pkgindex.Index

	// Jobs bounds the number of concurrent workers, zero means one per package
	Jobs int

	Logger *slog.Logger

	mu     sync.Mutex
	report Report
}

// New creates a fetcher
func New(resolver *dependency.Resolver, downloader Downloader, index *pkgindex.Index, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Resolver:   resolver,
		Downloader: downloader,
		Index:      index,
		Logger:     logger,
	}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return f.Logger
}

// Fetch makes every package of roots and its transitives available on disk.
// A failing package never cancels the other workers; all failures are
// returned together in the report and as the joined error.
func (f *Fetcher) Fetch(ctx context.Context, roots *dependency.PackageSet) (*Report, error) {
	f.mu.Lock()
	f.report = Report{}
	f.mu.Unlock()

	var g errgroup.Group
	if f.Jobs > 0 {
		g.SetLimit(f.Jobs)
	}

	for _, root := range roots.Items() {
		g.Go(func() error {
			f.walk(ctx, root)
			return nil
		})
	}

	_ = g.Wait()

	f.mu.Lock()
	report := f.report
	f.mu.Unlock()

	return &report, report.Err()
}

// walk fetches root and then its transitives breadth first
func (f *Fetcher) walk(ctx context.Context, root dependency.Package) {
	seen := dependency.NewPackageSet()
	queue := []dependency.Package{root}

	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]

		if !seen.Add(pkg) {
			continue
		}

		if ctx.Err() != nil {
			f.fail(fmt.Errorf("%s: %w", pkg.Coordinate(), ctx.Err()))
			return
		}

		if f.Resolver.IsCached(pkg) {
			f.cached(pkg)
		} else if err := f.download(ctx, pkg); err != nil {
			f.fail(err)
			// Nothing to traverse without a descriptor
			continue
		}

		for _, dep := range f.Resolver.Transitives(pkg).Items() {
			if !seen.Contains(dep) {
				queue = append(queue, dep)
			}
		}
	}
}

// download tries each repository in order. Required files must all succeed
// in one repository; optional files are best effort.
func (f *Fetcher) download(ctx context.Context, pkg dependency.Package) error {
	log := f.logger().With("package", pkg.Coordinate())

	var attempts []error

	for _, repo := range f.Resolver.Repositories {
		files, err := f.downloadFrom(ctx, repo, pkg)
		if err != nil {
			log.Debug("Repository did not serve package", "repository", repo.Name, "error", err)
			attempts = append(attempts, err)
			continue
		}

		log.Info("Downloaded package", "repository", repo.Name, "files", len(files))
		f.downloaded(pkg)

		if f.Index != nil {
			record := pkgindex.Record{
				Coordinate: pkg.Coordinate(),
				Repository: repo.Name,
				URL:        pkg.URL(repo, dependency.RemoteFiles[0]),
				Files:      files,
				FetchedAt:  time.Now(),
			}

			if err := f.Index.Record(record); err != nil {
				log.Warn("Failed to index package", "error", err)
			}
		}

		return nil
	}

	return fmt.Errorf("failed to fetch %s from %d repositories: %w", pkg.Coordinate(), len(f.Resolver.Repositories), errors.Join(attempts...))
}

func (f *Fetcher) downloadFrom(ctx context.Context, repo dependency.Repository, pkg dependency.Package) ([]string, error) {
	var files []string

	for _, file := range dependency.RemoteFiles {
		url := pkg.URL(repo, file)
		dest := filepath.Join(pkg.Location, file.Local)

		if err := f.Downloader.Fetch(ctx, url, dest); err != nil {
			if file.Required {
				return nil, err
			}

			continue
		}

		files = append(files, file.Local)
	}

	return files, nil
}

func (f *Fetcher) cached(pkg dependency.Package) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.report.Cached = append(f.report.Cached, pkg)
}

func (f *Fetcher) downloaded(pkg dependency.Package) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.report.Downloaded = append(f.report.Downloaded, pkg)
}

func (f *Fetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.report.Failed = append(f.report.Failed, err)
}
