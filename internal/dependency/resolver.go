package dependency

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Declaration is a dependency as written in the manifest
type Declaration struct {
	Namespace string
	Name      string
	Version   string
	Kind      Kind
}

// Platform returns the packages every project depends on without declaring them
func Platform() []Declaration {
	return []Declaration{
		{Namespace: "org.jetbrains.kotlin", Name: "kotlin-stdlib", Version: "2.0.0", Kind: Compile},
		{Namespace: "org.jetbrains.kotlin", Name: "kotlin-test-junit5", Version: "2.0.0", Kind: Test},
		{Namespace: "org.junit.platform", Name: "junit-platform-console-standalone", Version: "1.10.2", Kind: Test},
		{Namespace: "org.junit.jupiter", Name: "junit-jupiter-api", Version: "5.5.2", Kind: Test},
	}
}

// Resolver turns declarations into packages and reads their descriptors
type Resolver struct {
	// CacheRoot is where package locations are rooted
	CacheRoot string

	// Repositories are consulted in order when fetching
	Repositories []Repository

	// Platform is added to every resolution
	Platform []Declaration

	Logger *slog.Logger
}

// NewResolver creates a resolver with the default platform packages
func NewResolver(cacheRoot string, repos []Repository, logger *slog.Logger) *Resolver {
	if len(repos) == 0 {
		repos = Repositories()
	}

	return &Resolver{
		CacheRoot:    cacheRoot,
		Repositories: repos,
		Platform:     Platform(),
		Logger:       logger,
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return r.Logger
}

// Package creates the package for a declaration
func (r *Resolver) Package(d Declaration) Package {
	return NewPackage(r.CacheRoot, d.Namespace, d.Name, d.Version, d.Kind)
}

// Resolve maps declarations plus the platform set to packages.
// It never touches the disk or network.
func (r *Resolver) Resolve(decls []Declaration) *PackageSet {
	set := NewPackageSet()

	for _, d := range decls {
		set.Add(r.Package(d))
	}

	for _, d := range r.Platform {
		set.Add(r.Package(d))
	}

	return set
}

// IsCached reports whether the artifact and a descriptor are present and non-empty
func (r *Resolver) IsCached(pkg Package) bool {
	log := r.logger().With("package", pkg.Coordinate())

	jar := filepath.Join(pkg.Location, ArtifactFile)
	info, err := os.Stat(jar)
	if err != nil {
		log.Debug("Artifact not found", "path", jar)
		return false
	}

	if info.Size() == 0 {
		log.Warn("Artifact found but was empty", "path", jar)
		return false
	}

	descriptor, ok := FindDescriptor(pkg.Location)
	if !ok {
		log.Warn("No descriptor found", "location", pkg.Location)
		return false
	}

	info, err = os.Stat(descriptor)
	if err != nil || info.Size() == 0 {
		log.Warn("Descriptor found but was empty", "path", descriptor)
		return false
	}

	return true
}

// Transitives returns the dependencies declared by the package's descriptor.
// A missing descriptor or one that fails to parse yields an empty set.
func (r *Resolver) Transitives(pkg Package) *PackageSet {
	d, err := ReadDescriptor(pkg.Location)
	if err != nil {
		r.logger().Warn("Skipping descriptor", "package", pkg.Coordinate(), "error", err)
		return NewPackageSet()
	}

	if d == nil {
		return NewPackageSet()
	}

	return d.Packages(r.CacheRoot)
}

// TransitivesOf returns the transitives of kind k
func (r *Resolver) TransitivesOf(pkg Package, k Kind) *PackageSet {
	return r.Transitives(pkg).OfKind(k)
}

// Classpath joins the artifact paths of the package's transitives with ':'
func (r *Resolver) Classpath(pkg Package) string {
	return r.Transitives(pkg).Classpath()
}

// Closure walks transitives breadth first from roots. Every package is
// visited once, so cyclic descriptors terminate. Roots are included.
func (r *Resolver) Closure(roots *PackageSet) *PackageSet {
	seen := NewPackageSet()
	queue := roots.Items()

	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]

		if !seen.Add(pkg) {
			continue
		}

		for _, dep := range r.Transitives(pkg).Items() {
			if !seen.Contains(dep) {
				queue = append(queue, dep)
			}
		}
	}

	return seen
}
