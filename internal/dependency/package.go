// Package dependency resolves declared dependencies into packages on disk
// and discovers their transitive dependencies from repository descriptors.
package dependency

import (
	"cmp"
	"fmt"
	"path/filepath"
	"strings"
)

// Files kept inside a package location
const (
	ArtifactFile = "pkg.jar"
	SourcesFile  = "pkg-sources.jar"
	MavenFile    = "maven.xml"
	GradleFile   = "gradle.json"
)

// Kind is the classpath a package belongs to
type Kind int

const (
	Compile Kind = iota
	Runtime
	Test
)

func (k Kind) String() string {
	switch k {
	case Runtime:
		return "runtime"
	case Test:
		return "test"
	default:
		return "compile"
	}
}

// Package is a resolved dependency with a deterministic location
type Package struct {
	Name      string
	Namespace string
	Version   string
	Kind      Kind
	Location  string
}

// NewPackage creates a package located at cacheRoot/namespace/name/version.
// The namespace segment is omitted when empty.
func NewPackage(cacheRoot, namespace, name, version string, kind Kind) Package {
	parts := []string{cacheRoot}
	if namespace != "" {
		parts = append(parts, namespace)
	}
	parts = append(parts, name, version)

	return Package{
		Name:      name,
		Namespace: namespace,
		Version:   version,
		Kind:      kind,
		Location:  filepath.Join(parts...),
	}
}

// Coordinate returns group:artifact:version
func (p Package) Coordinate() string {
	if p.Namespace == "" {
		return p.Name + ":" + p.Version
	}

	return p.Namespace + ":" + p.Name + ":" + p.Version
}

func (p Package) String() string {
	return fmt.Sprintf("%s (%s)", p.Coordinate(), p.Kind)
}

// JarPath returns the absolute path of the primary artifact
func (p Package) JarPath() string {
	path := filepath.Join(p.Location, ArtifactFile)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return path
}

// Compare orders packages by name, namespace, version, kind and location
func Compare(a, b Package) int {
	return cmp.Or(
		strings.Compare(a.Name, b.Name),
		strings.Compare(a.Namespace, b.Namespace),
		strings.Compare(a.Version, b.Version),
		cmp.Compare(a.Kind, b.Kind),
		strings.Compare(a.Location, b.Location),
	)
}

// RemoteFile is one file published for a package in a repository
type RemoteFile struct {
	// Suffix is appended to "name-version" to form the remote file name
	Suffix string

	// Local is the file name inside the package location
	Local string

	// Required files must download for the package to be usable
	Required bool
}

// RemoteFiles are fetched in order: jar and pom first, then the optional files
var RemoteFiles = []RemoteFile{
	{Suffix: ".jar", Local: ArtifactFile, Required: true},
	{Suffix: ".pom", Local: MavenFile, Required: true},
	{Suffix: "-sources.jar", Local: SourcesFile},
	{Suffix: ".module", Local: GradleFile},
}

// URL returns where file is published for this package in repo
func (p Package) URL(repo Repository, file RemoteFile) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSuffix(repo.URL, "/"))
	sb.WriteString("/")

	if p.Namespace != "" {
		sb.WriteString(strings.ReplaceAll(p.Namespace, ".", "/"))
		sb.WriteString("/")
	}

	fmt.Fprintf(&sb, "%s/%s/%s-%s%s", p.Name, p.Version, p.Name, p.Version, file.Suffix)

	return sb.String()
}
