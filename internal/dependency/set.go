package dependency

import (
	"slices"
	"strings"
)

// PackageSet is an ordered set of packages keyed on full identity.
// Iteration order is the Compare order, independent of insertion order.
type PackageSet struct {
	items []Package
}

// NewPackageSet creates a set holding pkgs
func NewPackageSet(pkgs ...Package) *PackageSet {
	s := &PackageSet{}
	for _, p := range pkgs {
		s.Add(p)
	}

	return s
}

// Add inserts p, returning false if an identical package is already present
func (s *PackageSet) Add(p Package) bool {
	i, found := slices.BinarySearchFunc(s.items, p, Compare)
	if found {
		return false
	}

	s.items = slices.Insert(s.items, i, p)
	return true
}

// AddAll inserts every package of other
func (s *PackageSet) AddAll(other *PackageSet) {
	if other == nil {
		return
	}

	for _, p := range other.items {
		s.Add(p)
	}
}

// Contains reports whether p is in the set
func (s *PackageSet) Contains(p Package) bool {
	_, found := slices.BinarySearchFunc(s.items, p, Compare)
	return found
}

// Len returns the number of packages
func (s *PackageSet) Len() int {
	return len(s.items)
}

// Items returns the packages in order
func (s *PackageSet) Items() []Package {
	return slices.Clone(s.items)
}

// OfKind returns the subset of packages of kind k
func (s *PackageSet) OfKind(k Kind) *PackageSet {
	out := &PackageSet{}
	for _, p := range s.items {
		if p.Kind == k {
			out.items = append(out.items, p)
		}
	}

	return out
}

// Jars returns the artifact paths of every package, in order
func (s *PackageSet) Jars() []string {
	jars := make([]string, 0, len(s.items))
	for _, p := range s.items {
		jars = append(jars, p.JarPath())
	}

	return jars
}

// Classpath joins the artifact paths with ':'
func (s *PackageSet) Classpath() string {
	return strings.Join(s.Jars(), ":")
}
