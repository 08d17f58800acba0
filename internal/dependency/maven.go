package dependency

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// maxPropertyDepth bounds ${ref} chains so self-referencing properties terminate
const maxPropertyDepth = 16

// MavenDescriptor is a parsed POM
type MavenDescriptor struct {
	path string

	// Properties holds every <properties> entry with references resolved
	Properties map[string]string

	// Dependencies are direct and managed dependencies after interpolation,
	// in document order. Entries without a version are already dropped.
	Dependencies []MavenDependency
}

// MavenDependency is a <dependency> element
type MavenDependency struct {
	GroupID    string
	ArtifactID string
	Version    string
	Scope      string
}

type pomProject struct {
	XMLName      xml.Name
	Properties   pomProperties   `xml:"properties"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
	Managed      []pomDependency `xml:"dependencyManagement>dependencies>dependency"`
}

type pomProperties struct {
	Entries []pomProperty `xml:",any"`
}

type pomProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

// ParseMaven decodes a POM. A document whose root isn't <project> fails
// with ErrMalformedDescriptor.
func ParseMaven(path string, data []byte) (*MavenDescriptor, error) {
	var project pomProject

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	if err := dec.Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %w", path, ErrMalformedDescriptor, err)
	}

	if project.XMLName.Local != "project" {
		return nil, fmt.Errorf("invalid pom %s, missing <project> tag: %w", path, ErrMalformedDescriptor)
	}

	props := resolveProperties(project.Properties.Entries)

	d := &MavenDescriptor{path: path, Properties: props}

	for _, deps := range [][]pomDependency{project.Dependencies, project.Managed} {
		for _, dep := range deps {
			group := strings.TrimSpace(dep.GroupID)
			artifact := strings.TrimSpace(dep.ArtifactID)
			if group == "" || artifact == "" {
				continue
			}

			version := interpolate(strings.TrimSpace(dep.Version), props)
			if version == "" {
				continue
			}

			d.Dependencies = append(d.Dependencies, MavenDependency{
				GroupID:    group,
				ArtifactID: artifact,
				Version:    version,
				Scope:      strings.TrimSpace(dep.Scope),
			})
		}
	}

	return d, nil
}

func (d *MavenDescriptor) Path() string { return d.path }

func (d *MavenDescriptor) descriptor() {}

// Packages converts the dependencies, deduplicated by identity
func (d *MavenDescriptor) Packages(cacheRoot string) *PackageSet {
	set := NewPackageSet()
	for _, dep := range d.Dependencies {
		set.Add(NewPackage(cacheRoot, dep.GroupID, dep.ArtifactID, dep.Version, ScopeKind(dep.Scope)))
	}

	return set
}

// ScopeKind maps a Maven scope onto a Kind. Absent or unknown scopes are Compile.
func ScopeKind(scope string) Kind {
	switch scope {
	case "provided", "runtime":
		return Runtime
	case "test":
		return Test
	default:
		// compile, system
		return Compile
	}
}

// resolveProperties builds the property map, following ${ref} values to
// sibling properties
func resolveProperties(entries []pomProperty) map[string]string {
	raw := make(map[string]string, len(entries))
	for _, e := range entries {
		raw[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}

	props := make(map[string]string, len(raw))
	for key, value := range raw {
		props[key] = expand(value, raw, 0)
	}

	return props
}

// interpolate replaces every ${prop} in s. Unknown placeholders are kept.
func interpolate(s string, props map[string]string) string {
	return expand(s, props, maxPropertyDepth-1)
}

func expand(s string, props map[string]string, depth int) string {
	if depth >= maxPropertyDepth || !strings.Contains(s, "${") {
		return s
	}

	var sb strings.Builder
	rest := s

	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			sb.WriteString(rest)
			break
		}

		end := strings.Index(rest[start:], "}")
		if end < 0 {
			sb.WriteString(rest)
			break
		}
		end += start

		sb.WriteString(rest[:start])

		ref := rest[start+2 : end]
		if value, ok := props[ref]; ok {
			sb.WriteString(expand(value, props, depth+1))
		} else {
			sb.WriteString(rest[start : end+1])
		}

		rest = rest[end+1:]
	}

	return sb.String()
}
