package dependency

import (
	"encoding/json"
	"fmt"
)

// GradleFormatVersion is the only supported module metadata format
const GradleFormatVersion = "1.1"

// GradleDescriptor is a parsed Gradle module metadata file
type GradleDescriptor struct {
	path   string
	module gradleModule
}

type gradleModule struct {
	FormatVersion string           `json:"formatVersion"`
	Component     *gradleComponent `json:"component"`
	Variants      []gradleVariant  `json:"variants"`
}

type gradleComponent struct {
	Group   string `json:"group"`
	Module  string `json:"module"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// gradleVariant keeps dependencies raw so one malformed entry doesn't lose
// its siblings
type gradleVariant struct {
	Name         string            `json:"name"`
	Dependencies []json.RawMessage `json:"dependencies"`
}

type gradleDependency struct {
	Group   string         `json:"group"`
	Module  string         `json:"module"`
	Version *gradleVersion `json:"version"`
}

// gradleVersion is a rich version constraint. Rejects are decoded but never
// applied when choosing a version.
type gradleVersion struct {
	Requires versionValue `json:"requires"`
	Prefers  versionValue `json:"prefers"`
	Strictly versionValue `json:"strictly"`
	Rejects  versionValue `json:"rejects"`
}

// versionValue accepts either a single version string or a list of
// candidates. Any other value decodes as empty, so only the dependency
// carrying it is skipped.
type versionValue []string

func (v *versionValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = versionValue{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = list
		return nil
	}

	*v = nil
	return nil
}

// pick returns the last candidate, the upper end of a range given as a list
func (v versionValue) pick() string {
	if len(v) == 0 {
		return ""
	}

	return v[len(v)-1]
}

// Resolve picks the version by precedence requires, prefers, strictly
func (v *gradleVersion) Resolve() string {
	if v == nil {
		return ""
	}

	for _, candidate := range []versionValue{v.Requires, v.Prefers, v.Strictly} {
		if version := candidate.pick(); version != "" {
			return version
		}
	}

	return ""
}

// ParseGradle decodes module metadata. Only format 1.1 is accepted; other
// formats fail with ErrMalformedDescriptor.
func ParseGradle(path string, data []byte) (*GradleDescriptor, error) {
	var module gradleModule
	if err := json.Unmarshal(data, &module); err != nil {
		return nil, fmt.Errorf("unable to parse gradle module file %s: %w: %w", path, ErrMalformedDescriptor, err)
	}

	if module.FormatVersion != GradleFormatVersion {
		return nil, fmt.Errorf("unsupported gradle module metadata format %q in %s, only %s is supported: %w",
			module.FormatVersion, path, GradleFormatVersion, ErrMalformedDescriptor)
	}

	return &GradleDescriptor{path: path, module: module}, nil
}

func (d *GradleDescriptor) Path() string { return d.path }

func (d *GradleDescriptor) descriptor() {}

// Packages returns the component itself plus every variant dependency.
// All of them are Compile since variants aren't mapped to kinds yet.
func (d *GradleDescriptor) Packages(cacheRoot string) *PackageSet {
	set := NewPackageSet()

	if c := d.module.Component; c != nil && c.Module != "" && c.Version != "" {
		set.Add(NewPackage(cacheRoot, c.Group, c.Module, c.Version, Compile))
	}

	for _, variant := range d.module.Variants {
		for _, raw := range variant.Dependencies {
			var dep gradleDependency
			if err := json.Unmarshal(raw, &dep); err != nil {
				continue
			}

			version := dep.Version.Resolve()
			if dep.Module == "" || version == "" {
				continue
			}

			set.Add(NewPackage(cacheRoot, dep.Group, dep.Module, version, Compile))
		}
	}

	return set
}
