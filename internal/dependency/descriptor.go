package dependency

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMalformedDescriptor is returned when a descriptor lacks required structure
var ErrMalformedDescriptor = errors.New("malformed descriptor")

// Descriptor is the parsed metadata of one package. It is either a
// *MavenDescriptor or a *GradleDescriptor, chosen by which file is present.
type Descriptor interface {
	// Path is the file the descriptor was read from
	Path() string

	// Packages returns the dependencies the descriptor declares, located under cacheRoot
	Packages(cacheRoot string) *PackageSet

	descriptor()
}

// FindDescriptor returns the descriptor file inside location, probing the
// Maven file first and the Gradle file second. The second return is false
// when neither exists.
func FindDescriptor(location string) (string, bool) {
	for _, name := range []string{MavenFile, GradleFile} {
		path := filepath.Join(location, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}

	return "", false
}

// ReadDescriptor parses the descriptor found inside location.
// It returns (nil, nil) when the location has no descriptor.
func ReadDescriptor(location string) (Descriptor, error) {
	path, ok := FindDescriptor(location)
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	if filepath.Base(path) == MavenFile {
		pom, err := ParseMaven(path, data)
		if err != nil {
			return nil, err
		}

		return pom, nil
	}

	module, err := ParseGradle(path, data)
	if err != nil {
		return nil, err
	}

	return module, nil
}
