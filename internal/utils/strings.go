package utils

import (
	"fmt"
	"strings"
)

// TruncateLast drops everything from the last occurrence of sep.
// Strings without sep are returned unchanged.
func TruncateLast(s string, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i]
	}

	return s
}

// SplitManifestKey splits a manifest dependency key of the form
// "namespace_name" (or just "name") into its parts
func SplitManifestKey(key string) (namespace, name string, err error) {
	parts := strings.Split(key, "_")

	switch len(parts) {
	case 1:
		name = parts[0]
	case 2:
		namespace, name = parts[0], parts[1]
	default:
		return "", "", fmt.Errorf("unexpected dependency key %q, expected namespace_name", key)
	}

	if name == "" {
		return "", "", fmt.Errorf("dependency key %q has no name", key)
	}

	return namespace, name, nil
}

// SplitCoordinate splits "group:artifact:version" (group optional) into its parts
func SplitCoordinate(coordinate string) (namespace, name, version string, err error) {
	parts := strings.Split(coordinate, ":")

	switch len(parts) {
	case 2:
		name, version = parts[0], parts[1]
	case 3:
		namespace, name, version = parts[0], parts[1], parts[2]
	default:
		return "", "", "", fmt.Errorf("invalid coordinate %q, expected group:artifact:version", coordinate)
	}

	if name == "" || version == "" {
		return "", "", "", fmt.Errorf("invalid coordinate %q, expected group:artifact:version", coordinate)
	}

	return namespace, name, version, nil
}
