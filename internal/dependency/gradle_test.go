package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moduleFile = `{
  "formatVersion": "1.1",
  "component": {
    "group": "org.jetbrains.kotlinx",
    "module": "kotlinx-coroutines-core",
    "version": "1.8.0",
    "attributes": {"org.gradle.status": "release"}
  },
  "createdBy": {"gradle": {"version": "8.5"}},
  "variants": [
    {
      "name": "apiElements",
      "attributes": {"org.gradle.jvm.version": 8},
      "dependencies": [
        {"group": "org.jetbrains", "module": "annotations", "version": {"requires": "23.0.0", "prefers": "24.0.0"}},
        {"group": "org.example", "module": "ranged", "version": {"requires": ["1.0", "1.5", "2.0"]}},
        {"group": "org.example", "module": "preferred", "version": {"prefers": "3.1", "strictly": "3.0"}},
        {"group": "org.example", "module": "strict", "version": {"strictly": "4.2", "rejects": ["4.1"]}},
        {"group": "org.example", "module": "unversioned"}
      ]
    },
    {
      "name": "runtimeElements",
      "dependencies": [
        {"group": "org.jetbrains", "module": "annotations", "version": {"requires": "23.0.0"}}
      ]
    }
  ]
}`

func TestParseGradle(t *testing.T) {
	d, err := ParseGradle("gradle.json", []byte(moduleFile))
	require.NoError(t, err)

	set := d.Packages("/cache")

	versions := map[string]string{}
	for _, p := range set.Items() {
		versions[p.Name] = p.Version
		assert.Equal(t, Compile, p.Kind)
	}

	assert.Equal(t, map[string]string{
		"kotlinx-coroutines-core": "1.8.0",
		"annotations":             "23.0.0",
		"ranged":                  "2.0",
		"preferred":               "3.1",
		"strict":                  "4.2",
	}, versions)

	// annotations is declared by two variants but appears once
	assert.Equal(t, 5, set.Len())
}

func TestGradleVersion_Resolve(t *testing.T) {
	tests := []struct {
		name     string
		version  *gradleVersion
		expected string
	}{
		{name: "requires wins over prefers", version: &gradleVersion{Requires: versionValue{"1.0"}, Prefers: versionValue{"2.0"}}, expected: "1.0"},
		{name: "prefers wins over strictly", version: &gradleVersion{Prefers: versionValue{"2.0"}, Strictly: versionValue{"3.0"}}, expected: "2.0"},
		{name: "strictly alone", version: &gradleVersion{Strictly: versionValue{"3.0"}}, expected: "3.0"},
		{name: "array takes last", version: &gradleVersion{Requires: versionValue{"1.0", "1.9"}}, expected: "1.9"},
		{name: "rejects ignored", version: &gradleVersion{Requires: versionValue{"1.0"}, Rejects: versionValue{"1.0"}}, expected: "1.0"},
		{name: "nil constraint", version: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.version.Resolve())
		})
	}
}

func TestParseGradle_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unsupported format", content: `{"formatVersion": "1.0", "variants": []}`},
		{name: "missing format", content: `{"variants": []}`},
		{name: "invalid json", content: `{"formatVersion": "1.1",`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGradle("gradle.json", []byte(tt.content))
			assert.ErrorIs(t, err, ErrMalformedDescriptor)
		})
	}
}

func TestParseGradle_SkipsMalformedDependency(t *testing.T) {
	tests := []struct {
		name string
		bad  string
	}{
		{name: "number constraint", bad: `{"group": "g", "module": "numbered", "version": {"requires": 5}}`},
		{name: "object constraint", bad: `{"group": "g", "module": "nested", "version": {"prefers": {"v": "1"}}}`},
		{name: "number module", bad: `{"group": "g", "module": 7, "version": {"requires": "1.0"}}`},
		{name: "not an object", bad: `"g:m:1.0"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := `{"formatVersion": "1.1", "variants": [{"name": "apiElements", "dependencies": [` +
				`{"group": "g", "module": "good", "version": {"requires": "1.0"}}, ` + tt.bad + `]}]}`

			d, err := ParseGradle("gradle.json", []byte(content))
			require.NoError(t, err)

			items := d.Packages("/cache").Items()
			require.Len(t, items, 1)
			assert.Equal(t, "good", items[0].Name)
			assert.Equal(t, "1.0", items[0].Version)
		})
	}
}
