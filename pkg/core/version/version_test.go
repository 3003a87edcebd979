package version

import (
	"regexp"
	"runtime"
	"strings"
	"testing"
)

// semverRegex validates semantic versioning format
var semverRegex = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

func TestVersionConstants(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"Engine", Engine},
		{"Rules", Rules},
		{"CLI", CLI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.version == "" {
				t.Errorf("%s version is empty", tt.name)
			}
			if !semverRegex.MatchString(tt.version) {
				t.Errorf("%s version %q does not match semver format (x.y.z)", tt.name, tt.version)
			}
		})
	}
}

func TestComponentVersion(t *testing.T) {
	tests := []struct {
		name      string
		component string
		expected  string
	}{
		{"rules", "rules", Rules},
		{"cli", "cli", CLI},
		{"binary name", "guardian", CLI},
		{"engine", "engine", Engine},
		{"unknown component", "unknown", Engine},
		{"empty component", "", Engine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComponentVersion(tt.component)
			if result != tt.expected {
				t.Errorf("ComponentVersion(%q) = %q, want %q", tt.component, result, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Engine != Engine || info.CLI != CLI || info.Rules != Rules {
		t.Errorf("Get() = %+v, versions do not match the constants", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if !strings.HasPrefix(info.String(), "guardian "+CLI) {
		t.Errorf("String() = %q", info.String())
	}
	if !strings.Contains(info.String(), info.Platform) {
		t.Errorf("String() = %q does not mention platform %q", info.String(), info.Platform)
	}
}
