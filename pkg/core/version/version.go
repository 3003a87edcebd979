// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     version
// Description: Central version management for the engine and its tools
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version constants
const (
	// Engine is the version of the validation engine packages
	Engine = "1.0.0"

	// Rules is the version of the rule file format
	Rules = "1.0.0"

	// CLI is the version of cmd/guardian
	CLI = "1.0.0"
)

// Set at build time via -ldflags "-X github.com/msto63/guardian/pkg/core/version.Commit=..."
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// ComponentVersion returns the version for a given component name
func ComponentVersion(name string) string {
	switch name {
	case "rules":
		return Rules
	case "cli", "guardian":
		return CLI
	default:
		return Engine
	}
}

// Info describes a build
type Info struct {
	Engine    string `json:"engine"`
	Rules     string `json:"rules"`
	CLI       string `json:"cli"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary
func Get() Info {
	return Info{
		Engine:    Engine,
		Rules:     Rules,
		CLI:       CLI,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("guardian %s (engine %s, rules %s, commit %s, built %s, %s %s)",
		i.CLI, i.Engine, i.Rules, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
