// File: config_test.go
// Title: Configuration Tests
// Description: Tests for TOML/YAML parsing, dotted keys, environment overrides
//              and validation rules.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial implementation
// - 2026-10-19 v0.2.0: Adapted to guardian settings

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

const sampleTOML = `
[guard]
activated = true
invariants = false

[validator]
default_language = "formula"
enabled_profiles = ["strict", "audit"]

[expression]
cache_size = 256
ttl = "5m"
`

const sampleYAML = `
guard:
  activated: false
validator:
  locale: de
`

func TestLoadFromStringTOML(t *testing.T) {
	cfg, err := LoadFromString(sampleTOML, FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromString() error = %v", err)
	}

	if !cfg.GetBool("guard.activated") {
		t.Error("guard.activated should be true")
	}
	if cfg.GetBool("guard.invariants", true) {
		t.Error("guard.invariants should be false")
	}
	if got := cfg.GetString("validator.default_language"); got != "formula" {
		t.Errorf("default_language = %q", got)
	}
	if got := cfg.GetInt("expression.cache_size"); got != 256 {
		t.Errorf("cache_size = %d", got)
	}
	if got := cfg.GetDuration("expression.ttl"); got != 5*time.Minute {
		t.Errorf("ttl = %v", got)
	}
	if got := cfg.GetStringSlice("validator.enabled_profiles"); len(got) != 2 || got[0] != "strict" {
		t.Errorf("enabled_profiles = %v", got)
	}
	if got := cfg.GetString("missing.key", "fallback"); got != "fallback" {
		t.Errorf("default not applied: %q", got)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guardian.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Format() != FormatYAML {
		t.Errorf("Format() = %v, want yaml", cfg.Format())
	}
	if cfg.GetBool("guard.activated", true) {
		t.Error("guard.activated should be false")
	}
	if got := cfg.Sub("validator").GetString("locale"); got != "de" {
		t.Errorf("Sub(validator).locale = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !mdwerror.HasCode(err, mdwerror.CodeNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("GUARDIAN_GUARD_ACTIVATED", "false")
	t.Setenv("GUARDIAN_VALIDATOR_ENABLED_PROFILES", "a, b")

	cfg, err := LoadFromString(sampleTOML, FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	cfg.envPrefix = "GUARDIAN"

	if cfg.GetBool("guard.activated", true) {
		t.Error("environment override not applied")
	}
	if got := cfg.GetStringSlice("validator.enabled_profiles"); len(got) != 2 || got[1] != "b" {
		t.Errorf("enabled_profiles = %v", got)
	}
	if cfg.Sub("guard").GetBool("invariants", true) {
		t.Error("sub config lost file value")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFromString(sampleTOML, FormatTOML)
	if err != nil {
		t.Fatal(err)
	}

	ok := ValidationRules{
		"guard.activated":            {Type: "bool"},
		"validator.default_language": {Required: true, OneOf: []string{"formula", "jq"}},
		"expression.cache_size":      {Type: "int"},
	}
	if err := cfg.Validate(ok); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := ValidationRules{
		"log.level":             {Required: true},
		"expression.cache_size": {Type: "string"},
	}
	err = cfg.Validate(bad)
	if !mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration) {
		t.Fatalf("error = %v, want INVALID_CONFIGURATION", err)
	}
}
