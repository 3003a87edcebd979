// Package config loads TOML and YAML configuration files.
//
// Package: config
// Title: Configuration
// Description: Dotted-key access (guard.activated, validator.locale) to a
//              configuration tree read from TOML or YAML, with environment
//              overrides under a prefix (GUARDIAN_GUARD_ACTIVATED=false) and
//              load-time validation rules.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial implementation
// - 2026-10-19 v0.2.0: Trimmed for guardian settings
package config
