// Package log provides structured logging for guardian components.
//
// Package: log
// Title: Structured Logging
// Description: Levelled key-value logging with JSON, text, console and logfmt
//              output. Loggers are immutable: With* calls return a derived
//              logger, so engine components add their own "component" field
//              without touching the logger they were given.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with structured logging and error integration
// - 2026-10-19 v0.2.0: Trimmed for the validation engine
//
// Usage:
//
//	logger := mdwlog.NewWithConfig(mdwlog.Config{Level: mdwlog.LevelDebug, Format: mdwlog.FormatText}).
//		WithField("component", "validator")
//	logger.Debug("check not satisfied", mdwlog.Fields{"check": "NotNull", "context": "Person.Name"})
package log
