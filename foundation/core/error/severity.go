// File: severity.go
// Title: Error Severity Levels
// Description: Severity levels derived from error codes. The logger picks the
//              level of LogError from it and alerting hooks use ShouldAlert.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with severity levels
// - 2026-10-19 v0.2.0: Code table for the validation engine codes

package error

// Severity ranks errors for logging and alerting
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	// SeverityCritical marks failures of the engine itself
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return "unknown"
	}
	return severityNames[s]
}

// ShouldAlert reports whether s warrants an alert
func (s Severity) ShouldAlert() bool {
	return s >= SeverityHigh
}

// codeSeverity lists codes that differ from SeverityMedium
var codeSeverity = map[Code]Severity{
	CodeInternal:             SeverityCritical,
	CodeValidationFailed:     SeverityHigh,
	CodeInvalidConfiguration: SeverityHigh,
	CodeReflectionFailed:     SeverityHigh,
	CodeStorageError:         SeverityHigh,
	CodeNotFound:             SeverityLow,
}

// GetSeverityFromCode returns the default severity of code
func GetSeverityFromCode(code Code) Severity {
	if s, ok := codeSeverity[code]; ok {
		return s
	}
	return SeverityMedium
}
