// Package error provides the structured error type shared by every guardian
// package.
//
// Package: error
// Title: Structured Errors
// Description: Errors carry a code, a severity, free-form details, the failing
//              operation and an optional cause. The validation engine uses the
//              codes to separate setup misuse (INVALID_CONFIGURATION,
//              INVALID_ARGUMENT) from mechanics failures (VALIDATION_FAILED).
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with contextual errors and codes
// - 2026-10-19 v0.2.0: Chain-aware HasCode/GetCode, validation engine codes
//
// Usage:
//
//	err := mdwerror.New("parameter index out of range").
//		WithCode(mdwerror.CodeInvalidConfiguration).
//		WithOperation("metadata.AddMethodParameterChecks").
//		WithDetail("index", 3)
//
//	if mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration) {
//		// setup misuse
//	}
package error
