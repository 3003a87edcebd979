// File: codes.go
// Title: Error Code Definitions
// Description: Defines the error codes used by the guardian validation engine
//              and its adapters. Codes classify failures for callers, logs and
//              transport mappings (gRPC status, CLI exit codes).
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with core error codes
// - 2026-10-19 v0.2.0: Reduced to validation engine codes, added gRPC mapping

package error

import "google.golang.org/grpc/codes"

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown  Code = "UNKNOWN"
	CodeInternal Code = "INTERNAL"
	CodeNotFound Code = "NOT_FOUND"

	// Setup and argument contracts
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	CodeConfigError          Code = "CONFIG_ERROR"

	// Validation mechanics
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeConstraintsViolated  Code = "CONSTRAINTS_VIOLATED"
	CodeExpressionEvaluation Code = "EXPRESSION_EVALUATION"
	CodeExpressionSyntax     Code = "EXPRESSION_SYNTAX"
	CodeReflectionFailed     Code = "REFLECTION_FAILED"
	CodeInvalidSequence      Code = "INVALID_SEQUENCE"

	// Adapters
	CodeStorageError Code = "STORAGE_ERROR"
	CodePublishError Code = "PUBLISH_ERROR"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsValid checks if the error code is a known valid code
func (c Code) IsValid() bool {
	switch c {
	case CodeUnknown, CodeInternal, CodeNotFound,
		CodeInvalidArgument, CodeInvalidConfiguration, CodeConfigError,
		CodeValidationFailed, CodeConstraintsViolated, CodeExpressionEvaluation,
		CodeExpressionSyntax, CodeReflectionFailed, CodeInvalidSequence,
		CodeStorageError, CodePublishError:
		return true
	default:
		return false
	}
}

// Category returns the high-level category of the error code
func (c Code) Category() string {
	switch c {
	case CodeInvalidArgument, CodeInvalidConfiguration, CodeConfigError:
		return "configuration"
	case CodeValidationFailed, CodeConstraintsViolated, CodeReflectionFailed, CodeInvalidSequence:
		return "validation"
	case CodeExpressionEvaluation, CodeExpressionSyntax:
		return "expression"
	case CodeStorageError, CodePublishError:
		return "adapter"
	default:
		return "generic"
	}
}

// GRPCCode maps the error code onto a gRPC status code
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeConstraintsViolated, CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeNotFound:
		return codes.NotFound
	case CodeInvalidSequence:
		return codes.FailedPrecondition
	case CodeStorageError, CodePublishError:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
