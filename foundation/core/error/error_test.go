// File: error_test.go
// Title: Error Module Tests
// Description: Tests for error creation, wrapping, code lookup across chains
//              and JSON marshalling.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with comprehensive test coverage
// - 2026-10-19 v0.2.0: Chain-aware code lookup tests

package error

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	msg := "test error message"
	err := New(msg)

	if err.Error() != msg {
		t.Errorf("Error() = %q, want %q", err.Error(), msg)
	}
	if err.Code() != CodeUnknown {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeUnknown)
	}
	if err.Severity() != SeverityMedium {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityMedium)
	}
	if err.Timestamp().IsZero() {
		t.Error("Timestamp() should not be zero")
	}
	if len(err.StackTrace()) == 0 {
		t.Error("StackTrace() should not be empty")
	}
	if !strings.Contains(err.StackTrace()[0].Function, "TestNew") {
		t.Errorf("first frame = %q, want caller", err.StackTrace()[0].Function)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		wantNil  bool
		wantMsg  string
		wantCode Code
	}{
		{
			name:    "wrap nil error",
			err:     nil,
			message: "wrapper",
			wantNil: true,
		},
		{
			name:     "wrap standard error",
			err:      errors.New("original"),
			message:  "wrapper",
			wantMsg:  "wrapper: original",
			wantCode: CodeUnknown,
		},
		{
			name:     "wrap structured error keeps code",
			err:      New("bad index").WithCode(CodeInvalidConfiguration),
			message:  "wrapper",
			wantMsg:  "wrapper: bad index",
			wantCode: CodeInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.err, tt.message)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Wrap() = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
			if got.Code() != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got.Code(), tt.wantCode)
			}
			if !errors.Is(got, tt.err) {
				t.Error("errors.Is should find the wrapped error")
			}
		})
	}
}

func TestWrapChainTruncation(t *testing.T) {
	var err error = New("root").WithCode(CodeExpressionEvaluation)
	for i := 0; i < MaxErrorChainDepth+2; i++ {
		err = Wrap(err, fmt.Sprintf("level %d", i))
	}

	mdwErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if chainDepth(mdwErr) > MaxErrorChainDepth {
		t.Errorf("chain depth = %d, want <= %d", chainDepth(mdwErr), MaxErrorChainDepth)
	}
	if !strings.Contains(mdwErr.Error(), "root") {
		t.Errorf("truncated error should mention the root cause, got %q", mdwErr.Error())
	}
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := New("unknown identifier").WithCode(CodeExpressionEvaluation)
	outer := Wrap(inner, "when expression failed").WithCode(CodeValidationFailed)
	wrappedStd := fmt.Errorf("guard: %w", outer)

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"outer code", outer, CodeValidationFailed, true},
		{"inner code", outer, CodeExpressionEvaluation, true},
		{"through fmt wrapping", wrappedStd, CodeExpressionEvaluation, true},
		{"absent code", outer, CodeInvalidArgument, false},
		{"plain error", errors.New("x"), CodeUnknown, false},
		{"nil error", nil, CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := GetCode(wrappedStd); got != CodeValidationFailed {
		t.Errorf("GetCode() = %v, want %v", got, CodeValidationFailed)
	}
}

func TestWithCodeSetsSeverity(t *testing.T) {
	err := New("x").WithCode(CodeValidationFailed)
	if err.Severity() != SeverityHigh {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityHigh)
	}

	explicit := New("x").WithSeverity(SeverityLow).WithCode(CodeValidationFailed)
	if explicit.Severity() != SeverityLow {
		t.Errorf("explicit severity was overridden: %v", explicit.Severity())
	}
	medium := New("x").WithSeverity(SeverityMedium).WithCode(CodeInternal)
	if medium.Severity() != SeverityMedium {
		t.Errorf("pinned medium severity was overridden: %v", medium.Severity())
	}
	if got := GetSeverityFromCode(CodePublishError); got != SeverityMedium {
		t.Errorf("GetSeverityFromCode(PUBLISH_ERROR) = %v, want medium", got)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := Wrap(errors.New("dial tcp: refused"), "journal unavailable").
		WithCode(CodeStorageError).
		WithOperation("journal.Record").
		WithDetail("path", "violations.db")

	data, mErr := json.Marshal(err)
	if mErr != nil {
		t.Fatalf("Marshal() error = %v", mErr)
	}

	var decoded map[string]interface{}
	if uErr := json.Unmarshal(data, &decoded); uErr != nil {
		t.Fatalf("Unmarshal() error = %v", uErr)
	}

	if decoded["code"] != string(CodeStorageError) {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["operation"] != "journal.Record" {
		t.Errorf("operation = %v", decoded["operation"])
	}
	if decoded["cause"] != "dial tcp: refused" {
		t.Errorf("cause = %v", decoded["cause"])
	}
}

func TestCodeCategory(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeInvalidConfiguration, "configuration"},
		{CodeConstraintsViolated, "validation"},
		{CodeExpressionSyntax, "expression"},
		{CodePublishError, "adapter"},
		{CodeUnknown, "generic"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
			if !tt.code.IsValid() {
				t.Errorf("IsValid() = false for %v", tt.code)
			}
		})
	}

	if Code("NOPE").IsValid() {
		t.Error("unknown code should not be valid")
	}
}
