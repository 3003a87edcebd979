// File: logger_test.go
// Title: Logger Tests
// Description: Tests for level filtering, immutable derivation, formatters and
//              severity-driven error logging.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation
// - 2026-10-19 v0.2.0: Adapted to the trimmed logger

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithConfig(Config{Level: level, Format: format, Output: buf}), buf
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		min     Level
		logFn   func(l *Logger)
		wantOut bool
	}{
		{"debug below info", LevelInfo, func(l *Logger) { l.Debug("x") }, false},
		{"info at info", LevelInfo, func(l *Logger) { l.Info("x") }, true},
		{"warn above info", LevelInfo, func(l *Logger) { l.Warn("x") }, true},
		{"trace at trace", LevelTrace, func(l *Logger) { l.Trace("x") }, true},
		{"error when off", LevelOff, func(l *Logger) { l.Error("x") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(tt.min, FormatText)
			tt.logFn(logger)
			if got := buf.Len() > 0; got != tt.wantOut {
				t.Errorf("output written = %v, want %v", got, tt.wantOut)
			}
		})
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	parent, buf := newBufferLogger(LevelInfo, FormatJSON)
	child := parent.WithField("component", "guard")

	parent.Info("from parent")
	child.Info("from child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first, second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := first["component"]; ok {
		t.Error("parent logger picked up child field")
	}
	if second["component"] != "guard" {
		t.Errorf("component = %v, want guard", second["component"])
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatText)
	logger.WithCorrelationID("c-1").Info("checked", Fields{"b": 2, "a": 1})

	out := buf.String()
	if !strings.Contains(out, "[a=1 b=2]") {
		t.Errorf("fields not sorted: %q", out)
	}
	if !strings.Contains(out, "(cid=c-1)") {
		t.Errorf("correlation id missing: %q", out)
	}
}

func TestLogfmtFormatter(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatLogfmt)
	logger.WithName("validator").Info("done", Fields{"check": "NotNull"})

	out := buf.String()
	for _, want := range []string{"level=info", `message="done"`, "logger=validator", `check="NotNull"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogErrorUsesSeverity(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"low severity", mdwerror.New("x").WithCode(mdwerror.CodeNotFound), "info"},
		{"medium severity", mdwerror.New("x").WithCode(mdwerror.CodeConstraintsViolated), "warn"},
		{"high severity", mdwerror.New("x").WithCode(mdwerror.CodeValidationFailed), "error"},
		{"plain error", errors.New("x"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(LevelTrace, FormatJSON)
			logger.LogError(tt.err)

			var decoded map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("invalid JSON %q: %v", buf.String(), err)
			}
			if decoded["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %v", decoded["level"], tt.wantLevel)
			}
		})
	}
}

func TestTimerStop(t *testing.T) {
	logger, buf := newBufferLogger(LevelTrace, FormatText)
	timer := logger.StartTimer("validate")
	if d := timer.Stop(); d < 0 {
		t.Errorf("Stop() = %v, want >= 0", d)
	}
	if d := timer.Stop(); d != 0 {
		t.Errorf("second Stop() = %v, want 0", d)
	}
	if !strings.Contains(buf.String(), "validate completed") {
		t.Errorf("timer output missing: %q", buf.String())
	}
}

func TestTimerThresholdAndError(t *testing.T) {
	tests := []struct {
		name  string
		min   Level
		stop  func(*Timer)
		want  string
		quiet bool
	}{
		{"slow promoted to warn", LevelWarn, func(tm *Timer) { tm.WithSlowThreshold(time.Nanosecond); time.Sleep(time.Millisecond); tm.Stop() }, "cycle slow", false},
		{"fast stays at trace", LevelWarn, func(tm *Timer) { tm.WithSlowThreshold(time.Hour); tm.Stop() }, "", true},
		{"error logged", LevelInfo, func(tm *Timer) { tm.StopWithError(errors.New("boom")) }, "cycle failed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(tt.min, FormatText)
			tt.stop(logger.StartTimer("cycle").WithField("type", "Order"))
			if tt.quiet {
				if buf.Len() != 0 {
					t.Errorf("unexpected output: %q", buf.String())
				}
				return
			}
			out := buf.String()
			if !strings.Contains(out, tt.want) || !strings.Contains(out, "type=Order") || !strings.Contains(out, "duration=") {
				t.Errorf("output = %q, want %q with fields and duration", out, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" WARNING ", LevelWarn, false},
		{"off", LevelOff, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
