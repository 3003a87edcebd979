// File: timer.go
// Title: Performance Timer
// Description: Measures operation durations and logs them on completion. The
//              validator times every cycle; cycles slower than the threshold
//              are promoted to warn.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with performance timing
// - 2026-10-19 v0.2.0: Duration on the entry, slow threshold, trace default

package log

import (
	"time"
)

// Timer measures one operation. It logs once, on the first Stop or
// StopWithError.
type Timer struct {
	logger    *Logger
	operation string
	start     time.Time
	fields    Fields
	level     Level
	slow      time.Duration
	stopped   bool
}

// NewTimer starts a timer for operation
func NewTimer(logger *Logger, operation string) *Timer {
	return &Timer{
		logger:    logger,
		operation: operation,
		start:     time.Now(),
		fields:    make(Fields),
		level:     LevelTrace,
	}
}

// WithLevel sets the level of the completion message
func (t *Timer) WithLevel(level Level) *Timer {
	t.level = level
	return t
}

// WithSlowThreshold logs completions that took longer than d at warn.
// Zero disables the promotion.
func (t *Timer) WithSlowThreshold(d time.Duration) *Timer {
	t.slow = d
	return t
}

// WithField adds a field to the completion message
func (t *Timer) WithField(key string, value interface{}) *Timer {
	t.fields[key] = value
	return t
}

// Elapsed returns the time since the timer was started
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop logs the elapsed time. A stopped timer returns 0.
func (t *Timer) Stop() time.Duration {
	return t.finish(nil)
}

// StopWithError logs a failure with the elapsed time
func (t *Timer) StopWithError(err error) time.Duration {
	return t.finish(err)
}

func (t *Timer) finish(err error) time.Duration {
	if t.stopped {
		return 0
	}
	t.stopped = true
	elapsed := t.Elapsed()
	if t.logger == nil {
		return elapsed
	}

	level, msg := t.level, t.operation+" completed"
	switch {
	case err != nil:
		level, msg = LevelError, t.operation+" failed"
	case t.slow > 0 && elapsed > t.slow:
		level, msg = LevelWarn, t.operation+" slow"
	}
	if !level.ShouldLog(t.logger.level) {
		return elapsed
	}
	entry := t.logger.entry(level, msg, err, []Fields{t.fields, {"operation": t.operation}})
	entry.Duration = elapsed
	t.logger.write(entry)
	return elapsed
}
