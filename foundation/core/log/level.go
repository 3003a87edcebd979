// File: level.go
// Title: Log Level Definitions
// Description: Log levels of the validation engine. Per-check detail goes to
//              trace/debug, listener and adapter failures to warn/error.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with standard log levels
// - 2026-10-19 v0.2.0: Level table replaces per-attribute switches, no fatal/audit

package log

import (
	"strings"
)

// Level represents the importance level of a log message
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	// LevelOff disables all output
	LevelOff
)

type levelInfo struct {
	name    string
	short   string
	color   string
	aliases []string
}

var levels = [...]levelInfo{
	LevelTrace: {"trace", "TRC", "\033[37m", []string{"trc"}},
	LevelDebug: {"debug", "DBG", "\033[36m", []string{"dbg"}},
	LevelInfo:  {"info", "INF", "\033[32m", []string{"inf", "information"}},
	LevelWarn:  {"warn", "WRN", "\033[33m", []string{"wrn", "warning"}},
	LevelError: {"error", "ERR", "\033[31m", []string{"err"}},
	LevelOff:   {"off", "OFF", "\033[0m", []string{"none"}},
}

func (l Level) info() (levelInfo, bool) {
	if l < LevelTrace || l > LevelOff {
		return levelInfo{name: "unknown", short: "???", color: "\033[0m"}, false
	}
	return levels[l], true
}

// String returns the string representation of the log level
func (l Level) String() string {
	i, _ := l.info()
	return i.name
}

// ShortString returns the three-letter tag used by the text formatter
func (l Level) ShortString() string {
	i, _ := l.info()
	return i.short
}

// Color returns the ANSI color code for console output
func (l Level) Color() string {
	i, _ := l.info()
	return i.color
}

// ShouldLog reports whether a message at l passes minLevel
func (l Level) ShouldLog(minLevel Level) bool {
	return l != LevelOff && l >= minLevel
}

// ParseLevel parses a level name or one of its aliases
func ParseLevel(level string) (Level, error) {
	s := strings.ToLower(strings.TrimSpace(level))
	for l, i := range levels {
		if s == i.name {
			return Level(l), nil
		}
		for _, alias := range i.aliases {
			if s == alias {
				return Level(l), nil
			}
		}
	}
	return LevelInfo, &ParseError{Input: level, Type: "level"}
}

// ParseError reports an unknown level or format name
type ParseError struct {
	Input string
	Type  string
}

func (e *ParseError) Error() string {
	return "invalid " + e.Type + ": " + e.Input
}
