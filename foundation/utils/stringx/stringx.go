// File: stringx.go
// Title: String Utility Functions
// Description: Small string helpers shared by the message renderer, the
//              expression lexer and the CLI report.
// Author: msto63
// Version: v0.3.0
// Created: 2025-01-24
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation with core utilities
// - 2026-10-19 v0.3.0: Reduced to blank checks, truncation and placeholder
//                       substitution

// Package stringx provides string helpers missing from the standard library.
package stringx

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsBlank returns true if the string is empty or contains only whitespace.
func IsBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// IsNotBlank is the inverse of IsBlank.
func IsNotBlank(s string) bool {
	return !IsBlank(s)
}

// FirstNonBlank returns the first argument that is not blank.
func FirstNonBlank(values ...string) string {
	for _, s := range values {
		if IsNotBlank(s) {
			return s
		}
	}
	return ""
}

// Truncate shortens s to maxLen runes including the ellipsis.
func Truncate(s string, maxLen int, ellipsis string) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	ellipsisLen := utf8.RuneCountInString(ellipsis)
	if ellipsisLen >= maxLen {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-ellipsisLen]) + ellipsis
}

// ContainsIgnoreCase reports whether substr is within s, ignoring case.
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ReplacePlaceholders substitutes every {name} in template with vars[name].
// Placeholders without a value are left untouched.
func ReplacePlaceholders(template string, vars map[string]string) string {
	if len(vars) == 0 || strings.IndexByte(template, '{') == -1 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		open := strings.IndexByte(template[i:], '{')
		if open == -1 {
			b.WriteString(template[i:])
			break
		}
		open += i
		end := strings.IndexByte(template[open+1:], '}')
		if end == -1 {
			b.WriteString(template[i:])
			break
		}
		end += open + 1

		b.WriteString(template[i:open])
		name := template[open+1 : end]
		if value, ok := vars[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(template[open : end+1])
		}
		i = end + 1
	}
	return b.String()
}
