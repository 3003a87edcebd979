// File: locale.go
// Title: Locale Detection and Normalization
// Description: Parses Accept-Language style headers and normalizes locale
//              identifiers so that callers can select a message bundle.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial implementation
// - 2026-10-19 v0.2.0: Trimmed to detection helpers used by transports

package i18n

import (
	"sort"
	"strconv"
	"strings"
)

type weightedLocale struct {
	locale string
	q      float64
}

// DetectLocale picks the best locale from an Accept-Language value among
// the available ones. It returns fallback when nothing matches.
func DetectLocale(acceptLanguage string, available []string, fallback string) string {
	for _, wl := range parseAcceptLanguage(acceptLanguage) {
		if match := findBestLocaleMatch(wl.locale, available); match != "" {
			return match
		}
	}
	return fallback
}

func parseAcceptLanguage(header string) []weightedLocale {
	var out []weightedLocale
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q := 1.0
		if i := strings.Index(part, ";"); i >= 0 {
			params := part[i+1:]
			part = strings.TrimSpace(part[:i])
			if strings.HasPrefix(strings.TrimSpace(params), "q=") {
				if v, err := strconv.ParseFloat(strings.TrimSpace(params)[2:], 64); err == nil {
					q = v
				}
			}
		}
		if part == "*" || q <= 0 {
			continue
		}
		out = append(out, weightedLocale{locale: NormalizeLocale(part), q: q})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].q > out[j].q })
	return out
}

func findBestLocaleMatch(locale string, available []string) string {
	for _, a := range available {
		if NormalizeLocale(a) == locale {
			return a
		}
	}
	base := locale
	if i := strings.IndexByte(locale, '-'); i > 0 {
		base = locale[:i]
	}
	for _, a := range available {
		if NormalizeLocale(a) == base {
			return a
		}
	}
	for _, a := range available {
		if strings.HasPrefix(NormalizeLocale(a), base+"-") {
			return a
		}
	}
	return ""
}

// NormalizeLocale converts identifiers like "de_DE" or "EN-us" into "de-DE"
// and "en-US".
func NormalizeLocale(locale string) string {
	locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	parts := strings.Split(locale, "-")
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i])
	}
	return strings.Join(parts, "-")
}
