// File: i18n.go
// Title: Message Bundles for Constraint Violations
// Description: Manages localized message templates used when rendering
//              constraint violations. Bundles are loaded from embedded
//              defaults and optionally from a directory of TOML or YAML
//              files. Nested tables are flattened to dotted keys.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial implementation with TOML/YAML bundles
// - 2026-10-19 v0.2.0: Embedded default bundles, flattened keys, Render

package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwstringx "github.com/msto63/guardian/foundation/utils/stringx"
)

//go:embed locales/*.toml
var embeddedLocales embed.FS

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en"

// Format selects the file format of locale files.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Options configures a Manager.
type Options struct {
	DefaultLocale string
	// LocalesDir optionally points to a directory of <locale>.toml or
	// <locale>.yaml files. Entries override the embedded defaults.
	LocalesDir string
	Format     Format
	// SkipEmbedded disables the built-in bundles.
	SkipEmbedded bool
}

// Manager resolves message keys for the active locale.
type Manager struct {
	mu            sync.RWMutex
	bundles       map[string]map[string]string
	locale        string
	defaultLocale string
}

// New creates a Manager with the given options.
func New(opts Options) (*Manager, error) {
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = DefaultLocale
	}
	if opts.Format == "" {
		opts.Format = FormatTOML
	}
	m := &Manager{
		bundles:       make(map[string]map[string]string),
		locale:        NormalizeLocale(opts.DefaultLocale),
		defaultLocale: NormalizeLocale(opts.DefaultLocale),
	}

	if !opts.SkipEmbedded {
		if err := m.loadFS(embeddedLocales, "locales", FormatTOML); err != nil {
			return nil, err
		}
	}
	if opts.LocalesDir != "" {
		if err := m.loadFS(os.DirFS(opts.LocalesDir), ".", opts.Format); err != nil {
			return nil, mdwerror.Wrap(err, "failed to load locales directory").
				WithCode(mdwerror.CodeConfigError).
				WithDetail("dir", opts.LocalesDir)
		}
	}
	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns a process-wide Manager backed by the embedded bundles.
func Default() *Manager {
	defaultOnce.Do(func() {
		m, err := New(Options{})
		if err != nil {
			m = &Manager{bundles: map[string]map[string]string{}, locale: DefaultLocale, defaultLocale: DefaultLocale}
		}
		defaultManager = m
	})
	return defaultManager
}

func (m *Manager) loadFS(fsys fs.FS, dir string, format Format) error {
	ext := "." + string(format)
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return mdwerror.Wrap(err, "failed to read locale directory").WithCode(mdwerror.CodeConfigError)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, name)))
		if err != nil {
			return mdwerror.Wrap(err, "failed to read locale file").
				WithCode(mdwerror.CodeConfigError).
				WithDetail("file", name)
		}
		if err := m.LoadBundle(strings.TrimSuffix(name, ext), data, format); err != nil {
			return err
		}
	}
	return nil
}

// LoadBundle parses data and merges its messages into the bundle of locale.
func (m *Manager) LoadBundle(locale string, data []byte, format Format) error {
	var raw map[string]any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = toml.Unmarshal(data, &raw)
	}
	if err != nil {
		return mdwerror.Wrap(err, "failed to parse locale bundle").
			WithCode(mdwerror.CodeConfigError).
			WithDetail("locale", locale)
	}

	flat := make(map[string]string)
	flatten("", raw, flat)

	locale = NormalizeLocale(locale)
	m.mu.Lock()
	defer m.mu.Unlock()
	bundle, ok := m.bundles[locale]
	if !ok {
		bundle = make(map[string]string, len(flat))
		m.bundles[locale] = bundle
	}
	for k, v := range flat {
		bundle[k] = v
	}
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// SetLocale switches the active locale. Unknown locales are rejected.
func (m *Manager) SetLocale(locale string) error {
	locale = NormalizeLocale(locale)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bundles[locale]; !ok {
		return mdwerror.New("locale not available").
			WithCode(mdwerror.CodeInvalidArgument).
			WithDetail("locale", locale)
	}
	m.locale = locale
	return nil
}

// Locale returns the active locale.
func (m *Manager) Locale() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locale
}

// AvailableLocales returns the loaded locales in sorted order.
func (m *Manager) AvailableLocales() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.bundles))
	for l := range m.bundles {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Message resolves key in the active locale, falling back to the default
// locale.
func (m *Manager) Message(key string) (string, bool) {
	return m.MessageFor(m.Locale(), key)
}

// MessageFor resolves key for a specific locale. A regional locale such as
// de-AT falls back to its base language before the default locale.
func (m *Manager) MessageFor(locale, key string) (string, bool) {
	locale = NormalizeLocale(locale)
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := []string{locale}
	if i := strings.IndexByte(locale, '-'); i > 0 {
		candidates = append(candidates, locale[:i])
	}
	candidates = append(candidates, m.defaultLocale)

	for _, l := range candidates {
		if msg, ok := m.bundles[l][key]; ok {
			return msg, true
		}
	}
	return "", false
}

// HasMessage reports whether key resolves in the active locale.
func (m *Manager) HasMessage(key string) bool {
	_, ok := m.Message(key)
	return ok
}

// Render resolves key and substitutes {name} placeholders from vars. When the
// key is unknown the key itself is used as the template.
func (m *Manager) Render(key string, vars map[string]string) string {
	tmpl, ok := m.Message(key)
	if !ok {
		tmpl = key
	}
	return mdwstringx.ReplacePlaceholders(tmpl, vars)
}
