// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     expression
// Description: Pluggable expression languages and language-tag dispatch
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package expression

import (
	"context"
	"sort"
	"strings"
	"sync"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
)

// Default language identifiers
const (
	LanguageFormula = "formula"
	LanguageJQ      = "jq"
)

// Language evaluates expressions of one syntax. Implementations must be safe
// for concurrent use.
type Language interface {
	// ID is the tag used in "id:" expression prefixes
	ID() string

	// Evaluate evaluates expr with the given variable bindings
	Evaluate(ctx context.Context, expr string, bindings map[string]interface{}) (interface{}, error)
}

// Options configures a Registry
type Options struct {
	// DefaultLanguage is used for expressions without a language prefix
	DefaultLanguage string

	// CacheSize bounds the compiled-program cache of each built-in language
	CacheSize int

	Logger *mdwlog.Logger
}

// Registry dispatches expressions to languages by tag
type Registry struct {
	mu          sync.RWMutex
	languages   map[string]Language
	defaultLang string
	logger      *mdwlog.Logger
}

// NewRegistry creates a registry with the formula and jq languages
// registered.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = LanguageFormula
	}
	r := &Registry{
		languages:   make(map[string]Language),
		defaultLang: strings.ToLower(opts.DefaultLanguage),
		logger:      opts.Logger.WithField("component", "expression"),
	}
	r.languages[LanguageFormula] = NewFormula(FormulaOptions{CacheSize: opts.CacheSize, Logger: opts.Logger})
	r.languages[LanguageJQ] = NewJQ(opts.CacheSize)
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(Options{})
	})
	return defaultRegistry
}

// Register adds or replaces a language
func (r *Registry) Register(lang Language) error {
	if lang == nil || strings.TrimSpace(lang.ID()) == "" {
		return mdwerror.New("language with a non-empty id is required").
			WithCode(mdwerror.CodeInvalidArgument).
			WithOperation("expression.Register")
	}
	r.mu.Lock()
	r.languages[strings.ToLower(lang.ID())] = lang
	r.mu.Unlock()
	r.logger.Debug("Expression language registered", mdwlog.Fields{"language": lang.ID()})
	return nil
}

// Language returns the language registered under id
func (r *Registry) Language(id string) (Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.languages[strings.ToLower(id)]
	return l, ok
}

// Languages returns the registered language ids in sorted order
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.languages))
	for id := range r.languages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultLanguage returns the language used for untagged expressions
func (r *Registry) DefaultLanguage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultLang
}

// SetDefaultLanguage changes the language used for untagged expressions
func (r *Registry) SetDefaultLanguage(id string) error {
	if _, ok := r.Language(id); !ok {
		return mdwerror.New("unknown expression language").
			WithCode(mdwerror.CodeInvalidConfiguration).
			WithDetail("language", id)
	}
	r.mu.Lock()
	r.defaultLang = strings.ToLower(id)
	r.mu.Unlock()
	return nil
}

// Split separates a "lang:" prefix from expr. The prefix is only recognized
// when it names a registered language, so "a:b" style text of the default
// language is left intact. An empty lang means the default language.
func (r *Registry) Split(expr string) (lang, body string) {
	if i := strings.IndexByte(expr, ':'); i > 0 {
		candidate := strings.TrimSpace(expr[:i])
		if _, ok := r.Language(candidate); ok {
			return strings.ToLower(candidate), strings.TrimSpace(expr[i+1:])
		}
	}
	return "", expr
}

// Resolve determines the language and expression body. An explicit lang
// wins over a prefix in expr.
func (r *Registry) Resolve(lang, expr string) (Language, string, error) {
	if lang == "" {
		lang, expr = r.Split(expr)
	}
	if lang == "" {
		lang = r.DefaultLanguage()
	}
	l, ok := r.Language(lang)
	if !ok {
		return nil, expr, mdwerror.New("unknown expression language").
			WithCode(mdwerror.CodeExpressionEvaluation).
			WithOperation("expression.Resolve").
			WithDetail("language", lang).
			WithDetail("expression", expr)
	}
	return l, expr, nil
}

// Evaluate evaluates expr in lang (or the prefix or default language)
func (r *Registry) Evaluate(ctx context.Context, lang, expr string, bindings map[string]interface{}) (interface{}, error) {
	l, body, err := r.Resolve(lang, expr)
	if err != nil {
		return nil, err
	}
	result, err := l.Evaluate(ctx, body, bindings)
	if err != nil {
		if mdwerror.HasCode(err, mdwerror.CodeExpressionEvaluation) || mdwerror.HasCode(err, mdwerror.CodeExpressionSyntax) {
			return nil, err
		}
		return nil, mdwerror.Wrap(err, "expression evaluation failed").
			WithCode(mdwerror.CodeExpressionEvaluation).
			WithOperation("expression.Evaluate").
			WithDetail("language", l.ID()).
			WithDetail("expression", body)
	}
	return result, nil
}

// EvaluateBool evaluates expr and requires a boolean result
func (r *Registry) EvaluateBool(ctx context.Context, lang, expr string, bindings map[string]interface{}) (bool, error) {
	result, err := r.Evaluate(ctx, lang, expr, bindings)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, mdwerror.Newf("expression must evaluate to a boolean, got %T", result).
			WithCode(mdwerror.CodeExpressionEvaluation).
			WithOperation("expression.EvaluateBool").
			WithDetail("expression", expr)
	}
	return b, nil
}
