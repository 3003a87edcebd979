// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     checks
// Description: Named check factories for declarative configuration
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package checks

import (
	"reflect"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/constraint"
)

// Options are the untyped parameters of a check as read from a rule file
type Options map[string]interface{}

// Factory creates a check from options
type Factory func(r *Registry, opts Options) (constraint.Check, error)

// ExclusionFactory creates a check exclusion from options
type ExclusionFactory func(r *Registry, opts Options) (constraint.CheckExclusion, error)

// TypeResolver maps a registered type name to its type
type TypeResolver func(name string) (reflect.Type, bool)

// Registry maps check names to factories. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	checks     map[string]Factory
	exclusions map[string]ExclusionFactory
	simple     map[string]SimpleCheck
	types      TypeResolver
}

// commonOptions are understood by every check
type commonOptions struct {
	Message   string   `yaml:"message"`
	ErrorCode string   `yaml:"errorCode"`
	Severity  int      `yaml:"severity"`
	Profiles  []string `yaml:"profiles"`
	When      string   `yaml:"when"`
	Target    string   `yaml:"target"`
	AppliesTo []string `yaml:"appliesTo"`
}

// NewRegistry creates a registry holding the built-in checks
func NewRegistry() *Registry {
	r := &Registry{
		checks:     make(map[string]Factory),
		exclusions: make(map[string]ExclusionFactory),
		simple:     make(map[string]SimpleCheck),
	}
	for name, f := range builtinFactories {
		r.checks[name] = f
	}
	r.exclusions["Nullable"] = func(_ *Registry, opts Options) (constraint.CheckExclusion, error) {
		var p struct {
			Profiles []string `yaml:"profiles"`
			When     string   `yaml:"when"`
		}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		e := NewNullable()
		e.SetProfiles(p.Profiles...)
		e.SetWhen(p.When)
		return e, nil
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds or replaces a check factory
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return constraint.InvalidArgument("check name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = f
	return nil
}

// RegisterExclusion adds or replaces an exclusion factory
func (r *Registry) RegisterExclusion(name string, f ExclusionFactory) error {
	if name == "" || f == nil {
		return constraint.InvalidArgument("exclusion name and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exclusions[name] = f
	return nil
}

// RegisterSimpleCheck makes sc available to CheckWith rules under name
func (r *Registry) RegisterSimpleCheck(name string, sc SimpleCheck) error {
	if name == "" || sc == nil {
		return constraint.InvalidArgument("simple check name and implementation are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simple[name] = sc
	return nil
}

// SetTypeResolver sets the lookup used for type names in options
func (r *Registry) SetTypeResolver(resolver TypeResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = resolver
}

// Names lists the registered check names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the check registered under name and applies the common
// options
func (r *Registry) Create(name string, opts Options) (constraint.Check, error) {
	r.mu.RLock()
	f, ok := r.checks[name]
	r.mu.RUnlock()
	if !ok {
		return nil, constraint.InvalidConfiguration("unknown check", map[string]interface{}{"check": name})
	}

	c, err := f(r, opts)
	if err != nil {
		return nil, wrapOptionsError(err, name)
	}

	var common commonOptions
	if err := decodeOptions(opts, &common); err != nil {
		return nil, wrapOptionsError(err, name)
	}
	if common.Message != "" {
		c.SetMessage(common.Message)
	}
	if common.ErrorCode != "" {
		c.SetErrorCode(common.ErrorCode)
	}
	if common.Severity != 0 {
		c.SetSeverity(common.Severity)
	}
	if len(common.Profiles) > 0 {
		c.SetProfiles(common.Profiles...)
	}
	c.SetWhen(common.When)
	c.SetTarget(common.Target)
	if len(common.AppliesTo) > 0 {
		targets := make([]constraint.Target, len(common.AppliesTo))
		for i, s := range common.AppliesTo {
			t, err := constraint.ParseTarget(s)
			if err != nil {
				return nil, constraint.InvalidConfiguration(err.Error(), map[string]interface{}{"check": name})
			}
			targets[i] = t
		}
		c.SetAppliesTo(targets...)
	}
	return c, nil
}

// CreateExclusion builds the exclusion registered under name
func (r *Registry) CreateExclusion(name string, opts Options) (constraint.CheckExclusion, error) {
	r.mu.RLock()
	f, ok := r.exclusions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, constraint.InvalidConfiguration("unknown check exclusion", map[string]interface{}{"exclusion": name})
	}
	e, err := f(r, opts)
	if err != nil {
		return nil, wrapOptionsError(err, name)
	}
	return e, nil
}

func (r *Registry) simpleCheck(name string) (SimpleCheck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.simple[name]
	return sc, ok
}

func (r *Registry) resolveType(name string) (reflect.Type, bool) {
	r.mu.RLock()
	resolver := r.types
	r.mu.RUnlock()
	if resolver == nil {
		return nil, false
	}
	return resolver(name)
}

// decodeOptions maps untyped options onto a parameter struct with yaml tags
func decodeOptions(opts Options, out interface{}) error {
	if len(opts) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]interface{}(opts))
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func wrapOptionsError(err error, name string) error {
	if mdwerror.GetCode(err) != mdwerror.CodeUnknown {
		return err
	}
	return mdwerror.Wrap(err, "invalid check options").
		WithCode(mdwerror.CodeInvalidConfiguration).
		WithSeverity(mdwerror.SeverityHigh).
		WithDetail("check", name)
}

func noOptions(create func() constraint.Check) Factory {
	return func(*Registry, Options) (constraint.Check, error) {
		return create(), nil
	}
}

var builtinFactories = map[string]Factory{
	"NotNull":     noOptions(func() constraint.Check { return NewNotNull() }),
	"NotEmpty":    noOptions(func() constraint.Check { return NewNotEmpty() }),
	"NotBlank":    noOptions(func() constraint.Check { return NewNotBlank() }),
	"AssertValid": noOptions(func() constraint.Check { return NewAssertValid() }),

	"Min": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Value     float64 `yaml:"value"`
			Inclusive *bool   `yaml:"inclusive"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		c := NewMin(p.Value)
		if p.Inclusive != nil {
			c.SetInclusive(*p.Inclusive)
		}
		return c, nil
	},
	"Max": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Value     float64 `yaml:"value"`
			Inclusive *bool   `yaml:"inclusive"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		c := NewMax(p.Value)
		if p.Inclusive != nil {
			c.SetInclusive(*p.Inclusive)
		}
		return c, nil
	},
	"Range": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Min float64 `yaml:"min"`
			Max float64 `yaml:"max"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		return NewRange(p.Min, p.Max), nil
	},
	"Length": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Min int `yaml:"min"`
			Max int `yaml:"max"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		return NewLength(p.Min, p.Max), nil
	},
	"MinLength": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Value int `yaml:"value"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		return NewMinLength(p.Value), nil
	},
	"MaxLength": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Value int `yaml:"value"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		return NewMaxLength(p.Value), nil
	},
	"MatchPattern": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Pattern  string   `yaml:"pattern"`
			Patterns []string `yaml:"patterns"`
			MatchAll *bool    `yaml:"matchAll"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		patterns := p.Patterns
		if p.Pattern != "" {
			patterns = append([]string{p.Pattern}, patterns...)
		}
		if len(patterns) == 0 {
			return nil, constraint.InvalidConfiguration("MatchPattern requires a pattern", nil)
		}
		c, err := NewMatchPattern(patterns...)
		if err != nil {
			return nil, err
		}
		if p.MatchAll != nil {
			c.SetMatchAll(*p.MatchAll)
		}
		return c, nil
	},
	"MemberOf": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Members    []string `yaml:"members"`
			IgnoreCase bool     `yaml:"ignoreCase"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		c := NewMemberOf(p.Members...)
		c.SetIgnoreCase(p.IgnoreCase)
		return c, nil
	},
	"NotMemberOf": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Members    []string `yaml:"members"`
			IgnoreCase bool     `yaml:"ignoreCase"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		c := NewNotMemberOf(p.Members...)
		c.SetIgnoreCase(p.IgnoreCase)
		return c, nil
	},
	"HasSubstring": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Value      string `yaml:"value"`
			IgnoreCase bool   `yaml:"ignoreCase"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		c := NewHasSubstring(p.Value)
		c.SetIgnoreCase(p.IgnoreCase)
		return c, nil
	},
	"AssertURL": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			PermittedSchemes []string `yaml:"permittedSchemes"`
			Connect          bool     `yaml:"connect"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		c := NewAssertURL()
		if len(p.PermittedSchemes) > 0 {
			c.SetPermittedSchemes(p.PermittedSchemes...)
		}
		c.SetConnect(p.Connect)
		return c, nil
	},
	"CheckWith": func(r *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Check        string `yaml:"simpleCheck"`
			IgnoreIfNull bool   `yaml:"ignoreIfNull"`
		}{IgnoreIfNull: true}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		sc, ok := r.simpleCheck(p.Check)
		if !ok {
			return nil, constraint.InvalidConfiguration("unknown simple check", map[string]interface{}{"simpleCheck": p.Check})
		}
		c, err := NewCheckWith(sc)
		if err != nil {
			return nil, err
		}
		c.SetIgnoreIfNull(p.IgnoreIfNull)
		return c, nil
	},
	"Assert": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Expr string `yaml:"expr"`
			Lang string `yaml:"lang"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		if p.Expr == "" {
			return nil, constraint.InvalidConfiguration("Assert requires an expression", nil)
		}
		c := NewAssert(p.Expr)
		c.SetLang(p.Lang)
		return c, nil
	},
	"ValidateWithMethod": func(_ *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Method       string `yaml:"method"`
			IgnoreIfNull bool   `yaml:"ignoreIfNull"`
		}{IgnoreIfNull: true}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		if p.Method == "" {
			return nil, constraint.InvalidConfiguration("ValidateWithMethod requires a method", nil)
		}
		c := NewValidateWithMethod(p.Method)
		c.SetIgnoreIfNull(p.IgnoreIfNull)
		return c, nil
	},
	"AssertFieldConstraints": func(r *Registry, opts Options) (constraint.Check, error) {
		p := struct {
			Field         string `yaml:"field"`
			DeclaringType string `yaml:"declaringType"`
		}{}
		if err := decodeOptions(opts, &p); err != nil {
			return nil, err
		}
		var declaring reflect.Type
		if p.DeclaringType != "" {
			t, ok := r.resolveType(p.DeclaringType)
			if !ok {
				return nil, constraint.InvalidConfiguration("unknown type", map[string]interface{}{"type": p.DeclaringType})
			}
			declaring = t
		}
		return NewAssertFieldConstraints(declaring, p.Field), nil
	},
}
