package metadata

import (
	"reflect"

	"github.com/msto63/guardian/pkg/constraint"
)

// Configurer contributes checks for types on their first lookup. Configure
// is called once per type; it inspects b.Type() and leaves unrelated types
// untouched.
type Configurer interface {
	Configure(b *Builder) error
}

// ConfigurerFunc adapts a function to Configurer
type ConfigurerFunc func(b *Builder) error

func (f ConfigurerFunc) Configure(b *Builder) error { return f(b) }

// Builder mutates an unpublished ClassChecks. Every method validates its
// arguments before changing anything.
type Builder struct {
	cc    *ClassChecks
	names ParameterNameResolver
}

// Type returns the normalized type being configured
func (b *Builder) Type() reflect.Type { return b.cc.typ }

// Checks returns the state built so far
func (b *Builder) Checks() *ClassChecks { return b.cc }

func (b *Builder) configError(msg string, details map[string]interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["type"] = b.cc.typ.String()
	return constraint.InvalidConfiguration(msg, details)
}

func requireChecks(checks []constraint.Check) error {
	if len(checks) == 0 {
		return constraint.InvalidArgument("at least one check is required")
	}
	for _, c := range checks {
		if c == nil {
			return constraint.InvalidArgument("checks must not be nil")
		}
	}
	return nil
}

func (b *Builder) validateField(field string) error {
	if field == "" {
		return constraint.InvalidArgument("field name is required")
	}
	t := b.cc.typ
	if constraint.ImplementsFieldAccessor(t) {
		return nil
	}
	if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
		return nil
	}
	if t.Kind() != reflect.Struct {
		return b.configError("type has no fields", map[string]interface{}{"field": field})
	}
	sf, ok := t.FieldByName(field)
	if !ok {
		return b.configError("unknown field", map[string]interface{}{"field": field})
	}
	if !sf.IsExported() {
		return b.configError("field is not exported", map[string]interface{}{"field": field})
	}
	return nil
}

func (b *Builder) validateMethod(m Method, kinds ...Kind) error {
	if !m.Found() {
		return b.configError("method not found", map[string]interface{}{"method": m.Name})
	}
	if constraint.NormalizeType(m.Declaring) != b.cc.typ {
		return b.configError("method belongs to another type", map[string]interface{}{
			"method":    m.Name,
			"declaring": constraint.TypeName(m.Declaring),
		})
	}
	for _, k := range kinds {
		if m.Kind == k {
			return nil
		}
	}
	return b.configError("unexpected method kind", map[string]interface{}{"method": m.Name, "kind": m.Kind.String()})
}

func (b *Builder) requireGuarded(m Method) error {
	if !b.cc.guarded {
		return b.configError("method checks require a guarded type", map[string]interface{}{"method": m.Name})
	}
	return nil
}

func bindContext(checks []constraint.Check, ctx constraint.Context) {
	for _, c := range checks {
		if c.Context().IsZero() {
			c.SetContext(ctx)
		}
	}
}

func (b *Builder) paramContext(m Method, index int) constraint.Context {
	kind := constraint.ContextMethodParameter
	if m.Kind == KindConstructor {
		kind = constraint.ContextConstructorParameter
	}
	ctx := constraint.Context{Kind: kind, Type: b.cc.typ, Name: m.Name, Index: index}
	if names := ParameterNamesOf(b.names, m); names != nil {
		ctx.Param = names[index]
	}
	return ctx
}

// AddFieldChecks appends checks to a field
func (b *Builder) AddFieldChecks(field string, checks ...constraint.Check) error {
	if err := requireChecks(checks); err != nil {
		return err
	}
	if err := b.validateField(field); err != nil {
		return err
	}
	bindContext(checks, constraint.FieldContext(b.cc.typ, field))
	if _, ok := b.cc.fieldChecks[field]; !ok {
		b.cc.fieldOrder = append(b.cc.fieldOrder, field)
	}
	b.cc.fieldChecks[field] = append(b.cc.fieldChecks[field], checks...)
	return nil
}

// RemoveFieldChecks removes the given checks from a field, or all of its
// checks when none are given
func (b *Builder) RemoveFieldChecks(field string, checks ...constraint.Check) error {
	if field == "" {
		return constraint.InvalidArgument("field name is required")
	}
	current, ok := b.cc.fieldChecks[field]
	if !ok {
		return nil
	}
	var kept []constraint.Check
	if len(checks) > 0 {
		for _, c := range current {
			if !containsCheck(checks, c) {
				kept = append(kept, c)
			}
		}
	}
	if len(kept) > 0 {
		b.cc.fieldChecks[field] = kept
		return nil
	}
	delete(b.cc.fieldChecks, field)
	for i, f := range b.cc.fieldOrder {
		if f == field {
			b.cc.fieldOrder = append(b.cc.fieldOrder[:i:i], b.cc.fieldOrder[i+1:]...)
			break
		}
	}
	return nil
}

func containsCheck(checks []constraint.Check, c constraint.Check) bool {
	for _, x := range checks {
		if x == c {
			return true
		}
	}
	return false
}

// AddObjectChecks appends checks applied to the instance as a whole
func (b *Builder) AddObjectChecks(checks ...constraint.Check) error {
	if err := requireChecks(checks); err != nil {
		return err
	}
	bindContext(checks, constraint.ClassContext(b.cc.typ))
	b.cc.objectChecks = append(b.cc.objectChecks, checks...)
	return nil
}

// AddMethodReturnChecks appends checks to the return value of m. With
// invariant the method must be a zero-arity getter; its checks then belong
// to the object's invariants and need no guarded type.
func (b *Builder) AddMethodReturnChecks(m Method, invariant bool, checks ...constraint.Check) error {
	if err := requireChecks(checks); err != nil {
		return err
	}
	if err := b.validateMethod(m, KindMethod); err != nil {
		return err
	}
	if invariant {
		if m.Arity != 0 {
			return b.configError("invariant method must not take parameters", map[string]interface{}{"method": m.Name})
		}
	} else if err := b.requireGuarded(m); err != nil {
		return err
	}
	bindContext(checks, constraint.Context{Kind: constraint.ContextMethodReturnValue, Type: b.cc.typ, Name: m.Name})
	if _, ok := b.cc.returnChecks[m]; !ok {
		b.cc.returnOrder = append(b.cc.returnOrder, m)
	}
	b.cc.returnChecks[m] = append(b.cc.returnChecks[m], checks...)
	if invariant {
		b.cc.invariants[m] = true
	}
	return nil
}

func (b *Builder) addParameterChecks(m Method, index int, checks []constraint.Check, kinds ...Kind) error {
	if err := requireChecks(checks); err != nil {
		return err
	}
	if err := b.validateMethod(m, kinds...); err != nil {
		return err
	}
	if err := b.requireGuarded(m); err != nil {
		return err
	}
	if index < 0 || index >= m.Arity {
		return b.configError("parameter index out of range", map[string]interface{}{
			"method": m.Name,
			"index":  index,
			"arity":  m.Arity,
		})
	}
	bindContext(checks, b.paramContext(m, index))
	key := paramKey{method: m, index: index}
	p := b.cc.params[key]
	if p == nil {
		p = &ParameterChecks{}
		b.cc.params[key] = p
	}
	p.Checks = append(p.Checks, checks...)
	return nil
}

// AddMethodParameterChecks appends checks to parameter index of a method or
// static function
func (b *Builder) AddMethodParameterChecks(m Method, index int, checks ...constraint.Check) error {
	return b.addParameterChecks(m, index, checks, KindMethod, KindStatic)
}

// AddConstructorParameterChecks appends checks to parameter index of a
// constructor
func (b *Builder) AddConstructorParameterChecks(m Method, index int, checks ...constraint.Check) error {
	return b.addParameterChecks(m, index, checks, KindConstructor)
}

// AddCheckExclusions appends exclusions to parameter index of m
func (b *Builder) AddCheckExclusions(m Method, index int, exclusions ...constraint.CheckExclusion) error {
	if len(exclusions) == 0 {
		return constraint.InvalidArgument("at least one exclusion is required")
	}
	for _, e := range exclusions {
		if e == nil {
			return constraint.InvalidArgument("exclusions must not be nil")
		}
	}
	if err := b.validateMethod(m, KindMethod, KindStatic, KindConstructor); err != nil {
		return err
	}
	if err := b.requireGuarded(m); err != nil {
		return err
	}
	if index < 0 || index >= m.Arity {
		return b.configError("parameter index out of range", map[string]interface{}{
			"method": m.Name,
			"index":  index,
			"arity":  m.Arity,
		})
	}
	key := paramKey{method: m, index: index}
	p := b.cc.params[key]
	if p == nil {
		p = &ParameterChecks{}
		b.cc.params[key] = p
	}
	p.Exclusions = append(p.Exclusions, exclusions...)
	return nil
}

// AddMethodPreChecks appends pre conditions to m
func (b *Builder) AddMethodPreChecks(m Method, checks ...*constraint.PreCheck) error {
	if len(checks) == 0 {
		return constraint.InvalidArgument("at least one pre check is required")
	}
	generic := make([]constraint.Check, len(checks))
	for i, c := range checks {
		if c == nil {
			return constraint.InvalidArgument("checks must not be nil")
		}
		generic[i] = c
	}
	if err := b.validateMethod(m, KindMethod, KindStatic, KindConstructor); err != nil {
		return err
	}
	if err := b.requireGuarded(m); err != nil {
		return err
	}
	bindContext(generic, constraint.Context{Kind: constraint.ContextMethodEntry, Type: b.cc.typ, Name: m.Name})
	b.cc.preChecks[m] = append(b.cc.preChecks[m], checks...)
	return nil
}

// AddMethodPostChecks appends post conditions to m
func (b *Builder) AddMethodPostChecks(m Method, checks ...*constraint.PostCheck) error {
	if len(checks) == 0 {
		return constraint.InvalidArgument("at least one post check is required")
	}
	generic := make([]constraint.Check, len(checks))
	for i, c := range checks {
		if c == nil {
			return constraint.InvalidArgument("checks must not be nil")
		}
		generic[i] = c
	}
	if err := b.validateMethod(m, KindMethod, KindStatic, KindConstructor); err != nil {
		return err
	}
	if err := b.requireGuarded(m); err != nil {
		return err
	}
	bindContext(generic, constraint.Context{Kind: constraint.ContextMethodExit, Type: b.cc.typ, Name: m.Name})
	b.cc.postChecks[m] = append(b.cc.postChecks[m], checks...)
	return nil
}

// SetGuarded marks the type for call interception
func (b *Builder) SetGuarded(guarded bool) { b.cc.guarded = guarded }

// SetCheckInvariants toggles invariant checks around guarded calls
func (b *Builder) SetCheckInvariants(check bool) { b.cc.checkInvariants = check }

// EnableInvariantsPre checks invariants before m even if m is private
func (b *Builder) EnableInvariantsPre(m Method) error {
	if err := b.validateMethod(m, KindMethod); err != nil {
		return err
	}
	b.cc.invariantsPre[m] = true
	return nil
}

// EnableInvariantsPost checks invariants after m even if m is private
func (b *Builder) EnableInvariantsPost(m Method) error {
	if err := b.validateMethod(m, KindMethod); err != nil {
		return err
	}
	b.cc.invariantsPost[m] = true
	return nil
}
