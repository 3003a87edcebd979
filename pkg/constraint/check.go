// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     constraint
// Description: Check contract, shared check state and validation cycle view
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package constraint

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/msto63/guardian/pkg/expression"
)

// DefaultProfile is assumed for checks that name no profile
const DefaultProfile = "default"

// ValidationCycle is the per-traversal state a check can observe
type ValidationCycle interface {
	Context() context.Context
	RootObject() interface{}
	ContextPath() []Context
	PushContext(c Context)
	PopContext()
	AddViolation(v *Violation)
	Violations() []*Violation
	MarkVisited(obj interface{}) bool
	HasVisited(obj interface{}) bool
	Profiles() []string
	CorrelationID() string
	Expressions() *expression.Registry
}

// Check is a unit of constraint logic bound to a declared location.
//
// IsActive evaluates the check's when expression; IsSatisfied evaluates the
// constraint itself. The error results are reserved for failures of the
// evaluation mechanics, never for an unsatisfied constraint.
//
// Checks are shared by concurrent validations. Setters are for setup time
// only and must not run concurrently with validation.
type Check interface {
	Name() string
	ErrorCode() string
	Message() string
	MessageVariables() map[string]string
	Severity() int
	Profiles() []string
	When() string
	AppliesTo() []Target
	Target() string
	Context() Context

	IsActive(validated, value interface{}, cycle ValidationCycle) (bool, error)
	IsSatisfied(validated, value interface{}, cycle ValidationCycle) (bool, error)

	SetMessage(message string)
	SetErrorCode(code string)
	SetSeverity(severity int)
	SetProfiles(profiles ...string)
	SetWhen(expr string)
	SetAppliesTo(targets ...Target)
	SetTarget(expr string)
	SetContext(c Context)
}

// Base implements every Check method except IsSatisfied. Concrete checks
// embed it and call Init from their constructor.
type Base struct {
	name           string
	errorCode      string
	message        string
	severity       int
	profiles       []string
	when           string
	appliesTo      []Target
	defaultTargets []Target
	target         string
	context        Context

	varsFactory func() map[string]string
	vars        atomic.Pointer[map[string]string]
	varsMu      sync.Mutex
}

// Init sets the check name, the factory for check-specific message
// variables (may be nil) and the targets used when none are configured.
// Without default targets the check applies to the container itself.
func (b *Base) Init(name string, vars func() map[string]string, defaultTargets ...Target) {
	b.name = name
	b.varsFactory = vars
	if len(defaultTargets) == 0 {
		defaultTargets = []Target{TargetContainer}
	}
	b.defaultTargets = defaultTargets
}

func (b *Base) Name() string { return b.name }

// ErrorCode defaults to "guardian.<Name>"
func (b *Base) ErrorCode() string {
	if b.errorCode == "" {
		return "guardian." + b.name
	}
	return b.errorCode
}

// Message returns the message key or literal template. It defaults to the
// key "guardian.<Name>.violated".
func (b *Base) Message() string {
	if b.message == "" {
		return "guardian." + b.name + ".violated"
	}
	return b.message
}

// ConfiguredMessage returns the message set with SetMessage, if any
func (b *Base) ConfiguredMessage() string { return b.message }

// MessageVariables returns the memoized check-specific variables
func (b *Base) MessageVariables() map[string]string {
	if m := b.vars.Load(); m != nil {
		return *m
	}
	b.varsMu.Lock()
	defer b.varsMu.Unlock()
	if m := b.vars.Load(); m != nil {
		return *m
	}
	m := map[string]string{}
	if b.varsFactory != nil {
		if created := b.varsFactory(); created != nil {
			m = created
		}
	}
	b.vars.Store(&m)
	return m
}

// RequireMessageVariablesRecreation drops memoized message variables.
// Parameter setters of concrete checks call it.
func (b *Base) RequireMessageVariablesRecreation() {
	b.vars.Store(nil)
}

func (b *Base) Severity() int { return b.severity }

// Profiles returns the configured profiles, or the default profile
func (b *Base) Profiles() []string {
	if len(b.profiles) == 0 {
		return []string{DefaultProfile}
	}
	return b.profiles
}

func (b *Base) When() string { return b.when }

func (b *Base) AppliesTo() []Target {
	if len(b.appliesTo) == 0 {
		return b.defaultTargets
	}
	return b.appliesTo
}

func (b *Base) Target() string { return b.target }

func (b *Base) Context() Context { return b.context }

// IsActive evaluates the when expression with _this bound to the validated
// object and _value to the checked value. An empty expression is active.
func (b *Base) IsActive(validated, value interface{}, cycle ValidationCycle) (bool, error) {
	if b.when == "" {
		return true, nil
	}
	return EvaluateCondition(cycle, b.when, map[string]interface{}{
		"_this":  validated,
		"_value": value,
	})
}

func (b *Base) SetMessage(message string) { b.message = message }
func (b *Base) SetErrorCode(code string)  { b.errorCode = code }
func (b *Base) SetSeverity(severity int)  { b.severity = severity }

func (b *Base) SetProfiles(profiles ...string) {
	b.profiles = append([]string(nil), profiles...)
}

func (b *Base) SetWhen(expr string) { b.when = expr }

func (b *Base) SetAppliesTo(targets ...Target) {
	b.appliesTo = append([]Target(nil), targets...)
}

func (b *Base) SetTarget(expr string) { b.target = expr }

func (b *Base) SetContext(c Context) { b.context = c }

// EvaluateCondition evaluates a language-tagged boolean expression through
// the cycle's expression registry
func EvaluateCondition(cycle ValidationCycle, expr string, bindings map[string]interface{}) (bool, error) {
	return EvaluateBool(cycle, "", expr, bindings)
}

// EvaluateBool evaluates a boolean expression in lang, or in the language
// named by the expression prefix when lang is empty
func EvaluateBool(cycle ValidationCycle, lang, expr string, bindings map[string]interface{}) (bool, error) {
	reg, ctx := expressionsOf(cycle)
	return reg.EvaluateBool(ctx, lang, expr, bindings)
}

// EvaluateExpression evaluates a language-tagged expression through the
// cycle's expression registry
func EvaluateExpression(cycle ValidationCycle, lang, expr string, bindings map[string]interface{}) (interface{}, error) {
	reg, ctx := expressionsOf(cycle)
	return reg.Evaluate(ctx, lang, expr, bindings)
}

func expressionsOf(cycle ValidationCycle) (*expression.Registry, context.Context) {
	reg := expression.Default()
	ctx := context.Background()
	if cycle != nil {
		if r := cycle.Expressions(); r != nil {
			reg = r
		}
		if c := cycle.Context(); c != nil {
			ctx = c
		}
	}
	return reg, ctx
}

// CascadeCheck marks checks whose value is validated as an object graph of
// its own instead of being tested by IsSatisfied
type CascadeCheck interface {
	Check
	Cascades() bool
}

// FieldConstraintsCheck marks checks that apply the checks declared on a
// field of another type to the checked value
type FieldConstraintsCheck interface {
	Check
	DeclaringType() reflect.Type
	FieldName() string
}
