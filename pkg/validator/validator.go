// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     validator
// Description: Object graph traversal and check evaluation
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package validator

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/foundation/core/i18n"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	mdwstringx "github.com/msto63/guardian/foundation/utils/stringx"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/expression"
	"github.com/msto63/guardian/pkg/metadata"
)

// MessageResolver maps message keys to templates with {name} placeholders
type MessageResolver interface {
	Message(key string) (string, bool)
}

// Observer is told about every completed top-level validation
type Observer interface {
	OnValidation(root interface{}, violations []*constraint.Violation, elapsed time.Duration, err error)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(root interface{}, violations []*constraint.Violation, elapsed time.Duration, err error)

func (f ObserverFunc) OnValidation(root interface{}, violations []*constraint.Violation, elapsed time.Duration, err error) {
	f(root, violations, elapsed, err)
}

// Options configure a Validator. Zero values select the defaults: a fresh
// metadata index, the default expression registry, the embedded message
// bundles and the default logger.
type Options struct {
	Index       *metadata.Index
	Expressions *expression.Registry
	Messages    MessageResolver
	Logger      *mdwlog.Logger
	Observers   []Observer

	// SlowThreshold logs validations that take longer at warn level
	SlowThreshold time.Duration
}

// Validator validates object graphs against the checks of a metadata
// index. It is safe for concurrent use.
type Validator struct {
	index       *metadata.Index
	expressions *expression.Registry
	messages    MessageResolver
	logger      *mdwlog.Logger
	profiles    *profileSet
	slow        time.Duration

	observersMu sync.RWMutex
	observers   []Observer
}

// New creates a Validator
func New(opts Options) *Validator {
	logger := opts.Logger
	if logger == nil {
		logger = mdwlog.GetDefault().WithField("component", "validator")
	}
	index := opts.Index
	if index == nil {
		index = metadata.New(metadata.Options{Logger: logger})
	}
	expressions := opts.Expressions
	if expressions == nil {
		expressions = expression.Default()
	}
	var messages MessageResolver = i18n.Default()
	if opts.Messages != nil {
		messages = opts.Messages
	}
	return &Validator{
		index:       index,
		expressions: expressions,
		messages:    messages,
		logger:      logger,
		profiles:    newProfileSet(),
		slow:        opts.SlowThreshold,
		observers:   append([]Observer(nil), opts.Observers...),
	}
}

func (v *Validator) Index() *metadata.Index { return v.index }

func (v *Validator) Expressions() *expression.Registry { return v.expressions }

func (v *Validator) Logger() *mdwlog.Logger { return v.logger }

// AddObserver registers o for subsequent validations
func (v *Validator) AddObserver(o Observer) {
	if o == nil {
		return
	}
	v.observersMu.Lock()
	defer v.observersMu.Unlock()
	v.observers = append(v.observers, o)
}

func (v *Validator) notifyObservers(root interface{}, violations []*constraint.Violation, elapsed time.Duration, err error) {
	v.observersMu.RLock()
	observers := v.observers
	v.observersMu.RUnlock()
	for _, o := range observers {
		o.OnValidation(root, violations, elapsed, err)
	}
}

// Validate validates obj and returns its violations. The error is reserved
// for failures of the validation itself.
//
// Pass structs by pointer. A struct value is a copy without identity, so
// a reference cycle leading back to it visits the original a second time
// and its violations are reported twice.
func (v *Validator) Validate(obj interface{}, profiles ...string) ([]*constraint.Violation, error) {
	return v.ValidateContext(context.Background(), obj, profiles...)
}

// ValidateContext is Validate with a context handed to expressions and
// invariant getters
func (v *Validator) ValidateContext(ctx context.Context, obj interface{}, profiles ...string) ([]*constraint.Violation, error) {
	if constraint.IsNil(obj) {
		return nil, constraint.InvalidArgument("object to validate must not be nil")
	}
	if reflect.TypeOf(obj).Kind() == reflect.Struct {
		v.logger.Debug("validating struct passed by value", mdwlog.Fields{
			"type": constraint.TypeName(reflect.TypeOf(obj)),
		})
	}
	timer := v.logger.StartTimer("validation").
		WithSlowThreshold(v.slow).
		WithField("type", constraint.TypeName(reflect.TypeOf(obj)))

	cycle := v.NewCycle(ctx, obj, profiles)
	defer v.ReleaseCycle(cycle)

	if err := v.validateObject(cycle, obj); err != nil {
		v.notifyObservers(obj, nil, timer.StopWithError(err), err)
		return nil, err
	}
	elapsed := timer.WithField("violations", len(cycle.Violations())).Stop()
	v.notifyObservers(obj, cycle.Violations(), elapsed, nil)
	return cycle.Violations(), nil
}

// ValidateField applies the checks declared on field of obj's type to the
// field's current value
func (v *Validator) ValidateField(ctx context.Context, obj interface{}, field string, profiles ...string) ([]*constraint.Violation, error) {
	if constraint.IsNil(obj) {
		return nil, constraint.InvalidArgument("object to validate must not be nil")
	}
	t := constraint.TypeOf(obj)
	cc, err := v.index.Get(t)
	if err != nil {
		return nil, constraint.ValidationFailed(err, "validator.ValidateField")
	}
	value, ok := constraint.ReadField(obj, field)
	if !ok {
		return nil, constraint.InvalidArgument(fmt.Sprintf("%s has no readable field %s", t, field))
	}

	cycle := v.NewCycle(ctx, obj, profiles)
	defer v.ReleaseCycle(cycle)
	cycle.PushContext(constraint.ClassContext(t))
	err = v.CheckValue(cycle, constraint.FieldContext(t, field), cc.FieldChecks(field), nil, obj, value)
	cycle.PopContext()
	if err != nil {
		return nil, err
	}
	return cycle.Violations(), nil
}

// ValidateValue evaluates checks against a standalone value
func (v *Validator) ValidateValue(ctx context.Context, checks []constraint.Check, value interface{}, profiles ...string) ([]*constraint.Violation, error) {
	cycle := v.NewCycle(ctx, value, profiles)
	defer v.ReleaseCycle(cycle)
	if err := v.CheckValue(cycle, constraint.Context{}, checks, nil, nil, value); err != nil {
		return nil, err
	}
	return cycle.Violations(), nil
}

// NewCycle starts a validation cycle and pushes it onto the cycle stack of
// ctx, if any. Callers must release it with ReleaseCycle.
func (v *Validator) NewCycle(ctx context.Context, root interface{}, profiles []string) *Cycle {
	cycle := newCycle(ctx, root, profiles, v.expressions)
	if stack := CycleStackFrom(cycle.ctx); stack != nil {
		stack.Push(cycle)
	}
	return cycle
}

// ReleaseCycle pops cycle from the cycle stack of its context
func (v *Validator) ReleaseCycle(cycle *Cycle) {
	if stack := CycleStackFrom(cycle.ctx); stack != nil && stack.Current() == cycle {
		stack.Pop()
	}
}

// ValidateInvariants validates the fields, invariant getters and object
// checks of obj into cycle, using a visited set of its own. Objects being
// validated by an enclosing cycle of the same call chain are skipped.
func (v *Validator) ValidateInvariants(cycle *Cycle, obj interface{}) error {
	if constraint.IsNil(obj) {
		return nil
	}
	if stack := CycleStackFrom(cycle.ctx); stack != nil && stack.VisitedByEnclosing(cycle, obj) {
		return nil
	}
	prev := cycle.swapVisited()
	defer cycle.restoreVisited(prev)
	return v.validateObject(cycle, obj)
}

func (v *Validator) validateObject(cycle *Cycle, obj interface{}) error {
	if constraint.IsNil(obj) || !cycle.MarkVisited(obj) {
		return nil
	}
	t := constraint.TypeOf(obj)
	cc, err := v.index.Get(t)
	if err != nil {
		return constraint.ValidationFailed(err, "validator.validateObject")
	}

	cycle.PushContext(constraint.ClassContext(t))
	defer cycle.PopContext()

	for _, field := range cc.Fields() {
		value, _ := constraint.ReadField(obj, field)
		if err := v.CheckValue(cycle, constraint.FieldContext(t, field), cc.FieldChecks(field), nil, obj, value); err != nil {
			return err
		}
	}

	for _, m := range cc.InvariantMethods() {
		value, err := invokeGetter(cycle.ctx, obj, m.Name)
		if err != nil {
			return constraint.ValidationFailed(err, "validator.invariant")
		}
		frame := constraint.Context{Kind: constraint.ContextMethodReturnValue, Type: t, Name: m.Name}
		if err := v.CheckValue(cycle, frame, cc.ReturnChecks(m), nil, obj, value); err != nil {
			return err
		}
	}

	return v.CheckValue(cycle, constraint.Context{}, cc.ObjectChecks(), nil, obj, obj)
}

// CheckValue evaluates checks against value, with frame pushed onto the
// context path unless it is zero. Violations are added to cycle.
func (v *Validator) CheckValue(cycle *Cycle, frame constraint.Context, checks []constraint.Check, exclusions []constraint.CheckExclusion, validated, value interface{}) error {
	if len(checks) == 0 {
		return nil
	}
	if !frame.IsZero() {
		cycle.PushContext(frame)
		defer cycle.PopContext()
	}
	for _, check := range checks {
		if err := v.checkOne(cycle, check, exclusions, validated, value); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) isActive(cycle *Cycle, check constraint.Check, validated, value interface{}) (bool, error) {
	if !v.profilesActive(cycle, check.Profiles()) {
		return false, nil
	}
	active, err := check.IsActive(validated, value, cycle)
	if err != nil {
		return false, constraint.ValidationFailed(err, "validator.when")
	}
	return active, nil
}

func (v *Validator) isExcluded(cycle *Cycle, check constraint.Check, exclusions []constraint.CheckExclusion, validated, value interface{}) (bool, error) {
	for _, e := range exclusions {
		if !v.profilesActive(cycle, e.Profiles()) {
			continue
		}
		active, err := e.IsActive(validated, value, cycle)
		if err != nil {
			return false, constraint.ValidationFailed(err, "validator.exclusion")
		}
		if !active {
			continue
		}
		excluded, err := e.IsCheckExcluded(check, validated, value, cycle)
		if err != nil {
			return false, constraint.ValidationFailed(err, "validator.exclusion")
		}
		if excluded {
			return true, nil
		}
	}
	return false, nil
}

func (v *Validator) checkOne(cycle *Cycle, check constraint.Check, exclusions []constraint.CheckExclusion, validated, value interface{}) error {
	active, err := v.isActive(cycle, check, validated, value)
	if err != nil || !active {
		return err
	}
	excluded, err := v.isExcluded(cycle, check, exclusions, validated, value)
	if err != nil || excluded {
		return err
	}

	if target := check.Target(); target != "" {
		value, err = constraint.EvaluateExpression(cycle, "", target, map[string]interface{}{
			constraint.BindingThis:  validated,
			constraint.BindingValue: value,
		})
		if err != nil {
			return constraint.ValidationFailed(err, "validator.target")
		}
	}

	if !constraint.IsContainer(value) {
		return v.applyCheck(cycle, check, validated, value)
	}

	targets := check.AppliesTo()
	if constraint.HasTarget(targets, constraint.TargetContainer) {
		if err := v.applyCheck(cycle, check, validated, value); err != nil {
			return err
		}
	}
	if constraint.HasTarget(targets, constraint.TargetValues) || constraint.HasTarget(targets, constraint.TargetRecursive) {
		if err := v.applyElements(cycle, check, validated, value, constraint.HasTarget(targets, constraint.TargetRecursive)); err != nil {
			return err
		}
	}
	if constraint.HasTarget(targets, constraint.TargetKeys) {
		for _, e := range constraint.Elements(value) {
			if e.MapKey == nil {
				continue
			}
			cycle.PushContext(constraint.ElementContext(e.Key))
			err := v.applyCheck(cycle, check, validated, e.MapKey)
			cycle.PopContext()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) applyElements(cycle *Cycle, check constraint.Check, validated, container interface{}, recursive bool) error {
	for _, e := range constraint.Elements(container) {
		cycle.PushContext(constraint.ElementContext(e.Key))
		var err error
		if recursive && constraint.IsContainer(e.Value) {
			err = v.applyElements(cycle, check, validated, e.Value, true)
		} else {
			err = v.applyCheck(cycle, check, validated, e.Value)
		}
		cycle.PopContext()
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) applyCheck(cycle *Cycle, check constraint.Check, validated, value interface{}) error {
	switch c := check.(type) {
	case constraint.CascadeCheck:
		if constraint.IsNil(value) || cycle.HasVisited(value) {
			return nil
		}
		return v.validateObject(cycle, value)
	case constraint.FieldConstraintsCheck:
		return v.applyFieldConstraints(cycle, c, validated, value)
	}

	ok, err := check.IsSatisfied(validated, value, cycle)
	if err != nil {
		return constraint.ValidationFailed(err, "validator.check."+check.Name())
	}
	if !ok {
		violation := v.newViolation(cycle, check, value)
		cycle.AddViolation(violation)
		v.logger.Debug("constraint violated", mdwlog.Fields{
			"check":          check.Name(),
			"path":           violation.PathString(),
			"correlation_id": cycle.CorrelationID(),
		})
	}
	return nil
}

func (v *Validator) applyFieldConstraints(cycle *Cycle, check constraint.FieldConstraintsCheck, validated, value interface{}) error {
	declared := check.Context()
	declaring := check.DeclaringType()
	if declaring == nil {
		declaring = constraint.NormalizeType(declared.Type)
	}
	if declaring == nil {
		declaring = constraint.TypeOf(validated)
	}
	field := check.FieldName()
	if field == "" {
		field = declared.Param
		if declared.Kind == constraint.ContextField {
			field = declared.Name
		}
	}
	if declaring == nil || field == "" {
		return constraint.ValidationFailed(mdwerror.New("cannot determine the field whose constraints to apply").
			WithCode(mdwerror.CodeInvalidConfiguration).
			WithDetail("check", declared.String()), "validator.fieldConstraints")
	}

	cc, err := v.index.Get(declaring)
	if err != nil {
		return constraint.ValidationFailed(err, "validator.fieldConstraints")
	}
	for _, fc := range cc.FieldChecks(field) {
		if _, nested := fc.(constraint.FieldConstraintsCheck); nested {
			continue
		}
		if err := v.checkOne(cycle, fc, nil, validated, value); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) newViolation(cycle *Cycle, check constraint.Check, value interface{}) *constraint.Violation {
	invalid := value
	if iv, ok := check.(constraint.InvalidValuer); ok {
		invalid = iv.InvalidValue(value)
	}

	path := cycle.ContextPath()
	declared := check.Context()
	label := declared.String()
	if declared.IsZero() {
		label = ""
		if len(path) > 0 {
			label = path[len(path)-1].String()
		}
	} else if !containsFrame(path, declared) {
		path = append(path, declared)
	}

	checkVars := check.MessageVariables()
	vars := make(map[string]string, len(checkVars)+2)
	for k, val := range checkVars {
		vars[k] = val
	}
	vars["context"] = label
	vars["invalidValue"] = constraint.Stringify(invalid)

	key := check.Message()
	template := key
	if t, ok := v.messages.Message(key); ok {
		template = t
	}

	return &constraint.Violation{
		CheckName:        check.Name(),
		ErrorCode:        check.ErrorCode(),
		Message:          mdwstringx.ReplacePlaceholders(template, vars),
		MessageTemplate:  key,
		MessageVariables: vars,
		Severity:         check.Severity(),
		Profiles:         check.Profiles(),
		Context:          declared,
		ContextPath:      path,
		ValidatedObject:  cycle.RootObject(),
		InvalidValue:     invalid,
		CorrelationID:    cycle.CorrelationID(),
	}
}

func containsFrame(path []constraint.Context, frame constraint.Context) bool {
	for _, c := range path {
		if c == frame {
			return true
		}
	}
	return false
}
