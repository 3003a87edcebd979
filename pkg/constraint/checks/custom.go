package checks

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/constraint"
)

// SimpleCheck is user code plugged into CheckWith
type SimpleCheck interface {
	IsSatisfied(validated, value interface{}, ctx constraint.Context, cycle constraint.ValidationCycle) bool
}

// SimpleCheckFunc adapts a function to SimpleCheck
type SimpleCheckFunc func(validated, value interface{}, ctx constraint.Context, cycle constraint.ValidationCycle) bool

func (f SimpleCheckFunc) IsSatisfied(validated, value interface{}, ctx constraint.Context, cycle constraint.ValidationCycle) bool {
	return f(validated, value, ctx, cycle)
}

// SimpleCheckWithMessageVariables contributes variables to the message of
// the CheckWith using it
type SimpleCheckWithMessageVariables interface {
	SimpleCheck
	MessageVariables() map[string]string
}

// CheckWith delegates to a SimpleCheck. It applies to the container itself
// by default, so it also serves as an object-level check. nil values are
// satisfied unless SetIgnoreIfNull(false) hands them to the SimpleCheck.
type CheckWith struct {
	constraint.Base
	simple       SimpleCheck
	ignoreIfNull bool
}

// NewCheckWith returns an INVALID_ARGUMENT error for a nil SimpleCheck
func NewCheckWith(simple SimpleCheck) (*CheckWith, error) {
	c := &CheckWith{ignoreIfNull: true}
	c.Init("CheckWith", c.createVars)
	if err := c.SetSimpleCheck(simple); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CheckWith) createVars() map[string]string {
	vars := map[string]string{}
	if withVars, ok := c.simple.(SimpleCheckWithMessageVariables); ok {
		for k, v := range withVars.MessageVariables() {
			vars[k] = v
		}
	}
	vars["ignoreIfNull"] = strconv.FormatBool(c.ignoreIfNull)
	vars["simpleCheck"] = fmt.Sprintf("%T", c.simple)
	return vars
}

func (c *CheckWith) SimpleCheck() SimpleCheck { return c.simple }
func (c *CheckWith) IgnoreIfNull() bool       { return c.ignoreIfNull }

func (c *CheckWith) SetSimpleCheck(simple SimpleCheck) error {
	if simple == nil {
		return constraint.InvalidArgument("simple check must not be nil")
	}
	c.simple = simple
	c.RequireMessageVariablesRecreation()
	return nil
}

func (c *CheckWith) SetIgnoreIfNull(ignoreIfNull bool) {
	c.ignoreIfNull = ignoreIfNull
	c.RequireMessageVariablesRecreation()
}

func (c *CheckWith) IsSatisfied(validated, value interface{}, cycle constraint.ValidationCycle) (bool, error) {
	if c.ignoreIfNull && constraint.IsNil(value) {
		return true, nil
	}
	return c.simple.IsSatisfied(validated, value, c.Context(), cycle), nil
}

// Assert evaluates a boolean expression with _this bound to the validated
// object and _value to the checked value. nil values reach the expression.
type Assert struct {
	constraint.Base
	expr string
	lang string
}

func NewAssert(expr string) *Assert {
	c := &Assert{expr: expr}
	c.Init("Assert", c.createVars)
	return c
}

func (c *Assert) createVars() map[string]string {
	return map[string]string{"expression": c.expr, "language": c.lang}
}

func (c *Assert) Expr() string { return c.expr }
func (c *Assert) Lang() string { return c.lang }

func (c *Assert) SetExpr(expr string) {
	c.expr = expr
	c.RequireMessageVariablesRecreation()
}

func (c *Assert) SetLang(lang string) {
	c.lang = lang
	c.RequireMessageVariablesRecreation()
}

func (c *Assert) IsSatisfied(validated, value interface{}, cycle constraint.ValidationCycle) (bool, error) {
	return constraint.EvaluateBool(cycle, c.lang, c.expr, map[string]interface{}{
		constraint.BindingThis:  validated,
		constraint.BindingValue: value,
	})
}

var (
	boolType    = reflect.TypeOf(false)
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// ValidateWithMethod calls a method of the validated object with the
// checked value. The method takes the value, optionally preceded by a
// context.Context, and returns bool or (bool, error). nil values are
// satisfied without a call unless SetIgnoreIfNull(false).
type ValidateWithMethod struct {
	constraint.Base
	method       string
	ignoreIfNull bool
}

func NewValidateWithMethod(method string) *ValidateWithMethod {
	c := &ValidateWithMethod{method: method, ignoreIfNull: true}
	c.Init("ValidateWithMethod", c.createVars)
	return c
}

func (c *ValidateWithMethod) createVars() map[string]string {
	return map[string]string{"method": c.method, "ignoreIfNull": strconv.FormatBool(c.ignoreIfNull)}
}

func (c *ValidateWithMethod) Method() string     { return c.method }
func (c *ValidateWithMethod) IgnoreIfNull() bool { return c.ignoreIfNull }

func (c *ValidateWithMethod) SetMethod(method string) {
	c.method = method
	c.RequireMessageVariablesRecreation()
}

func (c *ValidateWithMethod) SetIgnoreIfNull(ignoreIfNull bool) {
	c.ignoreIfNull = ignoreIfNull
	c.RequireMessageVariablesRecreation()
}

func (c *ValidateWithMethod) IsSatisfied(validated, value interface{}, cycle constraint.ValidationCycle) (bool, error) {
	if c.ignoreIfNull && constraint.IsNil(value) {
		return true, nil
	}
	if constraint.IsNil(validated) {
		return false, c.reflectionError("no object to call the method on", validated)
	}

	m := reflect.ValueOf(validated).MethodByName(c.method)
	if !m.IsValid() {
		return false, c.reflectionError("method not found", validated)
	}
	mt := m.Type()

	var args []reflect.Value
	in := 0
	if mt.NumIn() == 2 && mt.In(0) == contextType {
		ctx := context.Background()
		if cycle != nil && cycle.Context() != nil {
			ctx = cycle.Context()
		}
		args = append(args, reflect.ValueOf(ctx))
		in = 1
	}
	if mt.NumIn() != in+1 || mt.IsVariadic() {
		return false, c.reflectionError("method must take exactly one value", validated)
	}
	if !(mt.NumOut() == 1 && mt.Out(0) == boolType) &&
		!(mt.NumOut() == 2 && mt.Out(0) == boolType && mt.Out(1) == errorType) {
		return false, c.reflectionError("method must return bool or (bool, error)", validated)
	}

	arg, err := convertValue(value, mt.In(in))
	if err != nil {
		return false, c.reflectionError(err.Error(), validated)
	}
	out := m.Call(append(args, arg))
	if len(out) == 2 && !out[1].IsNil() {
		return false, mdwerror.Wrap(out[1].Interface().(error), "validation method failed").
			WithCode(mdwerror.CodeReflectionFailed).
			WithDetail("method", c.method)
	}
	return out[0].Bool(), nil
}

func (c *ValidateWithMethod) reflectionError(msg string, validated interface{}) error {
	return mdwerror.New(msg).
		WithCode(mdwerror.CodeReflectionFailed).
		WithDetail("method", c.method).
		WithDetail("type", fmt.Sprintf("%T", validated))
}

func convertValue(value interface{}, t reflect.Type) (reflect.Value, error) {
	if constraint.IsNil(value) {
		switch t.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot pass nil as %s", t)
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot pass %s as %s", rv.Type(), t)
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}
