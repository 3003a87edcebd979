package constraint

import (
	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

// Bindings are the variables a pre or post condition is evaluated with
type Bindings map[string]interface{}

// Binding names supplied to pre and post conditions
const (
	BindingThis    = "_this"
	BindingArgs    = "_args"
	BindingReturns = "_returns"
	BindingOld     = "_old"
	BindingValue   = "_value"
)

// PreCheck is a boolean expression evaluated before a guarded call, bound to
// _this, _args and the parameter names when available
type PreCheck struct {
	Base
	expr string
	lang string
}

// NewPreCheck creates a pre condition. A "lang:" prefix of expr selects the
// language unless SetLang is used.
func NewPreCheck(expr string) *PreCheck {
	c := &PreCheck{expr: expr}
	c.Init("Pre", c.createVars)
	return c
}

func (c *PreCheck) createVars() map[string]string {
	return map[string]string{"expression": c.expr, "language": c.lang}
}

func (c *PreCheck) Expr() string { return c.expr }
func (c *PreCheck) Lang() string { return c.lang }

func (c *PreCheck) SetExpr(expr string) {
	c.expr = expr
	c.RequireMessageVariablesRecreation()
}

func (c *PreCheck) SetLang(lang string) {
	c.lang = lang
	c.RequireMessageVariablesRecreation()
}

// IsActive evaluates the when expression with the call bindings
func (c *PreCheck) IsActive(_, value interface{}, cycle ValidationCycle) (bool, error) {
	return bindingsActive(c.When(), value, cycle)
}

// IsSatisfied evaluates the condition. value must be the call Bindings.
func (c *PreCheck) IsSatisfied(_, value interface{}, cycle ValidationCycle) (bool, error) {
	return evaluateBindings(cycle, c.lang, c.expr, value)
}

// InvalidValue reports the arguments of the call
func (c *PreCheck) InvalidValue(value interface{}) interface{} {
	if b, ok := value.(Bindings); ok {
		return b[BindingArgs]
	}
	return value
}

// PostCheck is a boolean expression evaluated after a guarded call. Its
// optional old expression is evaluated before the call and supplied as _old.
type PostCheck struct {
	Base
	expr string
	lang string
	old  string
}

// NewPostCheck creates a post condition
func NewPostCheck(expr string) *PostCheck {
	c := &PostCheck{expr: expr}
	c.Init("Post", c.createVars)
	return c
}

func (c *PostCheck) createVars() map[string]string {
	return map[string]string{"expression": c.expr, "language": c.lang, "old": c.old}
}

func (c *PostCheck) Expr() string { return c.expr }
func (c *PostCheck) Lang() string { return c.lang }
func (c *PostCheck) Old() string  { return c.old }

func (c *PostCheck) SetExpr(expr string) {
	c.expr = expr
	c.RequireMessageVariablesRecreation()
}

func (c *PostCheck) SetLang(lang string) {
	c.lang = lang
	c.RequireMessageVariablesRecreation()
}

func (c *PostCheck) SetOld(expr string) {
	c.old = expr
	c.RequireMessageVariablesRecreation()
}

// IsActive evaluates the when expression with the call bindings
func (c *PostCheck) IsActive(_, value interface{}, cycle ValidationCycle) (bool, error) {
	return bindingsActive(c.When(), value, cycle)
}

// IsSatisfied evaluates the condition. value must be the call Bindings.
func (c *PostCheck) IsSatisfied(_, value interface{}, cycle ValidationCycle) (bool, error) {
	return evaluateBindings(cycle, c.lang, c.expr, value)
}

// EvaluateOld evaluates the old expression with the pre-call bindings
func (c *PostCheck) EvaluateOld(cycle ValidationCycle, bindings Bindings) (interface{}, error) {
	if c.old == "" {
		return nil, nil
	}
	return EvaluateExpression(cycle, c.lang, c.old, bindings)
}

// InvalidValue reports the return value of the call
func (c *PostCheck) InvalidValue(value interface{}) interface{} {
	if b, ok := value.(Bindings); ok {
		return b[BindingReturns]
	}
	return value
}

func bindingsActive(when string, value interface{}, cycle ValidationCycle) (bool, error) {
	if when == "" {
		return true, nil
	}
	b, err := asBindings(value)
	if err != nil {
		return false, err
	}
	return EvaluateCondition(cycle, when, b)
}

func evaluateBindings(cycle ValidationCycle, lang, expr string, value interface{}) (bool, error) {
	b, err := asBindings(value)
	if err != nil {
		return false, err
	}
	return EvaluateBool(cycle, lang, expr, b)
}

func asBindings(value interface{}) (Bindings, error) {
	b, ok := value.(Bindings)
	if !ok {
		return nil, mdwerror.Newf("condition requires call bindings, got %T", value).
			WithCode(mdwerror.CodeInvalidArgument)
	}
	return b, nil
}

// InvalidValuer is implemented by checks whose reported invalid value
// differs from the value they were evaluated with
type InvalidValuer interface {
	InvalidValue(value interface{}) interface{}
}
