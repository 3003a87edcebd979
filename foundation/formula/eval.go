// File: eval.go
// Title: Formula Evaluator
// Description: Tree-walking evaluator for formula ASTs. Resolves members
//              through maps, field accessors, struct fields and getters,
//              calls methods reflectively and applies the operator
//              semantics of the language.
// Author: msto63
// Version: v0.2.0
// Created: 2026-10-19
// Modified: 2026-10-19
//
// Change History:
// - 2026-10-19 v0.2.0: Initial evaluator

package formula

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwast "github.com/msto63/guardian/foundation/formula/ast"
)

// FieldAccessor is implemented by dynamic records whose members are not Go
// struct fields.
type FieldAccessor interface {
	FieldValue(name string) (interface{}, bool)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

type evaluator struct {
	ctx    context.Context
	vars   map[string]interface{}
	engine *Engine
}

func (ev *evaluator) errorf(node mdwast.Node, format string, args ...interface{}) error {
	return mdwerror.Newf(format, args...).
		WithCode(mdwerror.CodeExpressionEvaluation).
		WithOperation("formula.Eval").
		WithDetail("position", node.Position().String())
}

func (ev *evaluator) eval(node mdwast.Expr) (interface{}, error) {
	switch n := node.(type) {
	case *mdwast.LiteralExpr:
		return n.Value, nil

	case *mdwast.IdentifierExpr:
		v, ok := ev.vars[n.Name]
		if !ok {
			return nil, ev.errorf(n, "unknown variable %q", n.Name)
		}
		return v, nil

	case *mdwast.ArrayExpr:
		out := make([]interface{}, len(n.Elements))
		for i, el := range n.Elements {
			v, err := ev.eval(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *mdwast.UnaryExpr:
		return ev.evalUnary(n)

	case *mdwast.BinaryExpr:
		return ev.evalBinary(n)

	case *mdwast.MemberExpr:
		obj, err := ev.eval(n.Object)
		if err != nil {
			return nil, err
		}
		return ev.member(n, obj, n.Name)

	case *mdwast.IndexExpr:
		obj, err := ev.eval(n.Object)
		if err != nil {
			return nil, err
		}
		idx, err := ev.eval(n.Index)
		if err != nil {
			return nil, err
		}
		return ev.index(n, obj, idx)

	case *mdwast.FunctionCallExpr:
		fn, ok := ev.engine.function(n.Name)
		if !ok {
			return nil, ev.errorf(n, "unknown function %q", n.Name)
		}
		args, err := ev.evalArgs(n.Args)
		if err != nil {
			return nil, err
		}
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		return fn(ev.ctx, args...)

	case *mdwast.MethodCallExpr:
		obj, err := ev.eval(n.Object)
		if err != nil {
			return nil, err
		}
		args, err := ev.evalArgs(n.Args)
		if err != nil {
			return nil, err
		}
		if IsNil(obj) {
			return nil, ev.errorf(n, "cannot call %s on null", n.Name)
		}
		return ev.callMethod(n, obj, n.Name, args)

	default:
		return nil, ev.errorf(node, "unsupported expression %T", node)
	}
}

func (ev *evaluator) evalArgs(exprs []mdwast.Expr) ([]interface{}, error) {
	args := make([]interface{}, len(exprs))
	for i, a := range exprs {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (ev *evaluator) evalUnary(n *mdwast.UnaryExpr) (interface{}, error) {
	v, err := ev.eval(n.Expr)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "NOT":
		b, ok := asBool(v)
		if !ok {
			return nil, ev.errorf(n, "NOT requires a boolean, got %T", v)
		}
		return !b, nil
	case "-":
		num, ok := toNumber(v)
		if !ok {
			return nil, ev.errorf(n, "unary minus requires a number, got %T", v)
		}
		return num.neg().value(), nil
	}
	return nil, ev.errorf(n, "unknown operator %s", n.Op)
}

func (ev *evaluator) evalBinary(n *mdwast.BinaryExpr) (interface{}, error) {
	left, err := ev.eval(n.Left)
	if err != nil {
		return nil, err
	}

	// Short-circuit boolean operators
	if n.Op == "AND" || n.Op == "OR" {
		lb, ok := asBool(left)
		if !ok {
			return nil, ev.errorf(n, "%s requires booleans, got %T", n.Op, left)
		}
		if n.Op == "AND" && !lb {
			return false, nil
		}
		if n.Op == "OR" && lb {
			return true, nil
		}
		right, err := ev.eval(n.Right)
		if err != nil {
			return nil, err
		}
		rb, ok := asBool(right)
		if !ok {
			return nil, ev.errorf(n, "%s requires booleans, got %T", n.Op, right)
		}
		return rb, nil
	}

	right, err := ev.eval(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "=":
		return Equal(left, right), nil
	case "!=":
		return !Equal(left, right), nil
	case "<", "<=", ">", ">=":
		c, ok := Compare(left, right)
		if !ok {
			return nil, ev.errorf(n, "cannot compare %T with %T", left, right)
		}
		switch n.Op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case "LIKE":
		if IsNil(left) {
			return false, nil
		}
		ls, lok := left.(string)
		rs, rok := right.(string)
		if !lok || !rok {
			return nil, ev.errorf(n, "LIKE requires strings, got %T and %T", left, right)
		}
		return like(ls, rs), nil
	case "IN":
		found, ok := contains(right, left)
		if !ok {
			return nil, ev.errorf(n, "IN requires a collection or string, got %T", right)
		}
		return found, nil
	case "+", "-", "*", "/", "%":
		return ev.arithmetic(n, left, right)
	}
	return nil, ev.errorf(n, "unknown operator %s", n.Op)
}

func (ev *evaluator) arithmetic(n *mdwast.BinaryExpr, left, right interface{}) (interface{}, error) {
	if n.Op == "+" {
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return Stringify(left) + Stringify(right), nil
		}
	}
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return nil, ev.errorf(n, "operator %s requires numbers, got %T and %T", n.Op, left, right)
	}
	res, err := l.arith(n.Op, r)
	if err != nil {
		return nil, ev.errorf(n, "%s", err.Error())
	}
	return res.value(), nil
}

// member resolves obj.name. Member access on null yields null.
func (ev *evaluator) member(node mdwast.Node, obj interface{}, name string) (interface{}, error) {
	if IsNil(obj) {
		return nil, nil
	}
	if fa, ok := obj.(FieldAccessor); ok {
		if v, found := fa.FieldValue(name); found {
			return v, nil
		}
	}

	rv := reflect.ValueOf(obj)
	base := reflect.Indirect(rv)
	switch base.Kind() {
	case reflect.Map:
		if base.Type().Key().Kind() == reflect.String {
			v := base.MapIndex(reflect.ValueOf(name).Convert(base.Type().Key()))
			if !v.IsValid() {
				return nil, nil
			}
			return v.Interface(), nil
		}
	case reflect.Struct:
		if f, ok := structField(base, name); ok {
			return f, nil
		}
	}

	// Zero-argument getter, e.g. obj.Balance resolves Balance()
	if m, ok := findMethod(rv, name); ok && getterArity(m.Type()) {
		return ev.invoke(node, m, name, nil)
	}
	return nil, ev.errorf(node, "%T has no member %q", obj, name)
}

func structField(v reflect.Value, name string) (interface{}, bool) {
	f := v.FieldByName(name)
	if !f.IsValid() {
		f = v.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
	}
	if !f.IsValid() || !f.CanInterface() {
		return nil, false
	}
	return f.Interface(), true
}

func getterArity(t reflect.Type) bool {
	if t.NumOut() == 0 {
		return false
	}
	switch t.NumIn() {
	case 0:
		return true
	case 1:
		return t.In(0) == contextType
	}
	return false
}

// findMethod looks up a method by exact name, falling back to a
// case-insensitive match. Pointer-receiver methods are found for
// addressable copies of struct values.
func findMethod(rv reflect.Value, name string) (reflect.Value, bool) {
	candidates := []reflect.Value{rv}
	if rv.Kind() != reflect.Ptr && rv.Kind() != reflect.Interface {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		candidates = append(candidates, ptr)
	}
	for _, c := range candidates {
		if m := c.MethodByName(name); m.IsValid() {
			return m, true
		}
	}
	for _, c := range candidates {
		t := c.Type()
		for i := 0; i < t.NumMethod(); i++ {
			if strings.EqualFold(t.Method(i).Name, name) {
				return c.Method(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func (ev *evaluator) callMethod(node mdwast.Node, obj interface{}, name string, args []interface{}) (interface{}, error) {
	m, ok := findMethod(reflect.ValueOf(obj), name)
	if !ok {
		return nil, ev.errorf(node, "%T has no method %q", obj, name)
	}
	return ev.invoke(node, m, name, args)
}

// invoke calls m with args, injecting the evaluation context when the first
// parameter is a context.Context.
func (ev *evaluator) invoke(node mdwast.Node, m reflect.Value, name string, args []interface{}) (result interface{}, err error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	t := m.Type()

	var in []reflect.Value
	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		in = append(in, reflect.ValueOf(ev.ctx))
		offset = 1
	}

	fixed := t.NumIn() - offset
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, ev.errorf(node, "%s expects at least %d arguments, got %d", name, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, ev.errorf(node, "%s expects %d arguments, got %d", name, fixed, len(args))
	}

	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= fixed {
			pt = t.In(t.NumIn() - 1).Elem()
		} else {
			pt = t.In(i + offset)
		}
		av, ok := convertArg(a, pt)
		if !ok {
			return nil, ev.errorf(node, "%s: argument %d: cannot use %T as %s", name, i, a, pt)
		}
		in = append(in, av)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = ev.errorf(node, "%s panicked: %v", name, r)
		}
	}()
	out := m.Call(in)

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			if e, _ := out[0].Interface().(error); e != nil {
				return nil, e
			}
			return nil, nil
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if t.Out(len(out)-1) == errorType && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

func convertArg(a interface{}, pt reflect.Type) (reflect.Value, bool) {
	if a == nil {
		return reflect.Zero(pt), true
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(pt) {
		return av, true
	}
	if num, ok := toNumber(a); ok {
		switch pt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return reflect.ValueOf(num.value()).Convert(pt), true
		}
	}
	if av.Type().ConvertibleTo(pt) && av.Kind() == pt.Kind() {
		return av.Convert(pt), true
	}
	return reflect.Value{}, false
}

// index resolves obj[idx]. Missing keys and out-of-range indexes yield null.
func (ev *evaluator) index(node mdwast.Node, obj, idx interface{}) (interface{}, error) {
	if IsNil(obj) {
		return nil, nil
	}
	v := reflect.Indirect(reflect.ValueOf(obj))
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		num, ok := toNumber(idx)
		if !ok || !num.isInt {
			return nil, ev.errorf(node, "index must be an integer, got %T", idx)
		}
		i := int(num.i)
		if i < 0 || i >= v.Len() {
			return nil, nil
		}
		if v.Kind() == reflect.String {
			return string(v.String()[i]), nil
		}
		return v.Index(i).Interface(), nil
	case reflect.Map:
		key, ok := convertArg(idx, v.Type().Key())
		if !ok {
			return nil, ev.errorf(node, "cannot use %T as map key of type %s", idx, v.Type().Key())
		}
		e := v.MapIndex(key)
		if !e.IsValid() {
			return nil, nil
		}
		return e.Interface(), nil
	}
	if s, ok := idx.(string); ok {
		return ev.member(node, obj, s)
	}
	return nil, ev.errorf(node, "%T is not indexable", obj)
}

func asBool(v interface{}) (bool, bool) {
	if v == nil {
		return false, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Bool {
		return rv.Elem().Bool(), true
	}
	if IsNil(v) {
		return false, true
	}
	return false, false
}

// Stringify renders a value for string concatenation and messages
func Stringify(v interface{}) string {
	if IsNil(v) {
		return "null"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
