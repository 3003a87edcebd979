// File: formula_test.go
// Title: Formula Engine Unit Tests
// Description: Tests for compilation, operator semantics, member access,
//              method invocation and built-in functions.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial engine tests
// - 2026-10-19 v0.2.0: Expression evaluation tests

package formula

import (
	"context"
	"errors"
	"testing"
	"time"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
)

type account struct {
	Owner   string
	Balance int
	Limit   *int
	Tags    []string
	Parent  *account
	calls   int
}

func (a *account) Available() int { return a.Balance + 100 }

func (a *account) Touch(ctx context.Context) string {
	a.calls++
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return "none"
}

func (a *account) Fail() (int, error) { return 0, errors.New("boom") }

func (a *account) Scale(f float64) float64 { return float64(a.Balance) * f }

type ctxKey struct{}

type record map[string]interface{}

type accessor struct{ values map[string]interface{} }

func (a accessor) FieldValue(name string) (interface{}, bool) {
	v, ok := a.values[name]
	return v, ok
}

func newEngine() *Engine {
	return New(Options{Logger: mdwlog.Discard()})
}

func TestEngine_Evaluate(t *testing.T) {
	acc := &account{Owner: "ada", Balance: 42, Tags: []string{"vip", "eu"}}
	vars := map[string]interface{}{
		"_this":  acc,
		"_value": "hello",
		"n":      int32(7),
		"f":      2.5,
		"none":   nil,
		"nilPtr": (*account)(nil),
		"rec":    record{"age": 30},
		"acc":    accessor{values: map[string]interface{}{"code": "X1"}},
		"d":      time.Second,
		"t1":     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"t2":     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name  string
		input string
		want  interface{}
	}{
		{"Integer comparison", "_this.Balance > 40", true},
		{"Mixed numeric types", "n = 7.0", true},
		{"Case-insensitive field", "_this.owner == 'ada'", true},
		{"Getter by member", "_this.Available = 142", true},
		{"Method call", "_this.Available()", 142},
		{"Keyword operators", "_this.Balance > 0 AND NOT (_this.Owner = 'bob')", true},
		{"Symbolic operators", "_this.Balance > 0 && !(_this.Owner == 'bob') || false", true},
		{"Not equals", "_value <> 'world'", true},
		{"Arithmetic precedence", "1 + 2 * 3", int64(7)},
		{"Integer division", "7 / 2", int64(3)},
		{"Float division", "7 / 2.0", 3.5},
		{"Modulo", "_this.Balance % 5", int64(2)},
		{"Unary minus", "-n + 10", int64(3)},
		{"String concatenation", "_value + ' ' + _this.Owner", "hello ada"},
		{"LIKE wildcard", "_value LIKE 'he%'", true},
		{"LIKE single char", "_value LIKE 'h_llo'", true},
		{"LIKE mismatch", "_value LIKE 'x%'", false},
		{"IN array literal", "_this.Owner IN ['ada', 'bob']", true},
		{"IN slice", "'eu' IN _this.Tags", true},
		{"IN string", "'ell' IN _value", true},
		{"Index", "_this.Tags[1]", "eu"},
		{"Index out of range", "_this.Tags[5] = null", true},
		{"Map member", "rec.age >= 18", true},
		{"Map index", "rec['age']", 30},
		{"Missing map key", "rec.name", nil},
		{"Field accessor", "acc.code", "X1"},
		{"Nil member chain", "_this.Parent.Owner", nil},
		{"Typed nil equals null", "nilPtr = null", true},
		{"Nil pointer field", "_this.Limit == null", true},
		{"Null literal", "none = NULL", true},
		{"Null is not zero", "none = 0", false},
		{"Duration compares as number", "d > 0", true},
		{"Time comparison", "t1 < t2", true},
		{"Function len", "len(_value)", int64(5)},
		{"Function empty", "empty(_this.Tags)", false},
		{"Function matches", "matches(_value, '^h.*o$')", true},
		{"Function upper", "upper(_this.Owner)", "ADA"},
		{"Function case-insensitive", "LEN(_this.Tags) = 2", true},
		{"Function coalesce", "coalesce(none, 'fallback')", "fallback"},
		{"Array literal", "len([1, 2, 3])", int64(3)},
		{"Float argument conversion", "_this.Scale(2)", 84.0},
		{"Short-circuit avoids error", "false AND missing.x", false},
	}

	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.input, vars)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.input, err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Evaluate(%q) = %v (%T), want %v (%T)", tt.input, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestEngine_EvaluateErrors(t *testing.T) {
	vars := map[string]interface{}{
		"_this": &account{Balance: 1},
		"s":     "text",
	}
	tests := []struct {
		name  string
		input string
	}{
		{"Unknown variable", "missing > 1"},
		{"Unknown member", "_this.Nope"},
		{"Unknown function", "nope(1)"},
		{"Compare string with number", "s > 1"},
		{"Non-boolean AND", "1 AND true"},
		{"Division by zero", "1 / 0"},
		{"Method error", "_this.Fail()"},
		{"Wrong arity", "_this.Available(1)"},
		{"Call on null", "null.Foo()"},
	}

	e := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.input, vars)
			if err == nil {
				t.Fatalf("Evaluate(%q) expected error", tt.input)
			}
			if !mdwerror.HasCode(err, mdwerror.CodeExpressionEvaluation) {
				t.Errorf("error code = %v, want %v", mdwerror.GetCode(err), mdwerror.CodeExpressionEvaluation)
			}
		})
	}
}

func TestEngine_CompileErrors(t *testing.T) {
	inputs := []string{
		"",
		"1 +",
		"(a",
		"a.",
		"'unterminated",
		"a & b",
		"a b",
	}
	e := newEngine()
	for _, input := range inputs {
		_, err := e.Compile(input)
		if err == nil {
			t.Errorf("Compile(%q) expected error", input)
			continue
		}
		if !mdwerror.HasCode(err, mdwerror.CodeExpressionSyntax) {
			t.Errorf("Compile(%q) code = %v", input, mdwerror.GetCode(err))
		}
	}
}

func TestProgram_ContextInjection(t *testing.T) {
	e := newEngine()
	prog, err := e.Compile("_this.Touch()")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	acc := &account{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "session-1")
	got, err := prog.Eval(ctx, map[string]interface{}{"_this": acc})
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got != "session-1" {
		t.Errorf("Eval() = %v, want session-1", got)
	}
	if acc.calls != 1 {
		t.Errorf("calls = %d, want 1", acc.calls)
	}
}

func TestProgram_CanceledContext(t *testing.T) {
	e := newEngine()
	prog, _ := e.Compile("_this.Available()")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := prog.Eval(ctx, map[string]interface{}{"_this": &account{}}); err == nil {
		t.Error("Eval() with canceled context expected error")
	}
}

func TestProgram_Variables(t *testing.T) {
	e := newEngine()
	prog, err := e.Compile("_this.a > _value AND len(_args) = _value")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	got := prog.Variables()
	want := []string{"_this", "_value", "_args"}
	if len(got) != len(want) {
		t.Fatalf("Variables() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Variables()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEngine_RegisterFunction(t *testing.T) {
	e := newEngine()
	if err := e.RegisterFunction("", nil); err == nil {
		t.Error("RegisterFunction with empty name expected error")
	}
	err := e.RegisterFunction("double", func(_ context.Context, args ...interface{}) (interface{}, error) {
		n, _ := args[0].(int64)
		return n * 2, nil
	})
	if err != nil {
		t.Fatalf("RegisterFunction() error = %v", err)
	}
	got, err := e.Evaluate(context.Background(), "Double(21)", nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got != int64(42) {
		t.Errorf("Double(21) = %v", got)
	}
}

func TestEqualAndCompare(t *testing.T) {
	if !Equal(uint8(3), 3.0) {
		t.Error("Equal(uint8(3), 3.0) = false")
	}
	if Equal("3", 3) {
		t.Error("strings must not equal numbers")
	}
	if !Equal([]int{1, 2}, []int{1, 2}) {
		t.Error("slices should compare deeply")
	}
	if _, ok := Compare(nil, 1); ok {
		t.Error("Compare(nil, 1) should not be ordered")
	}
	if c, ok := Compare("a", "b"); !ok || c >= 0 {
		t.Errorf("Compare(a, b) = %d, %v", c, ok)
	}
}
