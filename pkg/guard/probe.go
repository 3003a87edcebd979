package guard

import (
	"context"

	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/metadata"
)

// MethodCall is a guarded call recorded in probe mode
type MethodCall struct {
	Method metadata.Method
	Args   []interface{}
}

// ProbeModeListener records the calls made on an object in probe mode and
// the violations they would have raised
type ProbeModeListener struct {
	target     interface{}
	calls      []MethodCall
	violations []*constraint.ConstraintsViolatedError
}

func newProbeModeListener(target interface{}) *ProbeModeListener {
	return &ProbeModeListener{target: target}
}

func (p *ProbeModeListener) OnConstraintsViolated(_ context.Context, err *constraint.ConstraintsViolatedError) error {
	p.violations = append(p.violations, err)
	return nil
}

func (p *ProbeModeListener) onMethodCall(m metadata.Method, args []interface{}) {
	p.calls = append(p.calls, MethodCall{Method: m, Args: append([]interface{}(nil), args...)})
}

func (p *ProbeModeListener) Target() interface{} { return p.target }

func (p *ProbeModeListener) Calls() []MethodCall { return p.calls }

// Violations returns the errors the recorded calls would have raised
func (p *ProbeModeListener) Violations() []*constraint.ConstraintsViolatedError {
	return p.violations
}

// ArgsOf returns the arguments of the last recorded call of the named
// method, or nil
func (p *ProbeModeListener) ArgsOf(method string) []interface{} {
	for i := len(p.calls) - 1; i >= 0; i-- {
		if p.calls[i].Method.Name == method {
			return p.calls[i].Args
		}
	}
	return nil
}

// Clear forgets the recorded calls and violations
func (p *ProbeModeListener) Clear() {
	p.calls = nil
	p.violations = nil
}
