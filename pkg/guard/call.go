package guard

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tiendc/go-deepcopy"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/metadata"
	"github.com/msto63/guardian/pkg/validator"
)

// PreResult carries a guarded call from GuardMethodPre to GuardMethodPost
type PreResult struct {
	ctx             context.Context
	session         *Session
	receiver        interface{}
	guarded         interface{}
	guardedType     reflect.Type
	method          metadata.Method
	args            []interface{}
	names           []string
	cc              *metadata.ClassChecks
	checkInvariants bool
	old             map[*constraint.PostCheck]interface{}
	cycle           *validator.Cycle
	phase           *phaseMachine
	passthrough     bool
}

// Context returns the context the call must run with. It carries the
// session of the call chain.
func (r *PreResult) Context() context.Context { return r.ctx }

// Phase returns the current phase of the call
func (r *PreResult) Phase() string {
	if r.phase == nil {
		return PhaseReady
	}
	return r.phase.Current()
}

// Abort marks a checked call whose body failed
func (r *PreResult) Abort() {
	if r.phase != nil {
		r.phase.abort()
	}
}

func checkCall(receiver interface{}, m metadata.Method, args []interface{}, kinds ...metadata.Kind) error {
	if !m.Found() {
		return constraint.InvalidArgument("method is not resolved")
	}
	kindOK := false
	for _, k := range kinds {
		kindOK = kindOK || m.Kind == k
	}
	if !kindOK {
		return constraint.InvalidArgument(fmt.Sprintf("%s is a %s", m, m.Kind))
	}
	if m.Kind == metadata.KindMethod && constraint.IsNil(receiver) {
		return constraint.InvalidArgument("receiver must not be nil for " + m.String())
	}
	if len(args) != m.Arity {
		return constraint.InvalidArgument(fmt.Sprintf("%s takes %d arguments, got %d", m, m.Arity, len(args)))
	}
	return nil
}

func reentrancyKeyOf(guarded interface{}, m metadata.Method) reentrancyKey {
	key, err := keyOf(guarded)
	if err != nil {
		key = objectKey{typ: reflect.TypeOf(guarded)}
	}
	return reentrancyKey{object: key, method: m}
}

func callBindings(receiver interface{}, args []interface{}, names []string) constraint.Bindings {
	b := constraint.Bindings{
		constraint.BindingThis: receiver,
		constraint.BindingArgs: append([]interface{}{}, args...),
	}
	for i, name := range names {
		b[name] = args[i]
	}
	return b
}

func parameterFrame(t reflect.Type, m metadata.Method, index int, names []string) constraint.Context {
	kind := constraint.ContextMethodParameter
	if m.Kind == metadata.KindConstructor {
		kind = constraint.ContextConstructorParameter
	}
	frame := constraint.Context{Kind: kind, Type: t, Name: m.Name, Index: index}
	if names != nil {
		frame.Param = names[index]
	}
	return frame
}

func preChecks(cc *metadata.ClassChecks, m metadata.Method) []constraint.Check {
	var out []constraint.Check
	for _, c := range cc.PreChecks(m) {
		out = append(out, c)
	}
	return out
}

func (g *Guard) invariantsActive(t reflect.Type, cc *metadata.ClassChecks) bool {
	return g.invariants.enabledFor(t) && cc.IsCheckInvariants()
}

// GuardMethodPre runs the checks due before m is called on receiver. A nil
// result without error means the call must not run and its zero value is
// the result; this happens for objects in probe mode. Otherwise the call
// runs with the result's Context and GuardMethodPost follows it.
//
// Violations are returned as *constraint.ConstraintsViolatedError after the
// listeners were notified.
func (g *Guard) GuardMethodPre(ctx context.Context, receiver interface{}, m metadata.Method, args []interface{}) (*PreResult, error) {
	if err := checkCall(receiver, m, args, metadata.KindMethod, metadata.KindStatic); err != nil {
		return nil, err
	}
	ctx, session := WithSession(ctx)
	t := constraint.NormalizeType(m.Declaring)
	if !g.IsActivatedFor(t) {
		return &PreResult{ctx: ctx, passthrough: true}, nil
	}
	cc, err := g.Index().Get(t)
	if err != nil {
		return nil, constraint.ValidationFailed(err, "guard.pre")
	}
	if !cc.IsGuarded() {
		return &PreResult{ctx: ctx, passthrough: true}, nil
	}

	guarded, guardedType := receiver, reflect.TypeOf(receiver)
	if m.Kind == metadata.KindStatic {
		guarded, guardedType = t, t
	}
	res := &PreResult{
		ctx:             ctx,
		session:         session,
		receiver:        receiver,
		guarded:         guarded,
		guardedType:     guardedType,
		method:          m,
		args:            args,
		names:           metadata.ParameterNamesOf(g.Index().ParameterNames(), m),
		cc:              cc,
		checkInvariants: m.Kind == metadata.KindMethod && g.invariantsActive(t, cc) && !m.IsPrivate(),
		phase:           newPhaseMachine(m, g.logger),
	}

	res.cycle = g.NewCycle(ctx, guarded, nil)
	err = g.runPre(res)
	g.ReleaseCycle(res.cycle)
	if err != nil {
		res.phase.abort()
		return nil, err
	}

	pml := session.probeListener(guarded)
	if pml != nil {
		pml.onMethodCall(m, args)
	}
	if violations := res.cycle.Violations(); len(violations) > 0 {
		res.phase.abort()
		violated := constraint.ViolatedError(m.String(), violations)
		if pml != nil {
			g.notifyListener(ctx, pml, violated)
			g.notifyListeners(ctx, guarded, guardedType, violated, pml)
			return nil, nil
		}
		g.notifyListeners(ctx, guarded, guardedType, violated, nil)
		return nil, violated
	}
	if pml != nil {
		res.phase.abort()
		return nil, nil
	}

	if res.old, err = g.evaluateOld(res); err != nil {
		res.phase.abort()
		return nil, err
	}
	if err := res.phase.fire(eventCheck); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *Guard) runPre(res *PreResult) error {
	m, cc, cycle := res.method, res.cc, res.cycle
	if m.Kind == metadata.KindMethod && (res.checkInvariants || cc.InvariantsPreEnabled(m)) {
		if err := g.ValidateInvariants(cycle, res.receiver); err != nil {
			return err
		}
	}
	t := cc.Type()
	if !g.pre.enabledFor(t) {
		return nil
	}

	key := reentrancyKeyOf(res.guarded, m)
	if !enter(res.session.pre, key) {
		return nil
	}
	defer delete(res.session.pre, key)

	if len(res.args) > 0 && len(cycle.Violations()) == 0 {
		if err := g.validateParameters(cycle, cc, res.receiver, m, res.args, res.names); err != nil {
			return err
		}
	}
	if len(cycle.Violations()) > 0 {
		return nil
	}
	frame := constraint.Context{Kind: constraint.ContextMethodEntry, Type: t, Name: m.Name}
	return g.CheckValue(cycle, frame, preChecks(cc, m), nil, res.receiver, callBindings(res.receiver, res.args, res.names))
}

func (g *Guard) validateParameters(cycle *validator.Cycle, cc *metadata.ClassChecks, receiver interface{}, m metadata.Method, args []interface{}, names []string) error {
	for i, arg := range args {
		pc := cc.ParameterChecks(m, i)
		if pc == nil || len(pc.Checks) == 0 {
			continue
		}
		frame := parameterFrame(cc.Type(), m, i, names)
		if err := g.CheckValue(cycle, frame, pc.Checks, pc.Exclusions, receiver, arg); err != nil {
			return err
		}
	}
	return nil
}

// evaluateOld evaluates the old expressions of the active post conditions
// and snapshots their values
func (g *Guard) evaluateOld(res *PreResult) (map[*constraint.PostCheck]interface{}, error) {
	postChecks := res.cc.PostChecks(res.method)
	if len(postChecks) == 0 || !g.post.enabledFor(res.cc.Type()) {
		return nil, nil
	}
	bindings := callBindings(res.receiver, res.args, res.names)
	old := make(map[*constraint.PostCheck]interface{})
	for _, pc := range postChecks {
		if pc.Old() == "" || !g.ProfilesActive(res.cycle, pc.Profiles()) {
			continue
		}
		v, err := pc.EvaluateOld(res.cycle, bindings)
		if err != nil {
			return nil, constraint.ValidationFailed(err, "guard.old")
		}
		old[pc] = g.snapshot(v)
	}
	return old, nil
}

// snapshot deep copies v so that the call cannot change it
func (g *Guard) snapshot(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	dst := reflect.New(reflect.TypeOf(v))
	if err := deepcopy.Copy(dst.Interface(), v); err != nil {
		g.logger.Debug("old value kept without copy", mdwlog.Fields{
			"type":  fmt.Sprintf("%T", v),
			"error": err.Error(),
		})
		return v
	}
	return dst.Elem().Interface()
}

// GuardMethodPost runs the checks due after the call described by pre
// returned returnValue
func (g *Guard) GuardMethodPost(ctx context.Context, returnValue interface{}, pre *PreResult) error {
	if pre == nil {
		return mdwerror.New("post phase without a pre result").WithCode(mdwerror.CodeInvalidSequence)
	}
	if pre.passthrough {
		return nil
	}
	if err := pre.phase.fire(eventComplete); err != nil {
		return err
	}
	if ctx == nil {
		ctx = pre.ctx
	}

	pre.session.stack.Push(pre.cycle)
	err := g.runPost(pre, returnValue)
	g.ReleaseCycle(pre.cycle)
	if err != nil {
		return err
	}

	if violations := pre.cycle.Violations(); len(violations) > 0 {
		violated := constraint.ViolatedError(pre.method.String(), violations)
		g.notifyListeners(ctx, pre.guarded, pre.guardedType, violated, nil)
		return violated
	}
	return nil
}

func (g *Guard) runPost(pre *PreResult, returnValue interface{}) error {
	m, cc, cycle := pre.method, pre.cc, pre.cycle
	if m.Kind == metadata.KindMethod && (pre.checkInvariants || cc.InvariantsPostEnabled(m)) {
		if err := g.ValidateInvariants(cycle, pre.receiver); err != nil {
			return err
		}
	}
	t := cc.Type()
	if !g.post.enabledFor(t) {
		return nil
	}

	if len(cycle.Violations()) == 0 {
		if err := g.checkReturnValue(pre, returnValue); err != nil {
			return err
		}
	}
	if len(cycle.Violations()) > 0 {
		return nil
	}

	key := reentrancyKeyOf(pre.guarded, m)
	if !enter(pre.session.post, key) {
		return nil
	}
	defer delete(pre.session.post, key)

	frame := constraint.Context{Kind: constraint.ContextMethodExit, Type: t, Name: m.Name}
	for _, pc := range cc.PostChecks(m) {
		bindings := callBindings(pre.receiver, pre.args, pre.names)
		bindings[constraint.BindingReturns] = returnValue
		bindings[constraint.BindingOld] = pre.old[pc]
		if err := g.CheckValue(cycle, frame, []constraint.Check{pc}, nil, pre.receiver, bindings); err != nil {
			return err
		}
	}
	return nil
}

func (g *Guard) checkReturnValue(pre *PreResult, returnValue interface{}) error {
	checks := pre.cc.ReturnChecks(pre.method)
	if len(checks) == 0 {
		return nil
	}
	key := reentrancyKeyOf(pre.guarded, pre.method)
	if !enter(pre.session.returns, key) {
		return nil
	}
	defer delete(pre.session.returns, key)

	frame := constraint.Context{Kind: constraint.ContextMethodReturnValue, Type: pre.cc.Type(), Name: pre.method.Name}
	return g.CheckValue(pre.cycle, frame, checks, nil, pre.receiver, returnValue)
}

// Call guards fn as the body of m on receiver. fn receives the context
// carrying the call's session. Calls aborted in probe mode return the zero
// value of R.
func Call[R any](ctx context.Context, g *Guard, receiver interface{}, m metadata.Method, args []interface{}, fn func(ctx context.Context) (R, error)) (R, error) {
	var zero R
	pre, err := g.GuardMethodPre(ctx, receiver, m, args)
	if err != nil || pre == nil {
		return zero, err
	}
	result, err := fn(pre.Context())
	if err != nil {
		pre.Abort()
		return zero, err
	}
	if err := g.GuardMethodPost(pre.Context(), result, pre); err != nil {
		return zero, err
	}
	return result, nil
}

// Invoke is Call for untyped results
func (g *Guard) Invoke(ctx context.Context, receiver interface{}, m metadata.Method, args []interface{}, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return Call(ctx, g, receiver, m, args, fn)
}

// Construct guards the constructor m. Parameter checks and pre conditions
// run before fn; the invariants of the constructed object after it.
func Construct[T any](ctx context.Context, g *Guard, m metadata.Method, args []interface{}, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := checkCall(nil, m, args, metadata.KindConstructor); err != nil {
		return zero, err
	}
	ctx, _ = WithSession(ctx)
	t := constraint.NormalizeType(m.Declaring)
	if !g.IsActivatedFor(t) {
		return fn(ctx)
	}
	cc, err := g.Index().Get(t)
	if err != nil {
		return zero, constraint.ValidationFailed(err, "guard.constructor")
	}
	if !cc.IsGuarded() {
		return fn(ctx)
	}

	phase := newPhaseMachine(m, g.logger)
	if g.pre.enabledFor(t) {
		if err := g.checkConstructorArgs(ctx, cc, m, args); err != nil {
			phase.abort()
			return zero, err
		}
	}
	if err := phase.fire(eventCheck); err != nil {
		return zero, err
	}

	obj, err := fn(ctx)
	if err != nil {
		phase.abort()
		return zero, err
	}
	if err := phase.fire(eventComplete); err != nil {
		return zero, err
	}

	if g.invariantsActive(t, cc) || cc.InvariantsPostEnabled(m) {
		cycle := g.NewCycle(ctx, obj, nil)
		err := g.ValidateInvariants(cycle, obj)
		g.ReleaseCycle(cycle)
		if err != nil {
			return zero, err
		}
		if violations := cycle.Violations(); len(violations) > 0 {
			violated := constraint.ViolatedError(m.String(), violations)
			g.notifyListeners(ctx, obj, reflect.TypeOf(obj), violated, nil)
			return zero, violated
		}
	}
	return obj, nil
}

func (g *Guard) checkConstructorArgs(ctx context.Context, cc *metadata.ClassChecks, m metadata.Method, args []interface{}) error {
	t := cc.Type()
	names := metadata.ParameterNamesOf(g.Index().ParameterNames(), m)
	cycle := g.NewCycle(ctx, t, nil)
	defer g.ReleaseCycle(cycle)

	if err := g.validateParameters(cycle, cc, nil, m, args, names); err != nil {
		return err
	}
	if len(cycle.Violations()) == 0 {
		frame := constraint.Context{Kind: constraint.ContextMethodEntry, Type: t, Name: m.Name}
		if err := g.CheckValue(cycle, frame, preChecks(cc, m), nil, nil, callBindings(nil, args, names)); err != nil {
			return err
		}
	}
	if violations := cycle.Violations(); len(violations) > 0 {
		violated := constraint.ViolatedError(m.String(), violations)
		g.notifyListeners(ctx, t, t, violated, nil)
		return violated
	}
	return nil
}

// GuardConstructor is Construct for untyped results
func (g *Guard) GuardConstructor(ctx context.Context, m metadata.Method, args []interface{}, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return Construct(ctx, g, m, args, fn)
}
