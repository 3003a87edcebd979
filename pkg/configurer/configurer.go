// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     configurer
// Description: Metadata configurer backed by declarative YAML/TOML rule files
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package configurer

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	mdwconfig "github.com/msto63/guardian/foundation/core/config"
	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/constraint/checks"
	"github.com/msto63/guardian/pkg/metadata"
)

// Options configures a Configurer
type Options struct {
	// Registry creates the named checks. A fresh registry is used when nil.
	// The configurer installs its type registry as the registry's type
	// resolver.
	Registry *checks.Registry
	Logger   *mdwlog.Logger
}

// Configurer feeds rule file declarations into a metadata.Index. Types are
// referenced by name and must be registered before rules naming them are
// loaded. It also serves as the parameter name resolver for the methods it
// declares.
type Configurer struct {
	registry *checks.Registry
	logger   *mdwlog.Logger
	names    *metadata.StaticParameterNames

	mu     sync.RWMutex
	types  map[string]reflect.Type
	byType map[reflect.Type][]TypeRules
	order  []string
}

// New creates a Configurer
func New(opts Options) *Configurer {
	if opts.Registry == nil {
		opts.Registry = checks.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault().WithField("component", "configurer")
	}
	c := &Configurer{
		registry: opts.Registry,
		logger:   opts.Logger,
		names:    metadata.NewStaticParameterNames(),
		types:    make(map[string]reflect.Type),
		byType:   make(map[reflect.Type][]TypeRules),
	}
	c.registry.SetTypeResolver(c.ResolveType)
	return c
}

// Register registers T under name
func Register[T any](c *Configurer, name string) error {
	return c.RegisterType(name, reflect.TypeOf((*T)(nil)).Elem())
}

// RegisterType makes t available to rule files under name
func (c *Configurer) RegisterType(name string, t reflect.Type) error {
	name = strings.TrimSpace(name)
	if name == "" || t == nil {
		return constraint.InvalidArgument("type name and type are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[name] = constraint.NormalizeType(t)
	return nil
}

// ResolveType returns the type registered under name
func (c *Configurer) ResolveType(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[name]
	return t, ok
}

// Registry returns the check registry
func (c *Configurer) Registry() *checks.Registry { return c.registry }

// LoadFile loads a rule file, detecting TOML or YAML from its extension
func (c *Configurer) LoadFile(path string) error {
	rs, err := ReadRules(path)
	if err != nil {
		return err
	}
	if err := c.Add(rs); err != nil {
		return mdwerror.Wrap(err, "invalid rule file").
			WithOperation("configurer.LoadFile").
			WithDetail("filePath", path)
	}
	return nil
}

// ReadRules parses a rule file without adding it. .json files are read
// with the YAML decoder.
func ReadRules(path string) (*RuleSet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		code := mdwerror.CodeConfigError
		if os.IsNotExist(err) {
			code = mdwerror.CodeNotFound
		}
		return nil, mdwerror.Wrap(err, "failed to read rule file").
			WithCode(code).
			WithOperation("configurer.ReadRules").
			WithDetail("filePath", path)
	}
	format := mdwconfig.DetectFormat(path)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = mdwconfig.FormatYAML
	}
	rs, err := ParseRules(content, format)
	if err != nil {
		return nil, mdwerror.Wrap(err, "invalid rule file").
			WithOperation("configurer.ReadRules").
			WithDetail("filePath", path)
	}
	return rs, nil
}

// Load parses rules and adds them. Nothing is added when any declaration
// is invalid.
func (c *Configurer) Load(content []byte, format mdwconfig.Format) error {
	rs, err := ParseRules(content, format)
	if err != nil {
		return err
	}
	return c.Add(rs)
}

// Add adds the declarations of rs
func (c *Configurer) Add(rs *RuleSet) error {
	if rs == nil {
		return constraint.InvalidArgument("rule set is required")
	}

	resolved := make([]reflect.Type, len(rs.Types))
	pending := make(map[reflect.Type][]TypeRules)
	for i, tr := range rs.Types {
		t, ok := c.ResolveType(tr.Type)
		if !ok {
			return constraint.InvalidConfiguration("unknown type", map[string]interface{}{"type": tr.Type})
		}
		resolved[i] = t
		pending[t] = append(pending[t], tr)
	}

	// Dry run against a throwaway index so that unknown fields, missing
	// methods and unguarded method checks are reported now.
	for t, rules := range pending {
		c.mu.RLock()
		all := append(append([]TypeRules(nil), c.byType[t]...), rules...)
		c.mu.RUnlock()

		probe := metadata.New(metadata.Options{
			Configurers: []metadata.Configurer{metadata.ConfigurerFunc(func(b *metadata.Builder) error {
				return c.build(b, all)
			})},
			Logger: mdwlog.Discard(),
		})
		if _, err := probe.Get(t); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tr := range rs.Types {
		t := resolved[i]
		if _, seen := c.byType[t]; !seen {
			c.order = append(c.order, tr.Type)
		}
		c.byType[t] = append(c.byType[t], tr)
		for _, mr := range tr.Methods {
			m, err := resolveMethod(t, mr)
			if err != nil {
				continue
			}
			if names := parameterNames(mr); names != nil {
				c.names.Register(m, names...)
			}
		}
	}

	c.logger.Debug("Rules loaded", mdwlog.Fields{"types": len(rs.Types)})
	return nil
}

// Rules returns the loaded declarations of every type in load order
func (c *Configurer) Rules() []TypeRules {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []TypeRules
	for _, name := range c.order {
		out = append(out, c.byType[c.types[name]]...)
	}
	return out
}

// TypeNames returns the registered type names, sorted
func (c *Configurer) TypeNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParameterNames implements metadata.ParameterNameResolver
func (c *Configurer) ParameterNames(m metadata.Method) []string {
	return c.names.ParameterNames(m)
}

// Configure implements metadata.Configurer. Each call builds fresh check
// instances.
func (c *Configurer) Configure(b *metadata.Builder) error {
	c.mu.RLock()
	rules := append([]TypeRules(nil), c.byType[b.Type()]...)
	c.mu.RUnlock()
	return c.build(b, rules)
}

func (c *Configurer) build(b *metadata.Builder, rules []TypeRules) error {
	for _, tr := range rules {
		ct, err := c.compile(b.Type(), tr)
		if err != nil {
			return err
		}
		if err := ct.apply(b); err != nil {
			return err
		}
	}
	return nil
}

// compiled holds the check instances of one TypeRules
type compiled struct {
	guarded         bool
	checkInvariants *bool
	fields          []compiledMember
	invariants      []compiledMember
	object          []constraint.Check
	methods         []compiledMethod
}

type compiledMember struct {
	name   string
	checks []constraint.Check
}

type compiledMethod struct {
	method         metadata.Method
	params         [][]constraint.Check
	exclusions     [][]constraint.CheckExclusion
	returns        []constraint.Check
	pre            []*constraint.PreCheck
	post           []*constraint.PostCheck
	invariantsPre  bool
	invariantsPost bool
}

func (c *Configurer) compile(t reflect.Type, tr TypeRules) (*compiled, error) {
	ct := &compiled{guarded: tr.Guarded, checkInvariants: tr.CheckInvariants}
	var err error

	for _, f := range tr.Fields {
		m := compiledMember{name: f.Name}
		if m.checks, err = c.createChecks(f.Checks, tr.Type, f.Name); err != nil {
			return nil, err
		}
		ct.fields = append(ct.fields, m)
	}
	for _, inv := range tr.Invariants {
		m := compiledMember{name: inv.Name}
		if m.checks, err = c.createChecks(inv.Checks, tr.Type, inv.Name); err != nil {
			return nil, err
		}
		ct.invariants = append(ct.invariants, m)
	}
	if ct.object, err = c.createChecks(tr.Object, tr.Type, ""); err != nil {
		return nil, err
	}

	for _, mr := range tr.Methods {
		cm := compiledMethod{invariantsPre: mr.InvariantsPre, invariantsPost: mr.InvariantsPost}
		if cm.method, err = resolveMethod(t, mr); err != nil {
			return nil, err
		}
		for _, p := range mr.Parameters {
			pc, err := c.createChecks(p.Checks, tr.Type, mr.Name)
			if err != nil {
				return nil, err
			}
			pe, err := c.createExclusions(p.Exclusions, tr.Type, mr.Name)
			if err != nil {
				return nil, err
			}
			cm.params = append(cm.params, pc)
			cm.exclusions = append(cm.exclusions, pe)
		}
		if cm.returns, err = c.createChecks(mr.Returns, tr.Type, mr.Name); err != nil {
			return nil, err
		}
		for _, spec := range mr.Pre {
			if strings.TrimSpace(spec.Expr) == "" {
				return nil, constraint.InvalidConfiguration("pre condition requires an expression", map[string]interface{}{"type": tr.Type, "method": mr.Name})
			}
			pre := constraint.NewPreCheck(spec.Expr)
			pre.SetLang(spec.Lang)
			applyCondition(pre, spec)
			cm.pre = append(cm.pre, pre)
		}
		for _, spec := range mr.Post {
			if strings.TrimSpace(spec.Expr) == "" {
				return nil, constraint.InvalidConfiguration("post condition requires an expression", map[string]interface{}{"type": tr.Type, "method": mr.Name})
			}
			post := constraint.NewPostCheck(spec.Expr)
			post.SetLang(spec.Lang)
			post.SetOld(spec.Old)
			applyCondition(post, spec)
			cm.post = append(cm.post, post)
		}
		ct.methods = append(ct.methods, cm)
	}
	return ct, nil
}

func applyCondition(c constraint.Check, spec ConditionSpec) {
	if spec.Message != "" {
		c.SetMessage(spec.Message)
	}
	if spec.ErrorCode != "" {
		c.SetErrorCode(spec.ErrorCode)
	}
	if spec.Severity != 0 {
		c.SetSeverity(spec.Severity)
	}
	if len(spec.Profiles) > 0 {
		c.SetProfiles(spec.Profiles...)
	}
	c.SetWhen(spec.When)
}

func (c *Configurer) createChecks(specs []CheckSpec, typeName, member string) ([]constraint.Check, error) {
	out := make([]constraint.Check, 0, len(specs))
	for _, spec := range specs {
		check, err := c.registry.Create(spec.Name(), spec.Options())
		if err != nil {
			return nil, annotate(err, typeName, member)
		}
		out = append(out, check)
	}
	return out, nil
}

func (c *Configurer) createExclusions(specs []CheckSpec, typeName, member string) ([]constraint.CheckExclusion, error) {
	out := make([]constraint.CheckExclusion, 0, len(specs))
	for _, spec := range specs {
		e, err := c.registry.CreateExclusion(spec.Name(), spec.Options())
		if err != nil {
			return nil, annotate(err, typeName, member)
		}
		out = append(out, e)
	}
	return out, nil
}

func annotate(err error, typeName, member string) error {
	if e, ok := err.(*mdwerror.Error); ok {
		e = e.WithDetail("type", typeName)
		if member != "" {
			e = e.WithDetail("member", member)
		}
		return e
	}
	return err
}

func (ct *compiled) apply(b *metadata.Builder) error {
	if ct.guarded {
		b.SetGuarded(true)
	}
	if ct.checkInvariants != nil {
		b.SetCheckInvariants(*ct.checkInvariants)
	}

	for _, f := range ct.fields {
		if len(f.checks) == 0 {
			continue
		}
		if err := b.AddFieldChecks(f.name, f.checks...); err != nil {
			return err
		}
	}
	if len(ct.object) > 0 {
		if err := b.AddObjectChecks(ct.object...); err != nil {
			return err
		}
	}
	for _, inv := range ct.invariants {
		if len(inv.checks) == 0 {
			continue
		}
		getter := metadata.NewMethod(b.Type(), inv.name, getterArity(b.Type(), inv.name), metadata.KindMethod)
		if err := b.AddMethodReturnChecks(getter, true, inv.checks...); err != nil {
			return err
		}
	}

	for _, cm := range ct.methods {
		if err := cm.apply(b); err != nil {
			return err
		}
	}
	return nil
}

func (cm *compiledMethod) apply(b *metadata.Builder) error {
	m := cm.method
	for i, pc := range cm.params {
		if len(pc) > 0 {
			var err error
			if m.Kind == metadata.KindConstructor {
				err = b.AddConstructorParameterChecks(m, i, pc...)
			} else {
				err = b.AddMethodParameterChecks(m, i, pc...)
			}
			if err != nil {
				return err
			}
		}
		if len(cm.exclusions[i]) > 0 {
			if err := b.AddCheckExclusions(m, i, cm.exclusions[i]...); err != nil {
				return err
			}
		}
	}
	if len(cm.returns) > 0 {
		if err := b.AddMethodReturnChecks(m, false, cm.returns...); err != nil {
			return err
		}
	}
	if len(cm.pre) > 0 {
		if err := b.AddMethodPreChecks(m, cm.pre...); err != nil {
			return err
		}
	}
	if len(cm.post) > 0 {
		if err := b.AddMethodPostChecks(m, cm.post...); err != nil {
			return err
		}
	}
	if cm.invariantsPre {
		if err := b.EnableInvariantsPre(m); err != nil {
			return err
		}
	}
	if cm.invariantsPost {
		if err := b.EnableInvariantsPost(m); err != nil {
			return err
		}
	}
	return nil
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// methodArity finds name in the method set of *t and counts its parameters
// without the receiver and a leading context.Context
func methodArity(t reflect.Type, name string) (int, bool) {
	var ft reflect.Type
	skip := 1
	if t.Kind() == reflect.Interface {
		im, ok := t.MethodByName(name)
		if !ok {
			return 0, false
		}
		ft, skip = im.Type, 0
	} else {
		pm, ok := reflect.PointerTo(t).MethodByName(name)
		if !ok {
			return 0, false
		}
		ft = pm.Type
	}
	n := ft.NumIn() - skip
	if n > 0 && ft.In(skip) == contextType {
		n--
	}
	return n, true
}

// getterArity returns the arity of an invariant getter, or -1 when the type
// has no such method
func getterArity(t reflect.Type, name string) int {
	if n, ok := methodArity(t, name); ok {
		return n
	}
	return -1
}

func parseKind(kind string) (metadata.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "method":
		return metadata.KindMethod, true
	case "constructor":
		return metadata.KindConstructor, true
	case "static":
		return metadata.KindStatic, true
	}
	return 0, false
}

// resolveMethod describes mr for t. The arity comes from the rule, from
// reflection for exported methods, or from the parameter entries.
func resolveMethod(t reflect.Type, mr MethodRules) (metadata.Method, error) {
	if strings.TrimSpace(mr.Name) == "" {
		return metadata.Method{}, constraint.InvalidConfiguration("method name is required", map[string]interface{}{"type": constraint.TypeName(t)})
	}
	kind, ok := parseKind(mr.Kind)
	if !ok {
		return metadata.Method{}, constraint.InvalidConfiguration("unknown method kind", map[string]interface{}{"method": mr.Name, "kind": mr.Kind})
	}

	var arity int
	switch {
	case mr.Arity != nil:
		arity = *mr.Arity
	case kind == metadata.KindMethod:
		n, found := methodArity(t, mr.Name)
		if !found {
			if len(mr.Parameters) == 0 {
				return metadata.Method{}, constraint.InvalidConfiguration("method not found", map[string]interface{}{"type": constraint.TypeName(t), "method": mr.Name})
			}
			n = len(mr.Parameters)
		}
		arity = n
	default:
		arity = len(mr.Parameters)
	}
	if len(mr.Parameters) > arity {
		return metadata.Method{}, constraint.InvalidConfiguration("more parameters than the method takes", map[string]interface{}{
			"method": mr.Name,
			"arity":  arity,
		})
	}
	return metadata.NewMethod(t, mr.Name, arity, kind), nil
}

// parameterNames returns the declared names when every parameter of the
// rule is named
func parameterNames(mr MethodRules) []string {
	if len(mr.Parameters) == 0 {
		return nil
	}
	names := make([]string, len(mr.Parameters))
	for i, p := range mr.Parameters {
		if p.Name == "" {
			return nil
		}
		names[i] = p.Name
	}
	return names
}
