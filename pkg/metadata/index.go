package metadata

import (
	"reflect"
	"sync"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
)

// Options configure an Index
type Options struct {
	Configurers    []Configurer
	ParameterNames ParameterNameResolver
	Logger         *mdwlog.Logger
}

// Index resolves and caches the ClassChecks of types. Reads are lock-free
// once a type is resolved; updates replace the entry with a modified copy.
type Index struct {
	entries sync.Map // reflect.Type -> *ClassChecks

	mu          sync.Mutex
	configurers []Configurer
	names       ParameterNameResolver
	logger      *mdwlog.Logger
}

// New creates an Index
func New(opts Options) *Index {
	logger := opts.Logger
	if logger == nil {
		logger = mdwlog.GetDefault().WithField("component", "metadata")
	}
	return &Index{
		configurers: append([]Configurer(nil), opts.Configurers...),
		names:       opts.ParameterNames,
		logger:      logger,
	}
}

// AddConfigurer registers c for types resolved from now on
func (x *Index) AddConfigurer(c Configurer) error {
	if c == nil {
		return constraint.InvalidArgument("configurer must not be nil")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.configurers = append(x.configurers, c)
	return nil
}

// ParameterNames returns the resolver used for parameter names, may be nil
func (x *Index) ParameterNames() ParameterNameResolver { return x.names }

// Get returns the checks of t, running the configurers on first access
func (x *Index) Get(t reflect.Type) (*ClassChecks, error) {
	if t == nil {
		return nil, constraint.InvalidArgument("type must not be nil")
	}
	t = constraint.NormalizeType(t)
	if v, ok := x.entries.Load(t); ok {
		return v.(*ClassChecks), nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	return x.resolveLocked(t)
}

func (x *Index) resolveLocked(t reflect.Type) (*ClassChecks, error) {
	if v, ok := x.entries.Load(t); ok {
		return v.(*ClassChecks), nil
	}
	b := &Builder{cc: newClassChecks(t), names: x.names}
	for _, c := range x.configurers {
		if err := c.Configure(b); err != nil {
			if mdwerror.GetCode(err) == mdwerror.CodeUnknown {
				err = mdwerror.Wrap(err, "configurer failed").
					WithCode(mdwerror.CodeInvalidConfiguration).
					WithSeverity(mdwerror.SeverityHigh).
					WithDetail("type", t.String())
			}
			return nil, err
		}
	}
	x.entries.Store(t, b.cc)
	x.logger.Trace("type resolved", mdwlog.Fields{"type": t.String(), "empty": b.cc.IsEmpty()})
	return b.cc, nil
}

// Update applies fn to a copy of the checks of t and publishes the copy
// when fn succeeds
func (x *Index) Update(t reflect.Type, fn func(b *Builder) error) error {
	if t == nil {
		return constraint.InvalidArgument("type must not be nil")
	}
	t = constraint.NormalizeType(t)

	x.mu.Lock()
	defer x.mu.Unlock()
	current, err := x.resolveLocked(t)
	if err != nil {
		return err
	}
	b := &Builder{cc: current.clone(), names: x.names}
	if err := fn(b); err != nil {
		return err
	}
	x.entries.Store(t, b.cc)
	return nil
}

// Reset drops the checks of t. The configurers run again on the next Get.
func (x *Index) Reset(t reflect.Type) {
	if t == nil {
		return
	}
	x.entries.Delete(constraint.NormalizeType(t))
}

func (x *Index) AddFieldChecks(t reflect.Type, field string, checks ...constraint.Check) error {
	return x.Update(t, func(b *Builder) error { return b.AddFieldChecks(field, checks...) })
}

func (x *Index) RemoveFieldChecks(t reflect.Type, field string, checks ...constraint.Check) error {
	return x.Update(t, func(b *Builder) error { return b.RemoveFieldChecks(field, checks...) })
}

func (x *Index) AddObjectChecks(t reflect.Type, checks ...constraint.Check) error {
	return x.Update(t, func(b *Builder) error { return b.AddObjectChecks(checks...) })
}

func (x *Index) AddMethodReturnChecks(m Method, invariant bool, checks ...constraint.Check) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.AddMethodReturnChecks(m, invariant, checks...) })
}

func (x *Index) AddMethodParameterChecks(m Method, index int, checks ...constraint.Check) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.AddMethodParameterChecks(m, index, checks...) })
}

func (x *Index) AddConstructorParameterChecks(m Method, index int, checks ...constraint.Check) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.AddConstructorParameterChecks(m, index, checks...) })
}

func (x *Index) AddCheckExclusions(m Method, index int, exclusions ...constraint.CheckExclusion) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.AddCheckExclusions(m, index, exclusions...) })
}

func (x *Index) AddMethodPreChecks(m Method, checks ...*constraint.PreCheck) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.AddMethodPreChecks(m, checks...) })
}

func (x *Index) AddMethodPostChecks(m Method, checks ...*constraint.PostCheck) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.AddMethodPostChecks(m, checks...) })
}

func (x *Index) SetGuarded(t reflect.Type, guarded bool) error {
	return x.Update(t, func(b *Builder) error {
		b.SetGuarded(guarded)
		return nil
	})
}

func (x *Index) SetCheckInvariants(t reflect.Type, check bool) error {
	return x.Update(t, func(b *Builder) error {
		b.SetCheckInvariants(check)
		return nil
	})
}

func (x *Index) EnableInvariantsPre(m Method) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.EnableInvariantsPre(m) })
}

func (x *Index) EnableInvariantsPost(m Method) error {
	return x.Update(m.Declaring, func(b *Builder) error { return b.EnableInvariantsPost(m) })
}
