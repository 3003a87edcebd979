package validator

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/expression"
)

type identity struct {
	typ reflect.Type
	ptr uintptr
}

// identityOf returns the identity of pointers and maps. Other values have
// none and are never recorded as visited.
func identityOf(obj interface{}) (identity, bool) {
	if obj == nil {
		return identity{}, false
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	}
	return identity{}, false
}

// Cycle is the state of one validation run. It is confined to the
// goroutine running the validation.
type Cycle struct {
	ctx           context.Context
	root          interface{}
	path          []constraint.Context
	violations    []*constraint.Violation
	visited       map[identity]struct{}
	profiles      []string
	correlationID string
	expressions   *expression.Registry
}

func newCycle(ctx context.Context, root interface{}, profiles []string, expressions *expression.Registry) *Cycle {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Cycle{
		ctx:           ctx,
		root:          root,
		visited:       make(map[identity]struct{}),
		profiles:      profiles,
		correlationID: uuid.NewString(),
		expressions:   expressions,
	}
}

func (c *Cycle) Context() context.Context { return c.ctx }
func (c *Cycle) RootObject() interface{}  { return c.root }

// ContextPath returns a snapshot of the current path
func (c *Cycle) ContextPath() []constraint.Context {
	return append([]constraint.Context(nil), c.path...)
}

func (c *Cycle) PushContext(ctx constraint.Context) { c.path = append(c.path, ctx) }

func (c *Cycle) PopContext() {
	if len(c.path) > 0 {
		c.path = c.path[:len(c.path)-1]
	}
}

func (c *Cycle) AddViolation(v *constraint.Violation) { c.violations = append(c.violations, v) }

func (c *Cycle) Violations() []*constraint.Violation { return c.violations }

// MarkVisited records obj and reports whether it was not visited before.
// Values without identity are always reported as new.
func (c *Cycle) MarkVisited(obj interface{}) bool {
	id, ok := identityOf(obj)
	if !ok {
		return true
	}
	if _, seen := c.visited[id]; seen {
		return false
	}
	c.visited[id] = struct{}{}
	return true
}

func (c *Cycle) HasVisited(obj interface{}) bool {
	id, ok := identityOf(obj)
	if !ok {
		return false
	}
	_, seen := c.visited[id]
	return seen
}

// swapVisited installs a fresh visited set and returns the previous one
func (c *Cycle) swapVisited() map[identity]struct{} {
	prev := c.visited
	c.visited = make(map[identity]struct{}, 4)
	return prev
}

func (c *Cycle) restoreVisited(prev map[identity]struct{}) { c.visited = prev }

// Profiles returns the profiles given for this run, nil when the
// validator's enabled profiles apply
func (c *Cycle) Profiles() []string { return c.profiles }

func (c *Cycle) CorrelationID() string { return c.correlationID }

func (c *Cycle) Expressions() *expression.Registry { return c.expressions }

// CycleStack records the cycles of nested validations within one call
// chain
type CycleStack struct {
	cycles []*Cycle
}

func (s *CycleStack) Push(c *Cycle) { s.cycles = append(s.cycles, c) }

func (s *CycleStack) Pop() {
	if len(s.cycles) > 0 {
		s.cycles = s.cycles[:len(s.cycles)-1]
	}
}

// Current returns the innermost cycle, or nil
func (s *CycleStack) Current() *Cycle {
	if len(s.cycles) == 0 {
		return nil
	}
	return s.cycles[len(s.cycles)-1]
}

func (s *CycleStack) Len() int { return len(s.cycles) }

// VisitedByEnclosing reports whether a cycle on the stack other than
// current is visiting obj
func (s *CycleStack) VisitedByEnclosing(current *Cycle, obj interface{}) bool {
	for _, c := range s.cycles {
		if c != current && c.HasVisited(obj) {
			return true
		}
	}
	return false
}

type cycleStackKey struct{}

// WithCycleStack returns ctx carrying a cycle stack, reusing an existing
// one
func WithCycleStack(ctx context.Context) (context.Context, *CycleStack) {
	if s := CycleStackFrom(ctx); s != nil {
		return ctx, s
	}
	s := &CycleStack{}
	return context.WithValue(ctx, cycleStackKey{}, s), s
}

// CycleStackFrom returns the cycle stack of ctx, or nil
func CycleStackFrom(ctx context.Context) *CycleStack {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(cycleStackKey{}).(*CycleStack)
	return s
}
