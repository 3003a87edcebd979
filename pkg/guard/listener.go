package guard

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
)

// Listener is notified about violations of guarded calls before the error
// reaches the caller. Returned errors and panics are logged and ignored.
// Listeners are compared by value and must be comparable.
type Listener interface {
	OnConstraintsViolated(ctx context.Context, err *constraint.ConstraintsViolatedError) error
}

type listenerFunc struct {
	fn func(ctx context.Context, err *constraint.ConstraintsViolatedError) error
}

func (l *listenerFunc) OnConstraintsViolated(ctx context.Context, err *constraint.ConstraintsViolatedError) error {
	return l.fn(ctx, err)
}

// NewListenerFunc adapts fn to a Listener. Every call returns a distinct
// listener.
func NewListenerFunc(fn func(ctx context.Context, err *constraint.ConstraintsViolatedError) error) Listener {
	return &listenerFunc{fn: fn}
}

type objectListeners struct {
	object    interface{} // keeps the address stable while registered
	listeners []Listener
}

type listenerRegistry struct {
	mu       sync.RWMutex
	global   []Listener
	byType   map[reflect.Type][]Listener
	byObject map[objectKey]*objectListeners
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		byType:   make(map[reflect.Type][]Listener),
		byObject: make(map[objectKey]*objectListeners),
	}
}

func checkListener(l Listener) error {
	if l == nil {
		return constraint.InvalidArgument("listener must not be nil")
	}
	if !reflect.TypeOf(l).Comparable() {
		return constraint.InvalidArgument(fmt.Sprintf("listener of type %T is not comparable", l))
	}
	return nil
}

func addListener(list []Listener, l Listener) ([]Listener, bool) {
	for _, x := range list {
		if x == l {
			return list, false
		}
	}
	return append(list, l), true
}

func removeListener(list []Listener, l Listener) ([]Listener, bool) {
	for i, x := range list {
		if x == l {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}

func containsListener(list []Listener, l Listener) bool {
	for _, x := range list {
		if x == l {
			return true
		}
	}
	return false
}

// AddListener registers l for violations of every guarded call. It reports
// whether l was not yet registered.
func (g *Guard) AddListener(l Listener) (bool, error) {
	if err := checkListener(l); err != nil {
		return false, err
	}
	r := g.listeners
	r.mu.Lock()
	defer r.mu.Unlock()
	var added bool
	r.global, added = addListener(r.global, l)
	return added, nil
}

// AddTypeListener registers l for calls on receivers of type t. Interface
// types match every implementing receiver.
func (g *Guard) AddTypeListener(t reflect.Type, l Listener) (bool, error) {
	if t == nil {
		return false, constraint.InvalidArgument("type must not be nil")
	}
	if err := checkListener(l); err != nil {
		return false, err
	}
	if t.Kind() != reflect.Interface {
		t = constraint.NormalizeType(t)
	}
	r := g.listeners
	r.mu.Lock()
	defer r.mu.Unlock()
	var added bool
	r.byType[t], added = addListener(r.byType[t], l)
	return added, nil
}

// AddObjectListener registers l for calls on obj
func (g *Guard) AddObjectListener(obj interface{}, l Listener) (bool, error) {
	key, err := keyOf(obj)
	if err != nil {
		return false, err
	}
	if err := checkListener(l); err != nil {
		return false, err
	}
	r := g.listeners
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byObject[key]
	if !ok {
		entry = &objectListeners{object: obj}
		r.byObject[key] = entry
	}
	var added bool
	entry.listeners, added = addListener(entry.listeners, l)
	return added, nil
}

// RemoveListener unregisters a global listener
func (g *Guard) RemoveListener(l Listener) bool {
	r := g.listeners
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed bool
	r.global, removed = removeListener(r.global, l)
	return removed
}

func (g *Guard) RemoveTypeListener(t reflect.Type, l Listener) bool {
	if t == nil {
		return false
	}
	if t.Kind() != reflect.Interface {
		t = constraint.NormalizeType(t)
	}
	r := g.listeners
	r.mu.Lock()
	defer r.mu.Unlock()
	list, removed := removeListener(r.byType[t], l)
	if len(list) == 0 {
		delete(r.byType, t)
	} else {
		r.byType[t] = list
	}
	return removed
}

func (g *Guard) RemoveObjectListener(obj interface{}, l Listener) bool {
	key, err := keyOf(obj)
	if err != nil {
		return false
	}
	r := g.listeners
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byObject[key]
	if !ok {
		return false
	}
	var removed bool
	entry.listeners, removed = removeListener(entry.listeners, l)
	if len(entry.listeners) == 0 {
		delete(r.byObject, key)
	}
	return removed
}

// HasListener reports whether l is registered globally
func (g *Guard) HasListener(l Listener) bool {
	g.listeners.mu.RLock()
	defer g.listeners.mu.RUnlock()
	return containsListener(g.listeners.global, l)
}

func (g *Guard) HasTypeListener(t reflect.Type, l Listener) bool {
	if t == nil {
		return false
	}
	if t.Kind() != reflect.Interface {
		t = constraint.NormalizeType(t)
	}
	g.listeners.mu.RLock()
	defer g.listeners.mu.RUnlock()
	return containsListener(g.listeners.byType[t], l)
}

func (g *Guard) HasObjectListener(obj interface{}, l Listener) bool {
	key, err := keyOf(obj)
	if err != nil {
		return false
	}
	g.listeners.mu.RLock()
	defer g.listeners.mu.RUnlock()
	entry, ok := g.listeners.byObject[key]
	return ok && containsListener(entry.listeners, l)
}

// listenersFor collects the listeners for guarded, whose type is rt, in
// notification order: object, type, interface, global. Each listener
// appears once.
func (r *listenerRegistry) listenersFor(guarded interface{}, rt reflect.Type) []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Listener
	seen := make(map[Listener]struct{})
	add := func(list []Listener) {
		for _, l := range list {
			if _, dup := seen[l]; !dup {
				seen[l] = struct{}{}
				out = append(out, l)
			}
		}
	}

	if key, err := keyOf(guarded); err == nil {
		if entry, ok := r.byObject[key]; ok {
			add(entry.listeners)
		}
	}
	if rt != nil {
		add(r.byType[constraint.NormalizeType(rt)])
		var ifaces []reflect.Type
		for t := range r.byType {
			if t.Kind() == reflect.Interface && implements(rt, t) {
				ifaces = append(ifaces, t)
			}
		}
		sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].String() < ifaces[j].String() })
		for _, t := range ifaces {
			add(r.byType[t])
		}
	}
	add(r.global)
	return out
}

func implements(rt, iface reflect.Type) bool {
	if rt.Implements(iface) {
		return true
	}
	return rt.Kind() != reflect.Ptr && reflect.PointerTo(rt).Implements(iface)
}

// notifyListeners notifies every listener of guarded except skip
func (g *Guard) notifyListeners(ctx context.Context, guarded interface{}, rt reflect.Type, violated *constraint.ConstraintsViolatedError, skip Listener) {
	for _, l := range g.listeners.listenersFor(guarded, rt) {
		if skip != nil && l == skip {
			continue
		}
		g.notifyListener(ctx, l, violated)
	}
}

func (g *Guard) notifyListener(ctx context.Context, l Listener, violated *constraint.ConstraintsViolatedError) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("listener panicked", mdwlog.Fields{
				"listener": fmt.Sprintf("%T", l),
				"panic":    fmt.Sprint(r),
			})
		}
	}()
	if err := l.OnConstraintsViolated(ctx, violated); err != nil {
		g.logger.WarnWithErr("listener failed", err, mdwlog.Fields{"listener": fmt.Sprintf("%T", l)})
	}
}
