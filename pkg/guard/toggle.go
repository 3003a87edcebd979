package guard

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/msto63/guardian/pkg/constraint"
)

// toggle is a process-wide switch with per-type overrides
type toggle struct {
	global  atomic.Bool
	mu      sync.RWMutex
	perType map[reflect.Type]bool
}

func newToggle(enabled bool) *toggle {
	t := &toggle{perType: make(map[reflect.Type]bool)}
	t.global.Store(enabled)
	return t
}

func (t *toggle) set(enabled bool) { t.global.Store(enabled) }

func (t *toggle) enabled() bool { return t.global.Load() }

func (t *toggle) setFor(typ reflect.Type, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perType[constraint.NormalizeType(typ)] = enabled
}

func (t *toggle) clearFor(typ reflect.Type) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.perType, constraint.NormalizeType(typ))
}

// enabledFor is the global value unless the type overrides it
func (t *toggle) enabledFor(typ reflect.Type) bool {
	t.mu.RLock()
	v, ok := t.perType[constraint.NormalizeType(typ)]
	t.mu.RUnlock()
	if ok {
		return v
	}
	return t.global.Load()
}
