package metadata

import "sync"

// ParameterNameResolver supplies the parameter names of a method. Results
// whose length differs from the method's arity are treated as unavailable.
type ParameterNameResolver interface {
	ParameterNames(m Method) []string
}

// StaticParameterNames is a ParameterNameResolver backed by registered
// names
type StaticParameterNames struct {
	mu    sync.RWMutex
	names map[Method][]string
}

func NewStaticParameterNames() *StaticParameterNames {
	return &StaticParameterNames{names: make(map[Method][]string)}
}

// Register records the parameter names of m
func (s *StaticParameterNames) Register(m Method, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[m] = append([]string(nil), names...)
}

func (s *StaticParameterNames) ParameterNames(m Method) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[m]
}

// ParameterNamesOf returns the names of m, or nil when the resolver has
// none or their count does not match the arity
func ParameterNamesOf(r ParameterNameResolver, m Method) []string {
	if r == nil {
		return nil
	}
	names := r.ParameterNames(m)
	if len(names) != m.Arity {
		return nil
	}
	return names
}
