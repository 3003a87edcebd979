package guard

import (
	"context"

	"github.com/google/uuid"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/validator"
)

// Session is the per call chain state of guarded calls: the stack of
// validation cycles, the reentrancy sets and the objects in probe mode.
// A Session belongs to one goroutine.
type Session struct {
	id      string
	stack   *validator.CycleStack
	pre     map[reentrancyKey]struct{}
	post    map[reentrancyKey]struct{}
	returns map[reentrancyKey]struct{}
	probes  map[objectKey]*ProbeModeListener
}

type sessionKey struct{}

// WithSession returns ctx carrying a session, reusing an existing one
func WithSession(ctx context.Context) (context.Context, *Session) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s := SessionFrom(ctx); s != nil {
		return ctx, s
	}
	ctx, stack := validator.WithCycleStack(ctx)
	s := &Session{
		id:      uuid.NewString(),
		stack:   stack,
		pre:     make(map[reentrancyKey]struct{}),
		post:    make(map[reentrancyKey]struct{}),
		returns: make(map[reentrancyKey]struct{}),
		probes:  make(map[objectKey]*ProbeModeListener),
	}
	return context.WithValue(ctx, sessionKey{}, s), s
}

// SessionFrom returns the session of ctx, or nil
func SessionFrom(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

func (s *Session) ID() string { return s.id }

// CycleStack returns the validation cycles active in this call chain
func (s *Session) CycleStack() *validator.CycleStack { return s.stack }

// EnableProbeMode makes guarded calls on obj record their arguments and
// violations instead of running. obj must be a pointer.
func (s *Session) EnableProbeMode(obj interface{}) error {
	key, err := keyOf(obj)
	if err != nil {
		return err
	}
	if _, ok := s.probes[key]; ok {
		return mdwerror.New("object is already in probe mode").
			WithCode(mdwerror.CodeInvalidSequence).
			WithDetail("type", key.typ.String())
	}
	s.probes[key] = newProbeModeListener(obj)
	return nil
}

// DisableProbeMode ends probe mode for obj and returns what was recorded
func (s *Session) DisableProbeMode(obj interface{}) (*ProbeModeListener, error) {
	key, err := keyOf(obj)
	if err != nil {
		return nil, err
	}
	pml, ok := s.probes[key]
	if !ok {
		return nil, mdwerror.New("object is not in probe mode").
			WithCode(mdwerror.CodeInvalidSequence).
			WithDetail("type", key.typ.String())
	}
	delete(s.probes, key)
	return pml, nil
}

func (s *Session) IsInProbeMode(obj interface{}) bool {
	return s.probeListener(obj) != nil
}

func (s *Session) probeListener(obj interface{}) *ProbeModeListener {
	key, err := keyOf(obj)
	if err != nil {
		return nil
	}
	return s.probes[key]
}

// enter marks key as being checked in set. It reports false when the key
// is already being checked further up the call chain.
func enter(set map[reentrancyKey]struct{}, key reentrancyKey) bool {
	if _, busy := set[key]; busy {
		return false
	}
	set[key] = struct{}{}
	return true
}
