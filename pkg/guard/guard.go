// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     guard
// Description: Method and constructor interception around the validator
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package guard

import (
	"reflect"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/validator"
)

// Options configure a Guard. The embedded validator options select its
// index, expressions, messages and logger.
type Options struct {
	validator.Options
}

// Guard validates guarded calls: invariants and parameters before the
// call, return values and post conditions after it. It is safe for
// concurrent use.
type Guard struct {
	*validator.Validator

	activated  *toggle
	invariants *toggle
	pre        *toggle
	post       *toggle
	listeners  *listenerRegistry
	logger     *mdwlog.Logger
}

// New creates a Guard with every phase enabled
func New(opts Options) *Guard {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault().WithField("component", "guard")
	}
	return &Guard{
		Validator:  validator.New(opts.Options),
		activated:  newToggle(true),
		invariants: newToggle(true),
		pre:        newToggle(true),
		post:       newToggle(true),
		listeners:  newListenerRegistry(),
		logger:     opts.Logger,
	}
}

// SetActivated switches interception on or off. Deactivated guards pass
// calls through untouched.
func (g *Guard) SetActivated(activated bool) { g.activated.set(activated) }

func (g *Guard) IsActivated() bool { return g.activated.enabled() }

// SetActivatedFor overrides SetActivated for receivers of type t
func (g *Guard) SetActivatedFor(t reflect.Type, activated bool) { g.activated.setFor(t, activated) }

func (g *Guard) IsActivatedFor(t reflect.Type) bool {
	return g.activated.enabled() && g.activated.enabledFor(t)
}

func (g *Guard) SetInvariantsEnabled(enabled bool) { g.invariants.set(enabled) }

func (g *Guard) IsInvariantsEnabled() bool { return g.invariants.enabled() }

// SetInvariantsEnabledFor overrides SetInvariantsEnabled for type t
func (g *Guard) SetInvariantsEnabledFor(t reflect.Type, enabled bool) { g.invariants.setFor(t, enabled) }

func (g *Guard) IsInvariantsEnabledFor(t reflect.Type) bool { return g.invariants.enabledFor(t) }

func (g *Guard) SetPreConditionsEnabled(enabled bool) { g.pre.set(enabled) }

func (g *Guard) IsPreConditionsEnabled() bool { return g.pre.enabled() }

func (g *Guard) SetPreConditionsEnabledFor(t reflect.Type, enabled bool) { g.pre.setFor(t, enabled) }

func (g *Guard) IsPreConditionsEnabledFor(t reflect.Type) bool { return g.pre.enabledFor(t) }

func (g *Guard) SetPostConditionsEnabled(enabled bool) { g.post.set(enabled) }

func (g *Guard) IsPostConditionsEnabled() bool { return g.post.enabled() }

func (g *Guard) SetPostConditionsEnabledFor(t reflect.Type, enabled bool) { g.post.setFor(t, enabled) }

func (g *Guard) IsPostConditionsEnabledFor(t reflect.Type) bool { return g.post.enabledFor(t) }

// ClearOverrides drops every per-type toggle of t
func (g *Guard) ClearOverrides(t reflect.Type) {
	for _, tg := range []*toggle{g.activated, g.invariants, g.pre, g.post} {
		tg.clearFor(t)
	}
}
