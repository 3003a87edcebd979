// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     metadata
// Description: Per-type check metadata
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package metadata

import (
	"reflect"

	"github.com/msto63/guardian/pkg/constraint"
)

// ParameterChecks are the checks and exclusions of one parameter
type ParameterChecks struct {
	Checks     []constraint.Check
	Exclusions []constraint.CheckExclusion
}

func (p *ParameterChecks) clone() *ParameterChecks {
	return &ParameterChecks{
		Checks:     append([]constraint.Check(nil), p.Checks...),
		Exclusions: append([]constraint.CheckExclusion(nil), p.Exclusions...),
	}
}

type paramKey struct {
	method Method
	index  int
}

// ClassChecks holds the checks of one type. A published ClassChecks is
// never modified; the Index replaces it with an updated copy instead.
type ClassChecks struct {
	typ reflect.Type

	fieldOrder  []string
	fieldChecks map[string][]constraint.Check

	returnOrder  []Method
	returnChecks map[Method][]constraint.Check
	invariants   map[Method]bool

	objectChecks []constraint.Check

	params     map[paramKey]*ParameterChecks
	preChecks  map[Method][]*constraint.PreCheck
	postChecks map[Method][]*constraint.PostCheck

	guarded         bool
	checkInvariants bool
	invariantsPre   map[Method]bool
	invariantsPost  map[Method]bool
}

func newClassChecks(t reflect.Type) *ClassChecks {
	return &ClassChecks{
		typ:             t,
		fieldChecks:     make(map[string][]constraint.Check),
		returnChecks:    make(map[Method][]constraint.Check),
		invariants:      make(map[Method]bool),
		params:          make(map[paramKey]*ParameterChecks),
		preChecks:       make(map[Method][]*constraint.PreCheck),
		postChecks:      make(map[Method][]*constraint.PostCheck),
		checkInvariants: true,
		invariantsPre:   make(map[Method]bool),
		invariantsPost:  make(map[Method]bool),
	}
}

func (c *ClassChecks) clone() *ClassChecks {
	n := newClassChecks(c.typ)
	n.fieldOrder = append([]string(nil), c.fieldOrder...)
	for k, v := range c.fieldChecks {
		n.fieldChecks[k] = append([]constraint.Check(nil), v...)
	}
	n.returnOrder = append([]Method(nil), c.returnOrder...)
	for k, v := range c.returnChecks {
		n.returnChecks[k] = append([]constraint.Check(nil), v...)
	}
	for k, v := range c.invariants {
		n.invariants[k] = v
	}
	n.objectChecks = append([]constraint.Check(nil), c.objectChecks...)
	for k, v := range c.params {
		n.params[k] = v.clone()
	}
	for k, v := range c.preChecks {
		n.preChecks[k] = append([]*constraint.PreCheck(nil), v...)
	}
	for k, v := range c.postChecks {
		n.postChecks[k] = append([]*constraint.PostCheck(nil), v...)
	}
	n.guarded = c.guarded
	n.checkInvariants = c.checkInvariants
	for k, v := range c.invariantsPre {
		n.invariantsPre[k] = v
	}
	for k, v := range c.invariantsPost {
		n.invariantsPost[k] = v
	}
	return n
}

// Type returns the normalized type the checks belong to
func (c *ClassChecks) Type() reflect.Type { return c.typ }

// Fields lists the fields with checks in registration order
func (c *ClassChecks) Fields() []string { return c.fieldOrder }

func (c *ClassChecks) FieldChecks(field string) []constraint.Check { return c.fieldChecks[field] }

// InvariantMethods lists the zero-arity getters whose return checks are
// part of the object's invariants, in registration order
func (c *ClassChecks) InvariantMethods() []Method {
	var out []Method
	for _, m := range c.returnOrder {
		if c.invariants[m] {
			out = append(out, m)
		}
	}
	return out
}

func (c *ClassChecks) IsInvariant(m Method) bool { return c.invariants[m] }

// ReturnChecks returns the checks of the return value of m
func (c *ClassChecks) ReturnChecks(m Method) []constraint.Check { return c.returnChecks[m] }

// ObjectChecks are applied to the instance as a whole
func (c *ClassChecks) ObjectChecks() []constraint.Check { return c.objectChecks }

// ParameterChecks returns the checks of parameter index of m, or nil
func (c *ClassChecks) ParameterChecks(m Method, index int) *ParameterChecks {
	return c.params[paramKey{method: m, index: index}]
}

// HasParameterChecks reports whether any parameter of m has checks
func (c *ClassChecks) HasParameterChecks(m Method) bool {
	for i := 0; i < m.Arity; i++ {
		if p := c.params[paramKey{method: m, index: i}]; p != nil && len(p.Checks) > 0 {
			return true
		}
	}
	return false
}

func (c *ClassChecks) PreChecks(m Method) []*constraint.PreCheck { return c.preChecks[m] }

func (c *ClassChecks) PostChecks(m Method) []*constraint.PostCheck { return c.postChecks[m] }

// IsGuarded reports whether calls on the type are intercepted
func (c *ClassChecks) IsGuarded() bool { return c.guarded }

// IsCheckInvariants reports whether the guard checks invariants around
// calls. It is true unless disabled.
func (c *ClassChecks) IsCheckInvariants() bool { return c.checkInvariants }

// InvariantsPreEnabled reports whether invariants are checked before m even
// though m is private
func (c *ClassChecks) InvariantsPreEnabled(m Method) bool { return c.invariantsPre[m] }

// InvariantsPostEnabled is the post-call counterpart of InvariantsPreEnabled
func (c *ClassChecks) InvariantsPostEnabled(m Method) bool { return c.invariantsPost[m] }

// IsEmpty reports whether no check is registered
func (c *ClassChecks) IsEmpty() bool {
	return len(c.fieldOrder) == 0 && len(c.returnOrder) == 0 && len(c.objectChecks) == 0 &&
		len(c.params) == 0 && len(c.preChecks) == 0 && len(c.postChecks) == 0
}
