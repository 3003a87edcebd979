// ============================================================================
// guardian - Runtime Constraint Validation
// ============================================================================
//
// Package:     checks
// Description: Built-in checks for presence of values
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package checks

import (
	"reflect"

	mdwstringx "github.com/msto63/guardian/foundation/utils/stringx"
	"github.com/msto63/guardian/pkg/constraint"
)

// NotNull is satisfied by any non-nil value
type NotNull struct {
	constraint.Base
}

func NewNotNull() *NotNull {
	c := &NotNull{}
	c.Init("NotNull", nil, constraint.TargetContainer, constraint.TargetValues)
	return c
}

func (c *NotNull) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	return !constraint.IsNil(value), nil
}

// NotEmpty requires the string form or container of a value to be non-empty.
// nil is satisfied; combine with NotNull to require a value.
type NotEmpty struct {
	constraint.Base
}

func NewNotEmpty() *NotEmpty {
	c := &NotEmpty{}
	c.Init("NotEmpty", nil)
	return c
}

func (c *NotEmpty) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	rv := reflect.Indirect(reflect.ValueOf(value))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len() > 0, nil
	}
	return constraint.AsString(value) != "", nil
}

// NotBlank requires the string form of a value to contain a character other
// than white space. nil is satisfied.
type NotBlank struct {
	constraint.Base
}

func NewNotBlank() *NotBlank {
	c := &NotBlank{}
	c.Init("NotBlank", nil, constraint.TargetValues)
	return c
}

func (c *NotBlank) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	return mdwstringx.IsNotBlank(constraint.AsString(value)), nil
}

// Nullable excludes NotNull checks, so a parameter may be nil even where a
// broader configuration requires a value
type Nullable struct {
	constraint.ExclusionBase
}

func NewNullable() *Nullable { return &Nullable{} }

func (e *Nullable) IsCheckExcluded(check constraint.Check, _, _ interface{}, _ constraint.ValidationCycle) (bool, error) {
	_, ok := check.(*NotNull)
	return ok, nil
}
