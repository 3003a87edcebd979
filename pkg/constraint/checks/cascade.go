package checks

import (
	"reflect"

	"github.com/msto63/guardian/pkg/constraint"
)

// AssertValid validates the checked value as an object graph of its own.
// Violations found there are reported directly; no violation of its own is
// added. The validator drives it; IsSatisfied is never consulted.
type AssertValid struct {
	constraint.Base
}

func NewAssertValid() *AssertValid {
	c := &AssertValid{}
	c.Init("AssertValid", nil, constraint.TargetValues)
	return c
}

func (c *AssertValid) Cascades() bool { return true }

func (c *AssertValid) IsSatisfied(_, _ interface{}, _ constraint.ValidationCycle) (bool, error) {
	return true, nil
}

// AssertFieldConstraints applies the checks declared on a field to the
// checked value. Without a declaring type the type holding the check is
// used; without a field name the name of the checked field or parameter.
type AssertFieldConstraints struct {
	constraint.Base
	declaring reflect.Type
	field     string
}

func NewAssertFieldConstraints(declaring reflect.Type, field string) *AssertFieldConstraints {
	c := &AssertFieldConstraints{declaring: constraint.NormalizeType(declaring), field: field}
	c.Init("AssertFieldConstraints", nil)
	return c
}

func (c *AssertFieldConstraints) DeclaringType() reflect.Type { return c.declaring }
func (c *AssertFieldConstraints) FieldName() string           { return c.field }

func (c *AssertFieldConstraints) SetDeclaringType(t reflect.Type) {
	c.declaring = constraint.NormalizeType(t)
}

func (c *AssertFieldConstraints) SetFieldName(field string) { c.field = field }

func (c *AssertFieldConstraints) IsSatisfied(_, _ interface{}, _ constraint.ValidationCycle) (bool, error) {
	return true, nil
}
