package checks

import (
	"math"
	"strconv"

	"github.com/msto63/guardian/pkg/constraint"
)

// Length bounds the rune count of a string, or the length of a container
// when applied with the CONTAINER target
type Length struct {
	constraint.Base
	min, max int
}

func NewLength(min, max int) *Length {
	c := &Length{min: min, max: max}
	c.Init("Length", c.createVars, constraint.TargetValues)
	return c
}

func (c *Length) createVars() map[string]string {
	return map[string]string{"min": strconv.Itoa(c.min), "max": strconv.Itoa(c.max)}
}

func (c *Length) Min() int { return c.min }
func (c *Length) Max() int { return c.max }

func (c *Length) SetMin(min int) {
	c.min = min
	c.RequireMessageVariablesRecreation()
}

func (c *Length) SetMax(max int) {
	c.max = max
	c.RequireMessageVariablesRecreation()
}

func (c *Length) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	n := constraint.Length(value)
	return n >= c.min && n <= c.max, nil
}

type MinLength struct {
	constraint.Base
	min int
}

func NewMinLength(min int) *MinLength {
	c := &MinLength{min: min}
	c.Init("MinLength", c.createVars, constraint.TargetValues)
	return c
}

func (c *MinLength) createVars() map[string]string {
	return map[string]string{"min": strconv.Itoa(c.min)}
}

func (c *MinLength) Min() int { return c.min }

func (c *MinLength) SetMin(min int) {
	c.min = min
	c.RequireMessageVariablesRecreation()
}

func (c *MinLength) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	return constraint.Length(value) >= c.min, nil
}

type MaxLength struct {
	constraint.Base
	max int
}

// NewMaxLength creates the check. A negative max means unbounded.
func NewMaxLength(max int) *MaxLength {
	if max < 0 {
		max = math.MaxInt
	}
	c := &MaxLength{max: max}
	c.Init("MaxLength", c.createVars, constraint.TargetValues)
	return c
}

func (c *MaxLength) createVars() map[string]string {
	return map[string]string{"max": strconv.Itoa(c.max)}
}

func (c *MaxLength) Max() int { return c.max }

func (c *MaxLength) SetMax(max int) {
	c.max = max
	c.RequireMessageVariablesRecreation()
}

func (c *MaxLength) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	return constraint.Length(value) <= c.max, nil
}
