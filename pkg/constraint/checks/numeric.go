package checks

import (
	"strconv"

	"github.com/msto63/guardian/pkg/constraint"
)

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Min is satisfied by numbers and numeric strings not below the limit.
// Strings that do not parse as numbers are never satisfied.
type Min struct {
	constraint.Base
	min       float64
	inclusive bool
}

// NewMin creates an inclusive lower bound
func NewMin(min float64) *Min {
	c := &Min{min: min, inclusive: true}
	c.Init("Min", c.createVars, constraint.TargetValues)
	return c
}

func (c *Min) createVars() map[string]string {
	return map[string]string{"min": formatNumber(c.min), "inclusive": strconv.FormatBool(c.inclusive)}
}

func (c *Min) Min() float64     { return c.min }
func (c *Min) IsInclusive() bool { return c.inclusive }

func (c *Min) SetMin(min float64) {
	c.min = min
	c.RequireMessageVariablesRecreation()
}

func (c *Min) SetInclusive(inclusive bool) {
	c.inclusive = inclusive
	c.RequireMessageVariablesRecreation()
}

// Message selects the exclusive variant of the default message
func (c *Min) Message() string {
	if c.ConfiguredMessage() == "" && !c.inclusive {
		return "guardian.Min.violatedExclusive"
	}
	return c.Base.Message()
}

func (c *Min) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	f, ok := constraint.ToFloat64(value)
	if !ok {
		return false, nil
	}
	if c.inclusive {
		return f >= c.min, nil
	}
	return f > c.min, nil
}

// Max is satisfied by numbers and numeric strings not above the limit
type Max struct {
	constraint.Base
	max       float64
	inclusive bool
}

// NewMax creates an inclusive upper bound
func NewMax(max float64) *Max {
	c := &Max{max: max, inclusive: true}
	c.Init("Max", c.createVars, constraint.TargetValues)
	return c
}

func (c *Max) createVars() map[string]string {
	return map[string]string{"max": formatNumber(c.max), "inclusive": strconv.FormatBool(c.inclusive)}
}

func (c *Max) Max() float64      { return c.max }
func (c *Max) IsInclusive() bool { return c.inclusive }

func (c *Max) SetMax(max float64) {
	c.max = max
	c.RequireMessageVariablesRecreation()
}

func (c *Max) SetInclusive(inclusive bool) {
	c.inclusive = inclusive
	c.RequireMessageVariablesRecreation()
}

// Message selects the exclusive variant of the default message
func (c *Max) Message() string {
	if c.ConfiguredMessage() == "" && !c.inclusive {
		return "guardian.Max.violatedExclusive"
	}
	return c.Base.Message()
}

func (c *Max) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	f, ok := constraint.ToFloat64(value)
	if !ok {
		return false, nil
	}
	if c.inclusive {
		return f <= c.max, nil
	}
	return f < c.max, nil
}

// Range is satisfied by numbers and numeric strings within [min, max]
type Range struct {
	constraint.Base
	min, max float64
}

func NewRange(min, max float64) *Range {
	c := &Range{min: min, max: max}
	c.Init("Range", c.createVars, constraint.TargetValues)
	return c
}

func (c *Range) createVars() map[string]string {
	return map[string]string{"min": formatNumber(c.min), "max": formatNumber(c.max)}
}

func (c *Range) Min() float64 { return c.min }
func (c *Range) Max() float64 { return c.max }

func (c *Range) SetMin(min float64) {
	c.min = min
	c.RequireMessageVariablesRecreation()
}

func (c *Range) SetMax(max float64) {
	c.max = max
	c.RequireMessageVariablesRecreation()
}

func (c *Range) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	f, ok := constraint.ToFloat64(value)
	if !ok {
		return false, nil
	}
	return f >= c.min && f <= c.max, nil
}
