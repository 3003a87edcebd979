package checks

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/msto63/guardian/pkg/constraint"
)

// HasSubstring requires the string form of a value to contain a substring
type HasSubstring struct {
	constraint.Base
	substring  string
	ignoreCase bool
	lowered    atomic.Pointer[string]
}

func NewHasSubstring(substring string) *HasSubstring {
	c := &HasSubstring{substring: substring}
	c.Init("HasSubstring", c.createVars, constraint.TargetValues)
	return c
}

func (c *HasSubstring) createVars() map[string]string {
	return map[string]string{"substring": c.substring, "ignoreCase": strconv.FormatBool(c.ignoreCase)}
}

func (c *HasSubstring) Substring() string { return c.substring }
func (c *HasSubstring) IgnoreCase() bool  { return c.ignoreCase }

func (c *HasSubstring) SetSubstring(substring string) {
	c.substring = substring
	c.lowered.Store(nil)
	c.RequireMessageVariablesRecreation()
}

func (c *HasSubstring) SetIgnoreCase(ignoreCase bool) {
	c.ignoreCase = ignoreCase
	c.RequireMessageVariablesRecreation()
}

func (c *HasSubstring) loweredSubstring() string {
	if p := c.lowered.Load(); p != nil {
		return *p
	}
	s := strings.ToLower(c.substring)
	c.lowered.Store(&s)
	return s
}

func (c *HasSubstring) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	s := constraint.AsString(value)
	if c.ignoreCase {
		return strings.Contains(strings.ToLower(s), c.loweredSubstring()), nil
	}
	return strings.Contains(s, c.substring), nil
}
