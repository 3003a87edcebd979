package checks

import (
	"math"
	"strconv"
	"strings"

	"github.com/msto63/guardian/pkg/constraint"
)

// memberSet compares the string form of values against a list of members
type memberSet struct {
	members    []string
	lowered    map[string]struct{}
	exact      map[string]struct{}
	ignoreCase bool
}

func newMemberSet(members []string) memberSet {
	s := memberSet{
		members: append([]string(nil), members...),
		lowered: make(map[string]struct{}, len(members)),
		exact:   make(map[string]struct{}, len(members)),
	}
	for _, m := range members {
		s.exact[m] = struct{}{}
		s.lowered[strings.ToLower(m)] = struct{}{}
	}
	return s
}

func (s memberSet) contains(value interface{}) bool {
	str := memberString(value)
	if s.ignoreCase {
		_, ok := s.lowered[strings.ToLower(str)]
		return ok
	}
	_, ok := s.exact[str]
	return ok
}

// memberString is the string form compared against the members. Floats
// keep a decimal part, so 10.0 is "10.0" and does not match "10".
func memberString(value interface{}) string {
	switch f := value.(type) {
	case float64:
		return floatString(f, 64)
	case float32:
		return floatString(float64(f), 32)
	case *float64:
		return floatString(*f, 64)
	case *float32:
		return floatString(float64(*f), 32)
	}
	return constraint.AsString(value)
}

func floatString(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) {
		s += ".0"
	}
	return s
}

func (s memberSet) vars() map[string]string {
	return map[string]string{
		"members":    "[" + strings.Join(s.members, ", ") + "]",
		"ignoreCase": strconv.FormatBool(s.ignoreCase),
	}
}

// MemberOf requires the string form of a value to be one of the members
type MemberOf struct {
	constraint.Base
	set memberSet
}

func NewMemberOf(members ...string) *MemberOf {
	c := &MemberOf{set: newMemberSet(members)}
	c.Init("MemberOf", func() map[string]string { return c.set.vars() }, constraint.TargetValues)
	return c
}

func (c *MemberOf) Members() []string { return c.set.members }
func (c *MemberOf) IgnoreCase() bool  { return c.set.ignoreCase }

func (c *MemberOf) SetMembers(members ...string) {
	ignoreCase := c.set.ignoreCase
	c.set = newMemberSet(members)
	c.set.ignoreCase = ignoreCase
	c.RequireMessageVariablesRecreation()
}

func (c *MemberOf) SetIgnoreCase(ignoreCase bool) {
	c.set.ignoreCase = ignoreCase
	c.RequireMessageVariablesRecreation()
}

func (c *MemberOf) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	return c.set.contains(value), nil
}

// NotMemberOf requires the string form of a value to differ from every
// member
type NotMemberOf struct {
	constraint.Base
	set memberSet
}

func NewNotMemberOf(members ...string) *NotMemberOf {
	c := &NotMemberOf{set: newMemberSet(members)}
	c.Init("NotMemberOf", func() map[string]string { return c.set.vars() }, constraint.TargetValues)
	return c
}

func (c *NotMemberOf) Members() []string { return c.set.members }
func (c *NotMemberOf) IgnoreCase() bool  { return c.set.ignoreCase }

func (c *NotMemberOf) SetMembers(members ...string) {
	ignoreCase := c.set.ignoreCase
	c.set = newMemberSet(members)
	c.set.ignoreCase = ignoreCase
	c.RequireMessageVariablesRecreation()
}

func (c *NotMemberOf) SetIgnoreCase(ignoreCase bool) {
	c.set.ignoreCase = ignoreCase
	c.RequireMessageVariablesRecreation()
}

func (c *NotMemberOf) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	return !c.set.contains(value), nil
}
