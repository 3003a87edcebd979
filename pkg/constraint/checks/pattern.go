package checks

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/msto63/guardian/pkg/constraint"
)

// MatchPattern requires the string form of a value to match its regular
// expressions completely. With matchAll every pattern must match,
// otherwise one is enough.
type MatchPattern struct {
	constraint.Base
	sources  []string
	patterns []*regexp.Regexp
	matchAll bool
}

// NewMatchPattern compiles patterns. matchAll defaults to true.
func NewMatchPattern(patterns ...string) (*MatchPattern, error) {
	c := &MatchPattern{matchAll: true}
	c.Init("MatchPattern", c.createVars, constraint.TargetValues)
	if err := c.SetPatterns(patterns...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MatchPattern) createVars() map[string]string {
	pattern := ""
	if len(c.sources) == 1 {
		pattern = c.sources[0]
	} else {
		pattern = "[" + strings.Join(c.sources, ", ") + "]"
	}
	return map[string]string{"pattern": pattern, "matchAll": strconv.FormatBool(c.matchAll)}
}

// SetPatterns replaces the patterns. Nothing changes when one fails to
// compile.
func (c *MatchPattern) SetPatterns(patterns ...string) error {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(`\A(?:` + p + `)\z`)
		if err != nil {
			return constraint.InvalidConfiguration("invalid pattern", map[string]interface{}{
				"pattern": p,
				"error":   err.Error(),
			})
		}
		compiled[i] = re
	}
	c.sources = append([]string(nil), patterns...)
	c.patterns = compiled
	c.RequireMessageVariablesRecreation()
	return nil
}

func (c *MatchPattern) Patterns() []string { return c.sources }
func (c *MatchPattern) MatchAll() bool     { return c.matchAll }

func (c *MatchPattern) SetMatchAll(matchAll bool) {
	c.matchAll = matchAll
	c.RequireMessageVariablesRecreation()
}

func (c *MatchPattern) IsSatisfied(_, value interface{}, _ constraint.ValidationCycle) (bool, error) {
	if constraint.IsNil(value) {
		return true, nil
	}
	s := constraint.AsString(value)
	if c.matchAll {
		for _, re := range c.patterns {
			if !re.MatchString(s) {
				return false, nil
			}
		}
		return true, nil
	}
	for _, re := range c.patterns {
		if re.MatchString(s) {
			return true, nil
		}
	}
	return false, nil
}
