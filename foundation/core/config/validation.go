// File: validation.go
// Title: Configuration Validation
// Description: Load-time rules for configuration values: required keys,
//              expected types and allowed values.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial implementation of validation
// - 2026-10-19 v0.2.0: Reduced to required/type/one-of rules returning an
//                       aggregated structured error

package config

import (
	"fmt"
	"sort"
	"strings"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

// ValidationRule defines validation criteria for a configuration value
type ValidationRule struct {
	Required bool
	// Type is one of "string", "int", "bool", "float", "[]string"
	Type  string
	OneOf []string
}

// ValidationRules maps configuration keys to their validation rules
type ValidationRules map[string]ValidationRule

// Validate checks the configuration against rules and returns an
// INVALID_CONFIGURATION error listing every problem, or nil.
func (c *Config) Validate(rules ValidationRules) error {
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var problems []string
	for _, key := range keys {
		if err := c.validateField(key, rules[key]); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return mdwerror.New("configuration is invalid: "+strings.Join(problems, "; ")).
		WithCode(mdwerror.CodeInvalidConfiguration).
		WithOperation("config.Validate").
		WithDetail("problems", problems)
}

func (c *Config) validateField(key string, rule ValidationRule) error {
	value := c.getValue(key)
	if _, fromEnv := c.envValue(key); fromEnv {
		value = c.GetString(key)
	}
	if value == nil {
		if rule.Required {
			return fmt.Errorf("required key '%s' is missing", key)
		}
		return nil
	}

	if rule.Type != "" && !matchesType(value, rule.Type) {
		return fmt.Errorf("key '%s' must be of type %s, got %T", key, rule.Type, value)
	}

	if len(rule.OneOf) > 0 {
		s := fmt.Sprintf("%v", value)
		for _, allowed := range rule.OneOf {
			if strings.EqualFold(s, allowed) {
				return nil
			}
		}
		return fmt.Errorf("key '%s' must be one of [%s], got %q", key, strings.Join(rule.OneOf, ", "), s)
	}
	return nil
}

func matchesType(value interface{}, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "int":
		switch value.(type) {
		case int, int64:
			return true
		}
	case "float":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
	case "bool":
		switch v := value.(type) {
		case bool:
			return true
		case string:
			return v == "true" || v == "false"
		}
	case "[]string":
		switch value.(type) {
		case []string, []interface{}:
			return true
		}
	}
	return false
}
