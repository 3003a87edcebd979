// File: builtins.go
// Title: Formula Built-in Functions
// Description: Functions available to every formula expression.
// Author: msto63
// Version: v0.2.0
// Created: 2026-10-19
// Modified: 2026-10-19
//
// Change History:
// - 2026-10-19 v0.2.0: Initial built-in functions

package formula

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	mdwstringx "github.com/msto63/guardian/foundation/utils/stringx"
)

var builtins = map[string]Function{
	"len":        fnLen,
	"empty":      fnEmpty,
	"blank":      fnBlank,
	"matches":    fnMatches,
	"contains":   fnContains,
	"startswith": stringFn2(strings.HasPrefix),
	"endswith":   stringFn2(strings.HasSuffix),
	"lower":      stringFn1(strings.ToLower),
	"upper":      stringFn1(strings.ToUpper),
	"trim":       stringFn1(strings.TrimSpace),
	"abs":        fnAbs,
	"isnull":     fnIsNull,
	"coalesce":   fnCoalesce,
}

func arity(name string, args []interface{}, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s expects %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func fnLen(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("len", args, 1); err != nil {
		return nil, err
	}
	n, ok := Length(args[0])
	if !ok {
		return nil, fmt.Errorf("len: unsupported type %T", args[0])
	}
	return int64(n), nil
}

func fnEmpty(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("empty", args, 1); err != nil {
		return nil, err
	}
	n, ok := Length(args[0])
	if !ok {
		return IsNil(args[0]), nil
	}
	return n == 0, nil
}

func fnBlank(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("blank", args, 1); err != nil {
		return nil, err
	}
	if IsNil(args[0]) {
		return true, nil
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("blank: expected string, got %T", args[0])
	}
	return mdwstringx.IsBlank(s), nil
}

var regexCache sync.Map // pattern -> *regexp.Regexp

func compileCached(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func fnMatches(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("matches", args, 2); err != nil {
		return nil, err
	}
	if IsNil(args[0]) {
		return false, nil
	}
	s, ok1 := args[0].(string)
	p, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("matches: expected strings, got %T and %T", args[0], args[1])
	}
	re, err := compileCached(p)
	if err != nil {
		return nil, fmt.Errorf("matches: %w", err)
	}
	return re.MatchString(s), nil
}

func fnContains(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("contains", args, 2); err != nil {
		return nil, err
	}
	found, ok := contains(args[0], args[1])
	if !ok {
		return nil, fmt.Errorf("contains: unsupported type %T", args[0])
	}
	return found, nil
}

func fnAbs(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("abs", args, 1); err != nil {
		return nil, err
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, fmt.Errorf("abs: expected number, got %T", args[0])
	}
	if n.isInt {
		if n.i < 0 {
			return -n.i, nil
		}
		return n.i, nil
	}
	return math.Abs(n.f), nil
}

func fnIsNull(_ context.Context, args ...interface{}) (interface{}, error) {
	if err := arity("isNull", args, 1); err != nil {
		return nil, err
	}
	return IsNil(args[0]), nil
}

func fnCoalesce(_ context.Context, args ...interface{}) (interface{}, error) {
	for _, a := range args {
		if !IsNil(a) {
			return a, nil
		}
	}
	return nil, nil
}

func stringFn1(f func(string) string) Function {
	return func(_ context.Context, args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		if IsNil(args[0]) {
			return nil, nil
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", args[0])
		}
		return f(s), nil
	}
}

func stringFn2(f func(string, string) bool) Function {
	return func(_ context.Context, args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		if IsNil(args[0]) {
			return false, nil
		}
		s, ok1 := args[0].(string)
		p, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("expected strings, got %T and %T", args[0], args[1])
		}
		return f(s, p), nil
	}
}
