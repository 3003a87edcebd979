// File: values.go
// Title: Formula Value Semantics
// Description: Numeric normalization, equality, ordering, LIKE matching
//              and membership tests shared by the evaluator and the
//              built-in functions.
// Author: msto63
// Version: v0.2.0
// Created: 2026-10-19
// Modified: 2026-10-19
//
// Change History:
// - 2026-10-19 v0.2.0: Initial value semantics

package formula

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
)

// number is a normalized numeric value: either an int64 or a float64
type number struct {
	i     int64
	f     float64
	isInt bool
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (n number) value() interface{} {
	if n.isInt {
		return n.i
	}
	return n.f
}

func (n number) neg() number {
	if n.isInt {
		return number{i: -n.i, isInt: true}
	}
	return number{f: -n.f}
}

func (n number) arith(op string, o number) (number, error) {
	if n.isInt && o.isInt {
		switch op {
		case "+":
			return number{i: n.i + o.i, isInt: true}, nil
		case "-":
			return number{i: n.i - o.i, isInt: true}, nil
		case "*":
			return number{i: n.i * o.i, isInt: true}, nil
		case "/", "%":
			if o.i == 0 {
				return number{}, errors.New("division by zero")
			}
			if op == "/" {
				return number{i: n.i / o.i, isInt: true}, nil
			}
			return number{i: n.i % o.i, isInt: true}, nil
		}
	}
	a, b := n.float(), o.float()
	switch op {
	case "+":
		return number{f: a + b}, nil
	case "-":
		return number{f: a - b}, nil
	case "*":
		return number{f: a * b}, nil
	case "/":
		if b == 0 {
			return number{}, errors.New("division by zero")
		}
		return number{f: a / b}, nil
	case "%":
		if b == 0 {
			return number{}, errors.New("division by zero")
		}
		return number{f: math.Mod(a, b)}, nil
	}
	return number{}, errors.New("unknown operator " + op)
}

// toNumber normalizes any Go integer or float kind, including named types
// such as time.Duration. Strings are not converted.
func toNumber(v interface{}) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{i: int64(x), isInt: true}, true
	case int64:
		return number{i: x, isInt: true}, true
	case float64:
		return number{f: x}, true
	case nil:
		return number{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return number{}, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return number{i: rv.Int(), isInt: true}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return number{f: float64(u)}, true
		}
		return number{i: int64(u), isInt: true}, true
	case reflect.Float32, reflect.Float64:
		return number{f: rv.Float()}, true
	}
	return number{}, false
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice,
// interface, function or channel.
func IsNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Equal compares two values the way the = operator does: numbers by value
// regardless of their Go type, null equal only to null, everything else by
// Go equality with a deep comparison fallback for non-comparable values.
func Equal(a, b interface{}) bool {
	an, bn := IsNil(a), IsNil(b)
	if an || bn {
		return an && bn
	}
	if x, ok := toNumber(a); ok {
		if y, ok := toNumber(b); ok {
			if x.isInt && y.isInt {
				return x.i == y.i
			}
			return x.float() == y.float()
		}
		return false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return ra.String() == rb.String()
	}
	if ra.Type() == rb.Type() && ra.Type().Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two numbers, strings or times. The boolean is false when
// the values are not mutually ordered.
func Compare(a, b interface{}) (int, bool) {
	if x, ok := toNumber(a); ok {
		y, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		if x.isInt && y.isInt {
			return cmpOrdered(x.i, y.i), true
		}
		return cmpOrdered(x.float(), y.float()), true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	if IsNil(a) || IsNil(b) {
		return 0, false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.String && rb.Kind() == reflect.String {
		return strings.Compare(ra.String(), rb.String()), true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

var likeCache sync.Map // pattern -> *regexp.Regexp

// like matches s against an SQL-style pattern where % matches any run of
// characters and _ matches exactly one.
func like(s, pattern string) bool {
	if re, ok := likeCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(s)
	}
	var sb strings.Builder
	sb.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re := regexp.MustCompile(sb.String())
	likeCache.Store(pattern, re)
	return re.MatchString(s)
}

// contains reports whether needle is an element of a slice or array, a key
// of a map, or a substring of a string. The second result is false when
// haystack is none of those.
func contains(haystack, needle interface{}) (bool, bool) {
	if IsNil(haystack) {
		return false, true
	}
	v := reflect.Indirect(reflect.ValueOf(haystack))
	switch v.Kind() {
	case reflect.String:
		s, ok := needle.(string)
		if !ok {
			return false, true
		}
		return strings.Contains(v.String(), s), true
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if Equal(v.Index(i).Interface(), needle) {
				return true, true
			}
		}
		return false, true
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if Equal(iter.Key().Interface(), needle) {
				return true, true
			}
		}
		return false, true
	}
	return false, false
}

// Length returns the length of a string (in runes), slice, array, map or
// channel.
func Length(v interface{}) (int, bool) {
	if IsNil(v) {
		return 0, true
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.String:
		return len([]rune(rv.String())), true
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len(), true
	}
	return 0, false
}
