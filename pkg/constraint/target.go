package constraint

import (
	"fmt"
	"reflect"
	"strings"
)

// Target selects what a check applies to when the checked value is a
// container (slice, array or map)
type Target string

const (
	// TargetContainer checks the container itself
	TargetContainer Target = "CONTAINER"
	// TargetValues checks every element (map values for maps)
	TargetValues Target = "VALUES"
	// TargetKeys checks every map key
	TargetKeys Target = "KEYS"
	// TargetRecursive checks the elements of nested containers as well
	TargetRecursive Target = "RECURSIVE"
)

// ParseTarget converts a case-insensitive name into a Target
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToUpper(strings.TrimSpace(s))); t {
	case TargetContainer, TargetValues, TargetKeys, TargetRecursive:
		return t, nil
	}
	return "", fmt.Errorf("unknown target %q", s)
}

// HasTarget reports whether targets contains t
func HasTarget(targets []Target, t Target) bool {
	for _, x := range targets {
		if x == t {
			return true
		}
	}
	return false
}

// IsContainer reports whether v is a slice, array or map. Byte slices and
// strings are scalars.
func IsContainer(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return true
	case reflect.Slice, reflect.Array:
		return rv.Type().Elem().Kind() != reflect.Uint8
	}
	return false
}

// Element is one entry of a container
type Element struct {
	Key    string
	MapKey interface{} // nil for slices and arrays
	Value  interface{}
}

// Elements lists the entries of a container. Map entries are ordered by
// their formatted key so that traversal is deterministic.
func Elements(container interface{}) []Element {
	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Element, rv.Len())
		for i := range out {
			out[i] = Element{Key: fmt.Sprint(i), Value: rv.Index(i).Interface()}
		}
		return out
	case reflect.Map:
		out := make([]Element, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().Interface()
			out = append(out, Element{Key: fmt.Sprint(k), MapKey: k, Value: iter.Value().Interface()})
		}
		sortElements(out)
		return out
	}
	return nil
}
