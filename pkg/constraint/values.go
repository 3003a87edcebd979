package constraint

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/msto63/guardian/foundation/formula"
)

// FieldAccessor is implemented by dynamic records (e.g. decoded documents)
// whose fields are not Go struct fields. Checks can be registered for any
// field name of a type implementing it.
type FieldAccessor interface {
	FieldValue(name string) (interface{}, bool)
}

// IsNil reports whether v is nil or a typed nil pointer, map, slice,
// interface, function or channel
func IsNil(v interface{}) bool {
	return formula.IsNil(v)
}

// Stringify renders a value for messages
func Stringify(v interface{}) string {
	if IsNil(v) {
		return "null"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		v = rv.Elem().Interface()
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

// ToFloat64 converts numbers and numeric strings. Any other value is
// formatted and parsed; the boolean is false when that fails.
func ToFloat64(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return 0, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		return f, err == nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(Stringify(v)), 64)
	return f, err == nil
}

// Length returns the rune count of strings, the length of containers and the
// rune count of the formatted value otherwise
func Length(v interface{}) int {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(rv.String())
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return utf8.RuneCount(rv.Bytes())
		}
		return rv.Len()
	}
	return utf8.RuneCountInString(Stringify(v))
}

// AsString returns strings, byte slices and fmt.Stringer values as text.
// Other values are formatted with fmt.
func AsString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case *string:
		if s != nil {
			return *s
		}
	}
	return Stringify(v)
}

// NormalizeType unwraps pointer types
func NormalizeType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// TypeOf returns the normalized type of v
func TypeOf(v interface{}) reflect.Type {
	return NormalizeType(reflect.TypeOf(v))
}

var fieldAccessorType = reflect.TypeOf((*FieldAccessor)(nil)).Elem()

// ImplementsFieldAccessor reports whether t or *t implements FieldAccessor
func ImplementsFieldAccessor(t reflect.Type) bool {
	t = NormalizeType(t)
	if t == nil {
		return false
	}
	return t.Implements(fieldAccessorType) || reflect.PointerTo(t).Implements(fieldAccessorType)
}

// ReadField returns the value of field name of obj. FieldAccessor values
// are asked first; structs are read through reflection. The boolean is
// false when obj has no such readable field.
func ReadField(obj interface{}, name string) (interface{}, bool) {
	if IsNil(obj) {
		return nil, false
	}
	fa, isAccessor := obj.(FieldAccessor)
	if isAccessor {
		if v, found := fa.FieldValue(name); found {
			return v, true
		}
	}
	rv := reflect.Indirect(reflect.ValueOf(obj))
	if rv.Kind() != reflect.Struct {
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
			e := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
			if !e.IsValid() {
				return nil, true
			}
			return e.Interface(), true
		}
		return nil, isAccessor
	}
	f := rv.FieldByName(name)
	if !f.IsValid() || !f.CanInterface() {
		// an accessor without the field reports it as unset
		return nil, isAccessor
	}
	return f.Interface(), true
}

func sortElements(elems []Element) {
	sort.SliceStable(elems, func(i, j int) bool { return elems[i].Key < elems[j].Key })
}
