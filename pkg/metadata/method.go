package metadata

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/msto63/guardian/pkg/constraint"
)

// Kind distinguishes instance methods from constructors and receiver-less
// functions
type Kind int

const (
	KindMethod Kind = iota
	KindConstructor
	KindStatic
)

func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindStatic:
		return "static"
	}
	return "unknown"
}

// Method describes a method, constructor or static function of a type. It
// is comparable and used as a map key.
type Method struct {
	Declaring reflect.Type
	Name      string
	// Arity counts the parameters without a leading context.Context. It is
	// -1 when the method could not be found.
	Arity int
	Kind  Kind
}

// NewMethod describes a method explicitly, e.g. an unexported one that
// reflection cannot see
func NewMethod(declaring reflect.Type, name string, arity int, kind Kind) Method {
	return Method{Declaring: constraint.NormalizeType(declaring), Name: name, Arity: arity, Kind: kind}
}

// IsPrivate reports whether the method name is unexported
func (m Method) IsPrivate() bool {
	r, _ := utf8.DecodeRuneInString(m.Name)
	return !unicode.IsUpper(r)
}

// Found reports whether the method was resolved
func (m Method) Found() bool { return m.Arity >= 0 && m.Name != "" }

func (m Method) String() string {
	return fmt.Sprintf("%s.%s/%d", constraint.TypeName(m.Declaring), m.Name, m.Arity)
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

// arity counts the parameters of ft starting at skip, ignoring a leading
// context.Context
func arity(ft reflect.Type, skip int) int {
	n := ft.NumIn() - skip
	if n > 0 && ft.In(skip) == contextType {
		n--
	}
	return n
}

// MethodOf describes the method name of T. Methods with pointer receivers
// are found as well. The result has Arity -1 when T has no such exported
// method.
func MethodOf[T any](name string) Method {
	t := reflect.TypeOf((*T)(nil)).Elem()
	declaring := constraint.NormalizeType(t)
	m := Method{Declaring: declaring, Name: name, Arity: -1, Kind: KindMethod}

	if declaring.Kind() == reflect.Interface {
		if im, ok := declaring.MethodByName(name); ok {
			m.Arity = arity(im.Type, 0)
		}
		return m
	}
	if pm, ok := reflect.PointerTo(declaring).MethodByName(name); ok {
		m.Arity = arity(pm.Type, 1)
	}
	return m
}

// ConstructorOf describes fn as a constructor of T
func ConstructorOf[T any](fn interface{}) Method {
	return funcOf[T](fn, KindConstructor)
}

// StaticOf describes fn as a receiver-less function belonging to T
func StaticOf[T any](fn interface{}) Method {
	return funcOf[T](fn, KindStatic)
}

func funcOf[T any](fn interface{}, kind Kind) Method {
	declaring := constraint.NormalizeType(reflect.TypeOf((*T)(nil)).Elem())
	m := Method{Declaring: declaring, Arity: -1, Kind: kind}
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return m
	}
	m.Name = funcName(fv)
	m.Arity = arity(fv.Type(), 0)
	return m
}

// funcName returns the unqualified name of a function, e.g. "NewAccount"
// for "example.com/bank.NewAccount"
func funcName(fv reflect.Value) string {
	f := runtime.FuncForPC(fv.Pointer())
	if f == nil {
		return ""
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
