package constraint

import (
	"fmt"
	"reflect"
	"strings"
)

// ContextKind classifies a frame of a violation's context path
type ContextKind int

const (
	ContextClass ContextKind = iota
	ContextField
	ContextConstructorParameter
	ContextMethodParameter
	ContextMethodEntry
	ContextMethodExit
	ContextMethodReturnValue
	ContextElement
)

func (k ContextKind) String() string {
	switch k {
	case ContextClass:
		return "class"
	case ContextField:
		return "field"
	case ContextConstructorParameter:
		return "constructor-parameter"
	case ContextMethodParameter:
		return "method-parameter"
	case ContextMethodEntry:
		return "method-entry"
	case ContextMethodExit:
		return "method-exit"
	case ContextMethodReturnValue:
		return "method-return-value"
	case ContextElement:
		return "element"
	default:
		return "unknown"
	}
}

// Context describes a location in the object graph or call stack
type Context struct {
	Kind ContextKind
	Type reflect.Type // declaring type
	Name string       // field, method or constructor name; element key
	// Index is the parameter position for parameter frames
	Index int
	// Param is the parameter name when known
	Param string
}

// IsZero reports whether c is the zero Context
func (c Context) IsZero() bool {
	return c.Type == nil && c.Name == "" && c.Kind == ContextClass
}

// TypeName returns the short name of t, e.g. "Person" for *pkg.Person
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func (c Context) String() string {
	owner := TypeName(c.Type)
	switch c.Kind {
	case ContextClass:
		return owner
	case ContextField:
		return owner + "." + c.Name
	case ContextConstructorParameter, ContextMethodParameter:
		param := c.Param
		if param == "" {
			param = fmt.Sprintf("#%d", c.Index)
		}
		return fmt.Sprintf("%s.%s(%s)", owner, c.Name, param)
	case ContextMethodEntry:
		return owner + "." + c.Name + "() entry"
	case ContextMethodExit:
		return owner + "." + c.Name + "() exit"
	case ContextMethodReturnValue:
		return owner + "." + c.Name + "()"
	case ContextElement:
		return "[" + c.Name + "]"
	}
	return owner + "." + c.Name
}

// ClassContext is the frame of an object whose checks are being evaluated
func ClassContext(t reflect.Type) Context {
	return Context{Kind: ContextClass, Type: t}
}

// FieldContext is the frame of a struct field or record field
func FieldContext(t reflect.Type, field string) Context {
	return Context{Kind: ContextField, Type: t, Name: field}
}

// ElementContext is the frame of a container element
func ElementContext(key string) Context {
	return Context{Kind: ContextElement, Name: key}
}

// PathString renders a context path, e.g. "Order.items[2].Item.sku"
func PathString(path []Context) string {
	var sb strings.Builder
	for i, c := range path {
		switch {
		case c.Kind == ContextElement:
			sb.WriteString(c.String())
		case c.Kind == ContextClass && i > 0:
			// the enclosing field frame already names this object
			continue
		default:
			if sb.Len() > 0 {
				sb.WriteString(" > ")
			}
			sb.WriteString(c.String())
		}
	}
	return sb.String()
}

// FieldPath renders a context path as a dotted field path relative to the
// root object, e.g. "items[2].sku". Class frames are dropped; parameter
// frames contribute their parameter name.
func FieldPath(path []Context) string {
	var sb strings.Builder
	for _, c := range path {
		name := ""
		switch c.Kind {
		case ContextElement:
			sb.WriteString("[" + c.Name + "]")
			continue
		case ContextField:
			name = c.Name
		case ContextMethodParameter, ContextConstructorParameter:
			name = c.Param
		case ContextMethodReturnValue:
			name = c.Name
		}
		if name == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(name)
	}
	return sb.String()
}
