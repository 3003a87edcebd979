package guard

import (
	"reflect"

	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/metadata"
)

// objectKey identifies a guarded object by address. Static calls use the
// declaring reflect.Type, which is itself a pointer.
type objectKey struct {
	typ reflect.Type
	ptr uintptr
}

func keyOf(obj interface{}) (objectKey, error) {
	if constraint.IsNil(obj) {
		return objectKey{}, constraint.InvalidArgument("guarded object must not be nil")
	}
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return objectKey{typ: rv.Type(), ptr: rv.Pointer()}, nil
	}
	return objectKey{}, constraint.InvalidArgument("guarded object must be a pointer, got " + rv.Type().String())
}

type reentrancyKey struct {
	object objectKey
	method metadata.Method
}
