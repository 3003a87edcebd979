package validator

import (
	"context"
	"fmt"
	"reflect"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// invokeGetter calls the zero-argument method name of obj, passing ctx when
// the method takes a context.Context
func invokeGetter(ctx context.Context, obj interface{}, name string) (result interface{}, err error) {
	rv := reflect.ValueOf(obj)
	m := rv.MethodByName(name)
	if !m.IsValid() && rv.Kind() != reflect.Ptr {
		addressable := reflect.New(rv.Type())
		addressable.Elem().Set(rv)
		m = addressable.MethodByName(name)
	}
	if !m.IsValid() {
		return nil, mdwerror.Newf("method %s not found on %T", name, obj).WithCode(mdwerror.CodeReflectionFailed)
	}

	mt := m.Type()
	var args []reflect.Value
	switch {
	case mt.NumIn() == 0:
	case mt.NumIn() == 1 && mt.In(0) == contextType:
		args = []reflect.Value{reflect.ValueOf(ctx)}
	default:
		return nil, mdwerror.Newf("method %s of %T takes parameters", name, obj).WithCode(mdwerror.CodeReflectionFailed)
	}
	if mt.NumOut() == 0 || mt.NumOut() > 2 || (mt.NumOut() == 2 && mt.Out(1) != errorType) {
		return nil, mdwerror.Newf("method %s of %T must return a value and an optional error", name, obj).
			WithCode(mdwerror.CodeReflectionFailed)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = mdwerror.New(fmt.Sprintf("method %s of %T panicked: %v", name, obj, r)).
				WithCode(mdwerror.CodeReflectionFailed)
		}
	}()

	out := m.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, mdwerror.Wrapf(out[1].Interface().(error), "method %s failed", name).
			WithCode(mdwerror.CodeReflectionFailed)
	}
	return out[0].Interface(), nil
}
