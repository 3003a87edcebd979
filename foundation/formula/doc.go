// Package formula implements the default expression language used for
// conditional activation, assertions, pre conditions and post conditions.
//
// Expressions combine literals, bound variables, member access and calls:
//
//	_this.amount > 0 AND _this.currency IN ["EUR", "USD"]
//	len(_value) <= 10 || _value LIKE 'tmp%'
//	_returns = _old + 1
//	_this.Account().IsOpen()
//
// Member access resolves map entries, FieldAccessor values, exported struct
// fields (case-insensitively) and zero-argument getters, in that order.
// Accessing a member of null yields null, so guards such as
// "_this.owner = null OR _this.owner.active" evaluate without error.
// Methods whose first parameter is a context.Context receive the context
// passed to Eval.
//
// Numbers of any Go integer or float type compare by value. Strings are
// never converted to numbers.
package formula
