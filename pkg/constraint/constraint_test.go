package constraint

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

type person struct {
	Name string
	Age  int
	note string
}

type record map[string]interface{}

func (r record) FieldValue(name string) (interface{}, bool) {
	v, ok := r[name]
	return v, ok
}

type dummyCheck struct {
	Base
	limit   int
	created int
}

func newDummyCheck(limit int) *dummyCheck {
	c := &dummyCheck{limit: limit}
	c.Init("Dummy", c.createVars, TargetValues)
	return c
}

func (c *dummyCheck) createVars() map[string]string {
	c.created++
	return map[string]string{"limit": Stringify(c.limit)}
}

func (c *dummyCheck) SetLimit(limit int) {
	c.limit = limit
	c.RequireMessageVariablesRecreation()
}

func (c *dummyCheck) IsSatisfied(_, value interface{}, _ ValidationCycle) (bool, error) {
	return Length(value) <= c.limit, nil
}

func TestBase_Defaults(t *testing.T) {
	c := newDummyCheck(3)

	assert.Equal(t, "Dummy", c.Name())
	assert.Equal(t, "guardian.Dummy", c.ErrorCode())
	assert.Equal(t, "guardian.Dummy.violated", c.Message())
	assert.Equal(t, []string{DefaultProfile}, c.Profiles())
	assert.Equal(t, []Target{TargetValues}, c.AppliesTo())

	c.SetErrorCode("E1")
	c.SetMessage("too long")
	c.SetProfiles("strict")
	c.SetAppliesTo(TargetContainer)
	assert.Equal(t, "E1", c.ErrorCode())
	assert.Equal(t, "too long", c.Message())
	assert.Equal(t, []string{"strict"}, c.Profiles())
	assert.Equal(t, []Target{TargetContainer}, c.AppliesTo())
}

func TestBase_MessageVariablesMemo(t *testing.T) {
	c := newDummyCheck(3)

	assert.Equal(t, "3", c.MessageVariables()["limit"])
	assert.Equal(t, "3", c.MessageVariables()["limit"])
	assert.Equal(t, 1, c.created)

	c.SetLimit(7)
	assert.Equal(t, "7", c.MessageVariables()["limit"])
	assert.Equal(t, 2, c.created)
}

func TestBase_IsActive(t *testing.T) {
	c := newDummyCheck(3)

	active, err := c.IsActive(nil, "x", nil)
	require.NoError(t, err)
	assert.True(t, active)

	c.SetWhen("_this.Age >= 18")
	active, err = c.IsActive(&person{Age: 20}, nil, nil)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = c.IsActive(&person{Age: 12}, nil, nil)
	require.NoError(t, err)
	assert.False(t, active)

	c.SetWhen("_this.Age +")
	_, err = c.IsActive(&person{}, nil, nil)
	assert.Error(t, err)
}

func TestContext_String(t *testing.T) {
	pt := reflect.TypeOf(&person{})

	tests := []struct {
		ctx  Context
		want string
	}{
		{ClassContext(pt), "person"},
		{FieldContext(pt, "Name"), "person.Name"},
		{Context{Kind: ContextMethodParameter, Type: pt, Name: "Rename", Index: 0, Param: "name"}, "person.Rename(name)"},
		{Context{Kind: ContextConstructorParameter, Type: pt, Name: "NewPerson", Index: 1}, "person.NewPerson(#1)"},
		{Context{Kind: ContextMethodEntry, Type: pt, Name: "Rename"}, "person.Rename() entry"},
		{Context{Kind: ContextMethodExit, Type: pt, Name: "Rename"}, "person.Rename() exit"},
		{Context{Kind: ContextMethodReturnValue, Type: pt, Name: "Label"}, "person.Label()"},
		{ElementContext("2"), "[2]"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.String())
		})
	}
}

func TestPathString(t *testing.T) {
	pt := reflect.TypeOf(person{})
	path := []Context{
		ClassContext(pt),
		FieldContext(pt, "Friends"),
		ElementContext("1"),
		ClassContext(pt),
		FieldContext(pt, "Name"),
	}
	assert.Equal(t, "person > person.Friends[1] > person.Name", PathString(path))
	assert.Equal(t, "", PathString(nil))
}

func TestTargets(t *testing.T) {
	tgt, err := ParseTarget(" values ")
	require.NoError(t, err)
	assert.Equal(t, TargetValues, tgt)

	_, err = ParseTarget("all")
	assert.Error(t, err)

	assert.True(t, IsContainer([]string{"a"}))
	assert.True(t, IsContainer(map[string]int{}))
	assert.True(t, IsContainer([2]int{}))
	assert.False(t, IsContainer([]byte("abc")))
	assert.False(t, IsContainer("abc"))
	assert.False(t, IsContainer(nil))
}

func TestElements(t *testing.T) {
	elems := Elements(map[string]int{"b": 2, "a": 1, "c": 3})
	require.Len(t, elems, 3)
	assert.Equal(t, "a", elems[0].Key)
	assert.Equal(t, "a", elems[0].MapKey)
	assert.Equal(t, 1, elems[0].Value)
	assert.Equal(t, "c", elems[2].Key)

	elems = Elements([]string{"x", "y"})
	require.Len(t, elems, 2)
	assert.Equal(t, "1", elems[1].Key)
	assert.Nil(t, elems[1].MapKey)
	assert.Equal(t, "y", elems[1].Value)

	assert.Nil(t, Elements(42))
}

func TestToFloat64(t *testing.T) {
	n := 5
	tests := []struct {
		name string
		in   interface{}
		want float64
		ok   bool
	}{
		{"int", 3, 3, true},
		{"uint8", uint8(7), 7, true},
		{"float", 2.5, 2.5, true},
		{"pointer", &n, 5, true},
		{"numeric string", " 12.5 ", 12.5, true},
		{"word", "twelve", 0, false},
		{"nil pointer", (*int)(nil), 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToFloat64(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestValues(t *testing.T) {
	assert.Equal(t, 4, Length("äbcd"))
	assert.Equal(t, 2, Length([]int{1, 2}))
	assert.Equal(t, 3, Length(123))
	assert.Equal(t, "null", Stringify(nil))
	assert.Equal(t, "abc", AsString([]byte("abc")))
	assert.True(t, IsNil((*person)(nil)))
	assert.False(t, IsNil(0))

	assert.Equal(t, reflect.TypeOf(person{}), TypeOf(&person{}))
	assert.True(t, ImplementsFieldAccessor(reflect.TypeOf(record{})))
	assert.False(t, ImplementsFieldAccessor(reflect.TypeOf(person{})))
}

func TestReadField(t *testing.T) {
	v, ok := ReadField(&person{Name: "Ada"}, "Name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	_, ok = ReadField(&person{}, "note")
	assert.False(t, ok)

	_, ok = ReadField(&person{}, "Missing")
	assert.False(t, ok)

	v, ok = ReadField(record{"sku": "A-1"}, "sku")
	assert.True(t, ok)
	assert.Equal(t, "A-1", v)

	v, ok = ReadField(record{}, "sku")
	assert.True(t, ok)
	assert.Nil(t, v)

	v, ok = ReadField(map[string]interface{}{"a": 1}, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = ReadField(nil, "a")
	assert.False(t, ok)
}

func TestPreCheck(t *testing.T) {
	c := NewPreCheck("amount > 0 AND amount <= _this.Age")
	assert.Equal(t, "Pre", c.Name())
	assert.Equal(t, "amount > 0 AND amount <= _this.Age", c.MessageVariables()["expression"])

	ok, err := c.IsSatisfied(nil, Bindings{"amount": 5, BindingThis: &person{Age: 10}}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsSatisfied(nil, Bindings{"amount": 50, BindingThis: &person{Age: 10}}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.IsSatisfied(nil, 5, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))

	assert.Equal(t, []interface{}{5}, c.InvalidValue(Bindings{BindingArgs: []interface{}{5}}))
}

func TestPostCheck(t *testing.T) {
	c := NewPostCheck("_this.Age = _old + 1")
	c.SetOld("_this.Age")

	p := &person{Age: 30}
	old, err := c.EvaluateOld(nil, Bindings{BindingThis: p})
	require.NoError(t, err)

	p.Age++
	ok, err := c.IsSatisfied(nil, Bindings{BindingThis: p, BindingOld: old}, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	c.SetLang("jq")
	c.SetExpr("._returns == 1")
	assert.Equal(t, "jq", c.MessageVariables()["language"])
	assert.Equal(t, 42, c.InvalidValue(Bindings{BindingReturns: 42}))
}

func TestConstraintsViolatedError(t *testing.T) {
	violations := []*Violation{
		{CheckName: "NotNull", Message: "name cannot be null"},
		{CheckName: "Min", Message: "age too small"},
	}
	err := ViolatedError("person.Rename", violations)

	assert.Equal(t, "2 constraints violated: name cannot be null; age too small", err.Error())
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeConstraintsViolated))

	var wrapped error = mdwerror.Wrap(err, "rename failed")
	var cve *ConstraintsViolatedError
	require.True(t, errors.As(wrapped, &cve))
	assert.Len(t, cve.Violations, 2)

	single := NewConstraintsViolatedError(violations[:1], nil)
	assert.Equal(t, "constraint violated: name cannot be null", single.Error())
}

func TestValidationFailed(t *testing.T) {
	assert.Nil(t, ValidationFailed(nil, "op"))

	err := ValidationFailed(errors.New("boom"), "validator.Validate")
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeValidationFailed))
	assert.Equal(t, mdwerror.SeverityHigh, mdwerror.GetSeverity(err))
	assert.Same(t, err, ValidationFailed(err, "again"))

	assert.True(t, mdwerror.HasCode(InvalidConfiguration("bad", nil), mdwerror.CodeInvalidConfiguration))
	assert.True(t, mdwerror.HasCode(InvalidArgument("nil"), mdwerror.CodeInvalidArgument))
}

type fieldPathItem struct{ SKU string }

type fieldPathOrder struct {
	Customer string
	Items    []fieldPathItem
}

func TestFieldPath(t *testing.T) {
	order := reflect.TypeOf(fieldPathOrder{})
	item := reflect.TypeOf(fieldPathItem{})
	tests := []struct {
		name string
		path []Context
		want string
	}{
		{"root", []Context{ClassContext(order)}, ""},
		{"field", []Context{ClassContext(order), FieldContext(order, "Customer")}, "Customer"},
		{"nested element", []Context{
			ClassContext(order),
			FieldContext(order, "Items"),
			ElementContext("2"),
			ClassContext(item),
			FieldContext(item, "SKU"),
		}, "Items[2].SKU"},
		{"parameter", []Context{
			ClassContext(order),
			{Kind: ContextMethodParameter, Type: order, Name: "Ship", Param: "address"},
		}, "address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FieldPath(tt.path))
		})
	}
}
