package checks

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/constraint"
)

type account struct {
	Owner string
	Limit int
}

func (a *account) WithinLimit(v int) bool { return v <= a.Limit }

func (a *account) KnownCode(_ context.Context, code string) (bool, error) {
	if code == "broken" {
		return false, errors.New("lookup failed")
	}
	return code == "A1", nil
}

func satisfied(t *testing.T, c constraint.Check, value interface{}) bool {
	t.Helper()
	ok, err := c.IsSatisfied(nil, value, nil)
	require.NoError(t, err)
	return ok
}

func mustMatchPattern(t *testing.T, patterns ...string) *MatchPattern {
	t.Helper()
	c, err := NewMatchPattern(patterns...)
	require.NoError(t, err)
	return c
}

func TestNullTolerance(t *testing.T) {
	checkWith, err := NewCheckWith(SimpleCheckFunc(func(_, v interface{}, _ constraint.Context, _ constraint.ValidationCycle) bool {
		return v != nil
	}))
	require.NoError(t, err)

	tolerant := []constraint.Check{
		NewNotEmpty(), NewNotBlank(),
		NewMin(1), NewMax(1), NewRange(1, 2),
		NewLength(1, 2), NewMinLength(1), NewMaxLength(1),
		mustMatchPattern(t, "x"), NewMemberOf("a"), NewNotMemberOf("a"),
		NewHasSubstring("a"), NewAssertURL(), checkWith,
		NewValidateWithMethod("WithinLimit"),
	}
	for _, c := range tolerant {
		t.Run(c.Name(), func(t *testing.T) {
			assert.True(t, satisfied(t, c, nil))
			assert.True(t, satisfied(t, c, (*string)(nil)))
		})
	}

	t.Run("NotNull", func(t *testing.T) {
		assert.False(t, satisfied(t, NewNotNull(), nil))
		assert.False(t, satisfied(t, NewNotNull(), (*string)(nil)))
	})
}

func TestPresenceChecks(t *testing.T) {
	assert.True(t, satisfied(t, NewNotNull(), 0))
	assert.True(t, satisfied(t, NewNotNull(), ""))

	assert.False(t, satisfied(t, NewNotEmpty(), ""))
	assert.False(t, satisfied(t, NewNotEmpty(), []int{}))
	assert.False(t, satisfied(t, NewNotEmpty(), map[string]int{}))
	assert.True(t, satisfied(t, NewNotEmpty(), " "))
	assert.True(t, satisfied(t, NewNotEmpty(), []int{1}))

	assert.False(t, satisfied(t, NewNotBlank(), " \t\n"))
	assert.True(t, satisfied(t, NewNotBlank(), " x "))

	assert.Equal(t, []constraint.Target{constraint.TargetContainer, constraint.TargetValues}, NewNotNull().AppliesTo())
	assert.Equal(t, []constraint.Target{constraint.TargetContainer}, NewNotEmpty().AppliesTo())
}

func TestMin(t *testing.T) {
	c := NewMin(5)
	assert.True(t, satisfied(t, c, 5))
	assert.True(t, satisfied(t, c, 5.5))
	assert.True(t, satisfied(t, c, "7"))
	assert.False(t, satisfied(t, c, 4))
	assert.False(t, satisfied(t, c, "4.99"))
	assert.False(t, satisfied(t, c, "five"))
	assert.Equal(t, "guardian.Min.violated", c.Message())
	assert.Equal(t, "5", c.MessageVariables()["min"])

	c.SetInclusive(false)
	assert.False(t, satisfied(t, c, 5))
	assert.True(t, satisfied(t, c, uint8(6)))
	assert.Equal(t, "guardian.Min.violatedExclusive", c.Message())

	c.SetMessage("custom")
	assert.Equal(t, "custom", c.Message())

	c.SetMin(2.5)
	assert.Equal(t, "2.5", c.MessageVariables()["min"])
}

func TestMaxAndRange(t *testing.T) {
	max := NewMax(10)
	assert.True(t, satisfied(t, max, 10))
	assert.False(t, satisfied(t, max, int64(11)))
	assert.False(t, satisfied(t, max, "ten"))
	max.SetInclusive(false)
	assert.False(t, satisfied(t, max, 10))
	assert.Equal(t, "guardian.Max.violatedExclusive", max.Message())

	r := NewRange(1, 3)
	assert.True(t, satisfied(t, r, 1))
	assert.True(t, satisfied(t, r, "3"))
	assert.False(t, satisfied(t, r, 0.99))
	assert.False(t, satisfied(t, r, "x"))
	assert.Equal(t, map[string]string{"min": "1", "max": "3"}, r.MessageVariables())
}

func TestLengthChecks(t *testing.T) {
	l := NewLength(2, 4)
	assert.True(t, satisfied(t, l, "äöü"))
	assert.False(t, satisfied(t, l, "a"))
	assert.False(t, satisfied(t, l, "abcde"))
	assert.True(t, satisfied(t, l, []int{1, 2}))

	assert.True(t, satisfied(t, NewMinLength(3), "abc"))
	assert.False(t, satisfied(t, NewMinLength(3), "ab"))
	assert.True(t, satisfied(t, NewMaxLength(3), "abc"))
	assert.False(t, satisfied(t, NewMaxLength(3), "abcd"))
	assert.True(t, satisfied(t, NewMaxLength(-1), "unbounded"))
}

func TestMatchPattern(t *testing.T) {
	c := mustMatchPattern(t, `\d*`)
	assert.True(t, satisfied(t, c, ""))
	assert.True(t, satisfied(t, c, "1234"))
	assert.False(t, satisfied(t, c, "12.34"))
	assert.False(t, satisfied(t, c, "12,34"))
	assert.False(t, satisfied(t, c, "foo"))
	assert.Equal(t, `\d*`, c.MessageVariables()["pattern"])

	require.NoError(t, c.SetPatterns("[1234]*", "[1256]*"))
	assert.True(t, c.MatchAll())
	assert.True(t, satisfied(t, c, "1212"))
	assert.False(t, satisfied(t, c, "1234"))
	assert.False(t, satisfied(t, c, "1256"))
	assert.False(t, satisfied(t, c, "34"))
	assert.Equal(t, "[[1234]*, [1256]*]", c.MessageVariables()["pattern"])

	c.SetMatchAll(false)
	assert.True(t, satisfied(t, c, "1212"))
	assert.True(t, satisfied(t, c, "1234"))
	assert.True(t, satisfied(t, c, "56"))
	assert.False(t, satisfied(t, c, "78"))

	err := c.SetPatterns("(")
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))
	assert.Equal(t, []string{"[1234]*", "[1256]*"}, c.Patterns())
}

func TestNotMemberOf(t *testing.T) {
	c := NewNotMemberOf("10", "false", "TRUE")
	assert.False(t, satisfied(t, c, 10))
	assert.False(t, satisfied(t, c, "10"))
	assert.True(t, satisfied(t, c, 10.0))
	assert.True(t, satisfied(t, c, float32(10)))
	assert.True(t, satisfied(t, c, 10.5))
	assert.False(t, satisfied(t, NewNotMemberOf("10.0", "10.5"), 10.0))
	assert.False(t, satisfied(t, NewNotMemberOf("10.0", "10.5"), 10.5))
	assert.False(t, satisfied(t, c, "false"))
	assert.False(t, satisfied(t, c, false))
	assert.False(t, satisfied(t, c, "TRUE"))
	assert.True(t, satisfied(t, c, true))

	c.SetIgnoreCase(true)
	assert.False(t, satisfied(t, c, "FALSE"))
	assert.False(t, satisfied(t, c, false))
	assert.False(t, satisfied(t, c, "true"))
	assert.False(t, satisfied(t, c, true))
	assert.Equal(t, "[10, false, TRUE]", c.MessageVariables()["members"])
}

func TestMemberOf(t *testing.T) {
	c := NewMemberOf("red", "green")
	assert.True(t, satisfied(t, c, "red"))
	assert.False(t, satisfied(t, c, "RED"))
	c.SetIgnoreCase(true)
	assert.True(t, satisfied(t, c, "RED"))

	c.SetMembers("blue")
	assert.True(t, c.IgnoreCase())
	assert.True(t, satisfied(t, c, "Blue"))
	assert.False(t, satisfied(t, c, "red"))
}

func TestHasSubstring(t *testing.T) {
	c := NewHasSubstring("Foo")
	assert.True(t, satisfied(t, c, "xxFooxx"))
	assert.False(t, satisfied(t, c, "xxfooxx"))

	c.SetIgnoreCase(true)
	assert.True(t, satisfied(t, c, "xxfOOxx"))
	assert.Equal(t, "true", c.MessageVariables()["ignoreCase"])

	c.SetSubstring("BAR")
	assert.True(t, satisfied(t, c, "a bar b"))
	assert.False(t, satisfied(t, c, "a foo b"))
	assert.Equal(t, "BAR", c.MessageVariables()["substring"])
}

func TestAssertURL(t *testing.T) {
	c := NewAssertURL()

	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com", true},
		{"HTTPS://example.com/path?q=1", true},
		{"ftp://files.example.com/pub", true},
		{"mailto:someone@example.com", false},
		{"example.com", false},
		{"http://", false},
		{"://missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, satisfied(t, c, tt.url))
		})
	}

	c.SetPermittedSchemes("mailto")
	assert.True(t, satisfied(t, c, "mailto:someone@example.com"))
}

func TestAssertURL_Connect(t *testing.T) {
	c := NewAssertURL()
	c.SetConnect(true)

	var dialed []string
	c.SetConnector(func(_ context.Context, u *url.URL) error {
		dialed = append(dialed, u.Host)
		if u.Host == "down.example.com" {
			return errors.New("connection refused")
		}
		return nil
	})

	assert.True(t, satisfied(t, c, "http://up.example.com"))
	assert.False(t, satisfied(t, c, "http://down.example.com"))
	assert.False(t, satisfied(t, c, "gopher://up.example.com"))
	assert.Equal(t, []string{"up.example.com", "down.example.com"}, dialed)
}

func TestCheckWith(t *testing.T) {
	_, err := NewCheckWith(nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))

	c, err := NewCheckWith(SimpleCheckFunc(func(validated, value interface{}, _ constraint.Context, _ constraint.ValidationCycle) bool {
		a, ok := validated.(*account)
		return ok && a.Owner != ""
	}))
	require.NoError(t, err)

	ada := &account{Owner: "ada"}
	ok, err := c.IsSatisfied(ada, ada, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	empty := &account{}
	ok, err = c.IsSatisfied(empty, empty, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, c.IgnoreIfNull())
	assert.Equal(t, "true", c.MessageVariables()["ignoreIfNull"])
	ok, err = c.IsSatisfied(empty, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok, "nil is not handed to the simple check by default")

	c.SetIgnoreIfNull(false)
	ok, err = c.IsSatisfied(empty, nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "false", c.MessageVariables()["ignoreIfNull"])
}

func TestAssert(t *testing.T) {
	c := NewAssert("_value <= _this.Limit")

	ok, err := c.IsSatisfied(&account{Limit: 10}, 7, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsSatisfied(&account{Limit: 10}, 12, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	c.SetExpr("_value != null")
	ok, err = c.IsSatisfied(&account{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	c.SetLang("jq")
	c.SetExpr("$_value | length > 2")
	ok, err = c.IsSatisfied(nil, "abc", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateWithMethod(t *testing.T) {
	a := &account{Limit: 10}

	c := NewValidateWithMethod("WithinLimit")
	ok, err := c.IsSatisfied(a, 5, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsSatisfied(a, int64(20), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.IsSatisfied(a, "five", nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeReflectionFailed))

	assert.True(t, c.IgnoreIfNull())
	ok, err = c.IsSatisfied(a, nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	c.SetIgnoreIfNull(false)
	_, err = c.IsSatisfied(a, nil, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeReflectionFailed))

	c = NewValidateWithMethod("KnownCode")
	ok, err = c.IsSatisfied(a, "A1", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.IsSatisfied(a, "broken", nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeReflectionFailed))

	_, err = NewValidateWithMethod("Missing").IsSatisfied(a, 1, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeReflectionFailed))
}

func TestNullable(t *testing.T) {
	n := NewNullable()
	excluded, err := n.IsCheckExcluded(NewNotNull(), nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, excluded)

	excluded, err = n.IsCheckExcluded(NewNotBlank(), nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, excluded)
	assert.Equal(t, []string{constraint.DefaultProfile}, n.Profiles())
}

func TestCascadeChecks(t *testing.T) {
	var cascade constraint.CascadeCheck = NewAssertValid()
	assert.True(t, cascade.Cascades())

	afc := NewAssertFieldConstraints(reflect.TypeOf(&account{}), "Owner")
	var fc constraint.FieldConstraintsCheck = afc
	assert.Equal(t, reflect.TypeOf(account{}), fc.DeclaringType())
	assert.Equal(t, "Owner", fc.FieldName())
}

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()

	c, err := r.Create("Min", Options{
		"value":     int64(3),
		"inclusive": false,
		"message":   "too small",
		"errorCode": "E_MIN",
		"severity":  2,
		"profiles":  []interface{}{"strict"},
		"when":      "_this != null",
		"appliesTo": []interface{}{"container"},
	})
	require.NoError(t, err)
	min := c.(*Min)
	assert.Equal(t, 3.0, min.Min())
	assert.False(t, min.IsInclusive())
	assert.Equal(t, "too small", c.Message())
	assert.Equal(t, "E_MIN", c.ErrorCode())
	assert.Equal(t, 2, c.Severity())
	assert.Equal(t, []string{"strict"}, c.Profiles())
	assert.Equal(t, "_this != null", c.When())
	assert.Equal(t, []constraint.Target{constraint.TargetContainer}, c.AppliesTo())

	c, err = r.Create("NotMemberOf", Options{"members": []interface{}{10, "x"}, "ignoreCase": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "x"}, c.(*NotMemberOf).Members())

	c, err = r.Create("MatchPattern", Options{"patterns": []string{"a+", "b+"}, "matchAll": false})
	require.NoError(t, err)
	assert.True(t, satisfied(t, c, "bbb"))

	_, err = r.Create("MatchPattern", nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))

	_, err = r.Create("Nope", nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))

	_, err = r.Create("Min", Options{"appliesTo": []interface{}{"everything"}})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))

	_, err = r.Create("Min", Options{"value": "not a number"})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))
}

func TestRegistry_Extensions(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("CheckWith", Options{"simpleCheck": "owner"})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))

	require.NoError(t, r.RegisterSimpleCheck("owner", SimpleCheckFunc(func(_, v interface{}, _ constraint.Context, _ constraint.ValidationCycle) bool {
		return v == "ada"
	})))
	c, err := r.Create("CheckWith", Options{"simpleCheck": "owner"})
	require.NoError(t, err)
	assert.True(t, satisfied(t, c, "ada"))
	assert.False(t, satisfied(t, c, "bob"))
	assert.True(t, satisfied(t, c, nil))

	c, err = r.Create("CheckWith", Options{"simpleCheck": "owner", "ignoreIfNull": false})
	require.NoError(t, err)
	assert.False(t, satisfied(t, c, nil))

	c, err = r.Create("ValidateWithMethod", Options{"method": "WithinLimit"})
	require.NoError(t, err)
	assert.True(t, c.(*ValidateWithMethod).IgnoreIfNull())

	r.SetTypeResolver(func(name string) (reflect.Type, bool) {
		if name == "Account" {
			return reflect.TypeOf(account{}), true
		}
		return nil, false
	})
	c, err = r.Create("AssertFieldConstraints", Options{"declaringType": "Account", "field": "Owner"})
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(account{}), c.(*AssertFieldConstraints).DeclaringType())

	_, err = r.Create("AssertFieldConstraints", Options{"declaringType": "Unknown"})
	assert.Error(t, err)

	require.NoError(t, r.Register("Even", func(_ *Registry, _ Options) (constraint.Check, error) {
		return NewAssert("_value % 2 = 0"), nil
	}))
	assert.Contains(t, r.Names(), "Even")
	assert.Error(t, r.Register("", nil))

	e, err := r.CreateExclusion("Nullable", Options{"profiles": []interface{}{"draft"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft"}, e.Profiles())

	_, err = r.CreateExclusion("Other", nil)
	assert.Error(t, err)
}
