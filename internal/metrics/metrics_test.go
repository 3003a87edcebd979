package metrics

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
	"github.com/msto63/guardian/pkg/constraint/checks"
	"github.com/msto63/guardian/pkg/metadata"
	"github.com/msto63/guardian/pkg/validator"
)

type item struct {
	Name string
	Qty  int
}

func TestCollector_OnValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "test")

	index := metadata.New(metadata.Options{Logger: mdwlog.Discard()})
	require.NoError(t, index.AddFieldChecks(reflect.TypeOf(item{}), "Name", checks.NewNotBlank()))
	require.NoError(t, index.AddFieldChecks(reflect.TypeOf(item{}), "Qty", checks.NewMin(1)))
	v := validator.New(validator.Options{Index: index, Logger: mdwlog.Discard(), Observers: []validator.Observer{c}})

	_, err := v.Validate(&item{Name: "bolt", Qty: 3})
	require.NoError(t, err)
	_, err = v.Validate(&item{Qty: 0})
	require.NoError(t, err)
	_, err = v.Validate(&item{Qty: 2})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("item", OutcomeValid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runs.WithLabelValues("item", OutcomeInvalid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.violations.WithLabelValues("item", "NotBlank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.violations.WithLabelValues("item", "Min")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))

	c.OnValidation(&item{}, nil, time.Millisecond, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("item", OutcomeError)))
}

func TestCollector_OnConstraintsViolated(t *testing.T) {
	c := New(prometheus.NewRegistry(), "")

	ctx := constraint.Context{Kind: constraint.ContextMethodParameter, Type: reflect.TypeOf(item{}), Name: "Restock"}
	err := constraint.NewConstraintsViolatedError([]*constraint.Violation{
		{CheckName: "Min", Context: ctx},
		{CheckName: "Pre", Context: ctx},
	}, nil)

	require.NoError(t, c.OnConstraintsViolated(context.Background(), err))
	require.NoError(t, c.OnConstraintsViolated(context.Background(), nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.callsViolated.WithLabelValues("item")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callViolations.WithLabelValues("item", "Pre")))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "dup")
	assert.Panics(t, func() { New(reg, "dup") })
}
