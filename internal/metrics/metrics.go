package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/msto63/guardian/pkg/constraint"
)

const subsystem = "validation"

// Outcomes of a validation run
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Collector records validation runs and guarded call violations. It is a
// validator.Observer and a guard.Listener.
type Collector struct {
	runs           *prometheus.CounterVec
	violations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	callsViolated  *prometheus.CounterVec
	callViolations *prometheus.CounterVec
}

// New registers the collector's metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "guardian"
	}
	factory := promauto.With(reg)

	return &Collector{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of validation runs by root type and outcome",
			},
			[]string{"type", "outcome"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "violations_total",
				Help:      "Total number of violations found by validation runs",
			},
			[]string{"type", "check"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Duration of validation runs in seconds",
				Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"type"},
		),
		callsViolated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guard",
				Name:      "calls_violated_total",
				Help:      "Total number of guarded calls rejected by constraint violations",
			},
			[]string{"type"},
		),
		callViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "guard",
				Name:      "violations_total",
				Help:      "Total number of violations raised by guarded calls",
			},
			[]string{"type", "check"},
		),
	}
}

// OnValidation implements validator.Observer
func (c *Collector) OnValidation(root interface{}, violations []*constraint.Violation, elapsed time.Duration, err error) {
	typeName := typeLabel(root)

	outcome := OutcomeValid
	switch {
	case err != nil:
		outcome = OutcomeError
	case len(violations) > 0:
		outcome = OutcomeInvalid
	}
	c.runs.WithLabelValues(typeName, outcome).Inc()
	c.duration.WithLabelValues(typeName).Observe(elapsed.Seconds())

	for _, v := range violations {
		c.violations.WithLabelValues(typeName, v.CheckName).Inc()
	}
}

// OnConstraintsViolated implements guard.Listener
func (c *Collector) OnConstraintsViolated(_ context.Context, err *constraint.ConstraintsViolatedError) error {
	if err == nil || len(err.Violations) == 0 {
		return nil
	}
	typeName := typeLabel(err.Violations[0].ValidatedObject)
	if ctx := err.Violations[0].Context; ctx.Type != nil {
		typeName = constraint.TypeName(ctx.Type)
	}
	c.callsViolated.WithLabelValues(typeName).Inc()
	for _, v := range err.Violations {
		c.callViolations.WithLabelValues(typeName, v.CheckName).Inc()
	}
	return nil
}

func typeLabel(v interface{}) string {
	if t := constraint.TypeOf(v); t != nil {
		return constraint.TypeName(t)
	}
	return "nil"
}
