package journal

import (
	"context"
	"time"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/constraint"
)

// Recorder writes violations to a Store. It is a validator.Observer and a
// guard.Listener; write failures are logged, never returned to the caller
// of the validation.
type Recorder struct {
	store   Store
	source  string
	timeout time.Duration
	logger  *mdwlog.Logger
}

// NewRecorder creates a Recorder tagging entries with source
func NewRecorder(store Store, source string, logger *mdwlog.Logger) *Recorder {
	if logger == nil {
		logger = mdwlog.GetDefault().WithField("component", "journal")
	}
	return &Recorder{store: store, source: source, timeout: 5 * time.Second, logger: logger}
}

// OnValidation implements validator.Observer
func (r *Recorder) OnValidation(root interface{}, violations []*constraint.Violation, _ time.Duration, err error) {
	if err != nil || len(violations) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.record(ctx, root, violations)
}

// OnConstraintsViolated implements guard.Listener
func (r *Recorder) OnConstraintsViolated(ctx context.Context, err *constraint.ConstraintsViolatedError) error {
	if err == nil || len(err.Violations) == 0 {
		return nil
	}
	r.record(ctx, err.Violations[0].ValidatedObject, err.Violations)
	return nil
}

func (r *Recorder) record(ctx context.Context, root interface{}, violations []*constraint.Violation) {
	entries := EntriesFromViolations(r.source, root, violations)
	accepted, rejected, err := r.store.RecordBatch(ctx, entries)
	if err != nil {
		r.logger.WarnWithErr("Failed to journal violations", err, mdwlog.Fields{"count": len(entries)})
		return
	}
	r.logger.Debug("Violations journaled", mdwlog.Fields{"accepted": accepted, "rejected": rejected})
}
