package constraint

import (
	"fmt"
	"strings"
)

// Violation records one failed check occurrence. Violations are created by
// the validation cycle and never modified afterwards.
type Violation struct {
	CheckName        string            `json:"check"`
	ErrorCode        string            `json:"errorCode"`
	Message          string            `json:"message"`
	MessageTemplate  string            `json:"messageTemplate"`
	MessageVariables map[string]string `json:"messageVariables,omitempty"`
	Severity         int               `json:"severity"`
	Profiles         []string          `json:"profiles,omitempty"`
	// Context is the declared location of the check
	Context Context `json:"-"`
	// ContextPath is the traversal path at the time of the violation
	ContextPath     []Context   `json:"-"`
	ValidatedObject interface{} `json:"-"`
	InvalidValue    interface{} `json:"-"`
	CorrelationID   string      `json:"correlationId,omitempty"`
}

// PathString renders the context path
func (v *Violation) PathString() string {
	return PathString(v.ContextPath)
}

func (v *Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.PathString(), v.Message, v.ErrorCode)
}

// ConstraintsViolatedError is returned by guarded calls whose checks failed.
// It carries every violation of the failing phase.
type ConstraintsViolatedError struct {
	Violations []*Violation
	cause      error
}

// NewConstraintsViolatedError creates the error for violations. cause is
// typically an mdwerror with code CONSTRAINTS_VIOLATED.
func NewConstraintsViolatedError(violations []*Violation, cause error) *ConstraintsViolatedError {
	return &ConstraintsViolatedError{
		Violations: append([]*Violation(nil), violations...),
		cause:      cause,
	}
}

func (e *ConstraintsViolatedError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "constraints violated"
	case 1:
		return "constraint violated: " + e.Violations[0].Message
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("%d constraints violated: %s", len(e.Violations), strings.Join(msgs, "; "))
}

func (e *ConstraintsViolatedError) Unwrap() error { return e.cause }
