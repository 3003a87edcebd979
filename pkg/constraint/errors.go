package constraint

import (
	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

// ViolatedError builds a ConstraintsViolatedError whose cause carries the
// CONSTRAINTS_VIOLATED code, so mdwerror.HasCode works on it
func ViolatedError(operation string, violations []*Violation) *ConstraintsViolatedError {
	cause := mdwerror.New("constraints violated").
		WithCode(mdwerror.CodeConstraintsViolated).
		WithOperation(operation).
		WithDetail("violations", len(violations))
	return NewConstraintsViolatedError(violations, cause)
}

// ValidationFailed wraps a failure of the validation mechanics
func ValidationFailed(err error, operation string) error {
	if err == nil {
		return nil
	}
	if mdwerror.GetCode(err) == mdwerror.CodeValidationFailed {
		return err
	}
	return mdwerror.Wrap(err, "validation failed").
		WithCode(mdwerror.CodeValidationFailed).
		WithSeverity(mdwerror.SeverityHigh).
		WithOperation(operation)
}

// InvalidConfiguration reports setup misuse
func InvalidConfiguration(message string, details map[string]interface{}) error {
	return mdwerror.New(message).
		WithCode(mdwerror.CodeInvalidConfiguration).
		WithSeverity(mdwerror.SeverityHigh).
		WithDetails(details)
}

// InvalidArgument reports a violated argument contract of a setup API
func InvalidArgument(message string) error {
	return mdwerror.New(message).WithCode(mdwerror.CodeInvalidArgument)
}
