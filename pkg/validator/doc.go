// Package validator traverses object graphs and evaluates the checks the
// metadata index declares for them.
//
// A Validate call runs one validation cycle. The cycle tracks the context
// path, the visited objects of the traversal and the collected violations.
// Objects reachable through AssertValid are validated at most once per
// cycle, so cyclic graphs terminate.
//
// Checks are evaluated in declaration order per field, then invariant
// getters, then object checks. Only failures of the evaluation mechanics
// are returned as errors; they carry mdwerror.CodeValidationFailed.
package validator
