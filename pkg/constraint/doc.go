// Package constraint defines the check contract of guardian: the Check and
// CheckExclusion interfaces, the shared Base implementation, the
// ValidationCycle view checks evaluate against, context frames, container
// targets and the Violation record.
//
// Concrete checks live in package checks. The traversal that drives them is
// package validator.
package constraint
