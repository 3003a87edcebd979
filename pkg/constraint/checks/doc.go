// Package checks provides the built-in checks of guardian and a registry of
// named check factories used by declarative rule files.
//
// Every check except NotNull, NotEmpty, NotBlank and Assert treats a nil
// value as satisfied. Numeric checks accept native numbers and numeric
// strings; strings that do not parse are never satisfied.
package checks
