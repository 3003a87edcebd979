// Package expression dispatches the expressions used by checks, exclusions,
// pre conditions and post conditions to pluggable languages.
//
// An expression may carry a language tag as prefix:
//
//	_this.amount > 0              default language (formula unless configured)
//	jq: .items | length > 0       jq
//
// The prefix is recognized only when it names a registered language.
// Compiled programs are cached per language in a bounded LRU cache and
// concurrent first compilations of the same text are collapsed.
//
// Failures are reported as mdwerror errors with code EXPRESSION_EVALUATION
// (or EXPRESSION_SYNTAX for parse errors).
package expression
