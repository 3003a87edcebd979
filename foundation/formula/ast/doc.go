// Package ast defines the abstract syntax tree of the formula expression
// language. Nodes are produced by the parser package and evaluated by the
// formula package; they are immutable once built and safe to share between
// goroutines.
package ast
