// File: nodes.go
// Title: Formula AST Node Definitions
// Description: Defines the AST node types of the formula expression
//              language: literals, identifiers, member and index access,
//              function and method calls, unary and binary operators.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial AST node definitions
// - 2026-10-19 v0.2.0: Reduced to expression nodes, added member, index
//                      and method call nodes

package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Node represents the base interface for all AST nodes
type Node interface {
	// String returns a source-like representation of the node
	String() string

	// Position returns the source position of the node
	Position() Position
}

// Position represents a position in the source text
type Position struct {
	Line   int // Line number (1-based)
	Column int // Column number (1-based)
	Offset int // Byte offset (0-based)
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Expr represents the base interface for all expressions
type Expr interface {
	Node
	exprNode() // marker method
}

// BinaryExpr represents a binary expression (a AND b, a = b, a + b)
type BinaryExpr struct {
	Left  Expr     // Left operand
	Op    string   // Normalized operator (AND, OR, =, !=, <, +, LIKE, IN, ...)
	Right Expr     // Right operand
	Pos   Position // Source position
}

// UnaryExpr represents a unary expression (NOT a, -a)
type UnaryExpr struct {
	Op   string   // Normalized operator (NOT, -)
	Expr Expr     // Operand expression
	Pos  Position // Source position
}

// IdentifierExpr references a bound variable
type IdentifierExpr struct {
	Name string
	Pos  Position
}

// LiteralExpr holds a constant: string, int64, float64, bool or nil
type LiteralExpr struct {
	Value interface{}
	Pos   Position
}

// MemberExpr accesses a field, map entry or getter: obj.name
type MemberExpr struct {
	Object Expr
	Name   string
	Pos    Position
}

// IndexExpr indexes a slice, array, string or map: obj[index]
type IndexExpr struct {
	Object Expr
	Index  Expr
	Pos    Position
}

// FunctionCallExpr calls a built-in or registered function: name(args)
type FunctionCallExpr struct {
	Name string
	Args []Expr
	Pos  Position
}

// MethodCallExpr calls a method on a value: obj.name(args)
type MethodCallExpr struct {
	Object Expr
	Name   string
	Args   []Expr
	Pos    Position
}

// ArrayExpr is an array literal [a, b, c]
type ArrayExpr struct {
	Elements []Expr
	Pos      Position
}

func (be *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", be.Left.String(), be.Op, be.Right.String())
}

func (be *BinaryExpr) Position() Position { return be.Pos }
func (be *BinaryExpr) exprNode()          {}

func (ue *UnaryExpr) String() string {
	if ue.Op == "NOT" {
		return fmt.Sprintf("(NOT %s)", ue.Expr.String())
	}
	return fmt.Sprintf("(%s%s)", ue.Op, ue.Expr.String())
}

func (ue *UnaryExpr) Position() Position { return ue.Pos }
func (ue *UnaryExpr) exprNode()          {}

func (ie *IdentifierExpr) String() string     { return ie.Name }
func (ie *IdentifierExpr) Position() Position { return ie.Pos }
func (ie *IdentifierExpr) exprNode()          {}

func (le *LiteralExpr) String() string {
	switch v := le.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}

func (le *LiteralExpr) Position() Position { return le.Pos }
func (le *LiteralExpr) exprNode()          {}

func (me *MemberExpr) String() string {
	return me.Object.String() + "." + me.Name
}

func (me *MemberExpr) Position() Position { return me.Pos }
func (me *MemberExpr) exprNode()          {}

func (ie *IndexExpr) String() string {
	return fmt.Sprintf("%s[%s]", ie.Object.String(), ie.Index.String())
}

func (ie *IndexExpr) Position() Position { return ie.Pos }
func (ie *IndexExpr) exprNode()          {}

func (fce *FunctionCallExpr) String() string {
	return fce.Name + "(" + joinExprs(fce.Args) + ")"
}

func (fce *FunctionCallExpr) Position() Position { return fce.Pos }
func (fce *FunctionCallExpr) exprNode()          {}

func (mce *MethodCallExpr) String() string {
	return mce.Object.String() + "." + mce.Name + "(" + joinExprs(mce.Args) + ")"
}

func (mce *MethodCallExpr) Position() Position { return mce.Pos }
func (mce *MethodCallExpr) exprNode()          {}

func (ae *ArrayExpr) String() string {
	return "[" + joinExprs(ae.Elements) + "]"
}

func (ae *ArrayExpr) Position() Position { return ae.Pos }
func (ae *ArrayExpr) exprNode()          {}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Identifiers returns the distinct names of all variables referenced by
// expr, in order of first appearance. Member names are not included.
func Identifiers(expr Expr) []string {
	seen := make(map[string]bool)
	var out []string
	Inspect(expr, func(e Expr) bool {
		if id, ok := e.(*IdentifierExpr); ok && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
		return true
	})
	return out
}

// Inspect traverses expr depth-first, calling fn for every node. Children
// are skipped when fn returns false.
func Inspect(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *BinaryExpr:
		Inspect(e.Left, fn)
		Inspect(e.Right, fn)
	case *UnaryExpr:
		Inspect(e.Expr, fn)
	case *MemberExpr:
		Inspect(e.Object, fn)
	case *IndexExpr:
		Inspect(e.Object, fn)
		Inspect(e.Index, fn)
	case *FunctionCallExpr:
		for _, a := range e.Args {
			Inspect(a, fn)
		}
	case *MethodCallExpr:
		Inspect(e.Object, fn)
		for _, a := range e.Args {
			Inspect(a, fn)
		}
	case *ArrayExpr:
		for _, el := range e.Elements {
			Inspect(el, fn)
		}
	}
}
