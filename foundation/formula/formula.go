// File: formula.go
// Title: Formula Engine
// Description: High-level API of the formula expression language. Compiles
//              expression text into reusable programs and evaluates them
//              against a set of variable bindings.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-25
// Modified: 2026-10-19
//
// Change History:
// - 2025-01-25 v0.1.0: Initial engine implementation
// - 2026-10-19 v0.2.0: Expression programs, function registry, context
//                      aware evaluation

package formula

import (
	"context"
	"errors"
	"strings"
	"sync"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	mdwast "github.com/msto63/guardian/foundation/formula/ast"
	mdwparser "github.com/msto63/guardian/foundation/formula/parser"
)

// Function is a callable available to expressions by name
type Function func(ctx context.Context, args ...interface{}) (interface{}, error)

// Options configures the engine
type Options struct {
	// Logger for engine operations (optional, defaults to default logger)
	Logger *mdwlog.Logger

	// MaxExpressionLength limits input length (default: 4096)
	MaxExpressionLength int

	// Functions adds or overrides named functions
	Functions map[string]Function
}

// Engine compiles and evaluates formula expressions. It is safe for
// concurrent use.
type Engine struct {
	logger    *mdwlog.Logger
	options   Options
	mu        sync.RWMutex
	functions map[string]Function
}

// Program is a compiled expression. Programs are immutable and may be
// evaluated concurrently.
type Program struct {
	source string
	root   mdwast.Expr
	engine *Engine
}

// New creates an engine with the built-in functions plus opts.Functions
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.MaxExpressionLength == 0 {
		opts.MaxExpressionLength = 4096
	}

	e := &Engine{
		logger:    opts.Logger.WithField("component", "formula"),
		options:   opts,
		functions: make(map[string]Function, len(builtins)+len(opts.Functions)),
	}
	for name, fn := range builtins {
		e.functions[name] = fn
	}
	for name, fn := range opts.Functions {
		e.functions[strings.ToLower(name)] = fn
	}
	return e
}

// RegisterFunction adds or replaces a named function. Names are
// case-insensitive.
func (e *Engine) RegisterFunction(name string, fn Function) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return mdwerror.New("function name and implementation are required").
			WithCode(mdwerror.CodeInvalidArgument).
			WithOperation("formula.RegisterFunction")
	}
	e.mu.Lock()
	e.functions[strings.ToLower(name)] = fn
	e.mu.Unlock()
	return nil
}

func (e *Engine) function(name string) (Function, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.functions[strings.ToLower(name)]
	return fn, ok
}

// Compile parses source into a Program
func (e *Engine) Compile(source string) (*Program, error) {
	p := mdwparser.New(mdwparser.Options{
		Logger:         e.logger,
		MaxInputLength: e.options.MaxExpressionLength,
	})
	root, err := p.Parse(source)
	if err != nil {
		wrapped := mdwerror.Wrap(err, "invalid formula expression").
			WithCode(mdwerror.CodeExpressionSyntax).
			WithOperation("formula.Compile").
			WithDetail("expression", source)
		var pe *mdwparser.ParseError
		if errors.As(err, &pe) {
			wrapped = wrapped.WithDetail("line", pe.Line).WithDetail("column", pe.Column)
		}
		return nil, wrapped
	}
	return &Program{source: source, root: root, engine: e}, nil
}

// Evaluate compiles and evaluates source in one step
func (e *Engine) Evaluate(ctx context.Context, source string, vars map[string]interface{}) (interface{}, error) {
	prog, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return prog.Eval(ctx, vars)
}

// Source returns the expression text the program was compiled from
func (p *Program) Source() string { return p.source }

// AST returns the root expression node
func (p *Program) AST() mdwast.Expr { return p.root }

// Variables returns the names of the variables the program references
func (p *Program) Variables() []string { return mdwast.Identifiers(p.root) }

// Eval evaluates the program. Variables not present in vars cause an
// evaluation error.
func (p *Program) Eval(ctx context.Context, vars map[string]interface{}) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ev := &evaluator{ctx: ctx, vars: vars, engine: p.engine}
	result, err := ev.eval(p.root)
	if err != nil {
		var mdwErr *mdwerror.Error
		if errors.As(err, &mdwErr) && mdwErr.Code() == mdwerror.CodeExpressionEvaluation {
			return nil, err
		}
		return nil, mdwerror.Wrap(err, "formula evaluation failed").
			WithCode(mdwerror.CodeExpressionEvaluation).
			WithOperation("formula.Eval").
			WithDetail("expression", p.source)
	}
	return result, nil
}
