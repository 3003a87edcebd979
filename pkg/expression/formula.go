package expression

import (
	"context"

	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/foundation/formula"
	"github.com/msto63/guardian/pkg/core/cache"
)

// FormulaOptions configures the formula language
type FormulaOptions struct {
	CacheSize int
	Functions map[string]formula.Function
	Logger    *mdwlog.Logger
}

// Formula is the default expression language
type Formula struct {
	engine   *formula.Engine
	programs *cache.Cache
}

// NewFormula creates the formula language with a compiled-program cache
func NewFormula(opts FormulaOptions) *Formula {
	return &Formula{
		engine:   formula.New(formula.Options{Logger: opts.Logger, Functions: opts.Functions}),
		programs: cache.New(cache.Config{MaxItems: opts.CacheSize}),
	}
}

func (f *Formula) ID() string { return LanguageFormula }

// Engine exposes the underlying engine, e.g. to register functions
func (f *Formula) Engine() *formula.Engine { return f.engine }

// Compile returns the cached program for expr, compiling it on first use
func (f *Formula) Compile(expr string) (*formula.Program, error) {
	p, err := f.programs.GetOrSet(expr, func() (interface{}, error) {
		return f.engine.Compile(expr)
	})
	if err != nil {
		return nil, err
	}
	return p.(*formula.Program), nil
}

func (f *Formula) Evaluate(ctx context.Context, expr string, bindings map[string]interface{}) (interface{}, error) {
	p, err := f.Compile(expr)
	if err != nil {
		return nil, err
	}
	return p.Eval(ctx, bindings)
}

// CacheStats reports hits and misses of the program cache
func (f *Formula) CacheStats() (hits, misses int64) {
	hits, misses, _ = f.programs.Stats()
	return hits, misses
}
