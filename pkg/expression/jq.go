package expression

import (
	"context"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/itchyny/gojq"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/core/cache"
)

// JQ evaluates jq programs. Every binding is exposed as a $variable and the
// program input is the value bound to _this. Values are normalized to their
// JSON form first, so struct fields are addressed by their JSON names. The
// first emitted value is the result.
type JQ struct {
	programs *cache.Cache
}

// NewJQ creates the jq language with a compiled-program cache
func NewJQ(cacheSize int) *JQ {
	return &JQ{programs: cache.New(cache.Config{MaxItems: cacheSize})}
}

func (j *JQ) ID() string { return LanguageJQ }

func (j *JQ) compile(expr string, names []string) (*gojq.Code, error) {
	key := expr + "\x00" + strings.Join(names, ",")
	code, err := j.programs.GetOrSet(key, func() (interface{}, error) {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, mdwerror.Wrap(err, "invalid jq expression").
				WithCode(mdwerror.CodeExpressionSyntax).
				WithDetail("expression", expr)
		}
		vars := make([]string, len(names))
		for i, n := range names {
			vars[i] = "$" + n
		}
		code, err := gojq.Compile(query, gojq.WithVariables(vars))
		if err != nil {
			return nil, mdwerror.Wrap(err, "invalid jq expression").
				WithCode(mdwerror.CodeExpressionSyntax).
				WithDetail("expression", expr)
		}
		return code, nil
	})
	if err != nil {
		return nil, err
	}
	return code.(*gojq.Code), nil
}

func (j *JQ) Evaluate(ctx context.Context, expr string, bindings map[string]interface{}) (interface{}, error) {
	names := make([]string, 0, len(bindings))
	for n := range bindings {
		names = append(names, n)
	}
	sort.Strings(names)

	code, err := j.compile(expr, names)
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(names))
	for i, n := range names {
		v, err := normalize(bindings[n])
		if err != nil {
			return nil, mdwerror.Wrap(err, "cannot expose binding to jq").
				WithCode(mdwerror.CodeExpressionEvaluation).
				WithDetail("binding", n)
		}
		values[i] = v
	}

	var input interface{}
	if i := sort.SearchStrings(names, "_this"); i < len(names) && names[i] == "_this" {
		input = values[i]
	}

	iter := code.RunWithContext(ctx, input, values...)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, mdwerror.Wrap(err, "jq evaluation failed").
			WithCode(mdwerror.CodeExpressionEvaluation).
			WithDetail("expression", expr)
	}
	return v, nil
}

// normalize converts v into the value model of gojq: nil, bool, float64,
// string, []interface{} and map[string]interface{}.
func normalize(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, bool, string, float64:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
