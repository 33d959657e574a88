package workflow

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/cel-go/cel"
)

// operatorExprs maps the safe operator vocabulary onto the CEL expression
// that implements it, compiled once per operator and cached by programFor.
// Every operator — not just the numeric ones — is evaluated by CEL; Go only
// normalizes case/whitespace before handing field/value to the program, per
// spec.md §4.3's "safe operator set".
var operatorExprs = map[string]string{
	"==":           `field == value`,
	"!=":           `field != value`,
	">":            `double(field) > double(value)`,
	">=":           `double(field) >= double(value)`,
	"<":            `double(field) < double(value)`,
	"<=":           `double(field) <= double(value)`,
	"contains":     `field.contains(value)`,
	"not_contains": `!field.contains(value)`,
	"is_empty":     `field == ""`,
	"is_not_empty": `field != ""`,
}

// GatewayEvaluator compiles the safe operator set into cached CEL programs,
// mirroring the teacher's CEL evaluator + ristretto program cache idiom.
type GatewayEvaluator struct {
	env   *cel.Env
	cache *ristretto.Cache[string, cel.Program]
}

// NewGatewayEvaluator builds an evaluator with a program cache of the given
// approximate entry count.
func NewGatewayEvaluator(cacheSize int) (*GatewayEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("field", cel.StringType),
		cel.Variable("value", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("building CEL environment: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, cel.Program]{
		NumCounters: int64(cacheSize) * 10,
		MaxCost:     int64(cacheSize),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("building program cache: %w", err)
	}
	return &GatewayEvaluator{env: env, cache: cache}, nil
}

// Evaluate reports whether the condition holds for fieldValue (the context
// value named by cond.Field) against cond.Value, using cond.Operator from
// the safe operator set. An unknown operator yields false before a program
// is ever looked up, so no free-form CEL ever reaches the engine. A CEL
// evaluation error — including the numeric operators' non-numeric operands,
// the spec's "TypeError→false" case — also yields false.
func (g *GatewayEvaluator) Evaluate(cond EdgeCondition, fieldValue string) bool {
	if _, ok := operatorExprs[cond.Operator]; !ok {
		return false
	}
	field, value := fieldValue, cond.Value
	switch cond.Operator {
	case "==", "!=":
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.ToLower(strings.TrimSpace(value))
	case ">", ">=", "<", "<=":
		field = strings.TrimSpace(field)
		value = strings.TrimSpace(value)
	case "contains", "not_contains":
		field = strings.ToLower(field)
		value = strings.ToLower(value)
	}
	program, err := g.programFor(cond.Operator)
	if err != nil {
		return false
	}
	out, _, err := program.Eval(map[string]any{"field": field, "value": value})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// programFor compiles (or retrieves from cache) the CEL program for op.
func (g *GatewayEvaluator) programFor(op string) (cel.Program, error) {
	if prog, ok := g.cache.Get(op); ok {
		return prog, nil
	}
	ast, issues := g.env.Compile(operatorExprs[op])
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prog, err := g.env.Program(ast)
	if err != nil {
		return nil, err
	}
	g.cache.Set(op, prog, 1)
	g.cache.Wait()
	return prog, nil
}
