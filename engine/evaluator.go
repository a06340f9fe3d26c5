package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Evaluator evaluates filter predicates over the run's variables.
//
// Expressions are compiled with expr-lang, which confines authors to an
// expression grammar (comparisons, boolean connectives, arithmetic, member
// access) with no statements, no I/O and no host calls. Anything outside the
// grammar fails at compile time, surfaced as a validation error.
type Evaluator struct {
	cache *lru.Cache[string, *vm.Program]
}

func NewEvaluator(cacheSize int) (*Evaluator, error) {
	cache, err := lru.New[string, *vm.Program](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("error creating expression cache: %w", err)
	}
	return &Evaluator{cache: cache}, nil
}

// EvalPredicate compiles expression on first use and evaluates it to a
// boolean against vars.
func (e *Evaluator) EvalPredicate(expression string, vars map[string]any) (bool, error) {
	program, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, vars)
	if err != nil {
		return false, fmt.Errorf("error evaluating filter %q: %w", expression, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q evaluated to %T, expected boolean", expression, out)
	}
	return result, nil
}

// Validate reports whether expression is within the supported grammar.
// Meant for authoring-time checks on custom filter content.
func (e *Evaluator) Validate(expression string) error {
	if _, err := e.compile(expression); err != nil {
		return err
	}
	return nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	if program, ok := e.cache.Get(expression); ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, newValidationError(fmt.Sprintf("invalid filter expression %q", expression), err)
	}
	e.cache.Add(expression, program)
	return program, nil
}
