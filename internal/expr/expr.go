// Package expr defines the expression-evaluation contract the retry strategy
// consumes. Retry-cycle expressions may reference execution-scoped variables;
// the evaluator resolves them to the textual cycle specification.
package expr

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Scope exposes the variables of the execution a job belongs to.
type Scope interface {
	// Variable returns the value of a variable and whether it exists.
	Variable(name string) (any, bool)
}

// MapScope adapts a plain map to a Scope.
type MapScope map[string]any

func (m MapScope) Variable(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Evaluator resolves a retry-cycle expression against an execution scope.
// Implementations may run externally supplied logic and must be treated as
// fallible; the caller degrades to the standard strategy on error. The scope
// may be nil when the job has no execution.
type Evaluator interface {
	Evaluate(ctx context.Context, expression string, scope Scope) (string, error)
}

var variableRefPattern = regexp.MustCompile(`\$\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}`)

// TemplateEvaluator is the built-in Evaluator: it substitutes `${name}`
// references with execution variables and passes everything else through
// verbatim. An unresolvable reference or a non-textual variable value is an
// evaluation error.
type TemplateEvaluator struct{}

// NewTemplateEvaluator creates the default evaluator.
func NewTemplateEvaluator() *TemplateEvaluator {
	return &TemplateEvaluator{}
}

// Evaluate resolves variable references in the expression.
func (e *TemplateEvaluator) Evaluate(ctx context.Context, expression string, scope Scope) (string, error) {
	var evalErr error

	result := variableRefPattern.ReplaceAllStringFunc(expression, func(ref string) string {
		if evalErr != nil {
			return ref
		}
		name := variableRefPattern.FindStringSubmatch(ref)[1]

		if scope == nil {
			evalErr = fmt.Errorf("no execution scope to resolve %q", ref)
			return ref
		}
		value, ok := scope.Variable(name)
		if !ok {
			evalErr = fmt.Errorf("unknown variable %q", name)
			return ref
		}
		s, ok := value.(string)
		if !ok {
			evalErr = fmt.Errorf("variable %q is not textual (%T)", name, value)
			return ref
		}
		return s
	})

	if evalErr != nil {
		return "", evalErr
	}
	return strings.TrimSpace(result), nil
}
