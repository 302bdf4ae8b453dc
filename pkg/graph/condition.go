package graph

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// EvalCondition evaluates an edge condition expression against the
// current state. An empty condition is unconditionally true. State keys
// the expression references but the state does not carry evaluate to
// nil, and a nil result routes as false.
func EvalCondition(cond string, state map[string]interface{}) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	program, err := expr.Compile(cond, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return false, NewPermanentError("invalid condition expression", err).
			WithCode(ErrCodeCondition)
	}

	out, err := expr.Run(program, state)
	if err != nil {
		return false, NewPermanentError("condition evaluation failed", err).
			WithCode(ErrCodeCondition)
	}

	if out == nil {
		return false, nil
	}
	b, ok := out.(bool)
	if !ok {
		return false, NewPermanentError(
			fmt.Sprintf("condition must evaluate to bool (got %T)", out), nil).
			WithCode(ErrCodeCondition)
	}

	return b, nil
}

// ValidateCondition compiles a condition expression without evaluating
// it, so manifests with malformed conditions fail at registration time
// rather than mid-run.
func ValidateCondition(cond string) error {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil
	}

	if _, err := expr.Compile(cond, expr.AllowUndefinedVariables(), expr.AsBool()); err != nil {
		return NewPermanentError("invalid condition expression", err).
			WithCode(ErrCodeCondition)
	}
	return nil
}
