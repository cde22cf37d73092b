// Package logic implements the rule engine: leaf conditions testing one property
// of an object, and operators combining them.
package logic

import (
	"context"
	"fmt"

	"github.com/darmiel/doigate/internal/core"
)

// Statement is a node of a rule tree.
type Statement interface {
	// Evaluate returns the boolean result of the statement for obj.
	// It fails with a core.KindEvaluation error on missing inputs or bad parameters.
	Evaluate(ctx context.Context, obj core.Object) (bool, error)

	// Trace evaluates like Evaluate but also records how the result came about.
	Trace(ctx context.Context, obj core.Object) (core.ConditionResult, error)
}

// requireInputs is the precondition every condition checks before looking at obj.
func requireInputs(ctx context.Context, obj core.Object) error {
	if ctx == nil {
		return evalError("evaluation context is missing")
	}
	if obj == nil {
		return evalError("object is missing")
	}
	return nil
}

func evalError(format string, args ...any) error {
	return core.Errorf(core.KindEvaluation, format, args...)
}

func wrapEvalError(err error, format string, args ...any) error {
	return core.NewError(core.KindEvaluation, "", fmt.Sprintf(format, args...), err)
}
