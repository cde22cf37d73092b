package logic

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/darmiel/doigate/internal/core"
)

// exprEnv is what an expression condition can see of an object.
type exprEnv struct {
	Handle      string                      `expr:"handle"`
	Type        string                      `expr:"type"`
	Collections []string                    `expr:"collections"`
	Files       func(bundle string) int     `expr:"files"`
	Metadata    func(field string) []string `expr:"metadata"`
}

// Expression evaluates an expr-lang program, e.g.
//
//	files("ORIGINAL") > 0 && any(metadata("dc.type"), # == "Article")
//
// files("") counts the files of all bundles.
type Expression struct {
	Expr string `mapstructure:"expr"`

	program *vm.Program
}

func (e *Expression) Validate() error {
	if e.Expr == "" {
		return evalError("expression requires expr")
	}
	program, err := expr.Compile(e.Expr, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		return wrapEvalError(err, "compiling expression")
	}
	e.program = program
	return nil
}

func (e *Expression) Check(ctx context.Context, obj core.Object) (bool, string, error) {
	if e.program == nil {
		if err := e.Validate(); err != nil {
			return false, "", err
		}
	}

	collections, err := obj.Collections(ctx)
	if err != nil {
		return false, "", wrapEvalError(err, "reading collections of %s", obj.Handle())
	}

	// the helpers cannot return errors to the program, so the first one is kept here
	var accessErr error
	env := exprEnv{
		Handle:      obj.Handle(),
		Type:        obj.Type(),
		Collections: collections,
		Files: func(bundle string) int {
			bundles, err := obj.Bundles(ctx)
			if err != nil {
				if accessErr == nil {
					accessErr = err
				}
				return 0
			}
			n := 0
			for _, b := range bundles {
				if bundle == "" || b.Name == bundle {
					n += len(b.Files)
				}
			}
			return n
		},
		Metadata: func(field string) []string {
			schema, element, qualifier := core.ParseField(field)
			values, err := obj.Metadata(ctx, schema, element, qualifier)
			if err != nil {
				if accessErr == nil {
					accessErr = err
				}
				return nil
			}
			out := make([]string, 0, len(values))
			for _, v := range values {
				out = append(out, v.Value)
			}
			return out
		},
	}

	out, err := expr.Run(e.program, env)
	if accessErr != nil {
		return false, "", wrapEvalError(accessErr, "reading %s", obj.Handle())
	}
	if err != nil {
		return false, "", wrapEvalError(err, "running expression")
	}
	matched, ok := out.(bool)
	if !ok {
		return false, "", evalError("expression returned %T, want bool", out)
	}
	if !matched {
		return false, "expression evaluated to false", nil
	}
	return true, "", nil
}

func (e *Expression) String() string {
	return fmt.Sprintf("%s(%s)", KindExpression, e.Expr)
}
