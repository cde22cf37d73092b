package logic

import (
	"context"
	"fmt"
	"strings"

	"github.com/darmiel/doigate/internal/core"
)

// OperatorKind selects how an Operator combines its children.
type OperatorKind string

const (
	OpAnd  OperatorKind = "and"
	OpOr   OperatorKind = "or"
	OpNot  OperatorKind = "not"
	OpNand OperatorKind = "nand"
	OpNor  OperatorKind = "nor"
)

func (k OperatorKind) IsValid() bool {
	switch k {
	case OpAnd, OpOr, OpNot, OpNand, OpNor:
		return true
	default:
		return false
	}
}

// ParseOperatorKind is case-insensitive.
func ParseOperatorKind(s string) (OperatorKind, bool) {
	k := OperatorKind(strings.ToLower(s))
	return k, k.IsValid()
}

// Operator is a composite statement. Children are evaluated in configured order.
//
// Empty child lists are well-defined: AND([]) is true, OR([]) is false,
// and NAND/NOR are their negations.
type Operator struct {
	kind     OperatorKind
	children []Statement
}

var _ Statement = (*Operator)(nil)

// NewOperator creates an operator. NOT requires exactly one child.
func NewOperator(kind OperatorKind, children ...Statement) (*Operator, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown operator %q", kind)
	}
	if kind == OpNot && len(children) != 1 {
		return nil, fmt.Errorf("operator not requires exactly one statement, got %d", len(children))
	}
	for idx, c := range children {
		if c == nil {
			return nil, fmt.Errorf("operator %s: statement at index %d is nil", kind, idx)
		}
	}
	return &Operator{kind: kind, children: children}, nil
}

func And(children ...Statement) *Operator  { return mustOperator(OpAnd, children...) }
func Or(children ...Statement) *Operator   { return mustOperator(OpOr, children...) }
func Nand(children ...Statement) *Operator { return mustOperator(OpNand, children...) }
func Nor(children ...Statement) *Operator  { return mustOperator(OpNor, children...) }
func Not(child Statement) *Operator        { return mustOperator(OpNot, child) }

func mustOperator(kind OperatorKind, children ...Statement) *Operator {
	op, err := NewOperator(kind, children...)
	if err != nil {
		panic(err)
	}
	return op
}

func (o *Operator) Kind() OperatorKind { return o.kind }

func (o *Operator) Children() []Statement { return o.children }

func (o *Operator) Evaluate(ctx context.Context, obj core.Object) (bool, error) {
	matched, _, err := o.run(ctx, obj, false)
	return matched, err
}

func (o *Operator) Trace(ctx context.Context, obj core.Object) (core.ConditionResult, error) {
	matched, children, err := o.run(ctx, obj, true)
	return core.ConditionResult{
		Matched:  matched,
		Label:    strings.ToUpper(string(o.kind)),
		Children: children,
	}, err
}

func (o *Operator) run(ctx context.Context, obj core.Object, trace bool) (bool, []core.ConditionResult, error) {
	switch o.kind {
	case OpAnd:
		return combine(ctx, o.children, obj, true, trace)
	case OpOr:
		return combine(ctx, o.children, obj, false, trace)
	case OpNand:
		matched, children, err := combine(ctx, o.children, obj, true, trace)
		return negate(matched, err), children, err
	case OpNor:
		matched, children, err := combine(ctx, o.children, obj, false, trace)
		return negate(matched, err), children, err
	case OpNot:
		matched, children, err := combine(ctx, o.children, obj, true, trace)
		return negate(matched, err), children, err
	}
	return false, nil, evalError("unknown operator %q", o.kind)
}

func negate(matched bool, err error) bool {
	if err != nil {
		return false
	}
	return !matched
}

// combine evaluates every child in order. With all set it computes the
// conjunction, otherwise the disjunction. The first child error aborts.
func combine(
	ctx context.Context,
	children []Statement,
	obj core.Object,
	all, trace bool,
) (bool, []core.ConditionResult, error) {
	matched := all
	var results []core.ConditionResult

	for _, child := range children {
		var (
			ok  bool
			err error
		)
		if trace {
			var cr core.ConditionResult
			cr, err = child.Trace(ctx, obj)
			results = append(results, cr)
			ok = cr.Matched
		} else {
			ok, err = child.Evaluate(ctx, obj)
		}
		if err != nil {
			return false, results, err
		}
		if all && !ok {
			matched = false
		}
		if !all && ok {
			matched = true
		}
	}
	return matched, results, nil
}
