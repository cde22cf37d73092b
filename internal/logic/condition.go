package logic

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/doigate/internal/core"
)

// Params is the typed parameter set of one condition kind.
type Params interface {
	// Validate checks the parameters once, at configuration time.
	Validate() error

	// Check runs the condition against obj. Inputs were already verified non-nil.
	Check(ctx context.Context, obj core.Object) (matched bool, reason string, err error)

	// String describes the condition for traces, e.g. "bitstream_count(min=1)".
	String() string
}

var kinds = map[string]func() Params{
	KindBitstreamCount:     func() Params { return &BitstreamCount{} },
	KindInCollection:       func() Params { return &InCollection{} },
	KindMetadataValueMatch: func() Params { return &MetadataValueMatch{} },
	KindReadableByGroup:    func() Params { return &ReadableByGroup{} },
	KindSimpleBoolean:      func() Params { return &SimpleBoolean{} },
	KindExpression:         func() Params { return &Expression{} },
}

// Kinds returns all known condition kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsConditionKind reports whether kind names a known condition.
func IsConditionKind(kind string) bool {
	_, ok := kinds[kind]
	return ok
}

// Condition is a leaf statement.
type Condition struct {
	kind   string
	params Params
}

var _ Statement = (*Condition)(nil)

// NewCondition decodes raw parameters into the typed parameter struct of kind
// and validates them.
func NewCondition(kind string, raw map[string]any) (*Condition, error) {
	factory, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown condition %q", kind)
	}
	params := factory()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for condition %s: %w", kind, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode parameters of condition %s: %w", kind, err)
	}
	return FromParams(kind, params)
}

// FromParams wraps already typed parameters.
func FromParams(kind string, params Params) (*Condition, error) {
	if params == nil {
		return nil, fmt.Errorf("condition %s has no parameters", kind)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters of condition %s: %w", kind, err)
	}
	return &Condition{kind: kind, params: params}, nil
}

func (c *Condition) Kind() string { return c.kind }

func (c *Condition) Params() Params { return c.params }

func (c *Condition) Evaluate(ctx context.Context, obj core.Object) (bool, error) {
	if err := requireInputs(ctx, obj); err != nil {
		return false, err
	}
	matched, _, err := c.params.Check(ctx, obj)
	if err != nil {
		return false, err
	}
	return matched, nil
}

func (c *Condition) Trace(ctx context.Context, obj core.Object) (core.ConditionResult, error) {
	res := core.ConditionResult{Expression: c.params.String()}
	if err := requireInputs(ctx, obj); err != nil {
		res.Reason = err.Error()
		return res, err
	}
	matched, reason, err := c.params.Check(ctx, obj)
	if err != nil {
		res.Reason = err.Error()
		return res, err
	}
	res.Matched = matched
	res.Reason = reason
	return res, nil
}
