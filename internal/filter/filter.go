// Package filter holds the named rule trees that gate identifier operations.
package filter

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/logic"
)

var ErrUnknownFilter = errors.New("unknown filter")

// Filter is a named root statement.
type Filter struct {
	name        string
	description string
	root        logic.Statement
}

func New(name, description string, root logic.Statement) (*Filter, error) {
	if name == "" {
		return nil, fmt.Errorf("filter name is required")
	}
	if root == nil {
		return nil, fmt.Errorf("filter '%s' has no statement", name)
	}
	return &Filter{name: name, description: description, root: root}, nil
}

func (f *Filter) Name() string        { return f.name }
func (f *Filter) Description() string { return f.description }

// Result evaluates the root statement for obj.
func (f *Filter) Result(ctx context.Context, obj core.Object) (bool, error) {
	ok, err := f.root.Evaluate(ctx, obj)
	if err != nil {
		return false, fmt.Errorf("filter '%s': %w", f.name, err)
	}
	return ok, nil
}

// Explain evaluates the filter and returns the full trace. An evaluation error is
// recorded in the trace and also returned.
func (f *Filter) Explain(ctx context.Context, obj core.Object) (*core.FilterTrace, error) {
	trace := &core.FilterTrace{
		CorrelationID: xid.New().String(),
		Filter:        f.name,
		Description:   f.description,
	}
	if obj != nil {
		trace.Handle = obj.Handle()
	}

	root, err := f.root.Trace(ctx, obj)
	trace.Root = root
	if err != nil {
		trace.Error = err.Error()
		log.Ctx(ctx).Debug().
			Err(err).
			Str("filter", f.name).
			Str("correlation_id", trace.CorrelationID).
			Msg("filter.explain.failed")
		return trace, fmt.Errorf("filter '%s': %w", f.name, err)
	}
	trace.Result = root.Matched
	return trace, nil
}

// Registry is the set of configured filters, addressed by name.
// It is read-only after Build.
type Registry struct {
	filters map[string]*Filter
}

// Build assembles every filter of cfg. Shared statements are built once and
// shared between filters.
func Build(cfg config.LogicConfig) (*Registry, error) {
	assembler := logic.NewAssembler(cfg.Statements)
	reg := &Registry{filters: make(map[string]*Filter, len(cfg.Filters))}

	for _, fc := range cfg.Filters {
		if _, dup := reg.filters[fc.Name]; dup {
			return nil, fmt.Errorf("filter name '%s' is not unique", fc.Name)
		}
		root, err := assembler.Build(fc.Statement)
		if err != nil {
			return nil, fmt.Errorf("building filter '%s': %w", fc.Name, err)
		}
		f, err := New(fc.Name, fc.Description, root)
		if err != nil {
			return nil, err
		}
		reg.filters[fc.Name] = f
	}
	return reg, nil
}

// NewRegistry creates a registry from already built filters.
func NewRegistry(filters ...*Filter) (*Registry, error) {
	reg := &Registry{filters: make(map[string]*Filter, len(filters))}
	for _, f := range filters {
		if _, dup := reg.filters[f.name]; dup {
			return nil, fmt.Errorf("filter name '%s' is not unique", f.name)
		}
		reg.filters[f.name] = f
	}
	return reg, nil
}

// Get returns the named filter, or ErrUnknownFilter.
func (r *Registry) Get(name string) (*Filter, error) {
	f, ok := r.filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	return f, nil
}

// List returns all filters sorted by name.
func (r *Registry) List() []*Filter {
	out := make([]*Filter, 0, len(r.filters))
	for _, f := range r.filters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
