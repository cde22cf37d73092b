package logic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrCycle = errors.New("statement references itself")

// StatementConfig is the configuration form of a Statement. Exactly one of Ref,
// Condition or Operator is set.
type StatementConfig struct {
	// Ref names an entry of the shared statement definitions.
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`

	// Leaf condition
	Condition string         `yaml:"condition,omitempty" json:"condition,omitempty"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Logic operators
	Operator   string            `yaml:"operator,omitempty" json:"operator,omitempty"`
	Statements []StatementConfig `yaml:"statements,omitempty" json:"statements,omitempty"`
}

var explicitKeys = map[string]struct{}{
	"ref": {}, "condition": {}, "params": {}, "operator": {}, "statements": {},
}

func (s *StatementConfig) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	// a plain string is a reference: `- has_files`
	parsed, err := parseNode(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatement converts a decoded YAML/JSON mapping into a StatementConfig.
//
// Besides the explicit form
//
//	{ operator: and, statements: [ { condition: bitstream_count, params: { min: 1 } } ] }
//
// shorthands are understood:
//
//	{ and: [ { bitstream_count: { min: 1 } }, { ref: is_public } ] }
//	{ not: { in_collection: { collections: [ "123/4" ] } } }
//
// A shorthand map with several keys is an implicit AND over its entries.
func ParseStatement(raw map[string]any) (StatementConfig, error) {
	isExplicit := false
	for k := range raw {
		if _, ok := explicitKeys[k]; ok {
			isExplicit = true
			break
		}
	}
	if isExplicit {
		return parseExplicit(raw)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys) // map order is random, children order is not

	var children []StatementConfig
	for _, k := range keys {
		v := raw[k]
		if kind, ok := ParseOperatorKind(k); ok {
			op := StatementConfig{Operator: string(kind)}
			sub, err := parseList(v)
			if err != nil {
				return StatementConfig{}, fmt.Errorf("%s: %w", k, err)
			}
			op.Statements = sub
			children = append(children, op)
			continue
		}

		params, err := asParams(v)
		if err != nil {
			return StatementConfig{}, fmt.Errorf("%s: %w", k, err)
		}
		children = append(children, StatementConfig{Condition: k, Params: params})
	}

	switch len(children) {
	case 0:
		return StatementConfig{}, fmt.Errorf("statement is empty; must be one of (ref, condition, operator)")
	case 1:
		return children[0], children[0].Validate()
	default:
		s := StatementConfig{Operator: string(OpAnd), Statements: children}
		return s, s.Validate()
	}
}

func parseExplicit(raw map[string]any) (StatementConfig, error) {
	var s StatementConfig
	for k, v := range raw {
		switch k {
		case "ref":
			str, ok := v.(string)
			if !ok {
				return s, fmt.Errorf("ref must be a string, got %T", v)
			}
			s.Ref = str
		case "condition":
			str, ok := v.(string)
			if !ok {
				return s, fmt.Errorf("condition must be a string, got %T", v)
			}
			s.Condition = str
		case "operator":
			str, ok := v.(string)
			if !ok {
				return s, fmt.Errorf("operator must be a string, got %T", v)
			}
			s.Operator = strings.ToLower(str)
		case "params":
			params, err := asParams(v)
			if err != nil {
				return s, err
			}
			s.Params = params
		case "statements":
			sub, err := parseList(v)
			if err != nil {
				return s, fmt.Errorf("statements: %w", err)
			}
			s.Statements = sub
		default:
			return s, fmt.Errorf("unknown key %q in statement", k)
		}
	}
	return s, s.Validate()
}

// parseList accepts a list of statements, or a single statement (used by `not`).
func parseList(v any) ([]StatementConfig, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]StatementConfig, 0, len(t))
		for idx, item := range t {
			s, err := parseNode(item)
			if err != nil {
				return nil, fmt.Errorf("statement at index %d: %w", idx, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := parseNode(t)
		if err != nil {
			return nil, err
		}
		return []StatementConfig{s}, nil
	}
}

func parseNode(v any) (StatementConfig, error) {
	switch t := v.(type) {
	case string:
		s := StatementConfig{Ref: t}
		return s, s.Validate()
	case map[string]any:
		return ParseStatement(t)
	default:
		return StatementConfig{}, fmt.Errorf("statement must be a mapping or a reference name, got %T", v)
	}
}

func asParams(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return t, nil
	default:
		return nil, fmt.Errorf("parameters must be a mapping, got %T", v)
	}
}

// Validate checks the shape of the statement tree. Parameters and references are
// checked when the tree is assembled.
func (s *StatementConfig) Validate() error {
	count := 0
	if s.Ref != "" {
		count++
	}
	if s.Condition != "" {
		count++
	}
	if s.Operator != "" {
		count++
	}
	if count > 1 {
		return fmt.Errorf("statement has multiple types set (ref, condition, operator); only one is allowed")
	} else if count == 0 {
		return fmt.Errorf("statement is missing required fields; must be one of (ref, condition, operator)")
	}

	if s.Operator != "" {
		kind, ok := ParseOperatorKind(s.Operator)
		if !ok {
			return fmt.Errorf("unknown operator %q", s.Operator)
		}
		if kind == OpNot && len(s.Statements) != 1 {
			return fmt.Errorf("operator not requires exactly one statement, got %d", len(s.Statements))
		}
		for idx := range s.Statements {
			if err := s.Statements[idx].Validate(); err != nil {
				return err
			}
		}
	} else if len(s.Statements) > 0 {
		return fmt.Errorf("only operators may have statements")
	}
	if s.Condition == "" && len(s.Params) > 0 {
		return fmt.Errorf("only conditions may have params")
	}
	return nil
}

// Assembler builds statements from configuration, resolving references against
// a set of named definitions. Every definition is built at most once and shared.
type Assembler struct {
	defs     map[string]StatementConfig
	built    map[string]Statement
	visiting map[string]bool
}

func NewAssembler(defs map[string]StatementConfig) *Assembler {
	return &Assembler{
		defs:     defs,
		built:    make(map[string]Statement),
		visiting: make(map[string]bool),
	}
}

// Build assembles cfg. Reference cycles fail with ErrCycle.
func (a *Assembler) Build(cfg StatementConfig) (Statement, error) {
	return a.build(cfg, nil)
}

// BuildNamed assembles the named definition.
func (a *Assembler) BuildNamed(name string) (Statement, error) {
	return a.resolve(name, nil)
}

func (a *Assembler) build(cfg StatementConfig, path []string) (Statement, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case cfg.Ref != "":
		return a.resolve(cfg.Ref, path)

	case cfg.Condition != "":
		return NewCondition(cfg.Condition, cfg.Params)

	default:
		kind, _ := ParseOperatorKind(cfg.Operator)
		children := make([]Statement, 0, len(cfg.Statements))
		for idx, sub := range cfg.Statements {
			child, err := a.build(sub, path)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", kind, idx, err)
			}
			children = append(children, child)
		}
		return NewOperator(kind, children...)
	}
}

func (a *Assembler) resolve(name string, path []string) (Statement, error) {
	if st, ok := a.built[name]; ok {
		return st, nil
	}
	if a.visiting[name] {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(path, name), " -> "))
	}
	def, ok := a.defs[name]
	if !ok {
		return nil, fmt.Errorf("unknown statement %q", name)
	}

	a.visiting[name] = true
	defer delete(a.visiting, name)

	st, err := a.build(def, append(path, name))
	if err != nil {
		return nil, fmt.Errorf("statement %q: %w", name, err)
	}
	a.built[name] = st
	return st, nil
}
