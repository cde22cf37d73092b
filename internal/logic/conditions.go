package logic

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/darmiel/doigate/internal/core"
)

const (
	KindBitstreamCount     = "bitstream_count"
	KindInCollection       = "in_collection"
	KindMetadataValueMatch = "metadata_value_match"
	KindReadableByGroup    = "readable_by_group"
	KindSimpleBoolean      = "simple_boolean"
	KindExpression         = "expression"
)

// BitstreamCount counts files, optionally only those in one bundle, and checks
// the count against the supplied inclusive bounds.
type BitstreamCount struct {
	Min    *int   `mapstructure:"min"`
	Max    *int   `mapstructure:"max"`
	Bundle string `mapstructure:"bundle"`
}

func (b *BitstreamCount) Validate() error {
	if b.Min == nil && b.Max == nil {
		return evalError("bitstream_count requires min or max")
	}
	if b.Min != nil && *b.Min < 0 {
		return evalError("bitstream_count min must not be negative")
	}
	if b.Max != nil && *b.Max < 0 {
		return evalError("bitstream_count max must not be negative")
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return evalError("bitstream_count min %d is greater than max %d", *b.Min, *b.Max)
	}
	return nil
}

func (b *BitstreamCount) Check(ctx context.Context, obj core.Object) (bool, string, error) {
	if b.Min == nil && b.Max == nil {
		return false, "", evalError("bitstream_count requires min or max")
	}
	bundles, err := obj.Bundles(ctx)
	if err != nil {
		return false, "", wrapEvalError(err, "reading bundles of %s", obj.Handle())
	}
	count := 0
	for _, bundle := range bundles {
		if b.Bundle != "" && bundle.Name != b.Bundle {
			continue
		}
		count += len(bundle.Files)
	}

	if b.Min != nil && count < *b.Min {
		return false, fmt.Sprintf("%d files, want at least %d", count, *b.Min), nil
	}
	if b.Max != nil && count > *b.Max {
		return false, fmt.Sprintf("%d files, want at most %d", count, *b.Max), nil
	}
	return true, fmt.Sprintf("%d files", count), nil
}

func (b *BitstreamCount) String() string {
	var args []string
	if b.Min != nil {
		args = append(args, fmt.Sprintf("min=%d", *b.Min))
	}
	if b.Max != nil {
		args = append(args, fmt.Sprintf("max=%d", *b.Max))
	}
	if b.Bundle != "" {
		args = append(args, "bundle="+b.Bundle)
	}
	return KindBitstreamCount + "(" + strings.Join(args, ", ") + ")"
}

// InCollection matches objects that belong to at least one of the listed collections.
type InCollection struct {
	Collections []string `mapstructure:"collections"`
}

func (c *InCollection) Validate() error {
	if len(c.Collections) == 0 {
		return evalError("in_collection requires at least one collection")
	}
	return nil
}

func (c *InCollection) Check(ctx context.Context, obj core.Object) (bool, string, error) {
	collections, err := obj.Collections(ctx)
	if err != nil {
		return false, "", wrapEvalError(err, "reading collections of %s", obj.Handle())
	}
	for _, have := range collections {
		if slices.Contains(c.Collections, have) {
			return true, "member of " + have, nil
		}
	}
	return false, fmt.Sprintf("member of %v", collections), nil
}

func (c *InCollection) String() string {
	return KindInCollection + "(" + strings.Join(c.Collections, ", ") + ")"
}

// MetadataValueMatch matches if any value of Field contains a match of Pattern.
// An unset Field never matches.
type MetadataValueMatch struct {
	Field   string `mapstructure:"field"`
	Pattern string `mapstructure:"pattern"`

	re *regexp.Regexp
}

func (m *MetadataValueMatch) Validate() error {
	if m.Pattern == "" {
		return evalError("metadata_value_match requires a pattern")
	}
	re, err := regexp.Compile(m.Pattern)
	if err != nil {
		return wrapEvalError(err, "metadata_value_match pattern %q", m.Pattern)
	}
	m.re = re
	return nil
}

func (m *MetadataValueMatch) Check(ctx context.Context, obj core.Object) (bool, string, error) {
	if m.Field == "" {
		return false, "no field configured", nil
	}
	if m.re == nil {
		if err := m.Validate(); err != nil {
			return false, "", err
		}
	}
	schema, element, qualifier := core.ParseField(m.Field)
	values, err := obj.Metadata(ctx, schema, element, qualifier)
	if err != nil {
		return false, "", wrapEvalError(err, "reading %s of %s", m.Field, obj.Handle())
	}
	for _, v := range values {
		if m.re.MatchString(v.Value) {
			return true, fmt.Sprintf("%q matches", v.Value), nil
		}
	}
	return false, fmt.Sprintf("none of %d values match", len(values)), nil
}

func (m *MetadataValueMatch) String() string {
	return fmt.Sprintf("%s(%s =~ /%s/)", KindMetadataValueMatch, m.Field, m.Pattern)
}

// ReadableByGroup matches if a policy for Action is granted to exactly Group.
type ReadableByGroup struct {
	Group  string `mapstructure:"group"`
	Action string `mapstructure:"action"`
}

func (r *ReadableByGroup) Validate() error {
	if r.Group == "" {
		return evalError("readable_by_group requires a group")
	}
	if r.Action == "" {
		r.Action = "READ"
	}
	return nil
}

func (r *ReadableByGroup) Check(ctx context.Context, obj core.Object) (bool, string, error) {
	if r.Group == "" {
		return false, "", evalError("readable_by_group requires a group")
	}
	action := r.Action
	if action == "" {
		action = "READ"
	}
	policies, err := obj.Policies(ctx, action)
	if err != nil {
		return false, "", wrapEvalError(err, "reading %s policies of %s", action, obj.Handle())
	}
	for _, p := range policies {
		if p.Group == r.Group {
			return true, "", nil
		}
	}
	return false, fmt.Sprintf("no %s policy for group %s", action, r.Group), nil
}

func (r *ReadableByGroup) String() string {
	return fmt.Sprintf("%s(%s, %s)", KindReadableByGroup, r.Group, r.Action)
}

// SimpleBoolean always returns its configured value.
type SimpleBoolean struct {
	Condition bool `mapstructure:"condition"`
}

func (s *SimpleBoolean) Validate() error { return nil }

func (s *SimpleBoolean) Check(_ context.Context, _ core.Object) (bool, string, error) {
	return s.Condition, "", nil
}

func (s *SimpleBoolean) String() string {
	return fmt.Sprintf("%s(%t)", KindSimpleBoolean, s.Condition)
}
