package core

import (
	"context"
	"strings"
)

// Wildcard matches any schema, element or qualifier in metadata lookups.
const Wildcard = "*"

// Object is the entity identifiers are managed for (e.g. a repository item).
// Implementations may hit a backing store, so the queries take a context and may fail.
type Object interface {
	// ID returns the local, stable identifier of the object.
	ID() string

	// Handle returns the persistent handle of the object, e.g. "123456789/42".
	Handle() string

	// Type returns the type text of the object, e.g. "ITEM".
	Type() string

	// Bundles returns all bundles of the object together with their files.
	Bundles(ctx context.Context) ([]Bundle, error)

	// Collections returns the handles of all collections the object belongs to.
	Collections(ctx context.Context) ([]string, error)

	// Metadata returns all values matching schema, element and qualifier.
	// Empty strings and Wildcard match anything.
	Metadata(ctx context.Context, schema, element, qualifier string) ([]MetadataValue, error)

	// Policies returns the access-policy grants for the given action.
	Policies(ctx context.Context, action string) ([]Policy, error)
}

// ObjectStore looks up objects by handle.
type ObjectStore interface {
	Find(ctx context.Context, handle string) (Object, error)
	All(ctx context.Context) ([]Object, error)
}

type Bundle struct {
	Name  string `yaml:"name" json:"name"`
	Files []File `yaml:"files" json:"files"`
}

type File struct {
	Name string `yaml:"name" json:"name"`
	Size int64  `yaml:"size" json:"size"`
}

// MetadataValue is a single qualified metadata value, e.g. dc.contributor.author.
type MetadataValue struct {
	Schema    string `yaml:"schema" json:"schema"`
	Element   string `yaml:"element" json:"element"`
	Qualifier string `yaml:"qualifier,omitempty" json:"qualifier,omitempty"`
	Language  string `yaml:"language,omitempty" json:"language,omitempty"`
	Value     string `yaml:"value" json:"value"`
}

// Field returns the dotted field name of the value.
func (m MetadataValue) Field() string {
	if m.Qualifier == "" {
		return m.Schema + "." + m.Element
	}
	return m.Schema + "." + m.Element + "." + m.Qualifier
}

// Policy grants an action on an object to a group.
type Policy struct {
	Action string `yaml:"action" json:"action"`
	Group  string `yaml:"group" json:"group"`
}

// ParseField splits a dotted field like "dc.title" or "dc.contributor.author"
// into schema, element and qualifier. Missing parts are returned as Wildcard.
func ParseField(field string) (schema, element, qualifier string) {
	schema, element, qualifier = Wildcard, Wildcard, Wildcard
	parts := strings.SplitN(field, ".", 3)
	if len(parts) > 0 && parts[0] != "" {
		schema = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		element = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		qualifier = parts[2]
	}
	return schema, element, qualifier
}

func matchPart(want, have string) bool {
	return want == "" || want == Wildcard || want == have
}

// Item is a plain, in-memory Object. It is what the fixture store loads.
type Item struct {
	LocalID      string          `yaml:"id" json:"id"`
	HandleID     string          `yaml:"handle" json:"handle"`
	TypeText     string          `yaml:"type,omitempty" json:"type,omitempty"`
	BundleList   []Bundle        `yaml:"bundles,omitempty" json:"bundles,omitempty"`
	InCollection []string        `yaml:"collections,omitempty" json:"collections,omitempty"`
	Values       []MetadataValue `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	PolicyList   []Policy        `yaml:"policies,omitempty" json:"policies,omitempty"`
}

var _ Object = (*Item)(nil)

func (i *Item) ID() string { return i.LocalID }

func (i *Item) Handle() string { return i.HandleID }

func (i *Item) Type() string {
	if i.TypeText == "" {
		return "ITEM"
	}
	return i.TypeText
}

func (i *Item) Bundles(_ context.Context) ([]Bundle, error) {
	return i.BundleList, nil
}

func (i *Item) Collections(_ context.Context) ([]string, error) {
	return i.InCollection, nil
}

func (i *Item) Metadata(_ context.Context, schema, element, qualifier string) ([]MetadataValue, error) {
	var out []MetadataValue
	for _, v := range i.Values {
		if matchPart(schema, v.Schema) && matchPart(element, v.Element) && matchPart(qualifier, v.Qualifier) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (i *Item) Policies(_ context.Context, action string) ([]Policy, error) {
	var out []Policy
	for _, p := range i.PolicyList {
		if p.Action == action {
			out = append(out, p)
		}
	}
	return out, nil
}

// FirstValue returns the first metadata value of field, or "" if there is none.
func FirstValue(ctx context.Context, obj Object, field string) (string, error) {
	schema, element, qualifier := ParseField(field)
	values, err := obj.Metadata(ctx, schema, element, qualifier)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0].Value, nil
}
