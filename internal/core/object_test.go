package core

import (
	"context"
	"testing"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		field                 string
		schema, element, qual string
	}{
		{"dc.title", "dc", "title", Wildcard},
		{"dc.contributor.author", "dc", "contributor", "author"},
		{"dc", "dc", Wildcard, Wildcard},
		{"dc..author", "dc", Wildcard, "author"},
		{"", Wildcard, Wildcard, Wildcard},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			s, e, q := ParseField(tt.field)
			if s != tt.schema || e != tt.element || q != tt.qual {
				t.Errorf("ParseField(%q) = (%q, %q, %q), want (%q, %q, %q)",
					tt.field, s, e, q, tt.schema, tt.element, tt.qual)
			}
		})
	}
}

func TestItem_Metadata(t *testing.T) {
	item := &Item{
		Values: []MetadataValue{
			{Schema: "dc", Element: "title", Value: "A"},
			{Schema: "dc", Element: "title", Qualifier: "alternative", Value: "B"},
			{Schema: "dc", Element: "contributor", Qualifier: "author", Value: "C"},
		},
	}
	ctx := context.Background()

	got, _ := item.Metadata(ctx, "dc", "title", Wildcard)
	if len(got) != 2 {
		t.Errorf("dc.title.* matched %d values, want 2", len(got))
	}
	got, _ = item.Metadata(ctx, "dc", "title", "alternative")
	if len(got) != 1 || got[0].Value != "B" {
		t.Errorf("dc.title.alternative = %v, want [B]", got)
	}
	v, _ := FirstValue(ctx, item, "dc.contributor.author")
	if v != "C" {
		t.Errorf("FirstValue() = %q, want C", v)
	}
}

func TestPrincipal_HasRole(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		want  bool
	}{
		{"claim list", map[string]any{"roles": []any{"user", "admin"}}, true},
		{"comma string", map[string]any{"roles": "user, admin"}, true},
		{"missing", map[string]any{}, false},
		{"other role", map[string]any{"roles": []string{"user"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Principal{Attributes: tt.attrs}
			if got := p.HasRole("admin"); got != tt.want {
				t.Errorf("HasRole() = %v, want %v", got, tt.want)
			}
		})
	}
}
