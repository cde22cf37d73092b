package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/darmiel/doigate/internal/core"
)

func intPtr(i int) *int { return &i }

func itemWithFiles(counts map[string]int) *core.Item {
	item := &core.Item{LocalID: "1", HandleID: "123456789/1"}
	for name, n := range counts {
		b := core.Bundle{Name: name}
		for i := 0; i < n; i++ {
			b.Files = append(b.Files, core.File{Name: "f"})
		}
		item.BundleList = append(item.BundleList, b)
	}
	return item
}

func titled(values ...string) *core.Item {
	item := &core.Item{LocalID: "2", HandleID: "123456789/2"}
	for _, v := range values {
		item.Values = append(item.Values, core.MetadataValue{Schema: "dc", Element: "title", Value: v})
	}
	return item
}

func TestBitstreamCount(t *testing.T) {
	tests := []struct {
		name   string
		params BitstreamCount
		counts map[string]int
		want   bool
	}{
		{"range - below", BitstreamCount{Min: intPtr(2), Max: intPtr(5)}, map[string]int{"ORIGINAL": 1}, false},
		{"range - lower bound", BitstreamCount{Min: intPtr(2), Max: intPtr(5)}, map[string]int{"ORIGINAL": 2}, true},
		{"range - upper bound", BitstreamCount{Min: intPtr(2), Max: intPtr(5)}, map[string]int{"ORIGINAL": 5}, true},
		{"range - above", BitstreamCount{Min: intPtr(2), Max: intPtr(5)}, map[string]int{"ORIGINAL": 6}, false},
		{"min only - below", BitstreamCount{Min: intPtr(2)}, map[string]int{"ORIGINAL": 1}, false},
		{"min only - above", BitstreamCount{Min: intPtr(2)}, map[string]int{"ORIGINAL": 9}, true},
		{"max only - zero files", BitstreamCount{Max: intPtr(0)}, nil, true},
		{"max only - above", BitstreamCount{Max: intPtr(1)}, map[string]int{"ORIGINAL": 2}, false},
		{"all bundles counted", BitstreamCount{Min: intPtr(3)}, map[string]int{"ORIGINAL": 2, "LICENSE": 1}, true},
		{"bundle restricts count", BitstreamCount{Min: intPtr(3), Bundle: "ORIGINAL"}, map[string]int{"ORIGINAL": 2, "LICENSE": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.params
			cond, err := FromParams(KindBitstreamCount, &params)
			if err != nil {
				t.Fatalf("FromParams() error = %v", err)
			}
			got, err := cond.Evaluate(context.Background(), itemWithFiles(tt.counts))
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBitstreamCount_NoBounds(t *testing.T) {
	_, err := NewCondition(KindBitstreamCount, map[string]any{"bundle": "ORIGINAL"})
	if !errors.Is(err, core.ErrEvaluation) {
		t.Errorf("NewCondition() error = %v, want evaluation error", err)
	}

	// bypassing configuration-time validation still fails at evaluation time
	_, _, err = (&BitstreamCount{}).Check(context.Background(), itemWithFiles(nil))
	if !errors.Is(err, core.ErrEvaluation) {
		t.Errorf("Check() error = %v, want evaluation error", err)
	}
}

func TestMetadataValueMatch(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		item   *core.Item
		want   bool
	}{
		{"search hits first value", map[string]any{"field": "dc.title", "pattern": "^Draft"}, titled("Draft report", "Final report"), true},
		{"no value matches", map[string]any{"field": "dc.title", "pattern": "^Draft"}, titled("Final report"), false},
		{"substring search", map[string]any{"field": "dc.title", "pattern": "port"}, titled("Final report"), true},
		{"missing field", map[string]any{"pattern": "^Draft"}, titled("Draft report"), false},
		{"schema only wildcards the rest", map[string]any{"field": "dc", "pattern": "Draft"}, titled("Draft"), true},
		{"other field", map[string]any{"field": "dc.description", "pattern": "Draft"}, titled("Draft"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := NewCondition(KindMetadataValueMatch, tt.params)
			if err != nil {
				t.Fatalf("NewCondition() error = %v", err)
			}
			got, err := cond.Evaluate(context.Background(), tt.item)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetadataValueMatch_InvalidPattern(t *testing.T) {
	_, err := NewCondition(KindMetadataValueMatch, map[string]any{"field": "dc.title", "pattern": "("})
	if err == nil {
		t.Fatal("NewCondition() error = nil, want error for invalid pattern")
	}
}

func TestInCollection(t *testing.T) {
	item := &core.Item{HandleID: "1/1", InCollection: []string{"1/10", "1/11"}}

	cond, err := NewCondition(KindInCollection, map[string]any{"collections": []any{"1/99", "1/11"}})
	if err != nil {
		t.Fatalf("NewCondition() error = %v", err)
	}
	if got, _ := cond.Evaluate(context.Background(), item); !got {
		t.Errorf("Evaluate() = false, want true")
	}

	cond, _ = NewCondition(KindInCollection, map[string]any{"collections": []any{"1/99"}})
	if got, _ := cond.Evaluate(context.Background(), item); got {
		t.Errorf("Evaluate() = true, want false")
	}
}

func TestReadableByGroup(t *testing.T) {
	item := &core.Item{
		HandleID: "1/1",
		PolicyList: []core.Policy{
			{Action: "READ", Group: "Anonymous"},
			{Action: "WRITE", Group: "Administrator"},
		},
	}
	tests := []struct {
		params map[string]any
		want   bool
	}{
		{map[string]any{"group": "Anonymous", "action": "READ"}, true},
		{map[string]any{"group": "Anonymous"}, true},
		{map[string]any{"group": "Administrator", "action": "READ"}, false},
		{map[string]any{"group": "Administrator", "action": "WRITE"}, true},
		{map[string]any{"group": "anonymous"}, false},
	}
	for _, tt := range tests {
		cond, err := NewCondition(KindReadableByGroup, tt.params)
		if err != nil {
			t.Fatalf("NewCondition(%v) error = %v", tt.params, err)
		}
		if got, _ := cond.Evaluate(context.Background(), item); got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.params, got, tt.want)
		}
	}
}

func TestSimpleBoolean(t *testing.T) {
	tests := []struct {
		params map[string]any
		want   bool
	}{
		{map[string]any{"condition": "true"}, true},
		{map[string]any{"condition": "false"}, false},
		{map[string]any{"condition": true}, true},
		{nil, false},
	}
	for _, tt := range tests {
		cond, err := NewCondition(KindSimpleBoolean, tt.params)
		if err != nil {
			t.Fatalf("NewCondition(%v) error = %v", tt.params, err)
		}
		if got, _ := cond.Evaluate(context.Background(), &core.Item{}); got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.params, got, tt.want)
		}
	}
}

func TestExpression(t *testing.T) {
	item := itemWithFiles(map[string]int{"ORIGINAL": 2})
	item.InCollection = []string{"1/10"}
	item.Values = []core.MetadataValue{{Schema: "dc", Element: "type", Value: "Article"}}

	tests := []struct {
		expr string
		want bool
	}{
		{`files("ORIGINAL") > 1`, true},
		{`files("") == 2 && "1/10" in collections`, true},
		{`any(metadata("dc.type"), # == "Article")`, true},
		{`type == "COLLECTION"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			cond, err := NewCondition(KindExpression, map[string]any{"expr": tt.expr})
			if err != nil {
				t.Fatalf("NewCondition() error = %v", err)
			}
			got, err := cond.Evaluate(context.Background(), item)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpression_NotBool(t *testing.T) {
	_, err := NewCondition(KindExpression, map[string]any{"expr": `files("")`})
	if err == nil {
		t.Fatal("NewCondition() error = nil, want error for non-bool expression")
	}
}

func TestNewCondition_Errors(t *testing.T) {
	if _, err := NewCondition("unknown_kind", nil); err == nil {
		t.Error("NewCondition(unknown) error = nil, want error")
	}
	if _, err := NewCondition(KindBitstreamCount, map[string]any{"min": 1, "typo": 2}); err == nil {
		t.Error("NewCondition(unused key) error = nil, want error")
	}
}

func TestCondition_RequiresInputs(t *testing.T) {
	cond, _ := NewCondition(KindSimpleBoolean, map[string]any{"condition": true})

	if _, err := cond.Evaluate(nil, &core.Item{}); !errors.Is(err, core.ErrEvaluation) {
		t.Errorf("Evaluate(nil ctx) error = %v, want evaluation error", err)
	}
	if _, err := cond.Evaluate(context.Background(), nil); !errors.Is(err, core.ErrEvaluation) {
		t.Errorf("Evaluate(nil object) error = %v, want evaluation error", err)
	}
}

type failingObject struct{ core.Item }

func (f *failingObject) Bundles(context.Context) ([]core.Bundle, error) {
	return nil, errors.New("database unavailable")
}

func TestBitstreamCount_AccessError(t *testing.T) {
	cond, _ := NewCondition(KindBitstreamCount, map[string]any{"min": 1})
	_, err := cond.Evaluate(context.Background(), &failingObject{})
	if !errors.Is(err, core.ErrEvaluation) {
		t.Errorf("Evaluate() error = %v, want evaluation error", err)
	}
}
