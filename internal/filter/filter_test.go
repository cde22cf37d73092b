package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/logic"
)

func logicConfig() config.LogicConfig {
	return config.LogicConfig{
		Statements: map[string]logic.StatementConfig{
			"has_files": {Condition: logic.KindBitstreamCount, Params: map[string]any{"min": 1}},
			"draft":     {Condition: logic.KindMetadataValueMatch, Params: map[string]any{"field": "dc.title", "pattern": "^Draft"}},
		},
		Filters: []config.FilterConfig{
			{
				Name: "doi_filter",
				Statement: logic.StatementConfig{Operator: "and", Statements: []logic.StatementConfig{
					{Ref: "has_files"},
					{Operator: "not", Statements: []logic.StatementConfig{{Ref: "draft"}}},
				}},
			},
			{Name: "always_true", Statement: logic.StatementConfig{Condition: logic.KindSimpleBoolean, Params: map[string]any{"condition": true}}},
		},
	}
}

func item(files int, title string) *core.Item {
	it := &core.Item{LocalID: "7", HandleID: "123456789/7"}
	b := core.Bundle{Name: "ORIGINAL"}
	for i := 0; i < files; i++ {
		b.Files = append(b.Files, core.File{Name: "f.pdf"})
	}
	it.BundleList = []core.Bundle{b}
	it.Values = []core.MetadataValue{{Schema: "dc", Element: "title", Value: title}}
	return it
}

func TestBuildAndResult(t *testing.T) {
	reg, err := Build(logicConfig())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	f, err := reg.Get("doi_filter")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	tests := []struct {
		name string
		obj  core.Object
		want bool
	}{
		{"final with files", item(1, "Final report"), true},
		{"draft with files", item(1, "Draft report"), false},
		{"final without files", item(0, "Final report"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Result(context.Background(), tt.obj)
			if err != nil {
				t.Fatalf("Result() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Result() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResult_IsPure(t *testing.T) {
	reg, _ := Build(logicConfig())
	f, _ := reg.Get("doi_filter")
	obj := item(2, "Final")

	first, _ := f.Result(context.Background(), obj)
	for i := 0; i < 5; i++ {
		if got, _ := f.Result(context.Background(), obj); got != first {
			t.Fatalf("evaluation %d = %v, first = %v", i, got, first)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	reg, _ := Build(logicConfig())
	_, err := reg.Get("missing")
	if !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("Get() error = %v, want ErrUnknownFilter", err)
	}
}

func TestBuild_Cycle(t *testing.T) {
	cfg := logicConfig()
	cfg.Statements["loop"] = logic.StatementConfig{Operator: "not", Statements: []logic.StatementConfig{{Ref: "loop"}}}
	cfg.Filters = append(cfg.Filters, config.FilterConfig{Name: "loops", Statement: logic.StatementConfig{Ref: "loop"}})

	_, err := Build(cfg)
	if !errors.Is(err, logic.ErrCycle) {
		t.Errorf("Build() error = %v, want ErrCycle", err)
	}
}

func TestBuild_Duplicate(t *testing.T) {
	cfg := logicConfig()
	cfg.Filters = append(cfg.Filters, cfg.Filters[0])
	if _, err := Build(cfg); err == nil {
		t.Error("Build() error = nil, want error for duplicate name")
	}
}

func TestExplain(t *testing.T) {
	reg, _ := Build(logicConfig())
	f, _ := reg.Get("doi_filter")

	trace, err := f.Explain(context.Background(), item(1, "Draft"))
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if trace.Result || trace.Root.Matched {
		t.Errorf("trace result = %v, want false", trace.Result)
	}
	if trace.Handle != "123456789/7" || trace.CorrelationID == "" {
		t.Errorf("trace = %+v, want handle and correlation id", trace)
	}
	if len(trace.Root.Children) != 2 {
		t.Errorf("root has %d children, want 2", len(trace.Root.Children))
	}
}

func TestExplain_Error(t *testing.T) {
	reg, _ := Build(logicConfig())
	f, _ := reg.Get("always_true")

	trace, err := f.Explain(context.Background(), nil)
	if !errors.Is(err, core.ErrEvaluation) {
		t.Fatalf("Explain() error = %v, want evaluation error", err)
	}
	if trace.Error == "" || trace.Result {
		t.Errorf("trace = %+v, want recorded error", trace)
	}
}

func TestList(t *testing.T) {
	reg, _ := Build(logicConfig())
	list := reg.List()
	if len(list) != 2 || list[0].Name() != "always_true" || list[1].Name() != "doi_filter" {
		t.Errorf("List() returned unexpected order")
	}
}
