package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/darmiel/doigate/internal/logic"
)

const sample = `
server:
  addr: ":8080"
resolver:
  canonical_prefix: "https://hdl.example.org/"
logic:
  statements:
    has_files:
      bitstream_count: { bundle: ORIGINAL, min: 1 }
    is_public:
      readable_by_group: { group: Anonymous }
  filters:
    - name: doi_filter
      description: public items with files
      statement:
        and: [has_files, is_public]
connectors:
  - name: datacite
    type: datacite
    host: mds.test.datacite.org
    username: DEMO.REPO
    timeout: 10s
providers:
  - name: repo
    connector: datacite
    filter: doi_filter
    prefix: "10.5072"
    namespace_separator: "repo-"
issuers:
  - name: ci
    type: static
audit:
  enabled: true
  type: memory
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Auth.PrivilegedRole != DefaultPrivilegedRole {
		t.Errorf("PrivilegedRole = %q, want default %q", cfg.Auth.PrivilegedRole, DefaultPrivilegedRole)
	}

	wantFilter := FilterConfig{
		Name:        "doi_filter",
		Description: "public items with files",
		Statement: logic.StatementConfig{Operator: "and", Statements: []logic.StatementConfig{
			{Ref: "has_files"},
			{Ref: "is_public"},
		}},
	}
	if diff := cmp.Diff([]FilterConfig{wantFilter}, cfg.Logic.Filters); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}

	wantProviders := []ProviderConfig{{
		Name:               "repo",
		Connector:          "datacite",
		Filter:             "doi_filter",
		Prefix:             "10.5072",
		NamespaceSeparator: "repo-",
	}}
	if diff := cmp.Diff(wantProviders, cfg.Providers); diff != "" {
		t.Errorf("providers mismatch (-want +got):\n%s", diff)
	}

	if got := cfg.Connectors[0].Config["host"]; got != "mds.test.datacite.org" {
		t.Errorf("inline connector setting host = %v", got)
	}
	if _, ok := cfg.Provider("repo"); !ok {
		t.Errorf("Provider(repo) not found")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"unknown connector", [2]string{"connector: datacite", "connector: crossref"}, "unknown connector"},
		{"unknown filter", [2]string{"filter: doi_filter", "filter: nope"}, "unknown filter"},
		{"bad prefix", [2]string{`prefix: "10.5072"`, `prefix: "11.5072"`}, "invalid DOI prefix"},
		{"unknown reference", [2]string{"and: [has_files, is_public]", "and: [has_files, is_private]"}, "unknown statement"},
		{"invalid params", [2]string{"bundle: ORIGINAL, min: 1", "bundle: ORIGINAL"}, "requires min or max"},
		{"duplicate issuer", [2]string{"    type: static", "    type: static\n  - name: ci\n    type: static"}, "not unique"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(sample, tt.replace[0], tt.replace[1], 1)
			_, err := Parse([]byte(doc))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Cycle(t *testing.T) {
	doc := strings.Replace(sample,
		"readable_by_group: { group: Anonymous }",
		"or: [has_files, loop]\n    loop:\n      not: is_public", 1)
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "references itself") {
		t.Fatalf("Parse() error = %v, want cycle error", err)
	}
}
