package core

import "testing"

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "doi:10.5072/abc", want: "doi:10.5072/abc"},
		{in: "10.5072/abc", want: "doi:10.5072/abc"},
		{in: "https://doi.org/10.5072/abc", want: "doi:10.5072/abc"},
		{in: "http://dx.doi.org/10.5072/abc", want: "doi:10.5072/abc"},
		{in: "  DOI:10.5072/abc ", want: "doi:10.5072/abc"},
		{in: "hdl:123/4", wantErr: true},
		{in: "10.5072", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDOI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeDOI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeDOI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripSchemeAndExternalForm(t *testing.T) {
	if got := StripScheme("doi:10.5072/abc"); got != "10.5072/abc" {
		t.Errorf("StripScheme() = %q", got)
	}
	if got := ExternalForm("doi:10.5072/abc"); got != "https://doi.org/10.5072/abc" {
		t.Errorf("ExternalForm() = %q", got)
	}
}

func TestState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUnassigned, StateReserved, true},
		{StateUnassigned, StateRegistered, false},
		{StateReserved, StateRegistered, true},
		{StateReserved, StateUnassigned, true},
		{StateRegistered, StateReserved, false},
		{StateRegistered, StateUnassigned, false},
		{StateRegistered, StateConflict, true},
		{StateUnassigned, StateConflict, true},
		{StateConflict, StateRegistered, true},
		{StateRegistered, StateRegistered, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}
