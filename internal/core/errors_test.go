package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIdentifierError_Is(t *testing.T) {
	err := fmt.Errorf("registering: %w", NewError(KindReserveFirst, "doi:10.5072/x", "not reserved", nil))

	if !errors.Is(err, ErrReserveFirst) {
		t.Errorf("errors.Is(err, ErrReserveFirst) = false, want true")
	}
	if errors.Is(err, ErrAlreadyExists) {
		t.Errorf("errors.Is(err, ErrAlreadyExists) = true, want false")
	}
	if got := KindOf(err); got != KindReserveFirst {
		t.Errorf("KindOf() = %q, want %q", got, KindReserveFirst)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"internal error", NewError(KindInternal, "", "timeout", nil), true},
		{"wrapped internal error", fmt.Errorf("x: %w", ErrInternal), true},
		{"bad answer", ErrBadAnswer, false},
		{"authentication", ErrAuthentication, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentifierError_Error(t *testing.T) {
	err := NewError(KindBadAnswer, "doi:10.5072/x", "status 418", errors.New("teapot"))
	want := "bad_answer (doi:10.5072/x): status 418: teapot"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
