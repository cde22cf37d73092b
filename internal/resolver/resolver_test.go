package resolver

import (
	"context"
	"testing"
)

func TestHandleResolver(t *testing.T) {
	r := New("")
	if r.Prefix() != DefaultPrefix {
		t.Errorf("Prefix() = %q, want %q", r.Prefix(), DefaultPrefix)
	}

	url, err := r.ResolveToURL(context.Background(), "123456789/42")
	if err != nil || url != "http://hdl.handle.net/123456789/42" {
		t.Errorf("ResolveToURL() = %q, %v", url, err)
	}
	if _, err := r.ResolveToURL(context.Background(), " "); err == nil {
		t.Error("ResolveToURL(empty) error = nil, want error")
	}

	handle, ok := r.ResolveURLToHandle(context.Background(), url)
	if !ok || handle != "123456789/42" {
		t.Errorf("ResolveURLToHandle() = %q, %v", handle, ok)
	}
	if _, ok := r.ResolveURLToHandle(context.Background(), "https://elsewhere.org/1/2"); ok {
		t.Error("ResolveURLToHandle(foreign) ok = true, want false")
	}
}

func TestHandleResolver_PrefixWithoutSlash(t *testing.T) {
	r := New("https://repo.example.org/handle")
	url, _ := r.ResolveToURL(context.Background(), "1/2")
	if url != "https://repo.example.org/handle/1/2" {
		t.Errorf("ResolveToURL() = %q", url)
	}
}
