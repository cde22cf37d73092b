package cliconfig

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	orig := configDir
	configDir = func() (string, error) { return dir + "/nested", nil }
	t.Cleanup(func() { configDir = orig })

	if _, err := Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist before first save, got %v", err)
	}

	cfg := &CLIConfig{Credentials: map[string]*Credential{
		"doigate.example.org": {Token: "fresh", Principal: "curator", ExpiresAt: time.Now().Add(time.Hour)},
		"old.example.org":     {Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		"static.example.org":  {Token: "forever"},
	}}
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		server  string
		token   string
		wantErr error
	}{
		{"https://doigate.example.org", "fresh", nil},
		{"https://static.example.org:443", "", ErrCredentialNotFound},
		{"https://static.example.org", "forever", nil},
		{"https://old.example.org", "", ErrCredentialExpired},
		{"https://unknown.example.org", "", ErrCredentialNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			cred, err := loaded.GetCredential(tt.server)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && cred.Token != tt.token {
				t.Errorf("expected token %q, got %q", tt.token, cred.Token)
			}
		})
	}
}
