package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
)

func entries() []core.AuditEntry {
	return []core.AuditEntry{
		{ID: "a", Action: "identifier.mint", Handle: "1/1", Outcome: core.OutcomeApplied},
		{ID: "b", Action: "identifier.register", Handle: "1/1", Outcome: core.OutcomeFailed, ErrorKind: core.KindReserveFirst},
		{ID: "c", Action: "identifier.register", Handle: "1/2", Outcome: core.OutcomeNotApplicable},
	}
}

func TestFileAuditor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	a, err := NewFileAuditor(path)
	require.NoError(t, err)
	for _, e := range entries() {
		require.NoError(t, a.Log(e))
	}

	registers, err := a.Find(func(e core.AuditEntry) bool { return e.Action == "identifier.register" }, 10)
	require.NoError(t, err)
	require.Len(t, registers, 2)
	assert.Equal(t, core.KindReserveFirst, registers[0].ErrorKind)

	last, err := a.Find(func(core.AuditEntry) bool { return true }, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].ID)
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"not_applicable"`)
}

func TestInMemoryAuditor(t *testing.T) {
	a := NewInMemoryAuditor()
	for _, e := range entries() {
		require.NoError(t, a.Log(e))
	}
	assert.Len(t, a.Entries(), 3)

	found, err := a.Find(func(e core.AuditEntry) bool { return e.Handle == "1/1" }, 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestNew(t *testing.T) {
	a, err := New(config.AuditConfig{})
	require.NoError(t, err)
	assert.IsType(t, &NoopAuditor{}, a)

	a, err = New(config.AuditConfig{Enabled: true, Type: TypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryAuditor{}, a)

	_, err = New(config.AuditConfig{Enabled: true, Type: "syslog"})
	require.Error(t, err)
}
