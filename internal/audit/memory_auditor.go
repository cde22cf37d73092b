package audit

import (
	"sync"

	"github.com/darmiel/doigate/internal/core"
)

var (
	_ core.Auditor      = (*InMemoryAuditor)(nil)
	_ core.AuditQuerier = (*InMemoryAuditor)(nil)
)

// InMemoryAuditor is an auditor that stores audit logs in memory.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	return nil
}

// Entries returns a copy of everything logged so far.
func (i *InMemoryAuditor) Entries() []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]core.AuditEntry, len(i.entries))
	copy(out, i.entries)
	return out
}

func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}
	return lastN(matches, limit), nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}
