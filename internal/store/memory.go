package store

import (
	"context"
	"sort"
	"sync"

	"github.com/darmiel/doigate/internal/core"
)

type identifierKey struct {
	provider, handle string
}

// InMemoryIdentifierStore keeps identifier records for the lifetime of the process.
type InMemoryIdentifierStore struct {
	mu          sync.RWMutex
	identifiers map[identifierKey]core.Identifier
}

var _ core.IdentifierStore = (*InMemoryIdentifierStore)(nil)

func NewInMemoryIdentifierStore() *InMemoryIdentifierStore {
	return &InMemoryIdentifierStore{
		identifiers: make(map[identifierKey]core.Identifier),
	}
}

func (s *InMemoryIdentifierStore) Save(_ context.Context, id core.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identifiers[identifierKey{id.Provider, id.Handle}] = id
	return nil
}

func (s *InMemoryIdentifierStore) Find(_ context.Context, provider, handle string) (*core.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identifiers[identifierKey{provider, handle}]
	if !ok {
		return nil, core.ErrIdentifierNotFound
	}
	return &id, nil
}

// List returns all records ordered by provider and handle.
func (s *InMemoryIdentifierStore) List(_ context.Context) ([]core.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Identifier, 0, len(s.identifiers))
	for _, id := range s.identifiers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Handle < out[j].Handle
	})
	return out, nil
}
