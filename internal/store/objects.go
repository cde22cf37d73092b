package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/darmiel/doigate/internal/core"
)

var ErrObjectNotFound = errors.New("object not found")

// FixtureObjectStore serves objects loaded from a YAML file. It is read-only.
type FixtureObjectStore struct {
	objects map[string]*core.Item // by handle
}

var _ core.ObjectStore = (*FixtureObjectStore)(nil)

type fixtureFile struct {
	Objects []*core.Item `yaml:"objects"`
}

// LoadObjects reads the fixture file at path.
func LoadObjects(path string) (*FixtureObjectStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading objects file: %w", err)
	}
	return ParseObjects(data)
}

func ParseObjects(data []byte) (*FixtureObjectStore, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing objects: %w", err)
	}
	return NewFixtureObjectStore(file.Objects...)
}

func NewFixtureObjectStore(items ...*core.Item) (*FixtureObjectStore, error) {
	s := &FixtureObjectStore{objects: make(map[string]*core.Item, len(items))}
	for idx, it := range items {
		switch {
		case it.HandleID == "":
			return nil, fmt.Errorf("object #%d has no handle", idx)
		case it.LocalID == "":
			return nil, fmt.Errorf("object '%s' has no id", it.HandleID)
		}
		if _, dup := s.objects[it.HandleID]; dup {
			return nil, fmt.Errorf("object handle '%s' is not unique", it.HandleID)
		}
		s.objects[it.HandleID] = it
	}
	return s, nil
}

func (s *FixtureObjectStore) Find(_ context.Context, handle string) (core.Object, error) {
	it, ok := s.objects[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, handle)
	}
	return it, nil
}

// All returns every object ordered by handle.
func (s *FixtureObjectStore) All(_ context.Context) ([]core.Object, error) {
	handles := make([]string, 0, len(s.objects))
	for h := range s.objects {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	out := make([]core.Object, 0, len(handles))
	for _, h := range handles {
		out = append(out, s.objects[h])
	}
	return out, nil
}
