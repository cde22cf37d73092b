// Package stub is an in-memory registry following the two-phase flow. It needs
// no network access and is meant for local testing and demos.
package stub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/core"
)

const Type = "stub"

type record struct {
	handle string // owner of the reservation
	url    string // set once registered
}

// Connector keeps reservations and registrations in memory.
type Connector struct {
	name     string
	resolver core.URLResolver

	mu      sync.RWMutex
	records map[string]*record // bare doi -> record
}

var _ core.Connector = (*Connector)(nil)

func New(name string, resolver core.URLResolver) (*Connector, error) {
	if resolver == nil {
		return nil, fmt.Errorf("stub connector '%s' needs a URL resolver", name)
	}
	return &Connector{
		name:     name,
		resolver: resolver,
		records:  make(map[string]*record),
	}, nil
}

func (c *Connector) Name() string { return c.name }

func key(doi string) string {
	return strings.ToLower(core.StripScheme(doi))
}

func (c *Connector) lookup(doi string) (record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[key(doi)]
	if !ok {
		return record{}, false
	}
	return *rec, true
}

func (c *Connector) IsDOIReserved(_ context.Context, obj core.Object, doi string) (bool, error) {
	rec, ok := c.lookup(doi)
	if !ok {
		return false, nil
	}
	return obj == nil || rec.handle == obj.Handle(), nil
}

func (c *Connector) IsDOIRegistered(ctx context.Context, obj core.Object, doi string) (bool, error) {
	rec, ok := c.lookup(doi)
	if !ok || rec.url == "" {
		return false, nil
	}
	if obj == nil {
		return true, nil
	}
	canonical, err := c.resolver.ResolveToURL(ctx, obj.Handle())
	if err != nil {
		return false, fmt.Errorf("resolving canonical URL of %s: %w", obj.Handle(), err)
	}
	return rec.url == canonical, nil
}

func (c *Connector) ReserveDOI(ctx context.Context, obj core.Object, doi string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[key(doi)]; ok {
		if rec.handle != obj.Handle() {
			return core.NewError(core.KindAlreadyExists, doi, "reserved for another object", nil)
		}
		return nil
	}
	c.records[key(doi)] = &record{handle: obj.Handle()}
	log.Ctx(ctx).Info().
		Str("connector", c.name).
		Str("doi", doi).
		Str("handle", obj.Handle()).
		Msg("stub reservation stored")
	return nil
}

func (c *Connector) RegisterDOI(ctx context.Context, obj core.Object, doi string) error {
	canonical, err := c.resolver.ResolveToURL(ctx, obj.Handle())
	if err != nil {
		return core.NewError(core.KindConversion, doi, "resolving canonical URL", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[key(doi)]
	switch {
	case !ok:
		return core.NewError(core.KindReserveFirst, doi, "the DOI has to be reserved before it can be registered", nil)
	case rec.handle != obj.Handle():
		return core.NewError(core.KindAlreadyExists, doi, "reserved for another object", nil)
	}
	rec.url = canonical
	log.Ctx(ctx).Info().
		Str("connector", c.name).
		Str("doi", doi).
		Str("url", canonical).
		Msg("stub registration stored")
	return nil
}

func (c *Connector) UpdateMetadata(_ context.Context, obj core.Object, doi string) error {
	rec, ok := c.lookup(doi)
	if ok && rec.handle != obj.Handle() {
		return core.NewError(core.KindAlreadyExists, doi, "reserved for another object", nil)
	}
	return nil
}

// DeleteDOI drops a reservation. Registered DOIs stay.
func (c *Connector) DeleteDOI(_ context.Context, doi string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[key(doi)]
	if !ok {
		return nil
	}
	if rec.url != "" {
		return core.NewError(core.KindBadRequest, doi, "registered DOIs cannot be deleted", nil)
	}
	delete(c.records, key(doi))
	return nil
}
