package service

import (
	"fmt"
	"sort"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/filter"
)

// Provider binds a connector to the filter gating it and to the DOI namespace
// used when minting.
type Provider struct {
	Name               string
	Connector          core.Connector
	Filter             *filter.Filter
	Prefix             string
	NamespaceSeparator string
}

// DOIFor returns the DOI minted for obj: doi:<prefix>/<separator><id>.
func (p *Provider) DOIFor(obj core.Object) string {
	return core.DOIScheme + p.Prefix + "/" + p.NamespaceSeparator + obj.ID()
}

// BuildProviders wires the configured providers to their connector and filter.
func BuildProviders(
	cfgs []config.ProviderConfig,
	connectors map[string]core.Connector,
	filters *filter.Registry,
) ([]*Provider, error) {
	out := make([]*Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		conn, ok := connectors[cfg.Connector]
		if !ok {
			return nil, fmt.Errorf("provider '%s': connector '%s' not found", cfg.Name, cfg.Connector)
		}
		f, err := filters.Get(cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("provider '%s': %w", cfg.Name, err)
		}
		out = append(out, &Provider{
			Name:               cfg.Name,
			Connector:          conn,
			Filter:             f,
			Prefix:             cfg.Prefix,
			NamespaceSeparator: cfg.NamespaceSeparator,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Status is the stored record of an identifier together with what the
// registry currently says about it.
type Status struct {
	Identifier core.Identifier `json:"identifier"`

	// Stored is false if there is no local record yet; Identifier then shows
	// the DOI that would be minted.
	Stored bool `json:"stored"`

	Reserved   bool `json:"reserved"`
	Registered bool `json:"registered"`
}
