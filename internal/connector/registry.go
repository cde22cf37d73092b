// Package connector builds the named registry connectors from configuration.
package connector

import (
	"fmt"
	"sort"

	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/connector/crossref"
	"github.com/darmiel/doigate/internal/connector/datacite"
	"github.com/darmiel/doigate/internal/connector/stub"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/metrics"
)

// Types lists the supported connector types.
func Types() []string {
	types := []string{datacite.Type, crossref.Type, stub.Type}
	sort.Strings(types)
	return types
}

func BuildRegistry(cfgs []config.ConnectorConfig, resolver core.URLResolver, m *metrics.Metrics) (map[string]core.Connector, error) {
	registry := make(map[string]core.Connector)
	for _, cfg := range cfgs {
		if _, dup := registry[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate connector %q", cfg.Name)
		}
		var (
			conn core.Connector
			err  error
		)
		switch cfg.Type {
		case datacite.Type:
			conn, err = datacite.NewFromMap(cfg.Name, cfg.Config, resolver, m)
		case crossref.Type:
			conn, err = crossref.NewFromMap(cfg.Name, cfg.Config, resolver, m)
		case stub.Type:
			conn, err = stub.New(cfg.Name, resolver)
		default:
			return nil, fmt.Errorf("unknown connector type %q for connector %q", cfg.Type, cfg.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("building %s connector %q: %w", cfg.Type, cfg.Name, err)
		}
		registry[cfg.Name] = conn
	}
	return registry, nil
}
