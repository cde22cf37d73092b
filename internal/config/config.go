package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/darmiel/doigate/internal/logic"
	"github.com/darmiel/doigate/internal/validation"
)

const DefaultPrivilegedRole = "admin"

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Resolver   ResolverConfig    `yaml:"resolver"`
	Logic      LogicConfig       `yaml:"logic"`
	Connectors []ConnectorConfig `yaml:"connectors"`
	Providers  []ProviderConfig  `yaml:"providers"`
	Objects    ObjectsConfig     `yaml:"objects"`
	Issuers    []IssuerConfig    `yaml:"issuers"`
	Auth       AuthConfig        `yaml:"auth"`
	Audit      AuditConfig       `yaml:"audit"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
}

// ResolverConfig configures how object handles map to canonical URLs.
type ResolverConfig struct {
	// CanonicalPrefix is prepended to a handle to form its canonical URL.
	// Defaults to "http://hdl.handle.net/".
	CanonicalPrefix string `yaml:"canonical_prefix"`
}

// LogicConfig holds the shared statement definitions and the filters built on them.
type LogicConfig struct {
	Statements map[string]logic.StatementConfig `yaml:"statements"`
	Filters    []FilterConfig                   `yaml:"filters"`
}

type FilterConfig struct {
	Name        string                `yaml:"name"`
	Description string                `yaml:"description"`
	Statement   logic.StatementConfig `yaml:"statement"`
}

// ConnectorConfig holds configuration for a registration agency connector.
type ConnectorConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "datacite", "crossref"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// ProviderConfig binds a connector, a filter and a DOI prefix under one name.
type ProviderConfig struct {
	Name      string `yaml:"name"`
	Connector string `yaml:"connector"`
	Filter    string `yaml:"filter"`

	// Prefix is the DOI prefix, e.g. "10.5072".
	Prefix string `yaml:"prefix"`

	// NamespaceSeparator is put between the prefix and the object id,
	// e.g. "repo-" yields "10.5072/repo-42".
	NamespaceSeparator string `yaml:"namespace_separator"`
}

// ObjectsConfig points to the object fixture file.
type ObjectsConfig struct {
	Path string `yaml:"path"`
}

// IssuerConfig holds configuration for an Identity Provider.
type IssuerConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "oidc", "static"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

type AuthConfig struct {
	// SigningKey is the HMAC key for admin tokens.
	SigningKey string `yaml:"signing_key"`

	// PrivilegedRole is the role a principal needs to skip filters.
	PrivilegedRole string `yaml:"privileged_role"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.PrivilegedRole == "" {
		c.Auth.PrivilegedRole = DefaultPrivilegedRole
	}

	validIssuers := make(map[string]struct{})
	for idx, i := range c.Issuers {
		if i.Name == "" {
			return fmt.Errorf("issuer at index %d has empty name", idx)
		}
		if _, dup := validIssuers[i.Name]; dup {
			return fmt.Errorf("issuer name '%s' is not unique", i.Name)
		}
		validIssuers[i.Name] = struct{}{}
	}

	validConnectors := make(map[string]struct{})
	for idx, conn := range c.Connectors {
		if conn.Name == "" {
			return fmt.Errorf("connector at index %d has empty name", idx)
		}
		if conn.Type == "" {
			return fmt.Errorf("connector '%s' has no type", conn.Name)
		}
		if _, dup := validConnectors[conn.Name]; dup {
			return fmt.Errorf("connector name '%s' is not unique", conn.Name)
		}
		validConnectors[conn.Name] = struct{}{}
	}

	filters := make([]validation.NamedStatement, 0, len(c.Logic.Filters))
	for _, f := range c.Logic.Filters {
		filters = append(filters, validation.NamedStatement{Name: f.Name, Statement: f.Statement})
	}
	validFilters, err := validation.ValidateLogic(c.Logic.Statements, filters)
	if err != nil {
		return fmt.Errorf("validating logic: %w", err)
	}

	seenProviders := make(map[string]struct{})
	for idx, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider at index %d has empty name", idx)
		}
		if _, dup := seenProviders[p.Name]; dup {
			return fmt.Errorf("provider name '%s' is not unique", p.Name)
		}
		seenProviders[p.Name] = struct{}{}

		if _, ok := validConnectors[p.Connector]; !ok {
			return fmt.Errorf("provider '%s' references unknown connector '%s'", p.Name, p.Connector)
		}
		if _, ok := validFilters[p.Filter]; !ok {
			return fmt.Errorf("provider '%s' references unknown filter '%s'", p.Name, p.Filter)
		}
		if !strings.HasPrefix(p.Prefix, "10.") || strings.Contains(p.Prefix, "/") {
			return fmt.Errorf("provider '%s' has invalid DOI prefix '%s'", p.Name, p.Prefix)
		}
	}

	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return fmt.Errorf("file audit requires a path")
	}

	return nil
}

// Provider returns the provider configuration with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
