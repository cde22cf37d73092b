package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/darmiel/doigate/internal/audit"
	"github.com/darmiel/doigate/internal/cliconfig"
	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/connector"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/filter"
	"github.com/darmiel/doigate/internal/metrics"
	"github.com/darmiel/doigate/internal/resolver"
	"github.com/darmiel/doigate/internal/service"
	"github.com/darmiel/doigate/internal/store"
	"github.com/darmiel/doigate/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the doigate server to connect to.
	RemoteAddr string

	// ConfigPath is the doigate configuration used for local runs and serve.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

// Remote reports whether commands should talk to a server.
func (f *Factory) Remote() bool {
	return f.RemoteAddr != ""
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(AddrKey) // prio 2: config/env
	}
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set DOIGATE_ADDR)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(server); err == nil { // token prio 1: saved credential
			token = cred.Token
		}
	}

	if envToken := viper.GetString(TokenKey); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	if f.ConfigPath == "" {
		return nil, fmt.Errorf("configuration file not specified (use --config)")
	}
	return config.Load(f.ConfigPath)
}

func (f *Factory) bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&f.RemoteAddr, "server", "", "Address of a remote doigate server")
	_ = viper.BindPFlag(AddrKey, flags.Lookup("server"))

	flags.StringVarP(&f.ConfigPath, "config", "f", "", "The doigate configuration file for local runs")
	_ = viper.BindPFlag(ConfigKey, flags.Lookup("config"))
}

// App is everything a local run or the server needs, wired from one configuration.
type App struct {
	Config     *config.Config
	Filters    *filter.Registry
	Connectors map[string]core.Connector
	Objects    core.ObjectStore
	Auditor    core.Auditor
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Service    *service.IdentifierService
}

// Close releases the auditor.
func (a *App) Close() {
	if err := a.Auditor.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close auditor")
	}
}

// Build wires configuration, resolver, filters, connectors, providers and the
// identifier service. Local runs keep the identifier store in memory.
func (f *Factory) Build(_ context.Context, auditing bool) (*App, error) {
	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	app := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	app.Metrics = metrics.New(app.Registry)
	m := app.Metrics

	res := resolver.New(cfg.Resolver.CanonicalPrefix)

	log.Debug().Msg("Initializing filters...")
	if app.Filters, err = filter.Build(cfg.Logic); err != nil {
		return nil, fmt.Errorf("building filters: %w", err)
	}

	log.Debug().Msg("Initializing connectors...")
	if app.Connectors, err = connector.BuildRegistry(cfg.Connectors, res, m); err != nil {
		return nil, fmt.Errorf("building connectors: %w", err)
	}

	providers, err := service.BuildProviders(cfg.Providers, app.Connectors, app.Filters)
	if err != nil {
		return nil, fmt.Errorf("building providers: %w", err)
	}

	if cfg.Objects.Path != "" {
		if app.Objects, err = store.LoadObjects(cfg.Objects.Path); err != nil {
			return nil, fmt.Errorf("loading objects: %w", err)
		}
	} else {
		app.Objects, _ = store.NewFixtureObjectStore()
	}

	if auditing {
		if app.Auditor, err = audit.New(cfg.Audit); err != nil {
			return nil, fmt.Errorf("creating auditor: %w", err)
		}
	} else {
		app.Auditor = audit.NewNoopAuditor() // for local CLI operations, we don't do auditing
	}

	app.Service = service.NewIdentifierService(
		providers,
		store.NewInMemoryIdentifierStore(),
		app.Auditor,
		m,
	)
	return app, nil
}

// ReadSigningKey returns the session signing key from the configuration or
// DOIGATE_SIGNING_KEY. An empty key disables session tokens.
func ReadSigningKey(cfg *config.Config) []byte {
	if key := viper.GetString(SigningKeyKey); key != "" {
		return []byte(key)
	}
	return []byte(cfg.Auth.SigningKey)
}
