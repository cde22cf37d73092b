package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darmiel/doigate/internal/api/middleware"
	"github.com/darmiel/doigate/internal/audit"
	"github.com/darmiel/doigate/internal/config"
	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/internal/filter"
	"github.com/darmiel/doigate/internal/issuers"
	"github.com/darmiel/doigate/internal/metrics"
	"github.com/darmiel/doigate/internal/service"
)

type Options struct {
	Service *service.IdentifierService
	Filters *filter.Registry
	Objects core.ObjectStore

	// Issuers verifies the bearer tokens of API callers.
	Issuers *issuers.Registry

	// Sessions mints session tokens; session exchange is disabled when nil.
	Sessions *issuers.SessionIssuer

	Auditor        core.Auditor
	PrivilegedRole string

	// Gatherer backs the metrics endpoint; the endpoint is disabled when nil.
	Gatherer prometheus.Gatherer

	// Metrics counts served requests, optional.
	Metrics *metrics.Metrics
}

type Server struct {
	service        *service.IdentifierService
	filters        *filter.Registry
	objects        core.ObjectStore
	issuers        *issuers.Registry
	sessions       *issuers.SessionIssuer
	auditor        core.Auditor
	privilegedRole string
	gatherer       prometheus.Gatherer
	metrics        *metrics.Metrics
}

func NewServer(opts Options) *Server {
	if opts.Auditor == nil {
		opts.Auditor = audit.NewNoopAuditor()
	}
	if opts.PrivilegedRole == "" {
		opts.PrivilegedRole = config.DefaultPrivilegedRole
	}
	if opts.Issuers == nil {
		opts.Issuers = issuers.NewRegistry()
	}
	return &Server{
		service:        opts.Service,
		filters:        opts.Filters,
		objects:        opts.Objects,
		issuers:        opts.Issuers,
		sessions:       opts.Sessions,
		auditor:        opts.Auditor,
		privilegedRole: opts.PrivilegedRole,
		gatherer:       opts.Gatherer,
		metrics:        opts.Metrics,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	mux.HandleFunc("GET "+FiltersRoute, s.handleListFilters)
	mux.HandleFunc("GET "+ExplainFilterRoute, s.handleExplainFilter)
	mux.HandleFunc("GET "+IdentifierStatusRoute, s.handleIdentifierStatus)
	if s.gatherer != nil {
		mux.Handle("GET "+MetricsRoute, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// session exchange
	mux.HandleFunc("POST "+SessionRoute, s.handleSession)

	// authenticated identifier operations
	authenticate := middleware.Authenticate(s.issuers, s.privilegedRole)
	mux.Handle("POST "+IdentifierActionRoute, authenticate(http.HandlerFunc(s.handleIdentifierAction)))

	// admin routes
	if s.sessions != nil {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
		mux.Handle(AdminParent, middleware.AdminAuth(s.sessions, s.privilegedRole)(adminMux))
	}

	return middleware.Recover(
		middleware.CorrelationID(
			middleware.Logging(s.metrics)(
				mux)))
}
