package api

const (
	HealthCheckRoute = "/healthz"
	AboutRoute       = "/about"
	MetricsRoute     = "/metrics"

	SessionRoute = "/v1/session"

	FiltersRoute       = "/v1/filters"
	ExplainFilterRoute = FiltersRoute + "/{name}/explain/{handle...}"

	IdentifierParent      = "/v1/identifiers/"
	IdentifierStatusRoute = IdentifierParent + "{provider}/{handle...}"
	IdentifierActionRoute = IdentifierParent + "{provider}/{action}/{handle...}"

	AdminParent     = "/v1/admin/"
	ListAuditsRoute = AdminParent + "audits"
)
