package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registry calls and identifier operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Remote registry requests by connector, method and status code
	RegistryRequests *prometheus.CounterVec

	// Remote registry latency by connector and method
	RegistryLatency *prometheus.HistogramVec

	// Identifier operations by provider, action and outcome
	Operations *prometheus.CounterVec

	// Filter decisions by filter and result
	FilterDecisions *prometheus.CounterVec

	// HTTP requests served by route pattern and status code
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doigate_registry_requests_total",
			Help: "Total requests sent to registration agencies by connector, method and status code",
		}, []string{"connector", "method", "code"}), // code: "0" for transport failures

		RegistryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doigate_registry_request_duration_seconds",
			Help:    "Duration of requests sent to registration agencies",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"connector", "method"}),

		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doigate_identifier_operations_total",
			Help: "Total identifier operations by provider, action and outcome",
		}, []string{"provider", "action", "outcome"}),

		FilterDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doigate_filter_decisions_total",
			Help: "Total filter evaluations by filter and result",
		}, []string{"filter", "result"}), // result: "true", "false", "error"

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doigate_http_requests_total",
			Help: "Total HTTP requests served by route and status code",
		}, []string{"route", "code"}),

		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doigate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveRegistryRequest records one remote call. status is 0 if no response was received.
func (m *Metrics) ObserveRegistryRequest(connector, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistryRequests.WithLabelValues(connector, method, strconv.Itoa(status)).Inc()
	m.RegistryLatency.WithLabelValues(connector, method).Observe(d.Seconds())
}

// IncrementOperation records the outcome of an identifier operation.
func (m *Metrics) IncrementOperation(provider, action, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(provider, action, outcome).Inc()
	}
}

// IncrementFilterDecision records a filter result.
func (m *Metrics) IncrementFilterDecision(filter string, result bool, err error) {
	if m == nil {
		return
	}
	label := strconv.FormatBool(result)
	if err != nil {
		label = "error"
	}
	m.FilterDecisions.WithLabelValues(filter, label).Inc()
}

// ObserveHTTPRequest records one request served by the API.
func (m *Metrics) ObserveHTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
}
