// Package metrics provides the Prometheus collectors exported by crmmock.
//
// A nil *Metrics is valid: every recording method is a no-op on nil, so
// components can take metrics as an optional dependency.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "crmmock"

	outcomeLabel   = "outcome"
	operationLabel = "operation"
	statusLabel    = "status"
	codeLabel      = "code"
	stateLabel     = "state"
	methodLabel    = "method"
	pathLabel      = "path"
)

// Metrics holds every collector registered by the server.
type Metrics struct {
	registry *prometheus.Registry

	fetchAttemptsTotal   *prometheus.CounterVec
	fetchDurationSeconds prometheus.Histogram

	graphqlRequestsTotal  *prometheus.CounterVec
	graphqlRequestSeconds *prometheus.HistogramVec
	graphqlErrorsTotal    *prometheus.CounterVec

	usersCreatedTotal  prometheus.Counter
	usersRejectedTotal *prometheus.CounterVec

	lifecycleState *prometheus.GaugeVec

	httpRequestsTotal *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	return &Metrics{
		registry: reg,
		fetchAttemptsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema_fetch",
			Name:      "attempts_total",
			Help:      "Total number of schema fetch attempts by outcome.",
		}, []string{outcomeLabel}),
		fetchDurationSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schema_fetch",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of individual schema fetch attempts.",
		}),
		graphqlRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "requests_total",
			Help:      "Total number of GraphQL requests by operation type and HTTP status.",
		}, []string{operationLabel, statusLabel}),
		graphqlRequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "request_duration_seconds",
			Help:      "Duration of GraphQL requests.",
		}, []string{operationLabel}),
		graphqlErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "errors_total",
			Help:      "Total number of GraphQL errors returned to clients, by error code.",
		}, []string{codeLabel}),
		usersCreatedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "users",
			Name:      "created_total",
			Help:      "Total number of createUser mutations that returned a payload.",
		}),
		usersRejectedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "users",
			Name:      "rejected_total",
			Help:      "Total number of createUser mutations rejected by the resolver, by error code.",
		}, []string{codeLabel}),
		lifecycleState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "state",
			Help:      "Current lifecycle state of the server. 1 for the active state label.",
		}, []string{stateLabel}),
		httpRequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served, by method, route and status.",
		}, []string{methodLabel, pathLabel, statusLabel}),
	}, nil
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler exposing the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetchAttempt records one schema fetch attempt.
func (m *Metrics) ObserveFetchAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	m.fetchDurationSeconds.Observe(d.Seconds())
}

// ObserveGraphQLRequest records one GraphQL HTTP request.
func (m *Metrics) ObserveGraphQLRequest(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.graphqlRequestsTotal.WithLabelValues(operation, fmt.Sprint(status)).Inc()
	m.graphqlRequestSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// AddGraphQLError records one client-facing GraphQL error.
func (m *Metrics) AddGraphQLError(code string) {
	if m == nil {
		return
	}
	m.graphqlErrorsTotal.WithLabelValues(code).Inc()
}

// AddUserCreated records a successful createUser mutation.
func (m *Metrics) AddUserCreated() {
	if m == nil {
		return
	}
	m.usersCreatedTotal.Inc()
}

// AddUserRejected records a createUser mutation rejected with the given code.
func (m *Metrics) AddUserRejected(code string) {
	if m == nil {
		return
	}
	m.usersRejectedTotal.WithLabelValues(code).Inc()
}

// SetLifecycleState marks state as the active lifecycle state.
func (m *Metrics) SetLifecycleState(state string) {
	if m == nil {
		return
	}
	m.lifecycleState.Reset()
	m.lifecycleState.WithLabelValues(state).Set(1)
}

// ObserveHTTPRequest records one HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, fmt.Sprint(status)).Inc()
}
