// Package metrics exposes Prometheus collectors for the BFF.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects gateway and proxy counters.
type Metrics struct {
	registry *prometheus.Registry

	// SessionChecks counts checkSession outcomes: ok, revoked, unauthorized, error.
	SessionChecks *prometheus.CounterVec

	// SessionLogins counts sessionLogin outcomes: ok, bad_request, unauthorized.
	SessionLogins *prometheus.CounterVec

	// PageDecisions counts protected-page middleware outcomes: ok, redirect.
	PageDecisions *prometheus.CounterVec

	// ProxyRequests counts agent-proxy outcomes: ok, admin, forbidden, unauthorized.
	ProxyRequests *prometheus.CounterVec
}

// New creates the collector set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		SessionChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promoreels_session_checks_total",
			Help: "Session cookie verification attempts by outcome.",
		}, []string{"outcome"}),
		SessionLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promoreels_session_logins_total",
			Help: "Session login attempts by outcome.",
		}, []string{"outcome"}),
		PageDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promoreels_page_decisions_total",
			Help: "Protected page access decisions by outcome.",
		}, []string{"outcome"}),
		ProxyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promoreels_proxy_requests_total",
			Help: "Agent proxy requests by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
