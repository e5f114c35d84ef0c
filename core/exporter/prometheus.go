// Package exporter exposes engine metrics for Prometheus scraping.
package exporter

import (
	"net/http"

	"github.com/artpar/datagate/core/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collects engine events on a private registry.
// It implements app.Metrics.
type Prometheus struct {
	registry *prometheus.Registry

	authzDecisions *prometheus.CounterVec
	dispatches     *prometheus.CounterVec
	guardRedirects *prometheus.CounterVec
}

// PrometheusConfig configures the exporter.
type PrometheusConfig struct {
	// Prefix is added to all metric names (default: "datagate").
	Prefix string
}

// NewPrometheus creates a Prometheus exporter.
func NewPrometheus(cfg PrometheusConfig) *Prometheus {
	if cfg.Prefix == "" {
		cfg.Prefix = "datagate"
	}

	reg := prometheus.NewRegistry()

	e := &Prometheus{
		registry: reg,
		authzDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: cfg.Prefix + "_authz_decisions_total",
				Help: "Authorization decisions by target, operation, and outcome",
			},
			[]string{"target", "op", "outcome"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: cfg.Prefix + "_dispatches_total",
				Help: "Custom operation invocations by terminal state",
			},
			[]string{"operation", "state"},
		),
		guardRedirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: cfg.Prefix + "_guard_redirects_total",
				Help: "Session guard redirects by route class",
			},
			[]string{"class"},
		),
	}

	reg.MustRegister(e.authzDecisions, e.dispatches, e.guardRedirects)
	return e
}

// AuthzDecision records one rule evaluation outcome.
func (e *Prometheus) AuthzDecision(target string, op schema.Op, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	e.authzDecisions.WithLabelValues(target, string(op), outcome).Inc()
}

// Dispatch records an invocation reaching a terminal state.
func (e *Prometheus) Dispatch(operation, state string) {
	e.dispatches.WithLabelValues(operation, state).Inc()
}

// GuardRedirect records a route-guard redirect.
func (e *Prometheus) GuardRedirect(class string) {
	e.guardRedirects.WithLabelValues(class).Inc()
}

// Handler returns the scrape endpoint handler.
func (e *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
