package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "greenexchange"

// Metrics holds the Prometheus collectors for the marketplace.
type Metrics struct {
	Registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by method, route template and status.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration observes HTTP latency by route template.
	RequestDuration *prometheus.HistogramVec
	// TreeTransitions counts committed lifecycle transitions, e.g. "Verified->Sold".
	TreeTransitions *prometheus.CounterVec
	// AuthEvents counts signup/login/logout outcomes.
	AuthEvents *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		TreeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tree_transitions_total",
			Help:      "Committed tree lifecycle transitions.",
		}, []string{"transition"}),
		AuthEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by type and result.",
		}, []string{"event", "result"}),
	}
}
