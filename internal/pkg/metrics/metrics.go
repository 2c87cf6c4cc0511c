package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coursehub"

// Metrics holds the application collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Checkouts          *prometheus.CounterVec
	GatewayRequests    *prometheus.CounterVec
	GatewayDuration    prometheus.Histogram
	WebhookOutcomes    *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	WebhookLookupTries prometheus.Histogram
}

// New registers all collectors. Pass withRuntime=false in tests to keep output small.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "initiations_total",
			Help:      "Checkout initiations by result.",
		}, []string{"result"}),
		GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "session_requests_total",
			Help:      "Payment gateway session requests by result.",
		}, []string{"result"}),
		GatewayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "session_request_duration_seconds",
			Help:      "Payment gateway session request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		WebhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "notifications_total",
			Help:      "Payment notifications by reconciliation result.",
		}, []string{"result"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "status_transitions_total",
			Help:      "Applied transaction status transitions.",
		}, []string{"from", "to", "source"}),
		WebhookLookupTries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "lookup_attempts",
			Help:      "Ledger lookup attempts per notification.",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Checkouts,
		m.GatewayRequests,
		m.GatewayDuration,
		m.WebhookOutcomes,
		m.StatusTransitions,
		m.WebhookLookupTries,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveGateway records one gateway round trip. Safe on a nil receiver.
func (m *Metrics) ObserveGateway(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayRequests.WithLabelValues(result).Inc()
	m.GatewayDuration.Observe(time.Since(start).Seconds())
}

// ObserveCheckout records a checkout initiation result. Safe on a nil receiver.
func (m *Metrics) ObserveCheckout(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}

// ObserveTransition records an applied status change. Safe on a nil receiver.
func (m *Metrics) ObserveTransition(from, to, source string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(from, to, source).Inc()
}

// ObserveWebhook records a reconciliation result. Safe on a nil receiver.
func (m *Metrics) ObserveWebhook(result string, lookupAttempts int) {
	if m == nil {
		return
	}
	m.WebhookOutcomes.WithLabelValues(result).Inc()
	if lookupAttempts > 0 {
		m.WebhookLookupTries.Observe(float64(lookupAttempts))
	}
}
