// Package metrics exposes Prometheus collectors for the alerting job, mail
// delivery and token rotation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pricewatch"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	subscriptions  *prometheus.CounterVec
	passDuration   prometheus.Histogram
	lastPass       prometheus.Gauge
	mailDeliveries *prometheus.CounterVec
	rotations      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		subscriptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerting",
				Name:      "subscriptions_total",
				Help:      "Subscriptions evaluated, by outcome.",
			},
			[]string{"result"},
		),

		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "alerting",
				Name:      "pass_duration_seconds",
				Help:      "Duration of a full evaluation pass.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
		),

		lastPass: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "alerting",
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time the last evaluation pass finished.",
			},
		),

		mailDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mail",
				Name:      "deliveries_total",
				Help:      "Mail delivery attempts, by status.",
			},
			[]string{"status"},
		),

		rotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "rotations_total",
				Help:      "Access tokens silently re-minted from a refresh token.",
			},
		),
	}

	m.Registry.MustRegister(
		m.subscriptions,
		m.passDuration,
		m.lastPass,
		m.mailDeliveries,
		m.rotations,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// SubscriptionEvaluated counts one subscription outcome.
func (m *Metrics) SubscriptionEvaluated(result string) {
	m.subscriptions.WithLabelValues(result).Inc()
}

// PassFinished records a completed evaluation pass.
func (m *Metrics) PassFinished(d time.Duration) {
	m.passDuration.Observe(d.Seconds())
	m.lastPass.SetToCurrentTime()
}

func (m *Metrics) MailDelivery(status string) {
	m.mailDeliveries.WithLabelValues(status).Inc()
}

func (m *Metrics) TokenRotated() {
	m.rotations.Inc()
}
