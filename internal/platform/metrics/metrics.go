// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the portal.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal         *prometheus.CounterVec
	HTTPRequestDurationSecond *prometheus.HistogramVec

	ParticipationEventsTotal *prometheus.CounterVec

	BroadcastMessagesTotal *prometheus.CounterVec
	BroadcastRecipients    prometheus.Histogram

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSecond: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		ParticipationEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_participation_events_total",
				Help: "Join and leave attempts by outcome",
			},
			[]string{"event", "result"},
		),
		BroadcastMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_broadcast_messages_total",
				Help: "Broadcast messages by delivery status",
			},
			[]string{"status"},
		),
		BroadcastRecipients: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portal_broadcast_recipients",
				Help:    "Recipients selected per broadcast",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSecond,
		m.ParticipationEventsTotal,
		m.BroadcastMessagesTotal,
		m.BroadcastRecipients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveParticipation counts one join/leave attempt; result is "ok" or an error code.
func (m *Metrics) ObserveParticipation(event, result string) {
	if m == nil {
		return
	}
	m.ParticipationEventsTotal.WithLabelValues(event, result).Inc()
}

// ObserveBroadcast records the outcome of one broadcast run.
func (m *Metrics) ObserveBroadcast(recipients, sent, failed int) {
	if m == nil {
		return
	}
	m.BroadcastRecipients.Observe(float64(recipients))
	m.BroadcastMessagesTotal.WithLabelValues("sent").Add(float64(sent))
	m.BroadcastMessagesTotal.WithLabelValues("failed").Add(float64(failed))
}
