package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "k9"

// RequestMetrics holds the Prometheus instruments for the ask endpoint.
// Register once at startup; Prometheus handles concurrent updates.
type RequestMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	ClarificationsTotal prometheus.Counter
	DurationSeconds     prometheus.Histogram
}

// NewRequestMetrics registers the instruments on reg. A nil registerer uses
// the default one.
func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &RequestMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Questions answered, by routed intent and outcome.",
		}, []string{"intent", "status"}),
		ClarificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "clarifications_total",
			Help:      "Turns that ended in a clarification request.",
		}),
		DurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end turn latency including model calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
