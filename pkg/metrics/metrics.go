package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes prometheus collectors for the presence engine
type Metrics struct {
	StatusTransitions    *prometheus.CounterVec
	ReactivationAttempts *prometheus.CounterVec
	ActivityLogFailures  prometheus.Counter
	ConnectedClients     prometheus.Gauge
	RequestDuration      *prometheus.HistogramVec
}

// New registers and returns the engine's metrics on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StatusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "status_transitions_total",
			Help:      "Number of committed status transitions by target status.",
		}, []string{"status"}),

		ReactivationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "reactivation_attempts_total",
			Help:      "Number of reactivation attempts by result.",
		}, []string{"result"}),

		ActivityLogFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "activity_log_failures_total",
			Help:      "Number of activity log appends that failed and were dropped.",
		}),

		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "presence",
			Name:      "websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "presence",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

// NewDefault registers the metrics on the default prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
