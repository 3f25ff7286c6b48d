package rpc

import (
	metricsPkg "github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// Metrics contains metrics exposed by the RPC server. A nil *Metrics is
// valid and disables instrumentation.
type Metrics struct {
	// Requests served, by method
	RequestsServed metricsPkg.Counter

	// Rejected credential checks
	AuthFailures metricsPkg.Counter

	// Structured errors returned, by code
	RequestErrors metricsPkg.Counter

	// Dispatches currently executing
	InflightRequests metricsPkg.Gauge

	// Duration of the last generate call (ms)
	GenerateTimeMs metricsPkg.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics() *Metrics {
	return &Metrics{
		RequestsServed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Requests served, by method",
		}, []string{"method"}),
		AuthFailures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Subsystem: "rpc",
			Name:      "auth_failures_total",
			Help:      "Rejected credential checks",
		}, []string{}),
		RequestErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Structured errors returned, by code",
		}, []string{"code"}),
		InflightRequests: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Subsystem: "rpc",
			Name:      "inflight_requests",
			Help:      "Dispatches currently executing",
		}, []string{}),
		GenerateTimeMs: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Subsystem: "rpc",
			Name:      "generate_time",
			Help:      "Duration of the last generate call (ms)",
		}, []string{}),
	}
}
