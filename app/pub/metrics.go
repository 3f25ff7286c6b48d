package pub

import (
	metricsPkg "github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Height of last published block event
	PublicationHeight metricsPkg.Gauge

	// Size of publication queue
	PublicationQueueSize metricsPkg.Gauge

	// Events dropped because the queue was full
	DroppedEvents metricsPkg.Counter

	// Time used to publish a block event
	PublishBlockEventTimeMs metricsPkg.Gauge

	// Time used to publish a peer event
	PublishPeerEventTimeMs metricsPkg.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
func PrometheusMetrics() *Metrics {
	return &Metrics{
		PublicationHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Subsystem: "publication",
			Name:      "height",
			Help:      "Height of last published block event.",
		}, []string{}),
		PublicationQueueSize: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Subsystem: "publication",
			Name:      "queue_size",
			Help:      "Size of publication queue.",
		}, []string{}),
		DroppedEvents: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Subsystem: "publication",
			Name:      "dropped_events",
			Help:      "Events dropped because the publication queue was full.",
		}, []string{}),
		PublishBlockEventTimeMs: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Subsystem: "publication",
			Name:      "publish_block_event_time_ms",
			Help:      "Time used to publish a block event.",
		}, []string{}),
		PublishPeerEventTimeMs: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Subsystem: "publication",
			Name:      "publish_peer_event_time_ms",
			Help:      "Time used to publish a peer event.",
		}, []string{}),
	}
}
