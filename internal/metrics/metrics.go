// Package metrics holds the Prometheus collectors for crawlscope.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry so tests can create as many as they need.
type Collector struct {
	registry *prometheus.Registry

	// Ingestion
	EventsTotal     *prometheus.CounterVec
	DecodeFailures  prometheus.Counter
	MessagesIndexed prometheus.Counter
	MalformedURLs   prometheus.Counter
	Rejected        prometheus.Counter

	// Batching
	Flushes   prometheus.Counter
	BatchSize prometheus.Histogram
	Pending   prometheus.Gauge

	// Graph
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	// Control plane
	Notifications prometheus.Gauge
	CommandsSent  *prometheus.CounterVec

	// Stream
	Reconnects   prometheus.Counter
	DialFailures prometheus.Counter
	StreamUp     prometheus.Gauge

	// HTTP
	HTTPRequests *prometheus.CounterVec
}

// New creates a collector with every metric registered under namespace
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound crawler events by type",
		}, []string{"type"}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_decode_failures_total",
			Help:      "Stream frames that could not be decoded",
		}),
		MessagesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_indexed_total",
			Help:      "Messages appended to the message log",
		}),
		MalformedURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_urls_total",
			Help:      "Messages filed under the empty branch key",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relationships_rejected_total",
			Help:      "new_domain events missing an endpoint",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_flushes_total",
			Help:      "Debounced batch flushes applied to the graph",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Relationships per flushed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_pending",
			Help:      "Relationships waiting for the next flush",
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the relationship graph",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the relationship graph",
		}),
		Notifications: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_active",
			Help:      "Notifications not yet expired",
		}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands written to the crawler by action",
		}, []string{"action"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Successful stream reconnects after a failure",
		}),
		DialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dial_failures_total",
			Help:      "Failed or breaker-rejected dial attempts",
		}),
		StreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "1 while the crawler stream is connected",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}

	c.registry.MustRegister(
		c.EventsTotal,
		c.DecodeFailures,
		c.MessagesIndexed,
		c.MalformedURLs,
		c.Rejected,
		c.Flushes,
		c.BatchSize,
		c.Pending,
		c.GraphNodes,
		c.GraphEdges,
		c.Notifications,
		c.CommandsSent,
		c.Reconnects,
		c.DialFailures,
		c.StreamUp,
		c.HTTPRequests,
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
