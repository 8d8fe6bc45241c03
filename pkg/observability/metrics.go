package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph metrics
	EdgeDecisions *prometheus.CounterVec
	EdgesEvicted  prometheus.Counter
	EdgesRemoved  *prometheus.CounterVec

	// Store metrics
	ConnectionAttempts  *prometheus.CounterVec
	OperationAttempts   *prometheus.CounterVec
	OperationRetries    *prometheus.CounterVec
	OperationsExhausted *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	MutationsFlushed    *prometheus.CounterVec
	FlushDuration       prometheus.Histogram
	PendingMutations    prometheus.Gauge
}

// NewCollector creates a new metrics collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EdgeDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edge_decisions_total",
				Help:      "Edge proposals by outcome and rejection reason",
			},
			[]string{"outcome", "reason"},
		),
		EdgesEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_evicted_total",
				Help:      "Edges evicted to make room for stronger ones",
			},
		),
		EdgesRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_removed_total",
				Help:      "Edges removed by cause",
			},
			[]string{"cause"},
		),
		ConnectionAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_connection_attempts_total",
				Help:      "Store connection initialisations by result",
			},
			[]string{"result"},
		),
		OperationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operation_attempts_total",
				Help:      "Remote store call attempts by operation and result",
			},
			[]string{"operation", "result"},
		),
		OperationRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operation_retries_total",
				Help:      "Retries of remote store calls",
			},
			[]string{"operation"},
		),
		OperationsExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_exhausted_total",
				Help:      "Remote store calls that gave up",
			},
			[]string{"operation"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Remote store call duration including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		MutationsFlushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_flushed_total",
				Help:      "Mutations flushed by result",
			},
			[]string{"result"},
		),
		FlushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Duration of flush rounds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		PendingMutations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_mutations",
				Help:      "Mutations waiting for the next flush",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.EdgeDecisions,
		c.EdgesEvicted,
		c.EdgesRemoved,
		c.ConnectionAttempts,
		c.OperationAttempts,
		c.OperationRetries,
		c.OperationsExhausted,
		c.OperationDuration,
		c.MutationsFlushed,
		c.FlushDuration,
		c.PendingMutations,
	)

	return c
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RegisterGaugeFunc exposes a value computed on scrape
func (c *Collector) RegisterGaugeFunc(namespace, name, help string, fn func() float64) error {
	return c.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
		fn,
	))
}

// Handler serves the registry in Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
