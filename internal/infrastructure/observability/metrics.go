package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// globalCollector is the singleton instance
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds every Prometheus metric exported by CommuteOS.
type Collector struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Route metrics
	RouteRequests   *prometheus.CounterVec
	ComputeDuration prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors *prometheus.CounterVec

	// History metrics
	HistoryDropped *prometheus.CounterVec
	HistoryFailed  prometheus.Counter

	// Network metrics
	GraphReloads  *prometheus.CounterVec
	GraphStations prometheus.Gauge
	GraphEdges    prometheus.Gauge

	registry *prometheus.Registry
}

// NewCollector returns the process-wide collector, creating it on first use.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	// Private registry so repeated test runs never hit duplicate registration.
	registry := prometheus.NewRegistry()

	c := &Collector{
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
		RouteRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_requests_total",
				Help:      "Route requests by outcome",
			},
			[]string{"outcome"},
		),
		ComputeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "route_compute_duration_seconds",
				Help:      "Shortest path computation time in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of route cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of route cache misses",
			},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache backend failures by operation",
			},
			[]string{"operation"},
		),
		HistoryDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_dropped_total",
				Help:      "History records dropped before reaching a store",
			},
			[]string{"reason"},
		),
		HistoryFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_failed_total",
				Help:      "History records a store rejected",
			},
		),
		GraphReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_reloads_total",
				Help:      "Transit network reload attempts by status",
			},
			[]string{"status"},
		),
		GraphStations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_stations",
				Help:      "Stations in the current transit network",
			},
		),
		GraphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_edges",
				Help:      "Directed edges in the current transit network",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.RouteRequests,
		c.ComputeDuration,
		c.CacheHits,
		c.CacheMisses,
		c.CacheErrors,
		c.HistoryDropped,
		c.HistoryFailed,
		c.GraphReloads,
		c.GraphStations,
		c.GraphEdges,
	)

	globalCollector = c
	return c
}

// ResetForTesting drops the singleton. Only call from tests.
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// IncrementCounter implements the MetricsRecorder contracts.
func (c *Collector) IncrementCounter(name string, tags map[string]string) {
	c.IncrementCounterBy(name, 1, tags)
}

// IncrementCounterBy maps a recorder metric name onto its Prometheus series.
// Unknown names are ignored.
func (c *Collector) IncrementCounterBy(name string, value float64, tags map[string]string) {
	switch name {
	case "cache_hits":
		c.CacheHits.Add(value)
	case "cache_misses":
		c.CacheMisses.Add(value)
	case "cache_errors":
		c.CacheErrors.WithLabelValues(tag(tags, "operation")).Add(value)
	case "route_requests":
		c.RouteRequests.WithLabelValues(tag(tags, "outcome")).Add(value)
	case "history_dropped":
		c.HistoryDropped.WithLabelValues(tag(tags, "reason")).Add(value)
	case "history_failed":
		c.HistoryFailed.Add(value)
	case "graph_reloads":
		c.GraphReloads.WithLabelValues(tag(tags, "status")).Add(value)
	}
}

// SetGauge sets a gauge by name. Unknown names are ignored.
func (c *Collector) SetGauge(name string, value float64, tags map[string]string) {
	switch name {
	case "graph_stations":
		c.GraphStations.Set(value)
	case "graph_edges":
		c.GraphEdges.Set(value)
	}
}

// RecordDuration observes a duration by name. Unknown names are ignored.
func (c *Collector) RecordDuration(name string, duration time.Duration, tags map[string]string) {
	if name == "route_compute" {
		c.ComputeDuration.Observe(duration.Seconds())
	}
}

// GetRegistry returns the private registry.
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func tag(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok && v != "" {
		return v
	}
	return "unknown"
}
