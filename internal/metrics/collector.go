// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns every Prometheus series exported by the pipeline.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	agentSearchesTotal  *prometheus.CounterVec
	agentSearchDuration *prometheus.HistogramVec

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	nodesProcessed *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	streamConnections prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers all series under the given namespace. A nil
// registerer uses the process-global default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.agentSearchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_searches_total",
			Help:      "Total number of agent search executions",
		},
		[]string{"agent", "status"},
	)

	c.agentSearchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_search_duration_seconds",
			Help:      "Agent search duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_runs_total",
			Help:      "Total number of research runs",
		},
		[]string{"status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_run_duration_seconds",
			Help:      "End-to-end research run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	c.nodesProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_nodes_processed_total",
			Help:      "Total number of research tree nodes processed",
		},
		[]string{"status"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.streamConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streaming_connections",
			Help:      "Number of live streaming connections",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAgentSearch records one agent search outcome.
func (c *Collector) RecordAgentSearch(agent, status string, duration time.Duration) {
	c.agentSearchesTotal.WithLabelValues(agent, status).Inc()
	c.agentSearchDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordRun records one finished research run.
func (c *Collector) RecordRun(status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNode records one processed research tree node.
func (c *Collector) RecordNode(status string) {
	c.nodesProcessed.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// StreamConnectionOpened bumps the live connection gauge.
func (c *Collector) StreamConnectionOpened() {
	c.streamConnections.Inc()
}

// StreamConnectionClosed drops the live connection gauge.
func (c *Collector) StreamConnectionClosed() {
	c.streamConnections.Dec()
}

// statusCode buckets an HTTP status for the series label.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
