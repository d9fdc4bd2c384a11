package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for the caching proxy
// Tracks request outcomes, queue/connection pressure, and cache
// occupancy for monitoring
type Metrics struct {
	requestsTotal     *prometheus.CounterVec   // Total requests by outcome (hit/miss/400/...)
	requestDuration   *prometheus.HistogramVec // Request duration distribution by outcome
	activeConnections prometheus.Gauge         // Current in-flight client connections
	queueDepth        prometheus.Gauge         // Current work queue occupancy
	cacheSizeBytes    prometheus.Gauge         // Current cache occupancy in bytes
	cacheEntries      prometheus.Gauge         // Current number of cached entries
	upstreamPoolIdle  prometheus.Gauge         // Idle upstream connections held in the pool
	upstreamPoolInUse prometheus.Gauge         // Upstream connections currently held by workers
}

// NewMetrics creates new metrics collector with Prometheus instruments
// Registers all metrics with default registry for HTTP exposition
// Time Complexity: O(1) - metric registration
// Space Complexity: O(1) - fixed metric storage
func NewMetrics() *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_requests_total",
				Help: "Total number of proxied requests by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_request_duration_seconds",
				Help:    "End-to-end request handling duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_active_connections",
				Help: "Number of client connections currently being served",
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_queue_depth",
				Help: "Number of accepted connections waiting in the work queue",
			},
		),
		cacheSizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_cache_size_bytes",
				Help: "Total bytes currently held in the response cache",
			},
		),
		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_cache_entries",
				Help: "Number of entries currently held in the response cache",
			},
		),
		upstreamPoolIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_upstream_pool_idle",
				Help: "Idle upstream connections currently held in the pool",
			},
		),
		upstreamPoolInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_upstream_pool_in_use",
				Help: "Upstream connections currently held by workers",
			},
		),
	}

	prometheus.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeConnections,
		m.queueDepth,
		m.cacheSizeBytes,
		m.cacheEntries,
		m.upstreamPoolIdle,
		m.upstreamPoolInUse,
	)

	return m
}

// RecordRequest records the outcome and duration of one proxied request
// outcome is one of "hit", "miss", "400", "403", "404", "500", "501", "503", "505"
// for proxied requests, or the HTTP status code of an admin-surface
// request when called from MetricsMiddleware
// Time Complexity: O(1) - metric recording
// Space Complexity: O(1) - no additional allocations
func (m *Metrics) RecordRequest(outcome string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncrementConnections increments active connection count
// Called when a connection is handed to a worker
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Inc()
}

// DecrementConnections decrements active connection count
// Called when a worker finishes serving a connection
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Dec()
}

// SetQueueDepth records the current occupancy of the work queue
func (m *Metrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// SetCacheOccupancy records the cache's current size and entry count
func (m *Metrics) SetCacheOccupancy(sizeBytes int64, entries int) {
	m.cacheSizeBytes.Set(float64(sizeBytes))
	m.cacheEntries.Set(float64(entries))
}

// SetUpstreamPoolOccupancy records the upstream pool's idle and
// in-use connection counts
func (m *Metrics) SetUpstreamPoolOccupancy(idle, inUse int) {
	m.upstreamPoolIdle.Set(float64(idle))
	m.upstreamPoolInUse.Set(float64(inUse))
}

// Handler returns HTTP handler for Prometheus metrics exposition
// Enables metrics scraping by monitoring systems
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware creates middleware for automatic request metrics
// collection on the admin HTTP surface
func (m *Metrics) MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper := &statusRecorder{ResponseWriter: w, statusCode: 200}
			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			m.RecordRequest(strconv.Itoa(wrapper.statusCode), duration)
		})
	}
}

// statusRecorder wraps ResponseWriter to capture HTTP status codes
// Used by metrics middleware to record response status
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures status code for metrics
func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}
