package middleware

import (
	"net/http"

	"github.com/qaradev/cacheproxy/internal/metrics"
)

// metricsMiddleware adapts Prometheus metrics into Middleware
type metricsMiddleware struct {
    m *metrics.Metrics
}

// NewMetrics constructs the metrics middleware around an existing
// collector, so the admin surface and the engine share one registry
func NewMetrics(m *metrics.Metrics) Middleware {
    return &metricsMiddleware{m: m}
}

// Wrap instruments each request with Prometheus metrics
func (mm *metricsMiddleware) Wrap(next http.Handler) http.Handler {
    return mm.m.MetricsMiddleware()(next)
}