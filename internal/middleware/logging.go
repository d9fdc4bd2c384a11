package middleware

import (
	"net/http"

	"github.com/qaradev/cacheproxy/internal/logging"
)

// loggingMiddleware adapts the structured logger's HTTP request
// logger into Middleware, for the admin HTTP surface
type loggingMiddleware struct {
	log *logging.Logger
}

// NewLogging constructs the logging middleware around an existing
// logger instance
func NewLogging(log *logging.Logger) Middleware {
	return &loggingMiddleware{log: log}
}

// Wrap logs each admin-surface request with duration and status
func (lm *loggingMiddleware) Wrap(next http.Handler) http.Handler {
	return lm.log.HTTPRequestLogger()(next)
}
