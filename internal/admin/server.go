// Package admin exposes the proxy's operational surface: Prometheus
// metrics, a liveness probe, and a cache debug snapshot. It never sees
// proxied traffic — it is a second, small HTTP server alongside the
// engine's raw-socket listener, built with the same handler-plus-
// middleware pattern used elsewhere in this module.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/qaradev/cacheproxy/internal/metrics"
	"github.com/qaradev/cacheproxy/internal/middleware"
	"github.com/qaradev/cacheproxy/internal/stats"
)

// Engine is the subset of *engine.Engine the admin surface needs.
// Expressed as an interface so the admin surface does not depend on a
// full engine.
type Engine interface {
	Running() bool
	Stats() stats.Snapshot
	CacheSize() (sizeBytes int64, entries int)
}

// Server is the admin HTTP server.
type Server struct {
	http *http.Server
}

// New builds the admin server's handler, wrapping it in the
// logging → metrics middleware chain.
func New(addr string, eng Engine, m *metrics.Metrics, chain []middleware.Middleware) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", healthzHandler(eng))
	mux.HandleFunc("/debug/cache", debugCacheHandler(eng))

	var handler http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i].Wrap(handler)
	}

	return &Server{http: &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}}
}

// ListenAndServe runs the admin server until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func healthzHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !eng.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

type cacheSnapshot struct {
	SizeBytes     int64   `json:"sizeBytes"`
	Entries       int     `json:"entries"`
	TotalRequests int64   `json:"totalRequests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	HitRatio      float64 `json:"hitRatio"`
	BytesServed   int64   `json:"bytesServed"`
	AvgResponseMs float64 `json:"avgResponseMs"`
}

func debugCacheHandler(eng Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sizeBytes, entries := eng.CacheSize()
		snap := eng.Stats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cacheSnapshot{
			SizeBytes:     sizeBytes,
			Entries:       entries,
			TotalRequests: snap.TotalRequests,
			CacheHits:     snap.CacheHits,
			CacheMisses:   snap.CacheMisses,
			HitRatio:      snap.HitRatio(),
			BytesServed:   snap.BytesServed,
			AvgResponseMs: snap.AvgResponseMs,
		})
	}
}
