// Package stats tracks the proxy's running request counters: totals,
// cache hits/misses, bytes served, and a running average response
// time. It is a direct rendering of the reference proxy's global
// stats struct and its mutex-guarded increments, minus the C
// printf-based print_stats report, which is now exposed through
// structured JSON logging and Prometheus instead of printf text.
package stats

import "sync"

// Stats accumulates proxy-wide counters under a single mutex, matching
// the reference implementation's single stats.mutex rather than
// splitting into per-field atomics — the counters are already updated
// together at the end of every request, so one lock covers them all.
type Stats struct {
	mu sync.Mutex

	totalRequests int64
	cacheHits     int64
	cacheMisses   int64
	bytesServed   int64
	avgResponseMs float64
}

// New constructs an empty Stats.
func New() *Stats {
	return &Stats{}
}

// RecordRequest folds one completed request into the running totals,
// updating the running average response time using the same
// incremental-mean formula as the reference's print_stats update:
// avg = (avg*n + sample) / (n+1).
func (s *Stats) RecordRequest(hit bool, bytesServed int64, responseTimeMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.avgResponseMs = (s.avgResponseMs*float64(s.totalRequests) + responseTimeMs) / float64(s.totalRequests+1)
	s.totalRequests++
	s.bytesServed += bytesServed
	if hit {
		s.cacheHits++
	} else {
		s.cacheMisses++
	}
}

// Snapshot is a point-in-time copy of the counters, safe to read
// without holding the Stats lock.
type Snapshot struct {
	TotalRequests int64
	CacheHits     int64
	CacheMisses   int64
	BytesServed   int64
	AvgResponseMs float64
}

// HitRatio returns the fraction of requests that were cache hits, or
// 0 if no requests have been recorded yet.
func (sn Snapshot) HitRatio() float64 {
	if sn.TotalRequests == 0 {
		return 0
	}
	return float64(sn.CacheHits) / float64(sn.TotalRequests)
}

// Snapshot returns a consistent copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		TotalRequests: s.totalRequests,
		CacheHits:     s.cacheHits,
		CacheMisses:   s.cacheMisses,
		BytesServed:   s.bytesServed,
		AvgResponseMs: s.avgResponseMs,
	}
}
