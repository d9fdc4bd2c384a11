package stats

import "testing"

func TestRecordRequestAccumulates(t *testing.T) {
	s := New()

	s.RecordRequest(true, 100, 10)
	s.RecordRequest(false, 200, 30)

	snap := s.Snapshot()
	if snap.TotalRequests != 2 {
		t.Fatalf("expected 2 total requests, got %d", snap.TotalRequests)
	}
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %d hits %d misses", snap.CacheHits, snap.CacheMisses)
	}
	if snap.BytesServed != 300 {
		t.Fatalf("expected 300 bytes served, got %d", snap.BytesServed)
	}
	if snap.AvgResponseMs != 20 {
		t.Fatalf("expected average response time 20ms, got %v", snap.AvgResponseMs)
	}
}

func TestHitRatioWithNoRequests(t *testing.T) {
	s := New()
	if got := s.Snapshot().HitRatio(); got != 0 {
		t.Fatalf("expected hit ratio 0 with no requests, got %v", got)
	}
}

func TestHitRatioComputation(t *testing.T) {
	s := New()
	s.RecordRequest(true, 1, 1)
	s.RecordRequest(true, 1, 1)
	s.RecordRequest(false, 1, 1)

	if got := s.Snapshot().HitRatio(); got != 2.0/3.0 {
		t.Fatalf("expected hit ratio 2/3, got %v", got)
	}
}
