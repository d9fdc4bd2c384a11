package upstream

import (
	"context"
	"testing"
	"time"
)

func TestDialLimiterAllowsUpToBurst(t *testing.T) {
	l := NewDialLimiter(3, 1)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "example.com"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
}

func TestDialLimiterBlocksBeyondBurstUntilTimeout(t *testing.T) {
	l := NewDialLimiter(1, 1)
	ctx := context.Background()

	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Fatalf("first attempt: unexpected error %v", err)
	}

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(shortCtx, "example.com"); err == nil {
		t.Fatal("expected second immediate attempt to time out")
	}
}

func TestDialLimiterBucketsArePerHost(t *testing.T) {
	l := NewDialLimiter(1, 1)
	ctx := context.Background()

	if err := l.Wait(ctx, "a.example.com"); err != nil {
		t.Fatalf("unexpected error for host a: %v", err)
	}
	if err := l.Wait(ctx, "b.example.com"); err != nil {
		t.Fatalf("unexpected error for host b, limiter should be per-host: %v", err)
	}
}
