package gate

import (
	"sync"
	"testing"
)

func TestTryEnterRespectsLimit(t *testing.T) {
	g := New(2)

	if !g.TryEnter() {
		t.Fatal("expected first TryEnter to succeed")
	}
	if !g.TryEnter() {
		t.Fatal("expected second TryEnter to succeed")
	}
	if g.TryEnter() {
		t.Fatal("expected third TryEnter to be rejected at the limit")
	}
}

func TestLeaveFreesASlot(t *testing.T) {
	g := New(1)

	if !g.TryEnter() {
		t.Fatal("expected TryEnter to succeed")
	}
	if g.TryEnter() {
		t.Fatal("expected second TryEnter to be rejected")
	}

	g.Leave()

	if !g.TryEnter() {
		t.Fatal("expected TryEnter to succeed after Leave freed a slot")
	}
}

func TestInUseAndLimit(t *testing.T) {
	g := New(5)
	g.TryEnter()
	g.TryEnter()

	if g.InUse() != 2 {
		t.Fatalf("expected InUse 2, got %d", g.InUse())
	}
	if g.Limit() != 5 {
		t.Fatalf("expected Limit 5, got %d", g.Limit())
	}
}

func TestConcurrentTryEnterNeverExceedsLimit(t *testing.T) {
	const limit = 100
	g := New(limit)

	var wg sync.WaitGroup
	var admitted int64
	var mu sync.Mutex

	for i := 0; i < limit*3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryEnter() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != limit {
		t.Fatalf("expected exactly %d admissions under contention, got %d", limit, admitted)
	}
}
