package queue

import (
	"net"
	"testing"
	"time"
)

func TestPushPopFIFOOrder(t *testing.T) {
	q := New(4)
	a, _ := net.Pipe()
	b, _ := net.Pipe()
	defer a.Close()
	defer b.Close()

	if err := q.Push(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Push(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, ok := q.Pop()
	if !ok || first != a {
		t.Fatal("expected first pop to return the first-pushed connection")
	}
	second, ok := q.Pop()
	if !ok || second != b {
		t.Fatal("expected second pop to return the second-pushed connection")
	}
}

func TestPushBlocksWhenFull(t *testing.T) {
	q := New(1)
	a, _ := net.Pipe()
	b, _ := net.Pipe()
	defer a.Close()
	defer b.Close()

	if err := q.Push(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(b) }()

	select {
	case <-pushed:
		t.Fatal("expected push to block while queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	q.Pop()
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected blocked push to complete after a pop freed capacity")
	}
}

func TestCloseWakesBlockedPop(t *testing.T) {
	q := New(1)

	popped := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		popped <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-popped:
		if ok {
			t.Fatal("expected pop on a closed, empty queue to return ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("expected close to wake the blocked pop")
	}
}

func TestPushAfterCloseReturnsErrClosed(t *testing.T) {
	q := New(1)
	q.Close()

	conn, _ := net.Pipe()
	defer conn.Close()

	if err := q.Push(conn); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDepthAndCapacity(t *testing.T) {
	q := New(3)
	if q.Capacity() != 3 {
		t.Fatalf("expected capacity 3, got %d", q.Capacity())
	}
	a, _ := net.Pipe()
	defer a.Close()
	q.Push(a)
	if q.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", q.Depth())
	}
}
