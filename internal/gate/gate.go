// Package gate implements the proxy's client admission control: a
// hard cap on concurrently-served connections. It renders the
// reference proxy's connection_limit_mutex/connection_available
// condition variable as an atomic counter and keeps the reference's
// hard-reject behavior: callers get an immediate reject response
// instead of a wait, so TryEnter is non-blocking.
package gate

import "sync/atomic"

// Gate bounds the number of connections admitted at once.
type Gate struct {
	limit   int64
	current int64
}

// New constructs a gate that admits at most limit concurrent
// connections.
func New(limit int) *Gate {
	return &Gate{limit: int64(limit)}
}

// TryEnter attempts to admit one more connection, returning false
// without side effects if the gate is already at its limit. A
// successful TryEnter must be matched by exactly one Leave.
func (g *Gate) TryEnter() bool {
	for {
		cur := atomic.LoadInt64(&g.current)
		if cur >= g.limit {
			return false
		}
		if atomic.CompareAndSwapInt64(&g.current, cur, cur+1) {
			return true
		}
	}
}

// Leave releases one previously admitted connection slot.
func (g *Gate) Leave() {
	atomic.AddInt64(&g.current, -1)
}

// InUse returns the number of connections currently admitted, for
// metrics exposition.
func (g *Gate) InUse() int {
	return int(atomic.LoadInt64(&g.current))
}

// Limit returns the gate's configured admission ceiling.
func (g *Gate) Limit() int {
	return int(g.limit)
}
