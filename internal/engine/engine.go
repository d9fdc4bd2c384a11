// Package engine wires the cache, upstream pool, dial limiter, work
// queue, and admission gate into the proxy's request-handling state
// machine: accept → admit → enqueue → parse → cache-lookup → (serve
// or fetch-and-admit). It is the Go rendering of the reference
// proxy's main()/accept loop/worker_thread trio, generalized into an
// Engine value instead of process-wide globals.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/qaradev/cacheproxy/internal/cache"
	"github.com/qaradev/cacheproxy/internal/config"
	"github.com/qaradev/cacheproxy/internal/gate"
	"github.com/qaradev/cacheproxy/internal/httpparse"
	"github.com/qaradev/cacheproxy/internal/logging"
	"github.com/qaradev/cacheproxy/internal/metrics"
	"github.com/qaradev/cacheproxy/internal/queue"
	"github.com/qaradev/cacheproxy/internal/stats"
	"github.com/qaradev/cacheproxy/internal/upstream"
)

// Engine holds every owned value the proxy needs to run: no
// process-wide globals, so multiple Engines could run side by side in
// the same process (tests do exactly that).
type Engine struct {
	cfg *config.Config
	log *logging.Logger
	m   *metrics.Metrics

	cache   *cache.Cache
	pool    *upstream.Pool
	limiter *upstream.DialLimiter
	queue   *queue.Queue
	gate    *gate.Gate
	stats   *stats.Stats

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
	done     chan struct{}

	upstreamInUse atomic.Int64 // upstream connections currently held by workers
}

// New constructs an Engine from cfg, ready to ListenAndServe.
func New(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		log:     log,
		m:       m,
		cache:   cache.New(cfg.Cache.MaxSizeBytes, cfg.Cache.MaxElementSizeBytes),
		pool:    upstream.NewPool(cfg.Upstream.PoolCapacity, cfg.Upstream.IdleTimeout),
		limiter: upstream.NewDialLimiter(cfg.Upstream.PerHostBurst, cfg.Upstream.PerHostRefillPerSecond),
		queue:   queue.New(cfg.Server.QueueSize),
		gate:    gate.New(cfg.Server.MaxClients),
		stats:   stats.New(),
		done:    make(chan struct{}),
	}
}

// ListenAndServe binds the configured port, starts the fixed worker
// pool and the periodic statistics/sweep tick, then runs the accept
// loop until Shutdown is called. It returns nil on a clean shutdown.
func (e *Engine) ListenAndServe() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", e.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("engine: listen: %w", err)
	}
	e.listener = ln
	e.running.Store(true)

	for i := 0; i < e.cfg.Server.WorkerPoolSize; i++ {
		e.wg.Add(1)
		go e.runWorker()
	}

	e.wg.Add(1)
	go e.runStatsTicker()

	return e.acceptLoop()
}

// acceptLoop accepts, admits, and enqueues. It uses a short
// per-iteration read deadline instead of a dedicated timer goroutine
// so the loop can periodically notice a shutdown request, mirroring
// the reference implementation's 1-second select() timeout.
func (e *Engine) acceptLoop() error {
	tcpLn, ok := e.listener.(*net.TCPListener)

	for e.running.Load() {
		if ok {
			tcpLn.SetDeadline(time.Now().Add(e.cfg.Server.AcceptPollTimeout))
		}

		conn, err := e.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !e.running.Load() {
				return nil
			}
			e.log.Warn(context.Background(), "accept failed", slog.String("error", err.Error()))
			continue
		}

		if !e.gate.TryEnter() {
			writeErrorMessage(conn, 503)
			conn.Close()
			e.m.RecordRequest("503", 0)
			continue
		}

		e.m.IncrementConnections()
		if err := e.queue.Push(conn); err != nil {
			// Queue closed underneath us during shutdown.
			e.gate.Leave()
			e.m.DecrementConnections()
			conn.Close()
		}
	}
	return nil
}

// Shutdown flips the running flag, closes the listener and queue to
// wake the accept loop and any blocked workers, and waits (bounded by
// ctx) for in-flight work to drain.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.running.Store(false)
	close(e.done)
	if e.listener != nil {
		e.listener.Close()
	}
	e.queue.Close()

	waited := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runStatsTicker periodically logs counters, sweeps stale upstream
// pool connections, and refreshes gauge-style metrics — the
// goroutine rendering of the reference implementation's 60-second
// print_stats() call inside the accept loop.
func (e *Engine) runStatsTicker() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Server.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.reportStats()
		case <-e.done:
			e.reportStats()
			return
		}
	}
}

func (e *Engine) reportStats() {
	snap := e.stats.Snapshot()
	sizeBytes, entries := e.cache.Size()

	e.log.Info(context.Background(), "proxy statistics",
		slog.Int64("total_requests", snap.TotalRequests),
		slog.Int64("cache_hits", snap.CacheHits),
		slog.Int64("cache_misses", snap.CacheMisses),
		slog.Float64("hit_ratio", snap.HitRatio()),
		slog.Int64("bytes_served", snap.BytesServed),
		slog.Float64("avg_response_ms", snap.AvgResponseMs),
		slog.Int64("cache_size_bytes", sizeBytes),
		slog.Int("cache_entries", entries),
	)

	e.m.SetQueueDepth(e.queue.Depth())
	e.m.SetCacheOccupancy(sizeBytes, entries)
	e.m.SetUpstreamPoolOccupancy(e.pool.Occupancy(), int(e.upstreamInUse.Load()))

	reaped := e.pool.Sweep()
	if reaped > 0 {
		e.log.Debug(context.Background(), "swept stale upstream connections", slog.Int("count", reaped))
	}
}

// Stats exposes the engine's running counters for the admin surface.
func (e *Engine) Stats() stats.Snapshot {
	return e.stats.Snapshot()
}

// CacheSize exposes the cache's current occupancy for the admin
// surface.
func (e *Engine) CacheSize() (sizeBytes int64, entries int) {
	return e.cache.Size()
}

// Running reports whether the engine's accept loop is still active,
// for the /healthz admin endpoint.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// runWorker is the fixed-pool consume/process loop: pop one accepted
// connection at a time, handle it fully, then loop. Exits once the
// queue is closed and drained.
func (e *Engine) runWorker() {
	defer e.wg.Done()

	for {
		conn, ok := e.queue.Pop()
		if !ok {
			return
		}
		e.m.SetQueueDepth(e.queue.Depth())
		e.handleConnection(conn)
	}
}

// errRequestTooLarge reports a request that filled the read buffer
// without a header terminator.
var errRequestTooLarge = errors.New("engine: request exceeded max bytes without a terminator")

// handleConnection is the per-socket state machine: read the
// request, look it up in the cache, and either serve the cached
// bytes or fetch-and-admit from upstream.
func (e *Engine) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		e.gate.Leave()
		e.m.DecrementConnections()
	}()

	start := time.Now()
	ctx, span := e.log.StartSpan(context.Background(), "proxy.handle",
		attribute.String("net.peer.addr", conn.RemoteAddr().String()),
	)
	defer span.End()

	raw, err := readRequest(conn, e.cfg.Server.MaxRequestBytes)
	if err != nil {
		// A full buffer without a header terminator is a malformed
		// request. Otherwise the client closed or failed before
		// completing a request; nothing sane to respond with.
		if errors.Is(err, errRequestTooLarge) {
			e.respondError(ctx, conn, 400, start, "", "", err)
		}
		return
	}
	key := string(raw)

	if entry, ok := e.cache.Lookup(key); ok {
		e.serveFromCache(ctx, conn, entry, start)
		return
	}

	req, parseErr := httpparse.Parse(raw)
	if parseErr != nil {
		e.respondError(ctx, conn, 400, start, "", "", parseErr)
		return
	}
	if req.Method != "GET" || req.Host == "" || req.Path == "" {
		e.respondError(ctx, conn, 501, start, req.Method, req.Host, nil)
		return
	}
	if req.Version != "HTTP/1.0" && req.Version != "HTTP/1.1" {
		e.respondError(ctx, conn, 505, start, req.Method, req.Host, nil)
		return
	}

	e.handleMiss(ctx, conn, req, key, start)
}

// readRequest reads from conn until the header block is terminated
// by "\r\n\r\n" (or "\n\n"), the buffer fills to maxBytes, or the
// connection errors. A full buffer without a terminator is reported
// as errRequestTooLarge rather than left to block forever.
func readRequest(conn net.Conn, maxBytes int) ([]byte, error) {
	buf := make([]byte, 0, maxBytes)
	chunk := make([]byte, 4096)

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, []byte("\r\n\r\n")) || bytes.Contains(buf, []byte("\n\n")) {
				return buf, nil
			}
			if len(buf) >= maxBytes {
				return nil, errRequestTooLarge
			}
		}
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
	}
}

func (e *Engine) serveFromCache(ctx context.Context, conn net.Conn, entry *cache.Entry, start time.Time) {
	sent, err := writeInChunks(conn, entry.Payload, e.cfg.Server.MaxRequestBytes)

	duration := time.Since(start)
	e.stats.RecordRequest(true, sent, float64(duration.Milliseconds()))
	e.m.RecordRequest("hit", duration)
	e.log.LogConnection(ctx, logging.ConnectionEvent{
		RemoteAddr: conn.RemoteAddr().String(),
		Status:     200,
		CacheHit:   true,
		BytesSent:  sent,
		Duration:   duration,
		Err:        err,
	})
}

func (e *Engine) respondError(ctx context.Context, conn net.Conn, status int, start time.Time, method, host string, cause error) {
	err := writeErrorMessage(conn, status)
	duration := time.Since(start)

	e.m.RecordRequest(fmt.Sprintf("%d", status), duration)
	e.log.LogConnection(ctx, logging.ConnectionEvent{
		RemoteAddr: conn.RemoteAddr().String(),
		Method:     method,
		Host:       host,
		Status:     status,
		Duration:   duration,
		Err:        errOrCause(err, cause),
	})
}

func errOrCause(writeErr, cause error) error {
	if cause != nil {
		return cause
	}
	return writeErr
}

// handleMiss acquires an upstream connection (pool or fresh dial,
// dial attempts gated by the per-host limiter), forwards the
// rewritten request, and streams the response to the client while
// simultaneously accumulating it for cache admission.
func (e *Engine) handleMiss(ctx context.Context, conn net.Conn, req *httpparse.Request, key string, start time.Time) {
	host := req.Host
	port := req.PortOrDefault()

	upstreamConn, pooled := e.pool.Acquire(host, port)
	if !pooled {
		dialCtx, cancel := context.WithTimeout(ctx, e.cfg.Upstream.ConnectTimeout)
		waitErr := e.limiter.Wait(dialCtx, host)
		if waitErr != nil {
			cancel()
			e.respondError(ctx, conn, 500, start, req.Method, host, waitErr)
			return
		}
		var dialErr error
		upstreamConn, dialErr = net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), e.cfg.Upstream.ConnectTimeout)
		cancel()
		if dialErr != nil {
			e.respondError(ctx, conn, 500, start, req.Method, host, dialErr)
			return
		}
	}
	e.upstreamInUse.Add(1)
	defer e.upstreamInUse.Add(-1)

	upstreamReq := buildUpstreamRequest(req, e.cfg.Server.MaxRequestBytes)
	if _, err := upstreamConn.Write(upstreamReq); err != nil {
		upstreamConn.Close()
		e.respondError(ctx, conn, 500, start, req.Method, host, err)
		return
	}

	sent, cacheable, forwardErr := e.streamResponse(conn, upstreamConn)

	if forwardErr != nil && sent == 0 {
		e.respondError(ctx, conn, 500, start, req.Method, host, forwardErr)
		upstreamConn.Close()
		return
	}

	if cacheable != nil {
		e.cache.Admit(key, cacheable)
	}
	e.pool.Release(upstreamConn, host, port)

	duration := time.Since(start)
	e.stats.RecordRequest(false, sent, float64(duration.Milliseconds()))
	e.m.RecordRequest("miss", duration)
	e.log.LogConnection(ctx, logging.ConnectionEvent{
		RemoteAddr: conn.RemoteAddr().String(),
		Method:     req.Method,
		Host:       host,
		Path:       req.Path,
		Status:     200,
		CacheHit:   false,
		BytesSent:  sent,
		Duration:   duration,
		Err:        forwardErr,
	})
}

// streamResponse forwards upstreamConn's bytes to conn in MAX_BYTES
// chunks, one chunk at a time, while mirroring them into an admission
// buffer capped at the cache's per-element limit. It returns the
// total bytes forwarded, the buffer to admit (nil if nothing should
// be cached — zero bytes arrived, the response outgrew the cache's
// per-element limit, or a write to the client failed), and an error
// only when a client write fails or the upstream read fails before
// any byte was forwarded; an upstream read error after that ends the
// stream like EOF.
func (e *Engine) streamResponse(client, upstream net.Conn) (sent int64, cacheable []byte, err error) {
	maxElem := e.cache.MaxElementSize()
	var admission bytes.Buffer
	tooLarge := false

	chunk := make([]byte, 8192)
	for {
		n, readErr := upstream.Read(chunk)
		if n > 0 {
			if _, writeErr := client.Write(chunk[:n]); writeErr != nil {
				return sent, nil, writeErr
			}
			sent += int64(n)

			if !tooLarge {
				if int64(admission.Len()+n) > maxElem {
					tooLarge = true
					admission.Reset()
				} else {
					admission.Write(chunk[:n])
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if sent == 0 {
				return 0, nil, readErr
			}
			break
		}
	}

	if sent == 0 || tooLarge {
		return sent, nil, nil
	}
	return sent, admission.Bytes(), nil
}

// writeInChunks writes payload to conn in chunkSize pieces, stopping
// at the first short write or error.
func writeInChunks(conn net.Conn, payload []byte, chunkSize int) (int64, error) {
	var sent int64
	for offset := 0; offset < len(payload); offset += chunkSize {
		end := offset + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		n, err := conn.Write(payload[offset:end])
		sent += int64(n)
		if err != nil {
			return sent, err
		}
		if n < end-offset {
			return sent, io.ErrShortWrite
		}
	}
	return sent, nil
}

// buildUpstreamRequest renders the rewritten request line, the fixed
// Host/Connection/User-Agent headers, and the original headers
// serialized back out.
func buildUpstreamRequest(req *httpparse.Request, maxBytes int) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "GET %s %s\r\n", req.Path, req.Version)
	fmt.Fprintf(&b, "Host: %s\r\n", req.Host)
	b.WriteString("Connection: keep-alive\r\n")
	b.WriteString("User-Agent: HighPerformanceProxy/2.0\r\n")

	if headers, err := req.WriteHeaders(maxBytes); err == nil {
		b.Write(headers)
	} else {
		b.WriteString("\r\n")
	}

	return b.Bytes()
}
