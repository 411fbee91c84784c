package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stallingProxy forwards TCP to upstream until Stall, after which client
// bytes are read and discarded so commands never get a reply.
type stallingProxy struct {
	ln       net.Listener
	upstream string
	stalled  atomic.Bool
	received atomic.Int64

	mu    sync.Mutex
	conns []net.Conn
}

func newStallingProxy(t *testing.T, upstream string) *stallingProxy {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &stallingProxy{ln: ln, upstream: upstream}
	go p.serve()
	t.Cleanup(p.close)
	return p
}

func (p *stallingProxy) Addr() string { return p.ln.Addr().String() }

func (p *stallingProxy) Stall() { p.stalled.Store(true) }

// Received is the number of bytes clients have sent through the proxy.
func (p *stallingProxy) Received() int64 { return p.received.Load() }

func (p *stallingProxy) serve() {
	for {
		client, err := p.ln.Accept()
		if err != nil {
			return
		}
		server, err := net.Dial("tcp", p.upstream)
		if err != nil {
			_ = client.Close()
			continue
		}
		p.mu.Lock()
		p.conns = append(p.conns, client, server)
		p.mu.Unlock()

		go func() { _, _ = io.Copy(client, server) }()
		go p.forward(client, server)
	}
}

func (p *stallingProxy) forward(client, server net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := client.Read(buf)
		if n > 0 {
			p.received.Add(int64(n))
			if !p.stalled.Load() {
				if _, werr := server.Write(buf[:n]); werr != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *stallingProxy) close() {
	_ = p.ln.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.conns {
		_ = c.Close()
	}
}

func TestStoreUnresponsiveRedisTimesOutAndDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	proxy := newStallingProxy(t, mr.Addr())
	rdb := redis.NewClient(&redis.Options{Addr: proxy.Addr(), MaxRetries: -1, ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewStore(rdb, Options{OperationTimeout: 100 * time.Millisecond, RecoveryInterval: time.Hour})
	ctx := context.Background()

	store.Set(ctx, "access:j1", "u1", time.Hour)
	require.True(t, store.Exists(ctx, "access:j1"))
	require.Equal(t, StateConnected, store.State())

	proxy.Stall()
	start := time.Now()
	assert.False(t, store.Exists(ctx, "access:j1"))
	assert.Equal(t, StateUnavailable, store.State())

	sent := proxy.Received()
	for i := 0; i < 5; i++ {
		assert.False(t, store.Exists(ctx, "access:j1"))
	}
	store.Set(ctx, "access:j2", "u1", time.Hour)

	assert.Less(t, time.Since(start), time.Second, "each command must be bounded by the operation timeout")
	assert.Equal(t, sent, proxy.Received(), "an unavailable store must not send commands")
	assert.EqualValues(t, 2, store.Stats().Transitions)
}

func TestStoreCallerDeadlineDoesNotTripUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	proxy := newStallingProxy(t, mr.Addr())
	rdb := redis.NewClient(&redis.Options{Addr: proxy.Addr(), MaxRetries: -1, ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewStore(rdb, Options{OperationTimeout: time.Second, RecoveryInterval: time.Hour})

	store.Set(context.Background(), "access:j1", "u1", time.Hour)
	proxy.Stall()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, store.Exists(ctx, "access:j1"))
	assert.Equal(t, StateConnected, store.State())
}

func TestIsTransportErrorCoversTimeouts(t *testing.T) {
	assert.True(t, isTransportError(context.DeadlineExceeded))
	assert.True(t, isTransportError(&net.OpError{Op: "read", Err: timeoutErr{}}))
	assert.True(t, isTransportError(io.EOF))
	assert.False(t, isTransportError(errors.New("ERR wrong number of arguments")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewStoreWarnsWithoutContextTimeouts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	plain := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = plain.Close() })
	NewStore(plain, Options{Logger: logger})
	assert.Contains(t, buf.String(), "ContextTimeoutEnabled")

	buf.Reset()
	bounded := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", ContextTimeoutEnabled: true})
	t.Cleanup(func() { _ = bounded.Close() })
	NewStore(bounded, Options{Logger: logger})
	assert.Empty(t, buf.String())
}
