package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the connection state of a Store.
type State int32

const (
	// StateUnknown means no connection attempt has been made yet.
	StateUnknown State = iota
	// StateConnected means the last attempt or command reached the server.
	StateConnected
	// StateUnavailable means the server could not be reached; operations
	// return degraded results without network I/O until a recovery ping succeeds.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// connector owns the lazy connect and recovery policy. The first operation
// connects with one retry. Once unavailable, a single caller per recovery
// interval may ping again; everyone else is served degraded immediately.
type connector struct {
	ping       func(ctx context.Context) error
	timeout    time.Duration
	retryDelay time.Duration
	recovery   time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu          sync.Mutex
	state       atomic.Int32
	nextProbe   atomic.Int64
	transitions atomic.Uint64
}

func (c *connector) current() State {
	return State(c.state.Load())
}

// ready reports whether commands should be sent to the server.
func (c *connector) ready(ctx context.Context) bool {
	switch c.current() {
	case StateConnected:
		return true
	case StateUnavailable:
		if c.now().UnixNano() < c.nextProbe.Load() {
			return false
		}
		if !c.mu.TryLock() {
			return false
		}
		defer c.mu.Unlock()
		if c.current() != StateUnavailable {
			return c.current() == StateConnected
		}
		if c.now().UnixNano() < c.nextProbe.Load() {
			return false
		}
		return c.attempt(ctx, 0)
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.current() != StateUnknown {
			return c.current() == StateConnected
		}
		return c.attempt(ctx, 1)
	}
}

// recheck pings regardless of state and records the outcome.
func (c *connector) recheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.pingOnce(ctx)
	if err == nil {
		c.setState(StateConnected, nil)
		return nil
	}
	if ctx.Err() == nil {
		c.setState(StateUnavailable, err)
	}
	return err
}

// attempt must be called with mu held.
func (c *connector) attempt(ctx context.Context, retries int) bool {
	var err error
	for i := 0; i <= retries; i++ {
		if i > 0 {
			t := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return false
			case <-t.C:
			}
		}
		if err = c.pingOnce(ctx); err == nil {
			c.setState(StateConnected, nil)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	c.setState(StateUnavailable, err)
	return false
}

func (c *connector) pingOnce(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ping(pingCtx)
}

// markUnavailable is called when a command fails with a transport error.
func (c *connector) markUnavailable(err error) {
	if c.state.CompareAndSwap(int32(StateConnected), int32(StateUnavailable)) {
		c.nextProbe.Store(c.now().Add(c.recovery).UnixNano())
		c.transitions.Add(1)
		c.logger.Warn("session store unavailable, serving degraded results", "error", err)
	}
}

func (c *connector) setState(next State, err error) {
	prev := State(c.state.Swap(int32(next)))
	if next == StateUnavailable {
		c.nextProbe.Store(c.now().Add(c.recovery).UnixNano())
	}
	if prev == next {
		return
	}
	c.transitions.Add(1)
	switch {
	case next == StateUnavailable:
		c.logger.Warn("session store unavailable, serving degraded results", "error", err)
	case prev == StateUnavailable:
		c.logger.Info("session store connection restored")
	default:
		c.logger.Debug("session store connected")
	}
}
