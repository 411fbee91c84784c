package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOperationTimeout  = 250 * time.Millisecond
	defaultConnectTimeout    = time.Second
	defaultConnectRetryDelay = 200 * time.Millisecond
	defaultRecoveryInterval  = 30 * time.Second
)

// Options tunes timeouts and the reconnect policy. Zero fields take the
// package defaults.
type Options struct {
	OperationTimeout  time.Duration
	ConnectTimeout    time.Duration
	ConnectRetryDelay time.Duration
	RecoveryInterval  time.Duration
	Logger            *slog.Logger
}

// Stats counts operations answered in degraded mode.
type Stats struct {
	DegradedReads  uint64
	DegradedWrites uint64
	Transitions    uint64
}

// Store is the Redis-backed session allowlist.
//
// Store never returns transport errors. When Redis cannot be reached,
// writes become no-ops and reads report absence, so authentication fails
// closed while session bookkeeping degrades silently.
type Store struct {
	redis   redis.UniversalClient
	timeout time.Duration
	conn    *connector
	logger  *slog.Logger

	degradedReads  atomic.Uint64
	degradedWrites atomic.Uint64
}

// NewStore wraps client. No connection is attempted until the first
// operation.
//
// OperationTimeout bounds socket I/O only when the client was built with
// ContextTimeoutEnabled; otherwise go-redis falls back to its ReadTimeout
// (3s by default) and NewStore logs a warning.
func NewStore(client redis.UniversalClient, opts Options) *Store {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = defaultOperationTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.ConnectRetryDelay <= 0 {
		opts.ConnectRetryDelay = defaultConnectRetryDelay
	}
	if opts.RecoveryInterval <= 0 {
		opts.RecoveryInterval = defaultRecoveryInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session_store")
	if enabled, known := contextTimeouts(client); known && !enabled {
		logger.Warn("redis client ignores context deadlines; set ContextTimeoutEnabled so the operation timeout applies",
			"operation_timeout", opts.OperationTimeout)
	}

	return &Store{
		redis:   client,
		timeout: opts.OperationTimeout,
		logger:  logger,
		conn: &connector{
			ping:       func(ctx context.Context) error { return client.Ping(ctx).Err() },
			timeout:    opts.ConnectTimeout,
			retryDelay: opts.ConnectRetryDelay,
			recovery:   opts.RecoveryInterval,
			now:        time.Now,
			logger:     logger,
		},
	}
}

// State reports the current connection state.
func (s *Store) State() State {
	return s.conn.current()
}

// Ping contacts Redis immediately, bypassing the recovery interval, and
// updates State with the outcome.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.recheck(ctx)
}

// Stats returns degraded-mode counters.
func (s *Store) Stats() Stats {
	return Stats{
		DegradedReads:  s.degradedReads.Load(),
		DegradedWrites: s.degradedWrites.Load(),
		Transitions:    s.conn.transitions.Load(),
	}
}

// Set stores value under key with ttl.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) {
	s.write(ctx, "set", func(ctx context.Context) error {
		return s.redis.Set(ctx, key, value, ttl).Err()
	})
}

// Del removes key. Removing a missing key is a no-op.
func (s *Store) Del(ctx context.Context, key string) {
	s.write(ctx, "del", func(ctx context.Context) error {
		return s.redis.Del(ctx, key).Err()
	})
}

// DelMany removes keys with independent DEL commands sent in one pipeline.
// Keys may live in different cluster slots.
func (s *Store) DelMany(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.write(ctx, "del_many", func(ctx context.Context) error {
		_, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, k := range keys {
				p.Del(ctx, k)
			}
			return nil
		})
		return err
	})
}

// AddToSet adds member to the set at setKey.
func (s *Store) AddToSet(ctx context.Context, setKey, member string) {
	s.write(ctx, "sadd", func(ctx context.Context) error {
		return s.redis.SAdd(ctx, setKey, member).Err()
	})
}

// RemoveFromSet removes member from the set at setKey.
func (s *Store) RemoveFromSet(ctx context.Context, setKey, member string) {
	s.write(ctx, "srem", func(ctx context.Context) error {
		return s.redis.SRem(ctx, setKey, member).Err()
	})
}

// Get returns the value at key and whether it was found.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	var val string
	ok := s.read(ctx, "get", func(ctx context.Context) error {
		v, err := s.redis.Get(ctx, key).Result()
		val = v
		return err
	})
	if !ok {
		return "", false
	}
	return val, true
}

// Exists reports whether key is present. Timeouts and outages read as
// absent.
func (s *Store) Exists(ctx context.Context, key string) bool {
	var n int64
	ok := s.read(ctx, "exists", func(ctx context.Context) error {
		v, err := s.redis.Exists(ctx, key).Result()
		n = v
		return err
	})
	return ok && n == 1
}

// Consume deletes key and reports whether this call removed it. Of several
// concurrent callers at most one observes true.
func (s *Store) Consume(ctx context.Context, key string) bool {
	var n int64
	ok := s.read(ctx, "consume", func(ctx context.Context) error {
		v, err := s.redis.Del(ctx, key).Result()
		n = v
		return err
	})
	return ok && n == 1
}

// MembersOf returns the members of the set at setKey, or nil when the set
// is missing or the store is unavailable.
func (s *Store) MembersOf(ctx context.Context, setKey string) []string {
	var members []string
	ok := s.read(ctx, "smembers", func(ctx context.Context) error {
		v, err := s.redis.SMembers(ctx, setKey).Result()
		members = v
		return err
	})
	if !ok {
		return nil
	}
	return members
}

func (s *Store) write(ctx context.Context, op string, fn func(context.Context) error) {
	if !s.conn.ready(ctx) {
		s.degradedWrites.Add(1)
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(opCtx); err != nil {
		s.degradedWrites.Add(1)
		s.fail(ctx, op, err)
	}
}

func (s *Store) read(ctx context.Context, op string, fn func(context.Context) error) bool {
	if !s.conn.ready(ctx) {
		s.degradedReads.Add(1)
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := fn(opCtx)
	if err == nil {
		return true
	}
	if errors.Is(err, redis.Nil) {
		return false
	}
	s.degradedReads.Add(1)
	s.fail(ctx, op, err)
	return false
}

// fail records a command error. Transport failures and operation timeouts
// change State; server replies and caller cancellation do not.
func (s *Store) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		s.logger.Warn("session store command rejected", "op", op, "error", err)
		return
	}
	if isTransportError(err) {
		s.conn.markUnavailable(err)
		return
	}
	s.logger.Warn("session store command failed", "op", op, "error", err)
}

// isTransportError covers timeouts too: fail only sees them while the
// caller's context is live, so the deadline that fired was the store's.
func isTransportError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func contextTimeouts(client redis.UniversalClient) (enabled, known bool) {
	switch c := client.(type) {
	case *redis.Client:
		return c.Options().ContextTimeoutEnabled, true
	case *redis.ClusterClient:
		return c.Options().ContextTimeoutEnabled, true
	}
	return false, false
}
