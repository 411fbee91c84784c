package sessiongate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// queuedEvent keeps the request context values (correlation id, logger)
// without its cancellation, so a finished request does not cancel delivery.
type queuedEvent struct {
	ctx   context.Context
	event AuditEvent
}

// auditDispatcher moves sink latency off the request path. With DropIfFull
// a full buffer drops and counts the event; otherwise Emit waits for room
// until ctx ends. Close stops intake and delivers everything accepted.
type auditDispatcher struct {
	dropIfFull bool
	sink       AuditSink
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEvent
	done   chan struct{}

	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &auditDispatcher{
		dropIfFull: cfg.DropIfFull,
		sink:       sink,
		logger:     logger,
		queue:      make(chan queuedEvent, max(cfg.BufferSize, 1)),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.done)
	for q := range d.queue {
		d.deliver(q)
	}
}

func (d *auditDispatcher) deliver(q queuedEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit sink panicked", "event_type", q.event.EventType, "panic", r)
		}
	}()
	d.sink.Emit(q.ctx, q.event)
}

func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	q := queuedEvent{ctx: context.WithoutCancel(ctx), event: event}
	if d.dropIfFull {
		select {
		case d.queue <- q:
		default:
			if n := d.dropped.Add(1); n == 1 || n%1000 == 0 {
				d.logger.Warn("audit buffer full, dropping events", "event_type", event.EventType, "dropped_total", n)
			}
		}
		return
	}

	select {
	case d.queue <- q:
	case <-ctx.Done():
	}
}

// Close is idempotent. Emit calls after Close are ignored.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
