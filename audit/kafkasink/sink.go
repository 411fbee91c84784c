// Package kafkasink publishes sessiongate audit events to a Kafka topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrEthical07/sessiongate"
)

const (
	// DefaultWriteTimeout bounds one batch publish.
	DefaultWriteTimeout = 5 * time.Second
	// DefaultBatchSize caps the messages handed to one WriteMessages call.
	DefaultBatchSize = 100

	batchTimeout = 10 * time.Millisecond
	queueSize    = 1024
)

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink implements sessiongate.AuditSink. Emit only queues the message; a
// flusher goroutine writes whatever accumulated while the previous write
// was in flight as one batch, so a synchronous writer's batch timeout is
// paid once per batch rather than once per event. A full queue blocks Emit,
// which backs up into the engine's audit dispatcher.
type Sink struct {
	writer       MessageWriter
	writeTimeout time.Duration
	batchSize    int
	logger       *slog.Logger
	failed       atomic.Uint64

	mu      sync.RWMutex
	closed  bool
	pending chan kafka.Message
	done    chan struct{}
}

var _ sessiongate.AuditSink = (*Sink)(nil)

// New returns a sink writing to topic on brokers, or nil when either is
// empty.
func New(brokers []string, topic string, logger *slog.Logger) *Sink {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    DefaultBatchSize,
		BatchTimeout: batchTimeout,
	}
	return NewWithWriter(w, logger)
}

// NewWithWriter wraps any MessageWriter and starts the flusher.
func NewWithWriter(w MessageWriter, logger *slog.Logger) *Sink {
	if w == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		writer:       w,
		writeTimeout: DefaultWriteTimeout,
		batchSize:    DefaultBatchSize,
		logger:       logger.With("component", "kafkasink"),
		pending:      make(chan kafka.Message, queueSize),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit queues event as JSON keyed by user id. The writer hashes keys to
// partitions, so one user's events stay ordered.
func (s *Sink) Emit(ctx context.Context, event sessiongate.AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		return
	}
	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.failed.Add(1)
		return
	}
	select {
	case s.pending <- msg:
	case <-ctx.Done():
		s.failed.Add(1)
	}
}

func (s *Sink) run() {
	defer close(s.done)
	batch := make([]kafka.Message, 0, s.batchSize)
	for msg := range s.pending {
		batch = append(batch[:0], msg)
	fill:
		for len(batch) < s.batchSize {
			select {
			case next, ok := <-s.pending:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		s.flush(batch)
	}
}

func (s *Sink) flush(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	err := s.writer.WriteMessages(ctx, batch...)
	if err == nil {
		return
	}
	lost := len(batch)
	var partial kafka.WriteErrors
	if errors.As(err, &partial) {
		lost = partial.Count()
	}
	s.failed.Add(uint64(lost))
	s.logger.Warn("audit publish failed", "events", len(batch), "lost", lost, "error", err)
}

// Failed counts events that could not be published.
func (s *Sink) Failed() uint64 {
	if s == nil {
		return 0
	}
	return s.failed.Load()
}

// Close publishes everything already queued, then closes the writer. It is
// safe on a nil sink and idempotent.
func (s *Sink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.pending)
	s.mu.Unlock()
	<-s.done

	if err := s.writer.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
