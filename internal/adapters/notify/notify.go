// Package notify delivers user-facing notifications asynchronously through
// the notification queue and worker pool.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/okian/plushub/internal/adapters/mq/queue"
	"github.com/okian/plushub/internal/adapters/mq/worker"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/pkg/logger"
)

// Dispatcher queues notifications for delivery to a sink.
type Dispatcher struct {
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	started bool
	mu      sync.Mutex
}

// Option configures a Dispatcher.
type Option func(*dispatcherConfig)

type dispatcherConfig struct {
	capacity int
	workers  int
}

// WithCapacity bounds the number of undelivered notifications.
func WithCapacity(n int) Option {
	return func(c *dispatcherConfig) { c.capacity = n }
}

// WithWorkers sets the number of delivery workers.
func WithWorkers(n int) Option {
	return func(c *dispatcherConfig) { c.workers = n }
}

// NewDispatcher creates a Dispatcher delivering to sink.
func NewDispatcher(sink worker.Sink, opts ...Option) *Dispatcher {
	cfg := dispatcherConfig{capacity: 1024, workers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.capacity))
	return &Dispatcher{
		queue: q,
		pool:  worker.NewPool(cfg.workers, q, sink),
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.pool.Start(ctx)
}

// Notify queues n for delivery.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) error {
	if err := d.queue.Enqueue(ctx, n); err != nil {
		return fmt.Errorf("notify %s: %w", n.Source, err)
	}
	return nil
}

// Close stops accepting notifications and waits until queued ones are
// delivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	if !started {
		return d.queue.Close()
	}
	return d.pool.Shutdown(ctx)
}

// Pending returns the number of undelivered notifications.
func (d *Dispatcher) Pending() int { return d.queue.Len() }

// LogSink writes notifications to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

// Deliver implements worker.Sink.
func (s *LogSink) Deliver(ctx context.Context, n model.Notification) error {
	fields := []logger.Field{
		logger.String("id", n.ID.String()),
		logger.String("kind", string(n.Kind)),
		logger.String("source", n.Source),
	}
	if n.UserID.Valid() {
		fields = append(fields, logger.Int64("user_id", int64(n.UserID)))
	}
	if n.Kind == model.NotificationError {
		s.log.Warn(ctx, n.Message, fields...)
		return nil
	}
	s.log.Info(ctx, n.Message, fields...)
	return nil
}

// WriterSink prints one line per notification, e.g. "[success] Vouched".
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Deliver implements worker.Sink.
func (s *WriterSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[%s] %s\n", n.Kind, n.Message)
	return err
}

// MultiSink delivers to every sink and returns the first error.
type MultiSink []worker.Sink

// Deliver implements worker.Sink.
func (m MultiSink) Deliver(ctx context.Context, n model.Notification) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
