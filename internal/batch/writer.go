// Package batch accumulates audit events in memory and flushes them to
// a repository in groups, trading write latency for fewer round trips.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/groblegark/auditstore/internal/model"
)

// ErrStopped is returned by Enqueue after the writer has shut down.
var ErrStopped = errors.New("batch writer stopped")

// EventWriter is the destination side of the writer. Any repository
// satisfies it.
type EventWriter interface {
	WriteEvents(ctx context.Context, events []*model.Event) model.Result
}

// Defaults applied when an Options field is zero.
const (
	DefaultBatchSize = 10
	DefaultTimeout   = 5 * time.Second
	DefaultQueueSize = 1000
)

// Options configures a Writer.
type Options struct {
	// BatchSize is the pending-event count that triggers a flush.
	BatchSize int
	// Timeout is how long a partial batch may sit before it is flushed
	// anyway.
	Timeout time.Duration
	// QueueSize bounds the intake channel; Enqueue blocks when full.
	QueueSize int

	Logger *slog.Logger
}

// Writer drains a bounded queue from a single goroutine, flushing to
// the destination whenever the batch fills or the timeout elapses.
type Writer struct {
	dest      EventWriter
	queue     chan *model.Event
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a Writer; call Start before enqueueing.
func New(dest EventWriter, opts Options) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Writer{
		dest:      dest,
		queue:     make(chan *model.Event, opts.QueueSize),
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Enqueue hands an event to the writer, blocking while the queue is
// full. It returns early when ctx is cancelled or the writer has been
// stopped; in both cases the event is not accepted.
func (w *Writer) Enqueue(ctx context.Context, event *model.Event) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	select {
	case w.queue <- event:
		return nil
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the drain goroutine. ctx bounds the destination
// writes, not the writer's lifetime; use Stop for shutdown.
func (w *Writer) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop drains everything already queued, flushes the final partial
// batch, and waits for the drain goroutine to exit. Safe to call more
// than once.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	<-w.done
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.timeout)
	defer ticker.Stop()

	var pending []*model.Event
	for {
		select {
		case event := <-w.queue:
			pending = append(pending, event)
			if len(pending) >= w.batchSize {
				pending = w.flush(ctx, pending)
				ticker.Reset(w.timeout)
			}
		case <-ticker.C:
			if len(pending) > 0 {
				pending = w.flush(ctx, pending)
			}
		case <-w.stop:
			pending = append(pending, w.drain()...)
			if len(pending) > 0 {
				w.flush(ctx, pending)
			}
			return
		}
	}
}

// drain empties whatever is still buffered in the queue without
// blocking.
func (w *Writer) drain() []*model.Event {
	var events []*model.Event
	for {
		select {
		case event := <-w.queue:
			events = append(events, event)
		default:
			return events
		}
	}
}

// flush writes the pending batch. On failure the batch is kept so the
// next trigger retries it rather than dropping audit records.
func (w *Writer) flush(ctx context.Context, pending []*model.Event) []*model.Event {
	res := w.dest.WriteEvents(ctx, pending)
	if !res.Status {
		w.logger.Error("batch flush failed, retrying on next trigger",
			"events", len(pending), "reason", res.Message)
		return pending
	}
	w.logger.Debug("flushed batch", "events", len(pending))
	return nil
}
