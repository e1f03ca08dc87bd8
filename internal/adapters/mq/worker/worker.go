// Package worker drains the ingest queue into the event store. Each writer is
// one goroutine pulling from the shared dequeue channel; a pool fans out over
// several writers so one slow insert does not stall the whole stream.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/studylake/studylake/internal/adapters/mq/queue"
	"github.com/studylake/studylake/pkg/logger"
	"github.com/studylake/studylake/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event is what writers read off the queue.
type Event = queue.Event

// Sink persists a single event.
type Sink interface {
	Insert(ctx context.Context, e Event) error
}

// Queue defines how writers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Writer persists events from the queue until stopped.
type Writer struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWriter creates a writer with configuration options.
func NewWriter(q Queue, sink Sink, opts ...Option) *Writer {
	w := &Writer{
		queue:    q,
		sink:     sink,
		name:     "writer",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "writer" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the writer loop.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := w.persist(ctx, e); err != nil {
				w.logger.Error(ctx, "error persisting event", logger.Error(err))
			}
		}
	}
}

func (w *Writer) persist(ctx context.Context, e Event) error {
	if err := w.sink.Insert(ctx, e); err != nil {
		metrics.RecordIngestError()
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	metrics.RecordEventIngested()
	return nil
}

// Shutdown stops the writer and waits for it to finish.
func (w *Writer) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages a set of writers over one queue.
type Pool struct {
	writers []*Writer
	queue   Queue

	logger logger.Logger
}

// NewPool creates writerCount writers; a non-positive count defaults to the
// CPU count.
func NewPool(writerCount int, q Queue, sink Sink) *Pool {
	if writerCount < 1 {
		writerCount = runtime.NumCPU()
	}

	p := &Pool{
		writers: make([]*Writer, writerCount),
		queue:   q,
		logger:  logger.Get().Named("writer-pool"),
	}
	for i := 0; i < writerCount; i++ {
		p.writers[i] = NewWriter(q, sink, WithName("writer-"+strconv.Itoa(i)))
	}
	return p
}

// Start launches every writer.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.writers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, then waits for writers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.writers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "writer shutdown timed out", logger.Int("writer_id", i))
		}
	}
	return nil
}
