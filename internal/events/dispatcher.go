package events

import (
	"context"
	"sync"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/metrics"
)

// DefaultBufferSize is the per-sink queue length.
const DefaultBufferSize = 256

// Sink receives events on its own goroutine.
type Sink interface {
	Name() string
	Handle(ctx context.Context, evt Event) error
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type worker struct {
	sink  Sink
	queue chan Event
}

// Dispatcher fans events out to sinks without ever blocking the publisher.
// Each sink has a bounded queue; when it is full the event is dropped for
// that sink only.
type Dispatcher struct {
	mu      sync.RWMutex
	workers []*worker
	started bool
	closed  bool
	buffer  int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	logger  Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a dispatcher. bufferSize <= 0 uses DefaultBufferSize.
func NewDispatcher(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{buffer: bufferSize, logger: noopLogger{}}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetMetrics attaches the drop counter.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// AddSink registers s. Sinks added after Start are started immediately.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	w := &worker{sink: s, queue: make(chan Event, d.buffer)}
	d.workers = append(d.workers, w)
	if d.started {
		d.wg.Add(1)
		go d.run(context.Background(), w)
	}
}

// Start launches one goroutine per sink. Events published before Start
// wait in the queues.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.started = true
	for _, w := range d.workers {
		d.wg.Add(1)
		go d.run(ctx, w)
	}
}

// Publish enqueues evt for every sink. It never blocks.
func (d *Dispatcher) Publish(evt Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	for _, w := range d.workers {
		select {
		case w.queue <- evt:
		default:
			d.logger.Warn("event dropped, sink queue full", "sink", w.sink.Name(), "type", evt.Type)
			d.metrics.IncDroppedEvent(w.sink.Name())
		}
	}
}

// Close stops accepting events, lets each sink drain its queue and waits
// for the workers to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) run(ctx context.Context, w *worker) {
	defer d.wg.Done()

	for evt := range w.queue {
		d.deliver(ctx, w.sink, evt)
	}
}

// deliver hands one event to a sink. A panicking sink loses that event
// and keeps its worker.
func (d *Dispatcher) deliver(ctx context.Context, s Sink, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in event sink", "sink", s.Name(), "type", evt.Type, "panic", r)
		}
	}()

	if err := s.Handle(ctx, evt); err != nil {
		d.logger.Warn("event sink failed", "sink", s.Name(), "type", evt.Type, "error", err)
	}
}
