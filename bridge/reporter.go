package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Reporter receives finished spans for export to a tracing backend.
//
// Report must never block the caller on network I/O and must never fail
// the request that produced the span: export is best-effort telemetry.
// Close flushes anything still buffered and releases resources.
type Reporter interface {
	Report(span Span)
	Close()
}

// NoopReporter discards every span. It is the default reporter.
type NoopReporter struct{}

func (NoopReporter) Report(Span) {}
func (NoopReporter) Close()      {}

// LogReporter writes each finished span to a zap logger. Useful as a
// stand-in backend during development.
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter that logs spans at info level.
func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(span Span) {
	r.logger.Info("span finished",
		zap.String("trace_id", span.Context.TraceID),
		zap.String("span_id", span.Context.SpanID),
		zap.String("parent_id", span.Context.ParentID),
		zap.String("name", span.Name),
		zap.Duration("duration", span.Duration),
	)
}

func (r *LogReporter) Close() {}

// Sender delivers a batch of spans to a tracing backend. Errors are
// logged and the batch is dropped; they never propagate to request
// handling.
type Sender func(batch []Span) error

// BufferedReporter buffers finished spans and flushes them to a Sender
// on a timer. Hand-off is fire-and-forget: when the buffer channel is
// full the span is dropped and counted rather than blocking the caller.
//
// Safe for concurrent use by multiple goroutines.
type BufferedReporter struct {
	sender       Sender
	logger       *zap.Logger
	spansCh      chan Span
	stopCh       chan struct{}
	done         chan struct{}
	interval     time.Duration
	batch        []Span
	droppedCount atomic.Int64
	mu           sync.Mutex
	closed       atomic.Bool
}

// NewBufferedReporter creates a reporter flushing to sender every
// interval, buffering up to bufferSize spans between flushes.
func NewBufferedReporter(sender Sender, logger *zap.Logger, interval time.Duration, bufferSize int) *BufferedReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	r := &BufferedReporter{
		sender:   sender,
		logger:   logger,
		spansCh:  make(chan Span, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		interval: interval,
		batch:    make([]Span, 0, 8),
	}
	go r.run()
	return r
}

// Report queues a span for export. Drops and counts when the buffer is
// full or the reporter is closed.
func (r *BufferedReporter) Report(span Span) {
	if r.closed.Load() {
		r.droppedCount.Add(1)
		return
	}
	select {
	case r.spansCh <- span:
	default:
		// Buffer full - drop rather than block the request path.
		r.droppedCount.Add(1)
	}
}

// run is the reporter's main loop: buffer inbound spans, flush on the
// ticker, drain and flush once more on shutdown.
func (r *BufferedReporter) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case span := <-r.spansCh:
			r.buffer(span)
		case <-ticker.C:
			r.flush()
		case <-r.stopCh:
			for {
				select {
				case span := <-r.spansCh:
					r.buffer(span)
				default:
					r.flush()
					return
				}
			}
		}
	}
}

func (r *BufferedReporter) buffer(span Span) {
	r.mu.Lock()
	r.batch = append(r.batch, span)
	r.mu.Unlock()
}

// flush sends the current batch. A failing sender loses the batch: spans
// are telemetry, not a correctness dependency, so the error is logged
// and swallowed.
func (r *BufferedReporter) flush() {
	r.mu.Lock()
	if len(r.batch) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.batch
	r.batch = make([]Span, 0, 8)
	r.mu.Unlock()

	if err := r.sender(batch); err != nil {
		r.droppedCount.Add(int64(len(batch)))
		r.logger.Warn("span export failed",
			zap.Int("spans", len(batch)),
			zap.Error(err),
		)
	}
}

// DroppedCount returns the total number of spans lost to backpressure or
// failed exports.
func (r *BufferedReporter) DroppedCount() int64 {
	return r.droppedCount.Load()
}

// Close drains the buffer, flushes a final batch, and stops the loop.
// Safe to call more than once.
func (r *BufferedReporter) Close() {
	if r.closed.Swap(true) {
		return
	}
	close(r.stopCh)
	select {
	case <-r.done:
	case <-time.After(500 * time.Millisecond):
		r.logger.Warn("reporter shutdown timed out")
	}
}
