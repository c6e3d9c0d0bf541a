package bridge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Sampler decides whether a new trace is recorded. It runs once per
// trace, at root span start or when a remote caller sent no decision of
// its own; children inherit the decision and never re-sample.
type Sampler func(traceID string) bool

// AlwaysSample records every trace.
func AlwaysSample(string) bool { return true }

// NeverSample records nothing.
func NeverSample(string) bool { return false }

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock injects a clock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(b *Bridge) { b.clock = clock }
}

// WithSampler sets the process-wide sampling policy.
// Default is AlwaysSample.
func WithSampler(sampler Sampler) Option {
	return func(b *Bridge) {
		if sampler != nil {
			b.sampler = sampler
		}
	}
}

// WithReporter sets the reporter that receives finished spans.
// Default is a NoopReporter.
func WithReporter(r Reporter) Option {
	return func(b *Bridge) {
		if r != nil {
			b.reporter = r
		}
	}
}

// WithSharedSpans enables the OpenZipkin RPC mode where the server side
// of a call reuses the caller's span id instead of allocating its own.
// The span boundary is then logical, not id-based. Off by default; only
// enable it when the collecting backend expects shared spans.
func WithSharedSpans(shared bool) Option {
	return func(b *Bridge) { b.sharedSpans = shared }
}

// Bridge manages span lifecycle, id allocation, and sampling. After New
// returns, its configuration is read-only: concurrent requests share
// nothing mutable through the bridge except the reporter hand-off.
//
// Safe for concurrent use by multiple goroutines.
type Bridge struct {
	reporter    Reporter
	sampler     Sampler
	clock       clockz.Clock
	traceIDPool *IDPool
	spanIDPool  *IDPool
	idPoolOnce  sync.Once
	closeOnce   sync.Once
	sharedSpans bool
}

// New creates a bridge with the given options.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		reporter: NoopReporter{},
		sampler:  AlwaysSample,
		clock:    clockz.RealClock,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ensureIDPools initializes id pools if not already created.
func (b *Bridge) ensureIDPools() {
	b.idPoolOnce.Do(func() {
		// Pool size based on number of CPUs for contention balance.
		poolSize := runtime.NumCPU() * 100

		b.traceIDPool = NewIDPool(poolSize, func() string {
			return randomHexID(16, b.clock, time.RFC3339Nano)
		})
		b.spanIDPool = NewIDPool(poolSize, func() string {
			return randomHexID(8, b.clock, "15:04:05.000000")
		})
	})
}

// StartSpan creates a new span and returns it wrapped in an ActiveSpan.
//
// Parenting resolves in order: an in-process span already in ctx, then a
// remote SpanContext stored via ContextWithRemote, then a fresh root with
// a newly allocated trace id. Children inherit the parent's trace id and
// sampling decision. In shared-span mode the first span under a remote
// parent reuses the remote span id instead of allocating one.
func (b *Bridge) StartSpan(ctx context.Context, operation string) (context.Context, *ActiveSpan) {
	// Handle nil context by creating a new one.
	if ctx == nil {
		ctx = context.Background()
	}

	span := &Span{
		Name:      operation,
		StartTime: b.clock.Now(),
	}

	switch {
	case GetSpan(ctx) != nil:
		parent := GetSpan(ctx)
		span.Context = parent.Context.NewChild(b.generateSpanID())

	case hasRemote(ctx):
		remote, _ := RemoteFromContext(ctx)
		if remote.SampledUnknown {
			remote.Sampled = b.sampler(remote.TraceID)
			remote.SampledUnknown = false
		}
		if b.sharedSpans {
			// Server half of the caller's RPC span: same id, same
			// parent link, logical boundary only.
			span.Context = remote
		} else {
			span.Context = remote.NewChild(b.generateSpanID())
		}

	default:
		traceID := b.generateTraceID()
		span.Context = SpanContext{
			TraceID: traceID,
			SpanID:  b.generateSpanID(),
			Sampled: b.sampler(traceID),
		}
	}

	activeSpan := &ActiveSpan{
		span:   span,
		bridge: b,
	}

	// Bundle bridge and span in a single context value.
	bundle := &contextBundle{bridge: b, span: span}
	newCtx := context.WithValue(ctx, bundleKey, bundle)

	return newCtx, activeSpan
}

// reportSpan hands a finished span to the reporter. Unsampled spans are
// measured but never exported. The reporter copy is detached so the
// request's own span can be garbage collected independently.
func (b *Bridge) reportSpan(span *Span) {
	if !span.Context.Sampled {
		return
	}

	spanCopy := *span
	if span.Tags != nil {
		spanCopy.Tags = make(map[string]string, len(span.Tags))
		for k, v := range span.Tags {
			spanCopy.Tags[k] = v
		}
	}
	spanCopy.Context.Baggage = copyBaggage(span.Context.Baggage)

	b.reporter.Report(spanCopy)
}

// Close releases the id pools and closes the reporter, flushing anything
// it still buffers. Call once at process shutdown; safe to call again.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if b.traceIDPool != nil {
			b.traceIDPool.Close()
		}
		if b.spanIDPool != nil {
			b.spanIDPool.Close()
		}
		b.reporter.Close()
	})
}

// generateTraceID allocates a fresh 128-bit trace id.
func (b *Bridge) generateTraceID() string {
	b.ensureIDPools()
	return b.traceIDPool.Get()
}

// generateSpanID allocates a fresh 64-bit span id.
func (b *Bridge) generateSpanID() string {
	b.ensureIDPools()
	return b.spanIDPool.Get()
}

func hasRemote(ctx context.Context) bool {
	_, ok := RemoteFromContext(ctx)
	return ok
}

// randomHexID returns n random bytes hex encoded, falling back to a
// time-derived id if crypto/rand fails.
func randomHexID(n int, clock clockz.Clock, fallbackLayout string) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(clock.Now().Format(fallbackLayout)))
	}
	return hex.EncodeToString(bytes)
}
