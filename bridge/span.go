package bridge

import (
	"context"
	"sync"
	"time"
)

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey bundleKeyType = "bridge"
	remoteKey bundleKeyType = "bridge-remote"
)

// Span represents a single timed unit of work. A span is Started when
// created and Finished once EndTime is set; there is no third state and
// no way back.
//
// Spans are NOT thread-safe - do not modify from multiple goroutines.
// Concurrent sub-work must get its own child span, never a shared one.
type Span struct {
	Context   SpanContext       `json:"context"`
	Tags      map[string]string `json:"tags,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Name      string            `json:"name"`
}

// Finished reports whether the span has been completed.
func (s *Span) Finished() bool {
	return !s.EndTime.IsZero()
}

// ActiveSpan wraps a Span with thread-safe tag operations and lifecycle
// management. Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	span   *Span
	bridge *Bridge
	mu     sync.Mutex // Protects span fields from concurrent writes.
}

// SetTag adds a key-value pair to the span.
// No-op if the span is already finished.
func (a *ActiveSpan) SetTag(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't modify finished spans.
	if a.span.Finished() {
		return
	}

	if a.span.Tags == nil {
		a.span.Tags = make(map[string]string)
	}
	a.span.Tags[key] = value
}

// GetTag retrieves a tag value by key.
func (a *ActiveSpan) GetTag(key string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.span.Tags == nil {
		return "", false
	}
	value, ok := a.span.Tags[key]
	return value, ok
}

// Finish completes the span and hands it to the bridge's reporter. The
// hand-off never blocks on network I/O; the reporter owns buffering.
// Safe to call multiple times - subsequent calls are no-ops and leave the
// first call's end time in place.
func (a *ActiveSpan) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Prevent double-finishing.
	if a.span.Finished() {
		return
	}

	a.span.EndTime = a.bridge.clock.Now()
	a.span.Duration = a.span.EndTime.Sub(a.span.StartTime)

	a.bridge.reportSpan(a.span)
}

// B3 returns the span's propagation context for injection into outbound
// headers.
func (a *ActiveSpan) B3() SpanContext {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.Context
}

// TraceID returns the trace id of this span.
func (a *ActiveSpan) TraceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.Context.TraceID
}

// SpanID returns the span id of this span.
func (a *ActiveSpan) SpanID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.span.Context.SpanID
}

// contextBundle holds both bridge and span to reduce context allocations.
type contextBundle struct {
	bridge *Bridge
	span   *Span
}

// ContextWithRemote stores an extracted SpanContext so the next StartSpan
// call parents to the remote caller.
func ContextWithRemote(ctx context.Context, sc SpanContext) context.Context {
	if !sc.IsValid() {
		return ctx
	}
	return context.WithValue(ctx, remoteKey, sc)
}

// RemoteFromContext returns the remote SpanContext stored by
// ContextWithRemote, if any.
func RemoteFromContext(ctx context.Context) (SpanContext, bool) {
	if ctx == nil {
		return SpanContext{}, false
	}
	sc, ok := ctx.Value(remoteKey).(SpanContext)
	return sc, ok
}

// GetSpan extracts the current span from a context.
// Returns nil if no span is present.
func GetSpan(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}

	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.span
	}

	return nil
}
