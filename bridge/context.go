package bridge

import (
	"errors"
	"fmt"
)

// Header names propagated by the mesh sidecar. Keys are written in their
// canonical wire form; extraction is case-insensitive via http.Header.
const (
	HeaderRequestID     = "x-request-id"
	HeaderTraceID       = "x-b3-traceid"
	HeaderSpanID        = "x-b3-spanid"
	HeaderParentSpanID  = "x-b3-parentspanid"
	HeaderSampled       = "x-b3-sampled"
	HeaderFlags         = "x-b3-flags"
	HeaderOTSpanContext = "x-ot-span-context"
)

// ErrContextNotFound is returned by Extract when the carrier holds no
// x-b3-traceid header. The caller should originate a fresh root trace.
var ErrContextNotFound = errors.New("no trace context in carrier")

// ErrMalformedContext wraps every header validation error so callers can
// match the whole class with errors.Is. Policy on a malformed context is
// to degrade to a fresh root trace, never to fail the request.
var ErrMalformedContext = errors.New("malformed trace context")

var (
	ErrInvalidTraceIDHeader = fmt.Errorf("%w: invalid x-b3-traceid header", ErrMalformedContext)
	ErrInvalidSpanIDHeader  = fmt.Errorf("%w: invalid x-b3-spanid header", ErrMalformedContext)
	ErrInvalidParentHeader  = fmt.Errorf("%w: invalid x-b3-parentspanid header", ErrMalformedContext)
	ErrInvalidSampledHeader = fmt.Errorf("%w: invalid x-b3-sampled header", ErrMalformedContext)
)

// SpanContext holds the identifying data needed to parent new spans to an
// existing trace across a process boundary. It is a value type: derive new
// contexts, never mutate one after extraction.
type SpanContext struct {
	// TraceID is the hex identifier shared by every span in the trace.
	TraceID string

	// SpanID is the hex identifier of the span this context describes.
	SpanID string

	// ParentID is the hex identifier of the span's parent, empty for roots.
	ParentID string

	// Sampled reports the caller's sampling decision. Meaningless when
	// SampledUnknown is set.
	Sampled bool

	// SampledUnknown marks a context whose caller sent no x-b3-sampled
	// header. The bridge's sampler decides at span start.
	SampledUnknown bool

	// Flags carries the x-b3-flags bitset verbatim ("1" marks debug).
	Flags string

	// RequestID is the mesh's opaque x-request-id correlation id.
	RequestID string

	// OTSpanContext carries the opaque x-ot-span-context blob through
	// unmodified. It is never interpreted.
	OTSpanContext string

	// Baggage holds in-process key/value items, initialized on first use.
	Baggage map[string]string
}

// IsValid reports whether the context identifies a trace.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID != "" && sc.SpanID != ""
}

// NewChild derives the context for a child span with the given id. The
// trace id, sampling decision, flags, and correlation ids carry over;
// the parent link moves to this context's span.
func (sc SpanContext) NewChild(spanID string) SpanContext {
	child := sc
	child.SpanID = spanID
	child.ParentID = sc.SpanID
	child.Baggage = copyBaggage(sc.Baggage)
	return child
}

// WithBaggageItem returns a new context with the key/value pair set. The
// receiver is left untouched.
func (sc SpanContext) WithBaggageItem(key, value string) SpanContext {
	next := sc
	next.Baggage = copyBaggage(sc.Baggage)
	if next.Baggage == nil {
		next.Baggage = make(map[string]string, 1)
	}
	next.Baggage[key] = value
	return next
}

func copyBaggage(baggage map[string]string) map[string]string {
	if baggage == nil {
		return nil
	}
	out := make(map[string]string, len(baggage))
	for k, v := range baggage {
		out[k] = v
	}
	return out
}
