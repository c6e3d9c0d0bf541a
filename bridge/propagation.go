package bridge

import (
	"net/http"
)

const (
	maxTraceIDLen = 32 // 128-bit trace ids
	maxSpanIDLen  = 16 // 64-bit span ids
)

// Extract reads a SpanContext from the inbound header set.
//
// When x-b3-traceid is absent it returns ErrContextNotFound and the caller
// must originate a fresh root trace. Malformed values return an error
// matching ErrMalformedContext; policy is to degrade to a root trace, not
// to fail the request. The returned context is complete on nil error only.
func Extract(h http.Header) (SpanContext, error) {
	var sc SpanContext

	traceID := h.Get(HeaderTraceID)
	if traceID == "" {
		return sc, ErrContextNotFound
	}
	if !validHexID(traceID, maxTraceIDLen) {
		return sc, ErrInvalidTraceIDHeader
	}

	spanID := h.Get(HeaderSpanID)
	if spanID == "" || !validHexID(spanID, maxSpanIDLen) {
		return sc, ErrInvalidSpanIDHeader
	}

	if parentID := h.Get(HeaderParentSpanID); parentID != "" {
		if !validHexID(parentID, maxSpanIDLen) {
			return sc, ErrInvalidParentHeader
		}
		sc.ParentID = parentID
	}

	switch h.Get(HeaderSampled) {
	case "":
		// No decision from the caller; the bridge's sampler decides
		// when the first span starts.
		sc.SampledUnknown = true
	case "1", "true":
		sc.Sampled = true
	case "0", "false":
		sc.Sampled = false
	default:
		return SpanContext{}, ErrInvalidSampledHeader
	}

	sc.TraceID = traceID
	sc.SpanID = spanID
	sc.Flags = h.Get(HeaderFlags)
	sc.RequestID = h.Get(HeaderRequestID)
	sc.OTSpanContext = h.Get(HeaderOTSpanContext)
	return sc, nil
}

// Inject writes the context into the outbound header set. The span id
// written is the context's own (the current span, not its parent). Inject
// is idempotent: repeated calls with the same context overwrite with the
// same values.
func Inject(sc SpanContext, h http.Header) {
	if !sc.IsValid() {
		return
	}

	h.Set(HeaderTraceID, sc.TraceID)
	h.Set(HeaderSpanID, sc.SpanID)

	if sc.ParentID != "" {
		h.Set(HeaderParentSpanID, sc.ParentID)
	} else {
		h.Del(HeaderParentSpanID)
	}

	if !sc.SampledUnknown {
		if sc.Sampled {
			h.Set(HeaderSampled, "1")
		} else {
			h.Set(HeaderSampled, "0")
		}
	}

	if sc.Flags != "" {
		h.Set(HeaderFlags, sc.Flags)
	}
	if sc.RequestID != "" {
		h.Set(HeaderRequestID, sc.RequestID)
	}
	if sc.OTSpanContext != "" {
		h.Set(HeaderOTSpanContext, sc.OTSpanContext)
	}
}

// validHexID accepts lowercase or uppercase hex up to maxLen characters.
// Short ids are tolerated; sidecars in the wild pad inconsistently.
func validHexID(id string, maxLen int) bool {
	if len(id) == 0 || len(id) > maxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
