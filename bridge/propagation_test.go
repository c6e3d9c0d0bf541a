package bridge

import (
	"errors"
	"net/http"
	"testing"
)

func TestExtractFullHeaderSet(t *testing.T) {
	h := http.Header{}
	h.Set("x-b3-traceid", "abc123")
	h.Set("x-b3-spanid", "def456")
	h.Set("x-b3-parentspanid", "0011223344556677")
	h.Set("x-b3-sampled", "1")
	h.Set("x-b3-flags", "1")
	h.Set("x-request-id", "req-42")
	h.Set("x-ot-span-context", "opaque-blob")

	sc, err := Extract(h)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if sc.TraceID != "abc123" {
		t.Errorf("Expected trace id abc123, got %s", sc.TraceID)
	}
	if sc.SpanID != "def456" {
		t.Errorf("Expected span id def456, got %s", sc.SpanID)
	}
	if sc.ParentID != "0011223344556677" {
		t.Errorf("Expected parent id 0011223344556677, got %s", sc.ParentID)
	}
	if !sc.Sampled || sc.SampledUnknown {
		t.Error("Expected a decided, sampled context")
	}
	if sc.Flags != "1" {
		t.Errorf("Expected flags 1, got %s", sc.Flags)
	}
	if sc.RequestID != "req-42" {
		t.Errorf("Expected request id req-42, got %s", sc.RequestID)
	}
	if sc.OTSpanContext != "opaque-blob" {
		t.Errorf("Expected opaque blob carried through, got %s", sc.OTSpanContext)
	}
}

func TestExtractMinimalHeaderSet(t *testing.T) {
	h := http.Header{}
	h.Set("x-b3-traceid", "abc123")
	h.Set("x-b3-spanid", "def456")
	h.Set("x-b3-sampled", "1")

	sc, err := Extract(h)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if sc.TraceID != "abc123" || sc.SpanID != "def456" {
		t.Errorf("Unexpected ids: %s/%s", sc.TraceID, sc.SpanID)
	}
	if sc.ParentID != "" {
		t.Errorf("Expected absent parent, got %s", sc.ParentID)
	}
	if !sc.Sampled {
		t.Error("Expected sampled context")
	}
}

func TestExtractEmptyHeaders(t *testing.T) {
	_, err := Extract(http.Header{})
	if !errors.Is(err, ErrContextNotFound) {
		t.Errorf("Expected ErrContextNotFound, got %v", err)
	}
}

func TestExtractCaseInsensitive(t *testing.T) {
	h := http.Header{}
	h.Set("X-B3-TraceId", "abc123")
	h.Set("X-B3-SpanId", "def456")

	sc, err := Extract(h)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if sc.TraceID != "abc123" {
		t.Errorf("Expected abc123, got %s", sc.TraceID)
	}
}

func TestExtractUndecidedSampling(t *testing.T) {
	h := http.Header{}
	h.Set("x-b3-traceid", "abc123")
	h.Set("x-b3-spanid", "def456")

	sc, err := Extract(h)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !sc.SampledUnknown {
		t.Error("Expected SampledUnknown when x-b3-sampled is absent")
	}
}

func TestExtractMalformed(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    error
	}{
		{
			name:    "non-hex trace id",
			headers: map[string]string{"x-b3-traceid": "xyz", "x-b3-spanid": "def456"},
			want:    ErrInvalidTraceIDHeader,
		},
		{
			name:    "oversized trace id",
			headers: map[string]string{"x-b3-traceid": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "x-b3-spanid": "def456"},
			want:    ErrInvalidTraceIDHeader,
		},
		{
			name:    "missing span id",
			headers: map[string]string{"x-b3-traceid": "abc123"},
			want:    ErrInvalidSpanIDHeader,
		},
		{
			name:    "non-hex parent id",
			headers: map[string]string{"x-b3-traceid": "abc123", "x-b3-spanid": "def456", "x-b3-parentspanid": "not-hex"},
			want:    ErrInvalidParentHeader,
		},
		{
			name:    "bad sampled value",
			headers: map[string]string{"x-b3-traceid": "abc123", "x-b3-spanid": "def456", "x-b3-sampled": "maybe"},
			want:    ErrInvalidSampledHeader,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tc.headers {
				h.Set(k, v)
			}

			_, err := Extract(h)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrMalformedContext) {
				t.Errorf("Expected error to match ErrMalformedContext, got %v", err)
			}
		})
	}
}

func TestInjectExtractRoundTrip(t *testing.T) {
	in := http.Header{}
	in.Set("x-b3-traceid", "4bf92f3577b34da6a3ce929d0e0e4736")
	in.Set("x-b3-spanid", "00f067aa0ba902b7")
	in.Set("x-b3-sampled", "0")
	in.Set("x-b3-flags", "1")

	sc, err := Extract(in)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	out := http.Header{}
	Inject(sc, out)

	back, err := Extract(out)
	if err != nil {
		t.Fatalf("Extract after Inject failed: %v", err)
	}

	if back.TraceID != sc.TraceID {
		t.Errorf("Trace id did not round-trip: %s != %s", back.TraceID, sc.TraceID)
	}
	if back.Sampled != sc.Sampled || back.SampledUnknown != sc.SampledUnknown {
		t.Error("Sampling decision did not round-trip")
	}
	if back.Flags != sc.Flags {
		t.Errorf("Flags did not round-trip: %s != %s", back.Flags, sc.Flags)
	}
}

func TestInjectIdempotent(t *testing.T) {
	sc := SpanContext{
		TraceID:  "abc123",
		SpanID:   "def456",
		ParentID: "0011223344556677",
		Sampled:  true,
	}

	h := http.Header{}
	Inject(sc, h)
	Inject(sc, h)

	if got := h.Values("X-B3-Traceid"); len(got) != 1 {
		t.Errorf("Expected single trace id header, got %v", got)
	}
	if h.Get("x-b3-spanid") != "def456" {
		t.Errorf("Expected span id def456, got %s", h.Get("x-b3-spanid"))
	}
}

func TestInjectWritesCurrentSpanID(t *testing.T) {
	parent := SpanContext{TraceID: "abc123", SpanID: "def456", Sampled: true}
	child := parent.NewChild("fed654")

	h := http.Header{}
	Inject(child, h)

	if h.Get("x-b3-spanid") != "fed654" {
		t.Errorf("Expected current span id fed654, got %s", h.Get("x-b3-spanid"))
	}
	if h.Get("x-b3-parentspanid") != "def456" {
		t.Errorf("Expected parent id def456, got %s", h.Get("x-b3-parentspanid"))
	}
	if h.Get("x-b3-traceid") != "abc123" {
		t.Errorf("Expected trace id abc123, got %s", h.Get("x-b3-traceid"))
	}
}

func TestInjectUndecidedSamplingOmitsHeader(t *testing.T) {
	sc := SpanContext{TraceID: "abc123", SpanID: "def456", SampledUnknown: true}

	h := http.Header{}
	Inject(sc, h)

	if h.Get("x-b3-sampled") != "" {
		t.Errorf("Expected no sampled header, got %s", h.Get("x-b3-sampled"))
	}
}

func TestInjectInvalidContextIsNoop(t *testing.T) {
	h := http.Header{}
	Inject(SpanContext{}, h)

	if len(h) != 0 {
		t.Errorf("Expected no headers written, got %v", h)
	}
}
