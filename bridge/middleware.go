package bridge

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// Middleware wraps an http.Handler so every request runs inside a server
// span parented to the sidecar's inbound trace headers.
//
// Absent headers originate a fresh root trace. Malformed headers do the
// same - the request is always served, and the failure is recorded as a
// tag on the new root span. A missing x-request-id is backfilled so the
// whole hop chain shares one correlation id.
func Middleware(b *Bridge, operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sc, err := Extract(r.Header)
			switch {
			case err == nil:
				if sc.RequestID == "" {
					sc.RequestID = uuid.NewString()
				}
				ctx = ContextWithRemote(ctx, sc)
			case errors.Is(err, ErrContextNotFound):
				// No inbound context; start a root trace below.
			default:
				// Malformed context degrades to a root trace.
			}

			ctx, span := b.StartSpan(ctx, operation)
			defer span.Finish()

			span.SetTag("http.method", r.Method)
			span.SetTag("http.path", r.URL.Path)
			if err != nil && !errors.Is(err, ErrContextNotFound) {
				span.SetTag("context.malformed", err.Error())
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetTag("http.status_code", strconv.Itoa(sw.status))
		})
	}
}

// statusWriter captures the response status for span tagging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Transport is an http.RoundTripper that brackets each outbound request
// in a client span and injects the span's context into the outgoing
// headers, so the next hop (and its sidecar) can continue the trace.
type Transport struct {
	// Base performs the actual request. http.DefaultTransport when nil.
	Base http.RoundTripper

	// Bridge supplies the client spans.
	Bridge *Bridge
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.Bridge.StartSpan(req.Context(), "http.client")
	defer span.Finish()

	span.SetTag("http.method", req.Method)
	span.SetTag("http.url", req.URL.String())

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(ctx)
	Inject(span.B3(), req.Header)

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		span.SetTag("error", err.Error())
		return nil, err
	}

	span.SetTag("http.status_code", strconv.Itoa(resp.StatusCode))
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
