// Package bridge connects sidecar-propagated trace headers to an
// application's own spans.
//
// A service mesh sidecar forwards Zipkin B3 headers between network hops
// but cannot stitch them into a trace on its own: the application must
// read the inbound headers, parent its work to them, and write them back
// out on every call it makes. bridge does exactly that and nothing more.
//
// Core Components:
//   - Bridge: manages span lifecycle, id allocation, and sampling.
//   - SpanContext: the immutable identifying data extracted from headers.
//   - Span: a single timed unit of work.
//   - ActiveSpan: thread-safe wrapper for an unfinished span.
//   - Reporter: receives finished spans for best-effort export.
//
// Basic Usage:
//
//	b := bridge.New(bridge.WithReporter(reporter))
//	defer b.Close()
//
//	// Inbound: extract the caller's context and start a server span.
//	sc, err := bridge.Extract(r.Header)
//	if err == nil {
//		ctx = bridge.ContextWithRemote(ctx, sc)
//	}
//	ctx, span := b.StartSpan(ctx, "http.request")
//	defer span.Finish()
//
//	// Outbound: inject the current span into the outgoing request.
//	bridge.Inject(span.B3(), req.Header)
//
// The Middleware and Transport types package the two halves up for
// net/http servers and clients.
//
// Thread Safety:
//
// Bridge is safe for concurrent use by multiple goroutines. ActiveSpan
// SetTag/GetTag/Finish are safe for concurrent use. Span values handed
// to reporters are copies and are never shared with the creating request.
//
// Tracing is best-effort observability: no error raised in this package
// ever reaches the request path. Malformed inbound headers degrade to a
// fresh root trace, and export failures are logged and dropped.
package bridge
