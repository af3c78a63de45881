package http

import (
	"net/http"

	context_ "github.com/mkrupp/portal-session/internal/infra/context"
)

const (
	TraceIDHeader   = "X-Request-ID"
	UserAgentHeader = "User-Agent"
)

// TracingMiddleware stamps every request with the trace ID of its context,
// generating a UUIDv7 when the context has none, and sets the user agent.
func TracingMiddleware(next http.RoundTripper, userAgent string) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		ctx := context_.EnsureTraceID(r.Context())

		r = r.Clone(ctx)

		if traceID, ok := context_.TraceIDFromContext(ctx); ok && r.Header.Get(TraceIDHeader) == "" {
			r.Header.Set(TraceIDHeader, traceID)
		}

		if userAgent != "" && r.Header.Get(UserAgentHeader) == "" {
			r.Header.Set(UserAgentHeader, userAgent)
		}

		return next.RoundTrip(r)
	})
}
