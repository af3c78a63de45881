package http

import (
	"context"
	"net/http"
	"time"

	"github.com/mkrupp/portal-session/internal/infra/logging"
)

// HTTPClientConfig contains configuration parameters for the outgoing HTTP client.
type HTTPClientConfig struct {
	// Timeout bounds a whole request including reading the body
	Timeout time.Duration `env:"TIMEOUT" default:"15s"`
	// IdleConnTimeout closes pooled connections after this idle time
	IdleConnTimeout time.Duration `env:"IDLE_CONN_TIMEOUT" default:"90s"`
	// UserAgent is sent with every request
	UserAgent string `env:"USER_AGENT" default:"portal-session"`
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// TokenSource yields the bearer token attached to outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// NewClient builds an *http.Client whose transport adds tracing, bearer
// authorization, logging and panic recovery around base.
// If base is nil, a clone of http.DefaultTransport is used. tokens may be nil.
func NewClient(cfg HTTPClientConfig, base http.RoundTripper, tokens TokenSource) *http.Client {
	log := logging.GetLogger("infra.transport.http")

	if base == nil {
		//nolint:forcetypeassert
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.IdleConnTimeout = cfg.IdleConnTimeout
		base = transport
	}

	var rt http.RoundTripper = base

	rt = RescueingMiddleware(rt, log)
	rt = LoggingMiddleware(rt, log)
	rt = AuthorizingMiddleware(rt, tokens)
	rt = TracingMiddleware(rt, cfg.UserAgent)

	//nolint:exhaustruct
	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
}
