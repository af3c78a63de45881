package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/portal-session/internal/infra/logging"
)

// ErrTransportPanic is returned when a round tripper panicked.
var ErrTransportPanic = errors.New("transport panic")

// RescueingMiddleware recovers from panics in the wrapped round tripper.
// It logs the panic and stack trace and turns it into an error so a faulty
// transport cannot take down the login flow.
func RescueingMiddleware(next http.RoundTripper, log logging.Logger) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (resp *http.Response, err error) {
		defer func() {
			if p := recover(); p != nil {
				log.ErrorContext(r.Context(), "transport panic", slog.Group("http",
					"url", r.URL.Redacted(),
					"method", r.Method,
				), slog.Group("error",
					"panic", p,
					"stack", string(debug.Stack()),
				))

				resp, err = nil, fmt.Errorf("%w: %v", ErrTransportPanic, p)
			}
		}()

		return next.RoundTrip(r)
	})
}
