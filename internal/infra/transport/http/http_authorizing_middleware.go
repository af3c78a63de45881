package http

import (
	"net/http"

	context_ "github.com/mkrupp/portal-session/internal/infra/context"
)

const (
	AuthorizationHeader = "Authorization"
	BearerScheme        = "Bearer "
)

// AuthorizingMiddleware attaches the current bearer token to requests that
// do not carry an Authorization header yet. Requests go out unauthenticated
// when no token is available or the context opted out with
// context_.WithoutAuthorization.
func AuthorizingMiddleware(next http.RoundTripper, tokens TokenSource) http.RoundTripper {
	if tokens == nil {
		return next
	}

	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if r.Header.Get(AuthorizationHeader) != "" || context_.AuthorizationSkipped(r.Context()) {
			return next.RoundTrip(r)
		}

		token, ok := tokens.Token(r.Context())
		if !ok || token == "" {
			return next.RoundTrip(r)
		}

		r = r.Clone(r.Context())
		r.Header.Set(AuthorizationHeader, BearerScheme+token)

		return next.RoundTrip(r)
	})
}
