package context

import (
	"context"
)

const contextKeySkipAuthorization = contextKey("skipAuthorization")

// WithoutAuthorization marks requests made with ctx to go out without the
// stored bearer token.
func WithoutAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeySkipAuthorization, true)
}

// AuthorizationSkipped reports whether ctx was marked by WithoutAuthorization.
func AuthorizationSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(contextKeySkipAuthorization).(bool)

	return skip
}
