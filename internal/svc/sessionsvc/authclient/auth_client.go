// Package authclient talks to the backend login and validate endpoints.
package authclient

import (
	"context"

	"github.com/mkrupp/portal-session/internal/domain"
)

// AuthClient defines the backend calls of the session lifecycle.
type AuthClient interface {
	// Login exchanges credentials for a token and the user profile.
	// Errors wrap domain.ErrNetwork when no response arrived and
	// domain.ErrAuthRejected for any refusal or malformed success body.
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResult, error)

	// Validate checks token against an authenticated endpoint.
	// Returns true for any 2xx. A 401 returns false with an error wrapping
	// domain.ErrAuthRejected; other failures return false with an error
	// that does not.
	Validate(ctx context.Context, token string) (bool, error)
}
