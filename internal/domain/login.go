package domain

import (
	"fmt"
	"time"
)

// LoginRequest is the body sent to the login endpoint.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// AccessToken is the token part of a login response.
type AccessToken struct {
	AccessToken string     `json:"accessToken"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// LoginResponse is the body returned by the login endpoint.
type LoginResponse struct {
	Token       *AccessToken `json:"token"`
	UserProfile *UserProfile `json:"userProfile"`
	Message     string       `json:"message,omitempty"`
}

// Validate requires a non-empty access token. The profile is optional.
func (r LoginResponse) Validate() error {
	if r.Token == nil {
		return fmt.Errorf("%w: missing token", ErrInvalidLoginResponse)
	}

	if r.Token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrInvalidLoginResponse)
	}

	return nil
}

// LoginResult is a validated login outcome.
type LoginResult struct {
	Token   string
	Profile *UserProfile
}
