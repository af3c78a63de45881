package domain

import (
	"errors"
	"strconv"
)

var (
	// ErrValidation is returned for malformed input (PIN format, empty fields)
	// before any I/O takes place.
	ErrValidation = errors.New("validation failed")
	// ErrNetwork is returned when the backend could not be reached at all.
	ErrNetwork = errors.New("network error")
	// ErrAuthRejected is returned when the backend refused the credentials or token.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrStorage is returned when a persistent read or write failed.
	ErrStorage = errors.New("storage error")
	// ErrNoAuthToken is returned when an operation needs a persisted token and none exists.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrNoCredentials is returned when cached credentials are required but absent.
	ErrNoCredentials = errors.New("no stored credentials")
	// ErrInvalidLoginResponse is returned when a 2xx login response lacks required fields.
	ErrInvalidLoginResponse = errors.New("invalid login response")
)

// Messages placed into Session.Error.
const (
	MessageLoginFailed       = "Login failed"
	MessageCannotReachServer = "Cannot reach server"
	MessageStorageFailed     = "Could not save session on this device"
	MessageInvalidInput      = "Username and password are required"
)

// UserMessage maps an error from the login flows to the human-readable text
// shown on the login screen. Server-provided messages wrapped in a
// RejectionError take precedence.
func UserMessage(err error) string {
	var rejection *RejectionError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejection) && rejection.Message != "":
		return rejection.Message
	case errors.Is(err, ErrValidation):
		return MessageInvalidInput
	case errors.Is(err, ErrNetwork):
		return MessageCannotReachServer
	case errors.Is(err, ErrStorage):
		return MessageStorageFailed
	default:
		return MessageLoginFailed
	}
}

// RejectionError carries the status code and optional message of a refused request.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return "rejected with status " + strconv.Itoa(e.StatusCode)
	}

	return "rejected with status " + strconv.Itoa(e.StatusCode) + ": " + e.Message
}

// Unwrap makes errors.Is(err, ErrAuthRejected) hold for every rejection.
func (e *RejectionError) Unwrap() error {
	return ErrAuthRejected
}
