package sessionsvc

import "time"

// SessionConfig contains configuration parameters for the token manager.
type SessionConfig struct {
	// LoginWait bounds how long a login waits for another login in flight
	// before giving up
	LoginWait time.Duration `env:"LOGIN_WAIT" default:"30s"`

	// ExpiryLeeway treats tokens expiring within this window as expired
	ExpiryLeeway time.Duration `env:"EXPIRY_LEEWAY" default:"30s"`
}
