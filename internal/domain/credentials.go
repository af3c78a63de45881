package domain

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Credentials are the inputs of a password login.
type Credentials struct {
	Username   string
	Password   string
	RememberMe bool
}

// Validate rejects empty usernames and passwords.
func (c Credentials) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
	if err != nil {
		return errors.Join(ErrValidation, fmt.Errorf("credentials: %w", err))
	}

	return nil
}

// StoredCredentials are the cached credentials persisted for PIN login and
// auto-login.
type StoredCredentials struct {
	Username   string
	Password   string
	RememberMe bool
}

// Complete reports whether both username and password are present.
func (c StoredCredentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// Credentials converts the stored record into login input.
func (c StoredCredentials) Credentials() Credentials {
	return Credentials{
		Username:   c.Username,
		Password:   c.Password,
		RememberMe: c.RememberMe,
	}
}
