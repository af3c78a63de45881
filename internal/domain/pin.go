package domain

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

// PINLength is the number of digits of a PIN.
const PINLength = 4

//nolint:gochecknoglobals
var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// PINRecord is the persisted PIN together with its enabled flag.
type PINRecord struct {
	PIN     string
	Enabled bool
}

// Usable reports whether the record can gate a PIN login.
func (r PINRecord) Usable() bool {
	return r.Enabled && r.PIN != ""
}

// ValidatePIN accepts exactly four ASCII digits.
func ValidatePIN(pin string) error {
	err := validation.Validate(pin,
		validation.Required,
		validation.Length(PINLength, PINLength),
		validation.Match(pinPattern),
	)
	if err != nil {
		return errors.Join(ErrValidation, fmt.Errorf("pin: %w", err))
	}

	return nil
}

// PINState is the lifecycle state of PIN login.
type PINState int

const (
	// PINDisabled means no usable PIN is stored.
	PINDisabled PINState = iota
	// PINEnabled means a PIN is stored and the session is already unlocked.
	PINEnabled
	// PINAwaitingVerification means a PIN is stored and must be entered.
	PINAwaitingVerification
	// PINUnlocked means the PIN was entered successfully in this process.
	PINUnlocked
)

func (s PINState) String() string {
	switch s {
	case PINDisabled:
		return "disabled"
	case PINEnabled:
		return "enabled"
	case PINAwaitingVerification:
		return "awaiting-verification"
	case PINUnlocked:
		return "unlocked"
	default:
		return "unknown"
	}
}
