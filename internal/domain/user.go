package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidUserProfile is returned when a stored or received profile cannot be decoded.
var ErrInvalidUserProfile = errors.New("invalid user profile")

// UserProfile describes the portal user returned by the login endpoint.
type UserProfile struct {
	ID        int64  `json:"id"`        // Backend user identifier
	FirstName string `json:"firstName"` // Given name
	LastName  string `json:"lastName"`  // Family name
	FullName  string `json:"fullName"`  // Display name
	Username  string `json:"username"`  // Login username
	Phone     string `json:"phone"`     // Contact phone number
	Email     string `json:"email"`     // Contact mail address
	Role      string `json:"role"`      // Job title shown on the profile screen
}

// DisplayName returns the full name, falling back to the username.
func (p UserProfile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}

	return p.Username
}

// MarshalProfile encodes a profile for persistence.
func MarshalProfile(p UserProfile) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	return string(b), nil
}

// UnmarshalProfile decodes a persisted profile.
func UnmarshalProfile(s string) (UserProfile, error) {
	var p UserProfile

	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return UserProfile{}, errors.Join(ErrInvalidUserProfile, err)
	}

	return p, nil
}

// UserState is the observable user data held next to the Session.
type UserState struct {
	Profile      *UserProfile
	Online       bool
	LastActivity time.Time
}
