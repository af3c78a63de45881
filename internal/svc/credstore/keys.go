package credstore

// Persisted keys.
const (
	KeySessionToken   = "session-token"
	KeyUserProfile    = "user-profile"
	KeyPINEnabled     = "pin-enabled"
	KeyUserPIN        = "user-pin"
	KeyStoredUsername = "stored-username"
	KeyStoredPassword = "stored-password"
	KeyRememberMe     = "remember-me"
	KeySavedUsername  = "saved-username"
	KeyDeviceID       = "device-id"

	// Lock flags written by earlier releases. They are only ever deleted.
	KeyLoginInProgress     = "login-in-progress"
	KeyAutoLoginInProgress = "auto-login-in-progress"
)

const (
	valueTrue  = "true"
	valueFalse = "false"
)

// SessionKeys are erased on logout.
//
//nolint:gochecknoglobals
var SessionKeys = []string{
	KeySessionToken,
	KeyUserProfile,
	KeyPINEnabled,
	KeyUserPIN,
	KeyRememberMe,
	KeySavedUsername,
	KeyStoredUsername,
	KeyStoredPassword,
}

// staleLockKeys are leftovers of persisted lock flags.
//
//nolint:gochecknoglobals
var staleLockKeys = []string{
	KeyLoginInProgress,
	KeyAutoLoginInProgress,
}

func boolValue(b bool) string {
	if b {
		return valueTrue
	}

	return valueFalse
}
