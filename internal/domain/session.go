package domain

// SavedCredentials is the in-memory copy of the last credentials that
// produced a successful password login in this process.
type SavedCredentials struct {
	Username string
	Password string
}

// Session is the observable record of the current authentication status.
// An empty Token or Error stands for null.
type Session struct {
	IsAuthenticated  bool
	Token            string
	IsLoading        bool
	Error            string
	SavedCredentials SavedCredentials

	// Unlocked is set once a password or PIN was entered in this process.
	// A token rehydrated from storage leaves it false.
	Unlocked bool
}

// HasToken reports whether the session holds a bearer token.
func (s Session) HasToken() bool {
	return s.Token != ""
}
