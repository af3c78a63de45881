package authstate

import (
	"context"
	"time"

	"github.com/mkrupp/portal-session/internal/domain"
)

// Dispatcher applies the defined transitions to a Store. Only the session
// token manager and the PIN service hold one.
type Dispatcher struct {
	store *Store
}

// Store returns the read side of the container.
func (d *Dispatcher) Store() *Store {
	return d.store
}

// LoginStart marks a login in flight and clears the previous error.
func (d *Dispatcher) LoginStart(ctx context.Context) State {
	return d.store.apply(ctx, actionLoginStart, loginStart)
}

// LoginSuccess adopts token as the authenticated, unlocked session.
func (d *Dispatcher) LoginSuccess(ctx context.Context, token string) State {
	return d.store.apply(ctx, actionLoginSuccess, loginSuccess(token))
}

// LoginCompleted publishes a successful password login as one transition:
// token, profile and in-memory credentials become visible together.
func (d *Dispatcher) LoginCompleted(
	ctx context.Context,
	token string,
	profile *domain.UserProfile,
	creds domain.SavedCredentials,
) State {
	return d.store.apply(ctx, actionLoginSuccess,
		loginSuccess(token),
		setUser(profile),
		saveCredentials(creds.Username, creds.Password),
	)
}

// LoginFailure stops loading and records message.
func (d *Dispatcher) LoginFailure(ctx context.Context, message string) State {
	return d.store.apply(ctx, actionLoginFailure, loginFailure(message))
}

// Restore adopts a token rehydrated from storage. The session is
// authenticated but not unlocked.
func (d *Dispatcher) Restore(ctx context.Context, token string, profile *domain.UserProfile) State {
	return d.store.apply(ctx, actionRestore, restore(token), setUser(profile))
}

// Unlock marks an authenticated session as unlocked.
func (d *Dispatcher) Unlock(ctx context.Context) State {
	return d.store.apply(ctx, actionUnlock, unlock)
}

// TokenInvalidated drops a token the backend rejected.
func (d *Dispatcher) TokenInvalidated(ctx context.Context) State {
	return d.store.apply(ctx, actionTokenInvalidated, tokenInvalidated)
}

// Logout resets the session and user data to defaults.
func (d *Dispatcher) Logout(ctx context.Context) State {
	return d.store.apply(ctx, actionLogout, logout)
}

// SaveCredentials keeps the credentials of the last password login in memory.
func (d *Dispatcher) SaveCredentials(ctx context.Context, username, password string) State {
	return d.store.apply(ctx, actionSaveCredentials, saveCredentials(username, password))
}

// ClearCredentials forgets the in-memory credentials.
func (d *Dispatcher) ClearCredentials(ctx context.Context) State {
	return d.store.apply(ctx, actionClearCredentials, clearCredentials)
}

// SetUser replaces the user profile.
func (d *Dispatcher) SetUser(ctx context.Context, profile *domain.UserProfile) State {
	return d.store.apply(ctx, actionSetUser, setUser(profile))
}

// ClearUser removes the user profile.
func (d *Dispatcher) ClearUser(ctx context.Context) State {
	return d.store.apply(ctx, actionClearUser, setUser(nil))
}

// SetOnline records connectivity.
func (d *Dispatcher) SetOnline(ctx context.Context, online bool) State {
	return d.store.apply(ctx, actionSetOnline, setOnline(online))
}

// UpdateLastActivity records the time of the last user interaction.
func (d *Dispatcher) UpdateLastActivity(ctx context.Context, at time.Time) State {
	return d.store.apply(ctx, actionUpdateActivity, updateActivity(at))
}
