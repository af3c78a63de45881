// Package sessionsvc manages the bearer token lifecycle: password login,
// validation, rehydration at start-up and logout.
package sessionsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/mkrupp/portal-session/internal/domain"
	context_ "github.com/mkrupp/portal-session/internal/infra/context"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	"github.com/mkrupp/portal-session/internal/infra/metrics"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc/authclient"
)

// ErrTokenChanged is returned by Adopt when the persisted token is no
// longer the one the caller inspected.
var ErrTokenChanged = errors.New("persisted token changed")

// TokenManager owns the session token. It is one of the two components
// allowed to mutate the auth state.
type TokenManager struct {
	cfg      SessionConfig
	client   authclient.AuthClient
	creds    *credstore.Store
	dispatch *authstate.Dispatcher
	state    *authstate.Store
	lock     *LoginLock
	flights  singleflight.Group
	metrics  *metrics.Metrics
	log      logging.Logger

	// now is replaced in tests.
	now func() time.Time
}

// NewTokenManager wires a TokenManager. m may be nil.
func NewTokenManager(
	cfg SessionConfig,
	client authclient.AuthClient,
	creds *credstore.Store,
	dispatch *authstate.Dispatcher,
	m *metrics.Metrics,
) *TokenManager {
	return &TokenManager{
		cfg:      cfg,
		client:   client,
		creds:    creds,
		dispatch: dispatch,
		state:    dispatch.Store(),
		lock:     NewLoginLock(),
		metrics:  m,
		log:      logging.GetLogger("svc.sessionsvc.token_manager"),
		now:      time.Now,
	}
}

// LoginLock exposes the lock shared by every login flow.
func (m *TokenManager) LoginLock() *LoginLock {
	return m.lock
}

// Token returns the persisted bearer token. It makes TokenManager usable
// as the token source of the HTTP client.
func (m *TokenManager) Token(ctx context.Context) (string, bool) {
	return m.creds.Token(ctx)
}

// Login authenticates with username and password.
//
// Identical concurrent calls share one network call and its result.
// Different credentials queue on the login lock. The call keeps running
// when ctx is canceled; only the wait for its result is abandoned.
func (m *TokenManager) Login(ctx context.Context, creds domain.Credentials) error {
	ctx = context_.EnsureTraceID(ctx)
	flow := string(context_.LoginFlowFromContext(ctx))

	if err := creds.Validate(); err != nil {
		m.metrics.ObserveLogin(flow, metrics.OutcomeInvalid, 0)

		return err
	}

	ch := m.flights.DoChan(flightKey(creds), func() (any, error) {
		return nil, m.login(context.WithoutCancel(ctx), creds)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("wait for login: %w", ctx.Err())
	}
}

func flightKey(creds domain.Credentials) string {
	sum := sha256.Sum256([]byte(creds.Username + "\x00" + creds.Password + "\x00" + strconv.FormatBool(creds.RememberMe)))

	return hex.EncodeToString(sum[:])
}

func (m *TokenManager) login(ctx context.Context, creds domain.Credentials) (err error) {
	var (
		flow  = string(context_.LoginFlowFromContext(ctx))
		log   = m.log.With(logging.Group("user", "username", creds.Username))
		start time.Time
	)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	release := m.lock.TryAcquire()
	if release == nil {
		log.DebugContext(ctx, "waiting for login in flight")

		release, err = m.lock.Acquire(ctx, m.cfg.LoginWait)
		if err != nil {
			return err
		}

		// The login we waited for may have authenticated this user already.
		if m.alreadyLoggedIn(creds) {
			defer release()

			m.persistRememberMe(ctx, creds)
			m.metrics.ObserveLogin(flow, metrics.OutcomeCoalesced, 0)

			return nil
		}
	}
	defer release()

	m.dispatch.LoginStart(ctx)

	start = m.now()

	result, err := m.client.Login(ctx, domain.LoginRequest{
		Username:   creds.Username,
		Password:   creds.Password,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		m.metrics.ObserveLogin(flow, outcomeOf(err), m.now().Sub(start))

		if errors.Is(err, domain.ErrAuthRejected) {
			m.dropToken(ctx)
		}

		m.dispatch.LoginFailure(ctx, domain.UserMessage(err))

		return fmt.Errorf("login: %w", err)
	}

	if err := m.persistSession(ctx, result); err != nil {
		m.metrics.ObserveLogin(flow, metrics.OutcomeStorage, m.now().Sub(start))

		// The previous token may be gone from storage by now.
		if _, ok := m.creds.Token(ctx); !ok && m.state.Session().HasToken() {
			m.invalidateSession(ctx)
		}

		m.dispatch.LoginFailure(ctx, domain.UserMessage(err))

		return fmt.Errorf("persist session: %w", err)
	}

	m.dispatch.LoginCompleted(ctx, result.Token, result.Profile, domain.SavedCredentials{
		Username: creds.Username,
		Password: creds.Password,
	})

	m.persistRememberMe(ctx, creds)
	m.metrics.ObserveLogin(flow, metrics.OutcomeSuccess, m.now().Sub(start))

	return nil
}

func (m *TokenManager) alreadyLoggedIn(creds domain.Credentials) bool {
	s := m.state.Session()

	return s.IsAuthenticated &&
		s.Unlocked &&
		s.SavedCredentials.Username == creds.Username &&
		s.SavedCredentials.Password == creds.Password
}

// persistSession clears the previous token, then writes the new token and
// profile, in that order. On failure the new token is removed again so no
// half-written session survives a restart.
func (m *TokenManager) persistSession(ctx context.Context, result domain.LoginResult) error {
	if err := m.creds.RemoveToken(ctx); err != nil {
		return err
	}

	if err := m.creds.SetToken(ctx, result.Token); err != nil {
		return err
	}

	var err error
	if result.Profile != nil {
		err = m.creds.SetProfile(ctx, *result.Profile)
	} else {
		err = m.creds.Remove(ctx, credstore.KeyUserProfile)
	}

	if err != nil {
		if rerr := m.creds.RemoveToken(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}

		return err
	}

	return nil
}

// persistRememberMe caches credentials when the user opted in or a PIN
// depends on them. Failures are logged only: the login itself succeeded.
func (m *TokenManager) persistRememberMe(ctx context.Context, creds domain.Credentials) {
	var err error

	if creds.RememberMe || m.creds.PINRecord(ctx).Usable() {
		err = m.creds.SetStoredCredentials(ctx, creds.Username, creds.Password)
	} else {
		err = m.creds.ClearStoredCredentials(ctx)
	}

	err = errors.Join(err, m.creds.SetRememberMe(ctx, creds.Username, creds.RememberMe))
	if err != nil {
		m.log.WarnContext(ctx, "remember me preference not saved", "error", err)
	}
}

// dropToken removes the persisted token after the backend refused a login
// and drops it from the session as well, keeping both in agreement.
func (m *TokenManager) dropToken(ctx context.Context) {
	if err := m.creds.RemoveToken(ctx); err != nil {
		m.log.WarnContext(ctx, "rejected token not removed", "error", err)

		return
	}

	if m.state.Session().HasToken() {
		m.invalidateSession(ctx)
	}
}

// invalidateSession drops the token together with the profile and
// credentials that came with it.
func (m *TokenManager) invalidateSession(ctx context.Context) {
	m.dispatch.TokenInvalidated(ctx)
	m.dispatch.ClearCredentials(ctx)
	m.dispatch.ClearUser(ctx)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetwork):
		return metrics.OutcomeNetwork
	case errors.Is(err, domain.ErrAuthRejected):
		return metrics.OutcomeRejected
	case errors.Is(err, domain.ErrStorage):
		return metrics.OutcomeStorage
	case errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeNetwork
	}
}

// ValidateToken checks the persisted token against the backend.
//
// Without a persisted token it returns false and makes no request. A 401
// removes the token and returns false with a nil error. Other failures
// return false together with the error and keep the token.
func (m *TokenManager) ValidateToken(ctx context.Context) (bool, error) {
	ctx = context_.EnsureTraceID(ctx)

	token, ok := m.creds.Token(ctx)
	if !ok {
		return false, nil
	}

	valid, err := m.client.Validate(ctx, token)
	if valid {
		m.metrics.ObserveValidation(metrics.OutcomeSuccess)
		m.dispatch.SetOnline(ctx, true)
		m.dispatch.UpdateLastActivity(ctx, m.now())

		return true, nil
	}

	if errors.Is(err, domain.ErrNetwork) {
		m.dispatch.SetOnline(ctx, false)
	}

	if !errors.Is(err, domain.ErrAuthRejected) {
		m.metrics.ObserveValidation(outcomeOf(err))
		m.log.WarnContext(ctx, "token validation inconclusive", "error", err)

		return false, fmt.Errorf("validate token: %w", err)
	}

	m.metrics.ObserveValidation(metrics.OutcomeRejected)
	m.invalidate(ctx, token)

	return false, nil
}

// invalidate removes token unless a login replaced it meanwhile.
func (m *TokenManager) invalidate(ctx context.Context, token string) {
	release, err := m.lock.Acquire(ctx, m.cfg.LoginWait)
	if err != nil {
		m.log.WarnContext(ctx, "rejected token kept, login lock busy", "error", err)

		return
	}
	defer release()

	if current, ok := m.creds.Token(ctx); !ok || current != token {
		return
	}

	if err := m.creds.RemoveToken(ctx); err != nil {
		m.log.WarnContext(ctx, "rejected token not removed", "error", err)

		return
	}

	if m.state.Session().Token == token {
		m.invalidateSession(ctx)
	}

	m.log.InfoContext(ctx, "rejected token removed")
}

// Logout erases the token, profile, PIN and every remember-me key, then
// resets the session. Calling it again is harmless.
func (m *TokenManager) Logout(ctx context.Context) error {
	ctx = context_.EnsureTraceID(ctx)

	release, err := m.lock.Acquire(ctx, m.cfg.LoginWait)
	if err != nil {
		m.log.WarnContext(ctx, "logging out while a login is in flight", "error", err)
	} else {
		defer release()
	}

	eraseErr := m.creds.Erase(ctx, credstore.SessionKeys...)

	m.dispatch.Logout(ctx)

	if eraseErr != nil {
		m.log.ErrorContext(ctx, "logout left data behind", "error", eraseErr)

		return fmt.Errorf("logout: %w", eraseErr)
	}

	m.log.InfoContext(ctx, "logged out")

	return nil
}

// Restore rehydrates the session from a persisted token at start-up. The
// restored session is authenticated but not unlocked. Tokens already
// expired locally are not restored.
func (m *TokenManager) Restore(ctx context.Context) bool {
	m.creds.ClearStaleLocks(ctx)

	token, ok := m.creds.Token(ctx)
	if !ok {
		return false
	}

	if !m.TokenUsable(token) {
		m.log.InfoContext(ctx, "persisted token expired, not restoring")

		return false
	}

	profile, _ := m.creds.Profile(ctx)

	m.dispatch.Restore(ctx, token, profile)

	return true
}

// Adopt makes the persisted token the unlocked session without a network
// call. token must still be the persisted one.
func (m *TokenManager) Adopt(ctx context.Context, token string) error {
	release, err := m.lock.Acquire(ctx, m.cfg.LoginWait)
	if err != nil {
		return err
	}
	defer release()

	current, ok := m.creds.Token(ctx)
	if !ok {
		return domain.ErrNoAuthToken
	}

	if current != token {
		return ErrTokenChanged
	}

	profile, _ := m.creds.Profile(ctx)

	m.dispatch.Restore(ctx, token, profile)
	m.dispatch.Unlock(ctx)

	return nil
}

// TokenUsable reports whether token may be used without asking the
// backend. JWTs are decoded without verification and rejected once their
// expiry (minus the configured leeway) has passed. Opaque tokens are
// always usable.
func (m *TokenManager) TokenUsable(token string) bool {
	if token == "" {
		return false
	}

	var claims jwt.RegisteredClaims

	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}

	if claims.ExpiresAt == nil {
		return true
	}

	return m.now().Add(m.cfg.ExpiryLeeway).Before(claims.ExpiresAt.Time)
}
