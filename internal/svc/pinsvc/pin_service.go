// Package pinsvc implements PIN login on top of cached credentials. The
// PIN is a local gate only: the backend never sees it.
package pinsvc

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mkrupp/portal-session/internal/domain"
	context_ "github.com/mkrupp/portal-session/internal/infra/context"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	"github.com/mkrupp/portal-session/internal/infra/metrics"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
)

// Sessions is the part of the token manager PIN login depends on.
type Sessions interface {
	Login(ctx context.Context, creds domain.Credentials) error
	Adopt(ctx context.Context, token string) error
	TokenUsable(token string) bool
}

// Service is the PIN subsystem.
type Service struct {
	creds    *credstore.Store
	sessions Sessions
	dispatch *authstate.Dispatcher
	state    *authstate.Store
	metrics  *metrics.Metrics
	log      logging.Logger

	unlockedByPIN atomic.Bool
}

// New creates a PIN service. m may be nil.
func New(
	creds *credstore.Store,
	sessions Sessions,
	dispatch *authstate.Dispatcher,
	m *metrics.Metrics,
) *Service {
	return &Service{
		creds:    creds,
		sessions: sessions,
		dispatch: dispatch,
		state:    dispatch.Store(),
		metrics:  m,
		log:      logging.GetLogger("svc.pinsvc"),
	}
}

// IsPinLoginEnabled reports whether a PIN is stored and enabled.
func (s *Service) IsPinLoginEnabled(ctx context.Context) bool {
	return s.creds.PINRecord(ctx).Usable()
}

// SavePin persists pin and enables PIN login. Anything but exactly four
// ASCII digits is rejected and leaves the stored record untouched.
func (s *Service) SavePin(ctx context.Context, pin string) bool {
	if err := domain.ValidatePIN(pin); err != nil {
		s.log.DebugContext(ctx, "pin rejected", "error", err)

		return false
	}

	if err := s.creds.SetPINRecord(ctx, domain.PINRecord{PIN: pin, Enabled: true}); err != nil {
		s.log.ErrorContext(ctx, "pin not saved", "error", err)

		return false
	}

	s.log.InfoContext(ctx, "pin saved")

	return true
}

// EnrollPin caches the credentials of the current password session and
// then saves pin. It fails with domain.ErrNoCredentials when the session
// was not established by a password login in this process.
func (s *Service) EnrollPin(ctx context.Context, pin string) (err error) {
	defer func() {
		if err != nil {
			s.log.ErrorContext(ctx, "pin enrollment failed", "error", err)
		}
	}()

	if err := domain.ValidatePIN(pin); err != nil {
		return err
	}

	session := s.state.Session()
	if !session.IsAuthenticated || session.SavedCredentials.Username == "" || session.SavedCredentials.Password == "" {
		return domain.ErrNoCredentials
	}

	err = s.creds.SetStoredCredentials(ctx, session.SavedCredentials.Username, session.SavedCredentials.Password)
	if err != nil {
		return fmt.Errorf("cache credentials: %w", err)
	}

	if err := s.creds.SetPINRecord(ctx, domain.PINRecord{PIN: pin, Enabled: true}); err != nil {
		return fmt.Errorf("save pin: %w", err)
	}

	s.log.InfoContext(ctx, "pin enrolled", "username", session.SavedCredentials.Username)

	return nil
}

// VerifyPin compares entered with the stored PIN in constant time. Without
// a stored PIN every input, including "", is wrong.
func (s *Service) VerifyPin(ctx context.Context, entered string) bool {
	stored := s.creds.PINRecord(ctx).PIN
	if stored == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(entered)) == 1
}

// LoginWithPin unlocks the session with the PIN. A wrong PIN changes
// nothing. With a correct PIN a persisted, unexpired token is adopted
// without a network call; otherwise the cached credentials are used for a
// full login.
func (s *Service) LoginWithPin(ctx context.Context, entered string) bool {
	ctx = context_.WithLoginFlow(context_.EnsureTraceID(ctx), context_.LoginFlowPIN)

	if !s.VerifyPin(ctx, entered) {
		s.metrics.ObservePIN(metrics.OutcomeRejected)
		s.log.InfoContext(ctx, "wrong pin")

		return false
	}

	stored := s.creds.StoredCredentials(ctx)
	if !stored.Complete() {
		s.metrics.ObservePIN(metrics.OutcomeInvalid)
		s.log.WarnContext(ctx, "pin correct but no stored credentials")

		return false
	}

	if token, ok := s.creds.Token(ctx); ok && s.sessions.TokenUsable(token) {
		err := s.sessions.Adopt(ctx, token)
		if err == nil {
			// The adopted session carries the credentials, like a password login.
			s.dispatch.SaveCredentials(ctx, stored.Username, stored.Password)
			s.unlocked(ctx, "adopted persisted token")

			return true
		}

		s.log.WarnContext(ctx, "persisted token not adopted, logging in", "error", err)
	}

	if err := s.sessions.Login(ctx, stored.Credentials()); err != nil {
		s.metrics.ObservePIN(outcomeOf(err))
		s.log.ErrorContext(ctx, "pin login failed", "error", err)

		return false
	}

	s.unlocked(ctx, "logged in with stored credentials")

	return true
}

func (s *Service) unlocked(ctx context.Context, msg string) {
	s.unlockedByPIN.Store(true)
	s.metrics.ObservePIN(metrics.OutcomeSuccess)
	s.log.InfoContext(ctx, msg)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthRejected):
		return metrics.OutcomeRejected
	case errors.Is(err, domain.ErrStorage):
		return metrics.OutcomeStorage
	default:
		return metrics.OutcomeNetwork
	}
}

// ClearPinData removes the PIN and disables PIN login. Stored credentials
// are kept. A session still waiting for its PIN loses its token first, so
// the user has to sign in with the password. When that token cannot be
// removed the PIN stays in place.
func (s *Service) ClearPinData(ctx context.Context) error {
	if session := s.state.Session(); session.IsAuthenticated && !session.Unlocked {
		if err := s.creds.RemoveToken(ctx); err != nil {
			s.log.ErrorContext(ctx, "locked session kept, pin not cleared", "error", err)

			return fmt.Errorf("clear pin data: %w", err)
		}

		s.dispatch.TokenInvalidated(ctx)
		s.dispatch.ClearUser(ctx)
	}

	s.unlockedByPIN.Store(false)

	if err := s.creds.DisablePIN(ctx); err != nil {
		s.log.ErrorContext(ctx, "pin data not fully cleared", "error", err)

		return fmt.Errorf("clear pin data: %w", err)
	}

	s.log.InfoContext(ctx, "pin data cleared")

	return nil
}

// HasStoredCredentials reports whether cached username and password exist.
func (s *Service) HasStoredCredentials(ctx context.Context) bool {
	return s.creds.StoredCredentials(ctx).Complete()
}

// SavedUsername returns the cached username used to greet the user on the
// PIN screen.
func (s *Service) SavedUsername(ctx context.Context) (string, bool) {
	username := s.creds.StoredCredentials(ctx).Username

	return username, username != ""
}

// State reports where the PIN lifecycle currently is.
func (s *Service) State(ctx context.Context) domain.PINState {
	if !s.IsPinLoginEnabled(ctx) {
		return domain.PINDisabled
	}

	session := s.state.Session()

	switch {
	case session.IsAuthenticated && !session.Unlocked:
		return domain.PINAwaitingVerification
	case session.Unlocked && s.unlockedByPIN.Load():
		return domain.PINUnlocked
	default:
		return domain.PINEnabled
	}
}
