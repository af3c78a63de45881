// Package autologin silently signs the user back in at start-up when they
// asked to be remembered.
package autologin

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mkrupp/portal-session/internal/domain"
	context_ "github.com/mkrupp/portal-session/internal/infra/context"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	"github.com/mkrupp/portal-session/internal/infra/metrics"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
)

// ErrLoginPanicked is returned when the login path panicked.
var ErrLoginPanicked = errors.New("auto-login panicked")

// Config contains configuration parameters for the coordinator.
type Config struct {
	// RecheckDelay is how long a second caller waits before checking
	// whether the first one already signed the user in
	RecheckDelay time.Duration `env:"RECHECK_DELAY" default:"300ms"`
}

// LoginFunc performs a password login.
type LoginFunc func(ctx context.Context, creds domain.Credentials) error

// Coordinator runs auto-login at most once at a time.
type Coordinator struct {
	cfg     Config
	login   LoginFunc
	creds   *credstore.Store
	state   *authstate.Store
	metrics *metrics.Metrics
	log     logging.Logger

	running atomic.Bool
}

// New creates a Coordinator. login is usually TokenManager.Login.
func New(
	cfg Config,
	login LoginFunc,
	creds *credstore.Store,
	state *authstate.Store,
	m *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		login:   login,
		creds:   creds,
		state:   state,
		metrics: m,
		log:     logging.GetLogger("svc.autologin"),
	}
}

// Run signs the user in with the cached credentials when remember-me is
// set. It reports whether the session is authenticated afterwards.
//
// Nothing happens when the session is already authenticated, when no
// credentials were remembered, or when a PIN guards the cached
// credentials. A caller arriving while another run is in flight waits
// RecheckDelay and returns early if that run succeeded.
func (c *Coordinator) Run(ctx context.Context) (ok bool, err error) {
	ctx = context_.WithLoginFlow(context_.EnsureTraceID(ctx), context_.LoginFlowAuto)

	if c.state.IsAuthenticated() {
		return true, nil
	}

	stored := c.creds.StoredCredentials(ctx)
	if !stored.RememberMe || !stored.Complete() {
		c.skip(ctx, "nothing remembered")

		return false, nil
	}

	if c.creds.PINRecord(ctx).Usable() {
		c.skip(ctx, "pin required")

		return false, nil
	}

	if c.running.CompareAndSwap(false, true) {
		defer c.running.Store(false)
	} else {
		c.log.DebugContext(ctx, "auto-login in flight, rechecking later")

		if err := sleep(ctx, c.cfg.RecheckDelay); err != nil {
			return false, err
		}

		if c.state.IsAuthenticated() {
			c.metrics.ObserveAutoLogin(metrics.OutcomeCoalesced)

			return true, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%w: %v", ErrLoginPanicked, r)
		}

		if err != nil {
			c.metrics.ObserveAutoLogin(outcomeOf(err))
			c.log.WarnContext(ctx, "auto-login failed", "error", err)
		} else {
			c.metrics.ObserveAutoLogin(metrics.OutcomeSuccess)
			c.log.InfoContext(ctx, "auto-login successful", "username", stored.Username)
		}
	}()

	if err := c.login(ctx, stored.Credentials()); err != nil {
		return false, fmt.Errorf("auto-login: %w", err)
	}

	return true, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetwork):
		return metrics.OutcomeNetwork
	case errors.Is(err, domain.ErrStorage):
		return metrics.OutcomeStorage
	default:
		return metrics.OutcomeRejected
	}
}

func (c *Coordinator) skip(ctx context.Context, reason string) {
	c.metrics.ObserveAutoLogin(metrics.OutcomeSkipped)
	c.log.DebugContext(ctx, "auto-login skipped", "reason", reason)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("auto-login recheck: %w", ctx.Err())
	}
}
