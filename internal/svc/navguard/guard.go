// Package navguard keeps the visible screen in line with the session:
// unauthenticated users see the login screen, locked sessions see PIN
// verification, everybody else the portal.
package navguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
)

// Config contains configuration parameters for the guard.
type Config struct {
	// SettleDelay postpones the first decision after Mount
	SettleDelay time.Duration `env:"SETTLE_DELAY" default:"0s"`
}

// PINChecker tells whether PIN login is set up.
type PINChecker interface {
	IsPinLoginEnabled(ctx context.Context) bool
}

// Decide returns the route session must be shown.
func Decide(session domain.Session, pinEnabled bool) Route {
	switch {
	case !session.IsAuthenticated:
		return LoginRoute
	case pinEnabled && !session.Unlocked:
		return PINRoute
	default:
		return PortalRoute
	}
}

// Guard redirects the router whenever the session changes.
type Guard struct {
	cfg    Config
	state  *authstate.Store
	pins   PINChecker
	router Router
	log    logging.Logger

	mounted   chan struct{}
	mountOnce sync.Once
}

// New creates a Guard. Decisions start after Mount.
func New(cfg Config, state *authstate.Store, pins PINChecker, router Router) *Guard {
	return &Guard{
		cfg:     cfg,
		state:   state,
		pins:    pins,
		router:  router,
		log:     logging.GetLogger("svc.navguard"),
		mounted: make(chan struct{}),
	}
}

// Mount signals that the router is ready to be redirected.
func (g *Guard) Mount() {
	g.mountOnce.Do(func() { close(g.mounted) })
}

// Run follows session updates until ctx is done. Redirects are held back
// until Mount was called and SettleDelay passed; states published in the
// meantime collapse into the latest one.
func (g *Guard) Run(ctx context.Context) error {
	updates, cancel := g.state.Subscribe(ctx)
	defer cancel()

	select {
	case <-g.mounted:
	case <-ctx.Done():
		return nil
	}

	timer := time.NewTimer(g.cfg.SettleDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case state, ok := <-updates:
			if !ok {
				return nil
			}

			if err := g.apply(ctx, state); err != nil {
				g.log.ErrorContext(ctx, "redirect failed", "error", err)
			}
		}
	}
}

// Evaluate applies the decision for the current session once.
func (g *Guard) Evaluate(ctx context.Context) error {
	return g.apply(ctx, g.state.Snapshot())
}

func (g *Guard) apply(ctx context.Context, state authstate.State) error {
	// A login in flight settles into another state shortly.
	if state.Auth.IsLoading {
		return nil
	}

	target := Decide(state.Auth, state.Auth.IsAuthenticated && g.pins.IsPinLoginEnabled(ctx))

	current := g.router.Current()
	if current == target {
		return nil
	}

	g.log.InfoContext(ctx, "redirecting", "from", current.String(), "to", target.String(), "version", state.Version)

	if err := g.router.Replace(ctx, target); err != nil {
		return fmt.Errorf("replace %s with %s: %w", current, target, err)
	}

	return nil
}

// HandleBack intercepts a back navigation to route. Going back into a
// protected route the session may not see is replaced by the decided
// screen (password or PIN login) and reported as handled.
func (g *Guard) HandleBack(ctx context.Context, route Route) bool {
	if !route.Protected() {
		return false
	}

	session := g.state.Session()

	target := Decide(session, session.IsAuthenticated && g.pins.IsPinLoginEnabled(ctx))
	if target == PortalRoute {
		return false
	}

	if err := g.router.Replace(ctx, target); err != nil {
		g.log.ErrorContext(ctx, "back navigation not replaced", "error", err)
	}

	return true
}
