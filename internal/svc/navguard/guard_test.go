package navguard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/repo/kv/kvtest"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
	. "github.com/mkrupp/portal-session/internal/svc/navguard"
	"github.com/mkrupp/portal-session/internal/svc/pinsvc"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc/authclient/authclienttest"
)

type recordingRouter struct {
	mu      sync.Mutex
	current Route
	history []Route
}

func (r *recordingRouter) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

func (r *recordingRouter) Replace(_ context.Context, route Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = route
	r.history = append(r.history, route)

	return nil
}

func (r *recordingRouter) History() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Route(nil), r.history...)
}

type pinFlag bool

func (p pinFlag) IsPinLoginEnabled(context.Context) bool { return bool(p) }

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		session domain.Session
		pin     bool
		want    Route
	}{
		{"unauthenticated", domain.Session{}, false, LoginRoute},
		{"unauthenticated with pin", domain.Session{}, true, LoginRoute},
		{"locked with pin", domain.Session{IsAuthenticated: true, Token: "t"}, true, PINRoute},
		{"unlocked with pin", domain.Session{IsAuthenticated: true, Token: "t", Unlocked: true}, true, PortalRoute},
		{"locked without pin", domain.Session{IsAuthenticated: true, Token: "t"}, false, PortalRoute},
		{"unlocked without pin", domain.Session{IsAuthenticated: true, Token: "t", Unlocked: true}, false, PortalRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Decide(tt.session, tt.pin))
		})
	}
}

func runGuard(t *testing.T, guard *Guard) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- guard.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestGuard_WaitsForMount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dispatch := authstate.New()
	router := &recordingRouter{current: PortalRoute}
	guard := New(Config{}, store, pinFlag(false), router)

	runGuard(t, guard)

	dispatch.Restore(ctx, "tok", nil)
	dispatch.TokenInvalidated(ctx)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, router.History(), "no redirect before mount")

	guard.Mount()

	require.Eventually(t, func() bool { return router.Current() == LoginRoute }, time.Second, time.Millisecond)
	assert.Equal(t, []Route{LoginRoute}, router.History(), "only the latest state is evaluated")
}

func TestGuard_FollowsSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dispatch := authstate.New()
	router := &recordingRouter{current: LoginRoute}
	guard := New(Config{SettleDelay: time.Millisecond}, store, pinFlag(false), router)

	runGuard(t, guard)
	guard.Mount()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, router.History(), "already on the login screen")

	dispatch.LoginStart(ctx)
	dispatch.LoginSuccess(ctx, "tok")
	require.Eventually(t, func() bool { return router.Current() == PortalRoute }, time.Second, time.Millisecond)

	dispatch.Logout(ctx)
	require.Eventually(t, func() bool { return router.Current() == LoginRoute }, time.Second, time.Millisecond)
}

func TestGuard_HandleBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dispatch := authstate.New()
	router := &recordingRouter{current: LoginRoute}
	guard := New(Config{}, store, pinFlag(false), router)

	assert.False(t, guard.HandleBack(ctx, LoginRoute))
	assert.True(t, guard.HandleBack(ctx, PortalRoute))
	assert.Equal(t, []Route{LoginRoute}, router.History())

	dispatch.LoginSuccess(ctx, "tok")
	assert.False(t, guard.HandleBack(ctx, PortalRoute))
}

func TestGuard_HandleBackWhileLocked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dispatch := authstate.New()
	router := &recordingRouter{current: PINRoute}
	guard := New(Config{}, store, pinFlag(true), router)

	dispatch.Restore(ctx, "tok", nil)

	assert.True(t, guard.HandleBack(ctx, PortalRoute), "restored session still needs the pin")
	assert.Equal(t, PINRoute, router.Current())
	assert.Equal(t, []Route{PINRoute}, router.History())

	dispatch.Unlock(ctx)
	assert.False(t, guard.HandleBack(ctx, PortalRoute))
}

func TestGuard_PINAfterRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := kvtest.NewFaultyRepository()
	client := authclienttest.New(map[string]string{"ada": "pw"})

	// First run: password login, then PIN enrollment.
	{
		creds := credstore.New(repo)
		_, dispatch := authstate.New()
		tokens := sessionsvc.NewTokenManager(sessionsvc.SessionConfig{}, client, creds, dispatch, nil)
		pins := pinsvc.New(creds, tokens, dispatch, nil)

		require.NoError(t, tokens.Login(ctx, domain.Credentials{Username: "ada", Password: "pw"}))
		require.NoError(t, pins.EnrollPin(ctx, "1234"))
	}

	// Restart.
	creds := credstore.New(repo)
	store, dispatch := authstate.New()
	tokens := sessionsvc.NewTokenManager(sessionsvc.SessionConfig{}, client, creds, dispatch, nil)
	pins := pinsvc.New(creds, tokens, dispatch, nil)
	router := &recordingRouter{current: PortalRoute}
	guard := New(Config{}, store, pins, router)

	require.True(t, tokens.Restore(ctx))

	runGuard(t, guard)
	guard.Mount()

	require.Eventually(t, func() bool { return router.Current() == PINRoute }, time.Second, time.Millisecond)
	assert.NotContains(t, router.History(), PortalRoute)

	require.True(t, pins.LoginWithPin(ctx, "1234"))
	require.Eventually(t, func() bool { return router.Current() == PortalRoute }, time.Second, time.Millisecond)
}

func TestGuard_Evaluate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, dispatch := authstate.New()
	router := &recordingRouter{current: LoginRoute}
	guard := New(Config{}, store, pinFlag(true), router)

	dispatch.Restore(ctx, "tok", nil)
	require.NoError(t, guard.Evaluate(ctx))
	assert.Equal(t, PINRoute, router.Current())

	dispatch.Unlock(ctx)
	require.NoError(t, guard.Evaluate(ctx))
	assert.Equal(t, PortalRoute, router.Current())
}
