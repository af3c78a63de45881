package pinsvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/infra/metrics"
	"github.com/mkrupp/portal-session/internal/repo/kv/kvtest"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
	. "github.com/mkrupp/portal-session/internal/svc/pinsvc"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc/authclient/authclienttest"
)

type fixture struct {
	pins    *Service
	tokens  *sessionsvc.TokenManager
	client  *authclienttest.Fake
	repo    *kvtest.FaultyRepository
	creds   *credstore.Store
	state   *authstate.Store
	metrics *metrics.Metrics
}

// setupPIN builds the services on top of repo, as a fresh process would.
func setupPIN(t *testing.T, repo *kvtest.FaultyRepository, client *authclienttest.Fake) *fixture {
	t.Helper()

	creds := credstore.New(repo)
	state, dispatch := authstate.New()
	m := metrics.New(prometheus.NewRegistry())
	tokens := sessionsvc.NewTokenManager(sessionsvc.SessionConfig{LoginWait: 5 * time.Second}, client, creds, dispatch, m)

	return &fixture{
		pins:    New(creds, tokens, dispatch, m),
		tokens:  tokens,
		client:  client,
		repo:    repo,
		creds:   creds,
		state:   state,
		metrics: m,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return setupPIN(t, kvtest.NewFaultyRepository(), authclienttest.New(map[string]string{"ada": "pw"}))
}

func TestService_SavePin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	require.True(t, f.pins.SavePin(ctx, "1234"))
	assert.True(t, f.pins.IsPinLoginEnabled(ctx))

	for _, pin := range []string{"", "123", "12345", "12a4", "١٢٣٤", " 1234", "1234\n"} {
		assert.False(t, f.pins.SavePin(ctx, pin), "%q", pin)
	}

	assert.Equal(t, domain.PINRecord{PIN: "1234", Enabled: true}, f.creds.PINRecord(ctx),
		"malformed pins leave the stored record untouched")
	assert.Equal(t, 2, f.repo.Writes(credstore.KeyUserPIN)+f.repo.Writes(credstore.KeyPINEnabled))
}

func TestService_VerifyPin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	for _, entered := range []string{"", "0000", "1234"} {
		assert.False(t, f.pins.VerifyPin(ctx, entered), "no pin stored: %q", entered)
	}

	require.True(t, f.pins.SavePin(ctx, "1234"))

	assert.True(t, f.pins.VerifyPin(ctx, "1234"))
	assert.False(t, f.pins.VerifyPin(ctx, "4321"))
	assert.False(t, f.pins.VerifyPin(ctx, "123"))
	assert.False(t, f.pins.VerifyPin(ctx, ""))
}

func TestService_EnrollPin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	require.ErrorIs(t, f.pins.EnrollPin(ctx, "1234"), domain.ErrNoCredentials)
	require.ErrorIs(t, f.pins.EnrollPin(ctx, "12"), domain.ErrValidation)
	assert.False(t, f.pins.IsPinLoginEnabled(ctx))

	require.NoError(t, f.tokens.Login(ctx, domain.Credentials{Username: "ada", Password: "pw"}))
	require.NoError(t, f.pins.EnrollPin(ctx, "1234"))

	assert.True(t, f.pins.IsPinLoginEnabled(ctx))
	assert.True(t, f.pins.HasStoredCredentials(ctx))

	username, ok := f.pins.SavedUsername(ctx)
	require.True(t, ok)
	assert.Equal(t, "ada", username)
	assert.Equal(t, domain.PINEnabled, f.pins.State(ctx))
}

func TestService_LoginWithPinAfterRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := kvtest.NewFaultyRepository()
	client := authclienttest.New(map[string]string{"ada": "pw"})

	first := setupPIN(t, repo, client)
	require.NoError(t, first.tokens.Login(ctx, domain.Credentials{Username: "ada", Password: "pw"}))
	require.NoError(t, first.pins.EnrollPin(ctx, "1234"))

	second := setupPIN(t, repo, client)
	require.True(t, second.tokens.Restore(ctx))
	assert.Equal(t, domain.PINAwaitingVerification, second.pins.State(ctx))

	assert.False(t, second.pins.LoginWithPin(ctx, "9999"))
	assert.False(t, second.state.Session().Unlocked, "wrong pin changes nothing")

	assert.True(t, second.pins.LoginWithPin(ctx, "1234"))
	assert.True(t, second.state.Session().Unlocked)
	assert.Equal(t, domain.PINUnlocked, second.pins.State(ctx))
	assert.Equal(t, 1, client.Logins(), "persisted token adopted without a network call")
	assert.Equal(t, domain.SavedCredentials{Username: "ada", Password: "pw"}, second.state.Session().SavedCredentials)

	require.NoError(t, second.pins.EnrollPin(ctx, "5678"), "pin can be changed after a pin unlock")
	assert.True(t, second.pins.VerifyPin(ctx, "5678"))

	assert.InDelta(t, 1, testutil.ToFloat64(second.metrics.PINVerifications.WithLabelValues(metrics.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(second.metrics.PINVerifications.WithLabelValues(metrics.OutcomeRejected)), 0)
}

func TestService_LoginWithPinWithoutToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	require.True(t, f.pins.SavePin(ctx, "1234"))
	assert.False(t, f.pins.LoginWithPin(ctx, "1234"), "no stored credentials")
	assert.Zero(t, f.client.Logins())

	require.NoError(t, f.creds.SetStoredCredentials(ctx, "ada", "pw"))
	assert.True(t, f.pins.LoginWithPin(ctx, "1234"))
	assert.Equal(t, 1, f.client.Logins())

	session := f.state.Session()
	assert.True(t, session.IsAuthenticated)
	assert.True(t, session.Unlocked)
	assert.Equal(t, session.Token, func() string { token, _ := f.creds.Token(ctx); return token }())
}

func TestService_LoginWithPinRejectedCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	require.True(t, f.pins.SavePin(ctx, "1234"))
	require.NoError(t, f.creds.SetStoredCredentials(ctx, "ada", "changed"))

	assert.False(t, f.pins.LoginWithPin(ctx, "1234"))
	assert.False(t, f.state.IsAuthenticated())
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.PINVerifications.WithLabelValues(metrics.OutcomeRejected)), 0)
}

func TestService_ClearPinData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.tokens.Login(ctx, domain.Credentials{Username: "ada", Password: "pw"}))
	require.NoError(t, f.pins.EnrollPin(ctx, "1234"))

	require.NoError(t, f.pins.ClearPinData(ctx))

	assert.False(t, f.pins.IsPinLoginEnabled(ctx))
	assert.Equal(t, domain.PINDisabled, f.pins.State(ctx))
	assert.True(t, f.pins.HasStoredCredentials(ctx), "stored credentials survive")
	assert.True(t, f.state.IsAuthenticated(), "an unlocked session stays signed in")

	enabled, ok := f.repo.Value(credstore.KeyPINEnabled)
	require.True(t, ok)
	assert.Equal(t, "false", enabled)

	_, ok = f.repo.Value(credstore.KeyUserPIN)
	assert.False(t, ok)
}

func TestService_ClearPinDataWhileLocked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := kvtest.NewFaultyRepository()
	client := authclienttest.New(map[string]string{"ada": "pw"})

	first := setupPIN(t, repo, client)
	require.NoError(t, first.tokens.Login(ctx, domain.Credentials{Username: "ada", Password: "pw"}))
	require.NoError(t, first.pins.EnrollPin(ctx, "1234"))

	second := setupPIN(t, repo, client)
	require.True(t, second.tokens.Restore(ctx))

	require.NoError(t, second.pins.ClearPinData(ctx))
	assert.False(t, second.state.IsAuthenticated(), "forgetting the pin requires the password")

	_, ok := repo.Value(credstore.KeySessionToken)
	assert.False(t, ok)
}

func TestService_ClearPinDataKeepsGateWhenTokenStays(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := kvtest.NewFaultyRepository()
	client := authclienttest.New(map[string]string{"ada": "pw"})

	first := setupPIN(t, repo, client)
	require.NoError(t, first.tokens.Login(ctx, domain.Credentials{Username: "ada", Password: "pw"}))
	require.NoError(t, first.pins.EnrollPin(ctx, "1234"))

	second := setupPIN(t, repo, client)
	require.True(t, second.tokens.Restore(ctx))

	repo.FailWrite(credstore.KeySessionToken, true)

	require.ErrorIs(t, second.pins.ClearPinData(ctx), domain.ErrStorage)

	session := second.state.Session()
	assert.True(t, session.IsAuthenticated, "session matches the token still stored")
	assert.False(t, session.Unlocked)
	assert.True(t, second.pins.IsPinLoginEnabled(ctx), "pin still guards the stored token")
	assert.Equal(t, domain.PINAwaitingVerification, second.pins.State(ctx))

	_, ok := repo.Value(credstore.KeySessionToken)
	assert.True(t, ok)
}
