package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/repo/kv"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
	"github.com/mkrupp/portal-session/internal/svc/navguard"
)

func setupConfig(t *testing.T) Config {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":{"accessToken":"tok-1"},"userProfile":{"id":1,"username":"ada","fullName":"Ada"}}`))
	})
	mux.HandleFunc("GET /api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var cfg Config

	cfg.Store.Driver = kv.DriverSQLite
	cfg.Store.SQLite.DatabasePath = filepath.Join(t.TempDir(), "portal.db")
	cfg.API.Transport.Timeout = 5 * time.Second
	cfg.API.Client.BaseURL = srv.URL + "/api"
	cfg.API.Client.LoginPath = "/auth/login"
	cfg.API.Client.ValidatePath = "/auth/validate"
	cfg.Session.LoginWait = time.Second

	return cfg
}

func persisted(t *testing.T, cfg Config, key string) (string, bool) {
	t.Helper()

	repo, err := kv.NewSQLiteRepository(cfg.Store.SQLite)
	require.NoError(t, err)

	defer repo.Close()

	value, ok, err := repo.Get(context.Background(), key)
	require.NoError(t, err)

	return value, ok
}

func TestRun_LoginPinLogout(t *testing.T) {
	ctx := context.Background()
	cfg := setupConfig(t)

	require.NoError(t, run(ctx, cfg, []string{"login", "-u", "ada", "-p", "pw"}))

	token, ok := persisted(t, cfg, credstore.KeySessionToken)
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, run(ctx, cfg, []string{"validate"}))
	require.NoError(t, run(ctx, cfg, []string{"pin", "set", "-u", "ada", "-p", "pw", "1234"}))
	require.NoError(t, run(ctx, cfg, []string{"pin", "verify", "1234"}))
	require.ErrorIs(t, run(ctx, cfg, []string{"pin", "verify", "0000"}), domain.ErrAuthRejected)
	require.NoError(t, run(ctx, cfg, []string{"pin", "login", "1234"}))
	require.NoError(t, run(ctx, cfg, []string{"status"}))

	require.NoError(t, run(ctx, cfg, []string{"logout"}))
	require.NoError(t, run(ctx, cfg, []string{"logout"}))

	for _, key := range credstore.SessionKeys {
		_, ok := persisted(t, cfg, key)
		assert.False(t, ok, key)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	cfg := setupConfig(t)

	require.ErrorIs(t, run(context.Background(), cfg, []string{"frobnicate"}), ErrUsage)
	require.ErrorIs(t, run(context.Background(), cfg, []string{"pin"}), ErrUsage)
}

func TestApp_StartAsksForPIN(t *testing.T) {
	ctx := context.Background()
	cfg := setupConfig(t)

	require.NoError(t, run(ctx, cfg, []string{"pin", "set", "-u", "ada", "-p", "pw", "1234"}))

	repo, err := kv.Factory(cfg.Store)()
	require.NoError(t, err)

	defer repo.Close()

	a := wire(cfg, repo)

	require.NoError(t, a.start(ctx, strings.NewReader("9999\n1234\n")))
	assert.Equal(t, navguard.PortalRoute, a.router.Current())
	assert.True(t, a.state.Snapshot().Auth.Unlocked)
}
