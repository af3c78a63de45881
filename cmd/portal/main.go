package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkrupp/portal-session/internal/infra/config"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	"github.com/mkrupp/portal-session/internal/infra/metrics"
	transport "github.com/mkrupp/portal-session/internal/infra/transport/http"
	"github.com/mkrupp/portal-session/internal/repo/kv"
	"github.com/mkrupp/portal-session/internal/svc/authstate"
	"github.com/mkrupp/portal-session/internal/svc/autologin"
	"github.com/mkrupp/portal-session/internal/svc/credstore"
	"github.com/mkrupp/portal-session/internal/svc/navguard"
	"github.com/mkrupp/portal-session/internal/svc/pinsvc"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc/authclient"
)

const (
	appName = "portal"
)

type APIConfig struct {
	Transport transport.HTTPClientConfig
	Client    authclient.HTTPClientConfig
}

type Config struct {
	config.EnvConfig

	Log       logging.LoggerConfig     `envPrefix:"LOG_"`
	Store     kv.Config                `envPrefix:"STORE_"`
	API       APIConfig                `envPrefix:"API_"`
	Session   sessionsvc.SessionConfig `envPrefix:"SESSION_"`
	AutoLogin autologin.Config         `envPrefix:"AUTOLOGIN_"`
	Guard     navguard.Config          `envPrefix:"GUARD_"`
}

// app holds the wired services for one command.
type app struct {
	creds   *credstore.Store
	state   *authstate.Store
	tokens  *sessionsvc.TokenManager
	pins    *pinsvc.Service
	auto    *autologin.Coordinator
	guard   *navguard.Guard
	router  *consoleRouter
	metrics *prometheus.Registry

	settleWait time.Duration
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(appName)
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Configure(ctx, cfg.Log, appName)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}

		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1) //nolint:gocritic
	}
}

func run(ctx context.Context, cfg Config, args []string) (err error) {
	log := logging.GetLogger("cmd.portal")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.DebugContext(ctx, "shutdown")
	}()

	repo, err := kv.Factory(cfg.Store)()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if cerr := repo.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
		}
	}()

	a := wire(cfg, repo)

	defer func() {
		summary, serr := metrics.Summary(a.metrics)
		if serr != nil {
			log.WarnContext(ctx, "metrics not gathered", "error", serr)

			return
		}

		if len(summary) > 0 {
			log.DebugContext(ctx, "metrics", "summary", summary)
		}
	}()

	return dispatchCommand(ctx, a, args)
}

func wire(cfg Config, repo kv.Repository) *app {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	creds := credstore.New(repo)
	state, dispatch := authstate.New()

	httpClient := transport.NewClient(cfg.API.Transport, nil, creds)
	client := authclient.NewHTTPClient(cfg.API.Client, httpClient, creds)

	tokens := sessionsvc.NewTokenManager(cfg.Session, client, creds, dispatch, m)
	pins := pinsvc.New(creds, tokens, dispatch, m)
	router := newConsoleRouter(os.Stdout)

	return &app{
		creds:   creds,
		state:   state,
		tokens:  tokens,
		pins:    pins,
		auto:    autologin.New(cfg.AutoLogin, tokens.Login, creds, state, m),
		guard:   navguard.New(cfg.Guard, state, pins, router),
		router:  router,
		metrics: reg,

		settleWait: cfg.Guard.SettleDelay + 100*time.Millisecond,
	}
}
