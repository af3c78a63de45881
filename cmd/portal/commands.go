package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/svc/navguard"
)

const usage = `usage: portal <command> [flags]

commands:
  status                          show the persisted session
  login -u USER [-p PASS] [-remember]
  logout                          forget token, profile, pin and credentials
  validate                        check the persisted token with the server
  pin set [-u USER -p PASS] PIN   enable pin login
  pin verify PIN                  compare PIN with the stored one
  pin login PIN                   unlock with PIN
  pin forget                      disable pin login
  pin status                      show the pin state
  start                           restore, auto-login and route like the app
`

// ErrUsage is returned for unknown commands and missing arguments.
var ErrUsage = errors.New("invalid usage")

const maxPINAttempts = 3

func dispatchCommand(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)

		return flag.ErrHelp
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "status":
		return a.status(ctx)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.tokens.Logout(ctx)
	case "validate":
		return a.validate(ctx)
	case "pin":
		return a.pin(ctx, rest)
	case "start":
		return a.start(ctx, os.Stdin)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)

		return nil
	default:
		fmt.Fprint(os.Stderr, usage)

		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *app) status(ctx context.Context) error {
	restored := a.tokens.Restore(ctx)
	state := a.state.Snapshot()
	_, hasToken := a.tokens.Token(ctx)
	greeting, _ := a.creds.SavedUsername(ctx)

	fmt.Printf("token:         %t\n", hasToken)
	fmt.Printf("restored:      %t\n", restored)
	fmt.Printf("authenticated: %t\n", state.Auth.IsAuthenticated)
	fmt.Printf("pin:           %s\n", a.pins.State(ctx))
	fmt.Printf("remember me:   %t\n", a.creds.RememberMe(ctx))

	if greeting != "" {
		fmt.Printf("saved user:    %s\n", greeting)
	}

	if state.User.Profile != nil {
		fmt.Printf("user:          %s\n", state.User.Profile.DisplayName())
	}

	fmt.Printf("route:         %s\n", navguard.Decide(state.Auth, a.pins.IsPinLoginEnabled(ctx)))

	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)

	var creds domain.Credentials

	fs.StringVar(&creds.Username, "u", "", "username")
	fs.StringVar(&creds.Password, "p", "", "password, read from stdin when empty")
	fs.BoolVar(&creds.RememberMe, "remember", false, "remember credentials for auto-login")

	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck
	}

	if creds.Username == "" {
		if saved, ok := a.creds.SavedUsername(ctx); ok {
			creds.Username = saved
		}
	}

	if creds.Password == "" {
		password, err := prompt(os.Stdin, "password for "+creds.Username+": ")
		if err != nil {
			return err
		}

		creds.Password = password
	}

	if err := a.tokens.Login(ctx, creds); err != nil {
		fmt.Println(domain.UserMessage(err))

		return err //nolint:wrapcheck
	}

	fmt.Printf("welcome, %s\n", a.displayName(creds.Username))

	return nil
}

func (a *app) displayName(fallback string) string {
	if profile := a.state.Snapshot().User.Profile; profile != nil {
		return profile.DisplayName()
	}

	return fallback
}

func (a *app) validate(ctx context.Context) error {
	valid, err := a.tokens.ValidateToken(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if valid {
		fmt.Println("token valid")
	} else {
		fmt.Println("no valid token")
	}

	return nil
}

func (a *app) pin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: pin needs a subcommand", ErrUsage)
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "set":
		return a.pinSet(ctx, rest)
	case "verify":
		if len(rest) != 1 {
			return fmt.Errorf("%w: pin verify PIN", ErrUsage)
		}

		if !a.pins.VerifyPin(ctx, rest[0]) {
			return fmt.Errorf("%w: pin wrong", domain.ErrAuthRejected)
		}

		fmt.Println("pin correct")

		return nil
	case "login":
		if len(rest) != 1 {
			return fmt.Errorf("%w: pin login PIN", ErrUsage)
		}

		a.tokens.Restore(ctx)

		if !a.pins.LoginWithPin(ctx, rest[0]) {
			return fmt.Errorf("%w: pin login failed", domain.ErrAuthRejected)
		}

		fmt.Printf("welcome back, %s\n", a.displayName("user"))

		return nil
	case "forget":
		a.tokens.Restore(ctx)

		return a.pins.ClearPinData(ctx) //nolint:wrapcheck
	case "status":
		a.tokens.Restore(ctx)

		fmt.Println(a.pins.State(ctx))

		return nil
	default:
		return fmt.Errorf("%w: unknown pin command %q", ErrUsage, sub)
	}
}

func (a *app) pinSet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pin set", flag.ContinueOnError)

	var creds domain.Credentials

	fs.StringVar(&creds.Username, "u", "", "username, required without stored credentials")
	fs.StringVar(&creds.Password, "p", "", "password")

	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: pin set [-u USER -p PASS] PIN", ErrUsage)
	}

	pin := fs.Arg(0)

	if creds.Username != "" {
		if err := a.tokens.Login(ctx, creds); err != nil {
			fmt.Println(domain.UserMessage(err))

			return err //nolint:wrapcheck
		}

		return a.pins.EnrollPin(ctx, pin) //nolint:wrapcheck
	}

	if !a.pins.HasStoredCredentials(ctx) {
		return fmt.Errorf("%w: sign in with -u and -p first", domain.ErrNoCredentials)
	}

	if !a.pins.SavePin(ctx, pin) {
		return fmt.Errorf("%w: pin must be %d digits", domain.ErrValidation, domain.PINLength)
	}

	fmt.Println("pin saved")

	return nil
}

// start behaves like an app launch: the session is restored, auto-login
// runs, and the guard picks the first screen. A PIN screen is answered
// from in.
func (a *app) start(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	guardDone := make(chan error, 1)

	go func() { guardDone <- a.guard.Run(ctx) }()

	defer func() {
		cancel()
		<-guardDone
	}()

	a.tokens.Restore(ctx)

	if _, err := a.auto.Run(ctx); err != nil {
		fmt.Println(domain.UserMessage(err))
	}

	a.guard.Mount()

	route := a.settle(ctx)

	scanner := bufio.NewScanner(in)

	for attempt := 0; route == navguard.PINRoute && attempt < maxPINAttempts; attempt++ {
		if name, ok := a.pins.SavedUsername(ctx); ok {
			fmt.Printf("welcome back, %s\n", name)
		}

		fmt.Print("pin: ")

		if !scanner.Scan() {
			break
		}

		if !a.pins.LoginWithPin(ctx, strings.TrimSpace(scanner.Text())) {
			fmt.Println("wrong pin")

			continue
		}

		route = a.settle(ctx)
	}

	fmt.Printf("screen: %s\n", route)

	return nil
}

// settle waits briefly for the guard to redirect and returns the route
// the router ends up on.
func (a *app) settle(ctx context.Context) navguard.Route {
	timer := time.NewTimer(a.settleWait)
	defer timer.Stop()

	for {
		select {
		case <-a.router.Changed():
			timer.Reset(20 * time.Millisecond)
		case <-timer.C:
			return a.router.Current()
		case <-ctx.Done():
			return a.router.Current()
		}
	}
}

func prompt(in io.Reader, label string) (string, error) {
	fmt.Print(label)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}
