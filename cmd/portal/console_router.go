package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mkrupp/portal-session/internal/svc/navguard"
)

// consoleRouter prints screen changes instead of rendering them.
type consoleRouter struct {
	mu      sync.Mutex
	out     io.Writer
	current navguard.Route
	changed chan navguard.Route
}

func newConsoleRouter(out io.Writer) *consoleRouter {
	return &consoleRouter{
		out:     out,
		current: navguard.LoginRoute,
		changed: make(chan navguard.Route, 1),
	}
}

func (r *consoleRouter) Current() navguard.Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

func (r *consoleRouter) Replace(_ context.Context, route navguard.Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = route

	if _, err := fmt.Fprintf(r.out, "-> %s\n", route); err != nil {
		return fmt.Errorf("print route: %w", err)
	}

	select {
	case <-r.changed:
	default:
	}
	r.changed <- route

	return nil
}

// Changed delivers the latest route after each Replace.
func (r *consoleRouter) Changed() <-chan navguard.Route {
	return r.changed
}
