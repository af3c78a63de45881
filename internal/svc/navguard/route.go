package navguard

import "context"

const (
	PathLogin  = "/login"
	PathPortal = "/portal"
)

// Route is a screen the router can show.
type Route struct {
	Path string

	// PINRequired asks the login screen to show PIN verification
	// instead of the password form.
	PINRequired bool
}

//nolint:gochecknoglobals
var (
	LoginRoute  = Route{Path: PathLogin}
	PINRoute    = Route{Path: PathLogin, PINRequired: true}
	PortalRoute = Route{Path: PathPortal}
)

// Protected reports whether r needs an authenticated session.
func (r Route) Protected() bool {
	return r.Path != PathLogin
}

func (r Route) String() string {
	if r.PINRequired {
		return r.Path + "?pin=required"
	}

	return r.Path
}

// Router switches screens.
type Router interface {
	Current() Route
	Replace(ctx context.Context, route Route) error
}
