// Package authclienttest provides an in-memory AuthClient for tests.
package authclienttest

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/svc/sessionsvc/authclient"
)

// Fake is an AuthClient backed by a fixed user table. Tokens are issued as
// "token-<username>-<n>".
type Fake struct {
	mu       sync.Mutex
	users    map[string]string
	revoked  map[string]bool
	loginErr error
	validErr error
	gate     chan struct{}
	issued   int

	logins      atomic.Int64
	validations atomic.Int64
}

var _ authclient.AuthClient = (*Fake)(nil)

// New creates a Fake accepting the given username/password pairs.
func New(users map[string]string) *Fake {
	if users == nil {
		users = make(map[string]string)
	}

	return &Fake{users: users, revoked: make(map[string]bool)}
}

// FailLogins makes every Login return err until called with nil.
func (f *Fake) FailLogins(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loginErr = err
}

// FailValidations makes every Validate return err until called with nil.
func (f *Fake) FailValidations(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.validErr = err
}

// Revoke makes Validate reject token with a 401.
func (f *Fake) Revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.revoked[token] = true
}

// Hold blocks Login calls until the returned function is called.
func (f *Fake) Hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	f.gate = gate

	var once sync.Once

	return func() { once.Do(func() { close(gate) }) }
}

// Logins returns the number of Login calls made.
func (f *Fake) Logins() int {
	return int(f.logins.Load())
}

// Validations returns the number of Validate calls made.
func (f *Fake) Validations() int {
	return int(f.validations.Load())
}

// Login implements authclient.AuthClient.Login.
func (f *Fake) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResult, error) {
	f.logins.Add(1)

	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.LoginResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loginErr != nil {
		return domain.LoginResult{}, f.loginErr
	}

	if password, ok := f.users[req.Username]; !ok || password != req.Password {
		return domain.LoginResult{}, &domain.RejectionError{StatusCode: 401, Message: "Invalid username or password"}
	}

	f.issued++

	return domain.LoginResult{
		Token: "token-" + req.Username + "-" + strconv.Itoa(f.issued),
		Profile: &domain.UserProfile{
			ID:       int64(f.issued),
			Username: req.Username,
			FullName: req.Username,
		},
	}, nil
}

// Validate implements authclient.AuthClient.Validate.
func (f *Fake) Validate(_ context.Context, token string) (bool, error) {
	f.validations.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.validErr != nil {
		return false, f.validErr
	}

	if f.revoked[token] {
		return false, &domain.RejectionError{StatusCode: 401}
	}

	return true, nil
}
