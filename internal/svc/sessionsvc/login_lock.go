package sessionsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLoginBusy is returned when the login lock could not be acquired in time.
var ErrLoginBusy = errors.New("another login is in progress")

// LoginLock serializes logins of every flow (password, PIN, auto-login)
// within the process. It replaces persisted lock flags: a restarted
// process has no call in flight, so nothing needs to survive a restart.
type LoginLock struct {
	sem chan struct{}
}

// NewLoginLock creates an unlocked LoginLock.
func NewLoginLock() *LoginLock {
	return &LoginLock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free, ctx is done or wait elapsed.
// A non-positive wait only waits for ctx. The returned release is
// idempotent.
func (l *LoginLock) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	if wait > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Join(ErrLoginBusy, fmt.Errorf("acquire login lock: %w", ctx.Err()))
	}

	return l.releaser(), nil
}

func (l *LoginLock) releaser() func() {
	var once sync.Once

	return func() {
		once.Do(func() { <-l.sem })
	}
}

// TryAcquire takes the lock if it is free. The returned release is nil
// when the lock is held by someone else.
func (l *LoginLock) TryAcquire() func() {
	select {
	case l.sem <- struct{}{}:
		return l.releaser()
	default:
		return nil
	}
}

// Held reports whether a login currently holds the lock.
func (l *LoginLock) Held() bool {
	return len(l.sem) > 0
}
