// Package credstore is the typed credential store on top of a key-value
// repository. Read failures degrade to "absent"; write failures are logged
// and returned wrapped in domain.ErrStorage so callers can decide whether to
// abort.
package credstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/infra/logging"
	"github.com/mkrupp/portal-session/internal/repo/kv"
)

// Store is the credential store.
type Store struct {
	repo kv.Repository
	log  logging.Logger

	deviceMu sync.Mutex
}

// New wraps repo.
func New(repo kv.Repository) *Store {
	return &Store{
		repo: repo,
		log:  logging.GetLogger("svc.credstore"),
	}
}

// Get returns the value under key. Missing keys and storage failures both
// report false; failures are logged.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	value, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "read failed, treating value as absent", "key", key, "error", err)

		return "", false
	}

	return value, ok
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		s.log.ErrorContext(ctx, "write failed", "key", key, "error", err)

		return errors.Join(domain.ErrStorage, fmt.Errorf("set %s: %w", key, err))
	}

	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.repo.Remove(ctx, key); err != nil {
		s.log.ErrorContext(ctx, "remove failed", "key", key, "error", err)

		return errors.Join(domain.ErrStorage, fmt.Errorf("remove %s: %w", key, err))
	}

	return nil
}

// Erase removes every key and keeps going after failures. The returned
// error joins all failures.
func (s *Store) Erase(ctx context.Context, keys ...string) error {
	var errs []error

	for _, key := range keys {
		if err := s.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Token returns the persisted bearer token.
func (s *Store) Token(ctx context.Context) (string, bool) {
	token, ok := s.Get(ctx, KeySessionToken)

	return token, ok && token != ""
}

// SetToken persists the bearer token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, KeySessionToken, token)
}

// RemoveToken deletes the bearer token.
func (s *Store) RemoveToken(ctx context.Context) error {
	return s.Remove(ctx, KeySessionToken)
}

// Profile returns the persisted user profile. A profile that does not
// decode is treated as absent.
func (s *Store) Profile(ctx context.Context) (*domain.UserProfile, bool) {
	raw, ok := s.Get(ctx, KeyUserProfile)
	if !ok || raw == "" {
		return nil, false
	}

	profile, err := domain.UnmarshalProfile(raw)
	if err != nil {
		s.log.WarnContext(ctx, "stored profile is corrupt", "error", err)

		return nil, false
	}

	return &profile, true
}

// SetProfile persists profile as JSON.
func (s *Store) SetProfile(ctx context.Context, profile domain.UserProfile) error {
	raw, err := domain.MarshalProfile(profile)
	if err != nil {
		return errors.Join(domain.ErrStorage, err)
	}

	return s.Set(ctx, KeyUserProfile, raw)
}

// PINRecord returns the persisted PIN record.
func (s *Store) PINRecord(ctx context.Context) domain.PINRecord {
	pin, _ := s.Get(ctx, KeyUserPIN)
	enabled, _ := s.Get(ctx, KeyPINEnabled)

	return domain.PINRecord{
		PIN:     pin,
		Enabled: enabled == valueTrue,
	}
}

// SetPINRecord persists the PIN first and the enabled flag second so that
// an interrupted write never leaves an enabled flag without a PIN.
func (s *Store) SetPINRecord(ctx context.Context, record domain.PINRecord) error {
	if err := s.Set(ctx, KeyUserPIN, record.PIN); err != nil {
		return err
	}

	return s.Set(ctx, KeyPINEnabled, boolValue(record.Enabled))
}

// DisablePIN removes the PIN and marks PIN login disabled.
func (s *Store) DisablePIN(ctx context.Context) error {
	return errors.Join(
		s.Remove(ctx, KeyUserPIN),
		s.Set(ctx, KeyPINEnabled, valueFalse),
	)
}

// StoredCredentials returns the cached credentials together with the
// remember-me preference.
func (s *Store) StoredCredentials(ctx context.Context) domain.StoredCredentials {
	username, _ := s.Get(ctx, KeyStoredUsername)
	password, _ := s.Get(ctx, KeyStoredPassword)

	return domain.StoredCredentials{
		Username:   username,
		Password:   password,
		RememberMe: s.RememberMe(ctx),
	}
}

// SetStoredCredentials caches username and password.
func (s *Store) SetStoredCredentials(ctx context.Context, username, password string) error {
	if err := s.Set(ctx, KeyStoredUsername, username); err != nil {
		return err
	}

	return s.Set(ctx, KeyStoredPassword, password)
}

// ClearStoredCredentials removes the cached username and password.
func (s *Store) ClearStoredCredentials(ctx context.Context) error {
	return s.Erase(ctx, KeyStoredUsername, KeyStoredPassword)
}

// RememberMe reports the persisted remember-me preference.
func (s *Store) RememberMe(ctx context.Context) bool {
	value, _ := s.Get(ctx, KeyRememberMe)

	return value == valueTrue
}

// SetRememberMe persists the preference and the greeting username. When
// disabled, the greeting username is removed.
func (s *Store) SetRememberMe(ctx context.Context, username string, remember bool) error {
	if !remember {
		return errors.Join(
			s.Remove(ctx, KeySavedUsername),
			s.Set(ctx, KeyRememberMe, valueFalse),
		)
	}

	if err := s.Set(ctx, KeySavedUsername, username); err != nil {
		return err
	}

	return s.Set(ctx, KeyRememberMe, valueTrue)
}

// SavedUsername returns the username remembered for the login greeting.
func (s *Store) SavedUsername(ctx context.Context) (string, bool) {
	username, ok := s.Get(ctx, KeySavedUsername)

	return username, ok && username != ""
}

// DeviceID returns the installation identifier, creating and persisting a
// ULID on first use. When the write fails the fresh ID is still returned
// for this process.
func (s *Store) DeviceID(ctx context.Context) string {
	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if id, ok := s.Get(ctx, KeyDeviceID); ok && id != "" {
		return id
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()

	if err := s.Set(ctx, KeyDeviceID, id); err != nil {
		s.log.WarnContext(ctx, "device id not persisted", "error", err)
	}

	return id
}

// ClearStaleLocks deletes lock flags left behind by earlier releases, which
// persisted them and could leave them set after a crash.
func (s *Store) ClearStaleLocks(ctx context.Context) {
	for _, key := range staleLockKeys {
		if _, ok := s.Get(ctx, key); !ok {
			continue
		}

		if err := s.Remove(ctx, key); err == nil {
			s.log.InfoContext(ctx, "removed stale lock flag", "key", key)
		}
	}
}
