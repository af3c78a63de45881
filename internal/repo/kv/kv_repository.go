// Package kv provides the persistent key-value backends behind the
// credential store.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownDriver is returned by the factory for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown kv driver")

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Repository defines the interface for string key-value persistence.
type Repository interface {
	// Get returns the value stored under key.
	// Returns the value and true if found, or "" and false if the key is absent.
	// A missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key succeeds.
	Remove(ctx context.Context, key string) error

	// Keys lists all stored keys in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

// Config selects and configures the backend.
type Config struct {
	// Driver is "sqlite" or "memory"
	Driver string `env:"DRIVER" default:"sqlite"`

	SQLite SQLiteRepositoryConfig
}

// Factory returns the RepositoryFactory for cfg.Driver.
func Factory(cfg Config) RepositoryFactory {
	return func() (Repository, error) {
		switch cfg.Driver {
		case DriverSQLite, "":
			return NewSQLiteRepository(cfg.SQLite)
		case DriverMemory:
			return NewMemoryRepository(), nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
		}
	}
}
