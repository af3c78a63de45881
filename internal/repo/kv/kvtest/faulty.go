// Package kvtest provides key-value repositories for tests.
package kvtest

import (
	"context"
	"errors"
	"sync"

	"github.com/mkrupp/portal-session/internal/repo/kv"
)

// ErrInjected is returned by FaultyRepository for failing keys.
var ErrInjected = errors.New("injected storage failure")

// FaultyRepository wraps a MemoryRepository and fails reads or writes of
// selected keys. It also counts writes per key.
type FaultyRepository struct {
	*kv.MemoryRepository

	mu         sync.Mutex
	failRead   map[string]bool
	failWrite  map[string]bool
	failSet    map[string]bool
	writeCount map[string]int
}

var _ kv.Repository = (*FaultyRepository)(nil)

// NewFaultyRepository creates a repository without failures.
func NewFaultyRepository() *FaultyRepository {
	return &FaultyRepository{
		MemoryRepository: kv.NewMemoryRepository(),
		failRead:         make(map[string]bool),
		failWrite:        make(map[string]bool),
		failSet:          make(map[string]bool),
		writeCount:       make(map[string]int),
	}
}

// FailRead makes Get of key fail.
func (r *FaultyRepository) FailRead(key string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failRead[key] = fail
}

// FailWrite makes Set and Remove of key fail.
func (r *FaultyRepository) FailWrite(key string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failWrite[key] = fail
}

// FailSet makes Set of key fail while Remove keeps working.
func (r *FaultyRepository) FailSet(key string, fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failSet[key] = fail
}

// Writes returns how often key was set or removed successfully.
func (r *FaultyRepository) Writes(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.writeCount[key]
}

// Get implements kv.Repository.Get.
func (r *FaultyRepository) Get(ctx context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	fail := r.failRead[key]
	r.mu.Unlock()

	if fail {
		return "", false, ErrInjected
	}

	return r.MemoryRepository.Get(ctx, key)
}

// Set implements kv.Repository.Set.
func (r *FaultyRepository) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	fail := r.failSet[key]
	r.mu.Unlock()

	if fail {
		return ErrInjected
	}

	if err := r.write(key); err != nil {
		return err
	}

	return r.MemoryRepository.Set(ctx, key, value)
}

// Remove implements kv.Repository.Remove.
func (r *FaultyRepository) Remove(ctx context.Context, key string) error {
	if err := r.write(key); err != nil {
		return err
	}

	return r.MemoryRepository.Remove(ctx, key)
}

func (r *FaultyRepository) write(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWrite[key] {
		return ErrInjected
	}

	r.writeCount[key]++

	return nil
}

// Value returns the raw stored value, bypassing injected failures.
func (r *FaultyRepository) Value(key string) (string, bool) {
	value, ok, _ := r.MemoryRepository.Get(context.Background(), key)

	return value, ok
}
