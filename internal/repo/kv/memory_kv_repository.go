package kv

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepository implements Repository in process memory. Values do not
// survive a restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{values: make(map[string]string)}
}

// Get implements Repository.Get.
func (r *MemoryRepository) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.values[key]

	return value, ok, nil
}

// Set implements Repository.Set.
func (r *MemoryRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = value

	return nil
}

// Remove implements Repository.Remove.
func (r *MemoryRepository) Remove(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, key)

	return nil
}

// Keys implements Repository.Keys.
func (r *MemoryRepository) Keys(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.values))
	for key := range r.values {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys, nil
}

// Close implements Repository.Close.
func (r *MemoryRepository) Close() error {
	return nil
}
