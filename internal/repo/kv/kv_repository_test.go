package kv_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/mkrupp/portal-session/internal/repo/kv"
)

func newSQLiteRepo(t *testing.T, path string) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(SQLiteRepositoryConfig{DatabasePath: path})
	require.NoError(t, err)

	return repo
}

func backends(t *testing.T) map[string]Repository {
	t.Helper()

	sqlite := newSQLiteRepo(t, filepath.Join(t.TempDir(), "kv.db"))
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Repository{
		"sqlite": sqlite,
		"memory": NewMemoryRepository(),
	}
}

func TestRepository_Contract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			value, ok, err := repo.Get(ctx, "session-token")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, value)

			require.NoError(t, repo.Set(ctx, "session-token", "abc"))
			require.NoError(t, repo.Set(ctx, "pin-enabled", "true"))
			require.NoError(t, repo.Set(ctx, "session-token", "def"))

			value, ok, err = repo.Get(ctx, "session-token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "def", value)

			keys, err := repo.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"pin-enabled", "session-token"}, keys)

			require.NoError(t, repo.Remove(ctx, "session-token"))
			require.NoError(t, repo.Remove(ctx, "session-token"))

			_, ok, err = repo.Get(ctx, "session-token")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, repo.Set(ctx, "empty", ""))
			value, ok, err = repo.Get(ctx, "empty")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, value)
		})
	}
}

func TestSQLiteRepository_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	repo := newSQLiteRepo(t, path)
	require.NoError(t, repo.Set(ctx, "user-pin", "1234"))
	require.NoError(t, repo.Close())

	repo = newSQLiteRepo(t, path)
	t.Cleanup(func() { _ = repo.Close() })

	value, ok, err := repo.Get(ctx, "user-pin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1234", value)
}

func TestSQLiteRepository_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLiteRepo(t, filepath.Join(t.TempDir(), "kv.db"))
	t.Cleanup(func() { _ = repo.Close() })

	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, repo.Set(ctx, "login-in-progress", "true"))
			assert.NoError(t, repo.Remove(ctx, "login-in-progress"))
		}()
	}

	wg.Wait()

	_, ok, err := repo.Get(ctx, "login-in-progress")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFactory(t *testing.T) {
	t.Parallel()

	repo, err := Factory(Config{Driver: DriverMemory})()
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	_, err = Factory(Config{Driver: "redis"})()
	require.ErrorIs(t, err, ErrUnknownDriver)
}
