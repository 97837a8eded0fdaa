package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/stocksync/pkg/storage"
)

func exerciseStorage(t *testing.T, s storage.Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "token")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "token", "abc"))
	v, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Set(ctx, "token", "def"))
	v, err = s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, s.Delete(ctx, "token"))
	_, err = s.Get(ctx, "token")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, "token"))

	assert.ErrorIs(t, s.Set(ctx, "", "x"), storage.ErrEmptyKey)
	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, storage.ErrEmptyKey)
}

func TestMemory(t *testing.T) {
	m := storage.NewMemory()
	exerciseStorage(t, m)
	assert.Zero(t, m.Len())
	assert.NoError(t, storage.Close(m))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := storage.OpenSQLite(path)
	require.NoError(t, err)
	exerciseStorage(t, s)

	t.Run("survives reopen", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "active_table_id", "t1"))
		require.NoError(t, storage.Close(s))

		reopened, err := storage.OpenSQLite(path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = reopened.Close() })

		v, err := reopened.Get(ctx, "active_table_id")
		require.NoError(t, err)
		assert.Equal(t, "t1", v)
	})
}

func TestConnectRedis(t *testing.T) {
	t.Run("empty url", func(t *testing.T) {
		_, err := storage.ConnectRedis(context.Background(), storage.RedisConfig{})
		assert.ErrorIs(t, err, storage.ErrInvalidURL)
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := storage.ConnectRedis(context.Background(), storage.RedisConfig{ConnectionURL: "http://nope"})
		assert.ErrorIs(t, err, storage.ErrInvalidURL)
	})

	t.Run("unreachable server", func(t *testing.T) {
		_, err := storage.ConnectRedis(context.Background(), storage.RedisConfig{
			ConnectionURL:  "redis://127.0.0.1:1/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: 2 * time.Second,
		})
		assert.ErrorIs(t, err, storage.ErrRedisNotReady)
	})
}

// TestRedis runs against a live server when STOCKSYNC_TEST_REDIS_URL is set.
func TestRedis(t *testing.T) {
	url := os.Getenv("STOCKSYNC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STOCKSYNC_TEST_REDIS_URL not set")
	}

	client, err := storage.ConnectRedis(context.Background(), storage.RedisConfig{
		ConnectionURL:  url,
		RetryAttempts:  1,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	s := storage.NewRedis(client, "stocksync-test:"+t.Name()+":")
	t.Cleanup(func() { _ = storage.Close(s) })
	exerciseStorage(t, s)
}
