// internal/lock/redis_test.go
package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return client, mr
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while the lease is held", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		locker := NewRedisLocker(client)

		lease, err := locker.Acquire(ctx, "sync-cycle", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "sync-cycle", time.Minute)
		assert.ErrorIs(t, err, ErrNotAcquired)

		require.NoError(t, lease.Release(ctx))
		_, err = locker.Acquire(ctx, "sync-cycle", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("lease expires after its ttl", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		locker := NewRedisLocker(client)

		_, err := locker.Acquire(ctx, "sync-cycle", time.Minute)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		_, err = locker.Acquire(ctx, "sync-cycle", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("stale release leaves the new holder alone", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		locker := NewRedisLocker(client)

		stale, err := locker.Acquire(ctx, "sync-cycle", time.Minute)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		_, err = locker.Acquire(ctx, "sync-cycle", time.Minute)
		require.NoError(t, err)

		require.NoError(t, stale.Release(ctx))
		assert.True(t, mr.Exists(keyPrefix+"sync-cycle"))
	})

	t.Run("different names do not conflict", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		locker := NewRedisLocker(client)

		_, err := locker.Acquire(ctx, "a", time.Minute)
		require.NoError(t, err)
		_, err = locker.Acquire(ctx, "b", time.Minute)
		assert.NoError(t, err)
	})
}
