package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_SecondOwnerIsRejected(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	f := NewFactory(client, 30*time.Second)
	assert.True(t, f.Distributed())

	first := f.NewLock("campaign:op-1:Summer")
	second := f.NewLock("campaign:op-1:Summer")

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:campaign:op-1:Summer"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner release leaves the key alone
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:campaign:op-1:Summer"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:campaign:op-1:Summer"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, "k", time.Second)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewRedisLock(client, "k", time.Second).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil, time.Second)
	assert.False(t, f.Distributed())

	a := f.NewLock("x")
	b := f.NewLock("x")
	other := f.NewLock("y")

	ok, _ := a.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)
	ok, _ = other.Acquire(ctx)
	assert.True(t, ok)

	// releasing a lock that was never acquired is a no-op
	require.NoError(t, b.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.True(t, ok)
}
