package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, err := l.Acquire(ctx, Keys.ExpireSweep(), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, Keys.ExpireSweep(), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = l.Acquire(ctx, Keys.PurgeSweep(), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different keys are independent")

	held, err := l.IsHeld(ctx, Keys.ExpireSweep())
	require.NoError(t, err)
	assert.True(t, held)

	released, err := l.Release(ctx, Keys.ExpireSweep())
	require.NoError(t, err)
	assert.True(t, released)

	released, err = l.Release(ctx, Keys.ExpireSweep())
	require.NoError(t, err)
	assert.False(t, released)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.Acquire(ctx, "k", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)

	held, err := l.IsHeld(ctx, "k")
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLocker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryLocker().Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoOpLocker(t *testing.T) {
	ctx := context.Background()
	l := NewNoOpLocker()

	ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	held, err := l.IsHeld(ctx, "k")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("CDN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CDN_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	prefix := "cdn-test:" + uuid.NewString() + ":"
	a := NewRedisLocker(client, prefix)
	b := NewRedisLocker(client, prefix)

	ok, err := a.Acquire(ctx, Keys.PurgeSweep(), 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, Keys.PurgeSweep(), 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := b.Release(ctx, Keys.PurgeSweep())
	require.NoError(t, err)
	assert.False(t, released, "only the owner can release")

	held, err := b.IsHeld(ctx, Keys.PurgeSweep())
	require.NoError(t, err)
	assert.True(t, held)

	released, err = a.Release(ctx, Keys.PurgeSweep())
	require.NoError(t, err)
	assert.True(t, released)
}
