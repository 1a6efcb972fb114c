package redislimiter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

func newClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisLimiter(t *testing.T) {
	c := newClient(t)
	name := uuid.NewString()
	l, err := New(c, limiter.WithCapacity(3), limiter.WithInterval(300*time.Millisecond), limiter.WithName(name))
	require.NoError(t, err)
	defer c.Del(context.Background(), l.Key())

	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())

	waited, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Greater(t, waited, time.Duration(0))
}

func TestRedisLimiterShared(t *testing.T) {
	c := newClient(t)
	name := uuid.NewString()
	a, err := New(c, limiter.WithCapacity(2), limiter.WithInterval(time.Hour), limiter.WithName(name))
	require.NoError(t, err)
	b, err := New(c, limiter.WithCapacity(2), limiter.WithInterval(time.Hour), limiter.WithName(name))
	require.NoError(t, err)
	defer c.Del(context.Background(), a.Key())

	assert.True(t, a.TryAcquire())
	assert.True(t, b.TryAcquire())
	assert.False(t, a.TryAcquire())
	assert.False(t, b.TryAcquire())
}

func TestRedisLimiterInvalid(t *testing.T) {
	_, err := New(nil, limiter.WithCapacity(0))
	assert.ErrorIs(t, err, limiter.ErrInvalidCapacity)
}
