package xrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXrateBurstThenWait(t *testing.T) {
	l, err := NewLimiter(5, time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		wait, err := l.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), wait)
	}

	wait, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.InDelta(t, float64(200*time.Millisecond), float64(wait), float64(20*time.Millisecond))
}

func TestXrateTryAcquire(t *testing.T) {
	l, err := NewLimiter(1, time.Hour)
	require.NoError(t, err)

	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
}

func TestXrateCancelReturnsToken(t *testing.T) {
	l, err := NewLimiter(1, time.Hour)
	require.NoError(t, err)
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, l.Tokens(), 1.0)
}

func TestXrateInvalid(t *testing.T) {
	_, err := NewLimiter(0, time.Second)
	assert.Error(t, err)
	_, err = New()
	assert.NoError(t, err)
}
