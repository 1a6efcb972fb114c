package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		unit time.Duration
		num  int
	}{
		{"10s", time.Second, 10},
		{" 500ms ", time.Millisecond, 500},
		{"1m", time.Minute, 1},
		{"2H", time.Hour, 2},
		{"s", time.Second, 1},
	}
	for _, tt := range tests {
		unit, num, err := ParsePeriod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.unit, unit, tt.in)
		assert.Equal(t, tt.num, num, tt.in)
	}

	_, _, err := ParsePeriod("10d")
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	c, d, err := ParseRate("10/1s")
	require.NoError(t, err)
	assert.Equal(t, 10, c)
	assert.Equal(t, time.Second, d)

	c, d, err = ParseRate("100 / 10m")
	require.NoError(t, err)
	assert.Equal(t, 100, c)
	assert.Equal(t, 10*time.Minute, d)

	for _, bad := range []string{"", "10", "x/1s", "0/1s", "5/0s", "5/1d"} {
		_, _, err := ParseRate(bad)
		assert.Error(t, err, bad)
	}
}

func TestOptions(t *testing.T) {
	o := NewOptions(WithRate("5/200ms"), WithName("clob"))
	assert.Equal(t, 5, o.Capacity)
	assert.Equal(t, 200*time.Millisecond, o.Interval)
	assert.Equal(t, "clob", o.Name)

	o = NewOptions(WithRate("broken"))
	assert.Equal(t, DefaultCapacity, o.Capacity)
	assert.Equal(t, DefaultInterval, o.Interval)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
