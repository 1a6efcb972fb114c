package center

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordLogger struct {
	entries [][]interface{}
	err     error
}

func (r *recordLogger) Log(level log.Level, keyvals ...interface{}) error {
	r.entries = append(r.entries, keyvals)
	return r.err
}

func TestMultiLogger(t *testing.T) {
	a := &recordLogger{err: errors.New("sink down")}
	b := &recordLogger{}
	m := newMultiLogger(a, b)

	err := m.Log(log.LevelInfo, "msg", "hello")
	assert.Error(t, err)
	assert.Len(t, a.entries, 1)
	assert.Len(t, b.entries, 1)
}

func TestNewLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{Service: "netkit", Level: "warn"}, &buf)
	require.NoError(t, err)

	h := log.NewHelper(logger)
	h.Info("hidden")
	h.Warnf("reconnect attempt %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "reconnect attempt 2")
	assert.Contains(t, out, "service=netkit")
	assert.Contains(t, out, "caller=")
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLogger(zap.New(core))

	require.NoError(t, l.Log(log.LevelWarn, log.DefaultMessageKey, "slow", "exchange", "polymarket", "odd"))
	require.Equal(t, 1, logs.Len())

	entry := logs.All()[0]
	assert.Equal(t, "slow", entry.Message)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "polymarket", fields["exchange"])
	assert.Equal(t, "MISSING_VALUE", fields["odd"])
}

func TestFormatKeyvals(t *testing.T) {
	assert.Equal(t, "level=ERROR msg=boom extra=MISSING_VALUE",
		formatKeyvals(log.LevelError, []interface{}{"msg", "boom", "extra"}))
	assert.Equal(t, "UNKNOWN", levelToString(log.Level(99)))
}

func TestRedisHandler(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	key := "log:test:" + uuid.NewString()
	h := NewRedisHandler(client, "netkit", key, 0)
	require.NoError(t, h.Log(log.LevelInfo, "msg", "hello"))

	ctx := context.Background()
	defer client.Del(ctx, key)
	vals, err := client.LRange(ctx, key, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, vals, 1)

	var entry LogEntry
	require.NoError(t, Json.Unmarshal([]byte(vals[0]), &entry))
	assert.Equal(t, "netkit", entry.Service)
	assert.Equal(t, "INFO", entry.Level)
	assert.Contains(t, entry.Message, "msg=hello")
}
