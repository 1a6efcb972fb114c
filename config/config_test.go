package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/bucket"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/window"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/xrate"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/utils"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func unsetAfter(t *testing.T, keys ...string) {
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})
}

func TestDefaults(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Rest.Timeout)
	assert.Equal(t, 3, cfg.Rest.RetryAttempts)
	assert.Equal(t, 5, cfg.Stream.ReconnectAttempts)
	assert.Equal(t, time.Minute, cfg.Stream.ReconnectDelayMax)
	assert.Equal(t, 10*time.Second, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, 1000, cfg.Stream.QueueSize)
	assert.Equal(t, LimiterMemory, cfg.Limiter.Backend)
	assert.Equal(t, 10, cfg.Limiter.Capacity)
	assert.Nil(t, cfg.Credentials())
	assert.Nil(t, cfg.LoggerConfig().Redis)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netkit.yaml")
	writeFile(t, path, `
rest:
  timeout: 5s
  retry_attempts: 4
stream:
  reconnect_attempts: 2
  pong_timeout: 45s
limiter:
  backend: window
  capacity: 20
  interval: 2s
kafka:
  brokers: ["k1:9092", "k2:9092"]
  topic: books
`)
	t.Setenv("NETKIT_REST_RETRY_ATTEMPTS", "6")
	t.Setenv("NETKIT_STREAM_QUEUE_SIZE", "64")
	t.Setenv("POLYMARKET_API_KEY", "key-1")
	t.Setenv("POLYMARKET_SECRET", "c2VjcmV0")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Rest.Timeout)
	assert.Equal(t, 6, cfg.Rest.RetryAttempts)
	assert.Equal(t, 2, cfg.Stream.ReconnectAttempts)
	assert.Equal(t, 45*time.Second, cfg.Stream.PongTimeout)
	assert.Equal(t, 64, cfg.Stream.QueueSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	creds := cfg.Credentials()
	require.NotNil(t, creds)
	assert.Equal(t, "key-1", creds.APIKey)
	assert.Equal(t, "c2VjcmV0", creds.Secret)

	l, err := cfg.NewLimiter(nil)
	require.NoError(t, err)
	assert.IsType(t, &window.Window{}, l)

	assert.Len(t, cfg.StreamOptions(), 5)
	assert.NotEmpty(t, cfg.RequestOptions())
	assert.Len(t, cfg.KafkaOptions(), 2)
}

func TestEncryptedCredentials(t *testing.T) {
	const keyStr = "0123456789abcdef0123456789abcdef"
	key, err := utils.ParseKey(keyStr)
	require.NoError(t, err)
	enc, err := utils.Encrypt("c2VjcmV0", key)
	require.NoError(t, err)

	t.Setenv("POLYMARKET_API_KEY", "key-1")
	t.Setenv("POLYMARKET_SECRET", utils.EncryptedPrefix+enc)
	t.Setenv(EncryptionKeyEnv, "")

	_, err = load("")
	assert.ErrorIs(t, err, utils.ErrKeyNotSet)

	t.Setenv(EncryptionKeyEnv, keyStr)
	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "c2VjcmV0", cfg.Credentials().Secret)
	assert.Equal(t, "key-1", cfg.Credentials().APIKey)
}

func TestValidate(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Rest.RetryAttempts = 0
	bad.Stream.QueueSize = 0
	bad.Limiter.Backend = "etcd"
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry_attempts")
	assert.Contains(t, err.Error(), "queue_size")
	assert.Contains(t, err.Error(), "etcd")

	bad = *cfg
	bad.Limiter.Backend = LimiterRedis
	assert.ErrorContains(t, bad.Validate(), "redis.addr")

	bad = *cfg
	bad.Limiter.Interval = 0
	assert.Error(t, bad.Validate())
}

func TestNewLimiterBackends(t *testing.T) {
	cfg, err := load("")
	require.NoError(t, err)

	l, err := cfg.NewLimiter(nil)
	require.NoError(t, err)
	assert.IsType(t, &bucket.Bucket{}, l)

	cfg.Limiter.Backend = LimiterXRate
	l, err = cfg.NewLimiter(nil)
	require.NoError(t, err)
	assert.IsType(t, &xrate.Limiter{}, l)

	cfg.Limiter.Backend = LimiterRedis
	_, err = cfg.NewLimiter(nil)
	assert.Error(t, err)
}

func TestLoadEnvFiles(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(child, 0o755))

	writeFile(t, filepath.Join(root, ".env.config"), "NETKIT_TEST_SHARED=from-config\nNETKIT_TEST_SECRET=placeholder\n")
	writeFile(t, filepath.Join(root, "a", ".env"), "NETKIT_TEST_SECRET=from-env\n")
	unsetAfter(t, "NETKIT_TEST_SHARED", "NETKIT_TEST_SECRET")

	loaded, err := LoadEnvFiles(child)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, "from-config", os.Getenv("NETKIT_TEST_SHARED"))
	assert.Equal(t, "from-env", os.Getenv("NETKIT_TEST_SECRET"))
}

func TestFindUpDepth(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "1", "2", "3", "4", "5", "6")
	require.NoError(t, os.MkdirAll(deep, 0o755))
	writeFile(t, filepath.Join(root, ".env"), "X=1\n")

	assert.Equal(t, "", findUp(deep, ".env"))
	assert.Equal(t, filepath.Join(root, ".env"), findUp(filepath.Dir(deep), ".env"))
}
