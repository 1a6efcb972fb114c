package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/broker/kafka"
	center "github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/cust/log"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/exchange/polymarket"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/bucket"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/redislimiter"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/window"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/xrate"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/tracing"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/utils"
)

const EnvPrefix = "NETKIT"

// EncryptionKeyEnv 解密 enc: 前缀凭证的密钥
const EncryptionKeyEnv = EnvPrefix + "_ENCRYPTION_KEY"

const (
	LimiterMemory = "memory"
	LimiterXRate  = "xrate"
	LimiterWindow = "window"
	LimiterRedis  = "redis"
)

type Config struct {
	Rest       RestConfig       `mapstructure:"rest"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Limiter    LimiterConfig    `mapstructure:"limiter"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
}

type RestConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RetryDelayMax   time.Duration `mapstructure:"retry_delay_max"`
	RetryMultiplier float64       `mapstructure:"retry_multiplier"`
	ProxyURL        string        `mapstructure:"proxy_url"`
	UserAgent       string        `mapstructure:"user_agent"`
}

type StreamConfig struct {
	ReconnectAttempts   int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	ReconnectDelayMax   time.Duration `mapstructure:"reconnect_delay_max"`
	ReconnectMultiplier float64       `mapstructure:"reconnect_multiplier"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	PongTimeout         time.Duration `mapstructure:"pong_timeout"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	QueueSize           int           `mapstructure:"queue_size"`
}

type LimiterConfig struct {
	Backend  string        `mapstructure:"backend"`
	Capacity int           `mapstructure:"capacity"`
	Interval time.Duration `mapstructure:"interval"`
	Name     string        `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Async   bool     `mapstructure:"async"`
}

type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Env      string        `mapstructure:"env"`
	Service  string        `mapstructure:"service"`
	Level    string        `mapstructure:"level"`
	Zap      bool          `mapstructure:"zap"`
	RedisKey string        `mapstructure:"redis_key"`
	RedisTTL time.Duration `mapstructure:"redis_ttl"`
}

type PolymarketConfig struct {
	Address    string `mapstructure:"address"`
	APIKey     string `mapstructure:"api_key"`
	Secret     string `mapstructure:"secret"`
	Passphrase string `mapstructure:"passphrase"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rest.timeout", requests.DefaultTimeout)
	v.SetDefault("rest.retry_attempts", requests.DefaultRetryAttempts)
	v.SetDefault("rest.retry_delay", requests.DefaultRetryDelay)
	v.SetDefault("rest.retry_delay_max", requests.DefaultRetryDelayMax)
	v.SetDefault("rest.retry_multiplier", requests.DefaultRetryMultiplier)
	v.SetDefault("rest.proxy_url", "")
	v.SetDefault("rest.user_agent", requests.DefaultUserAgent)

	v.SetDefault("stream.reconnect_attempts", stream.DefaultReconnectAttempts)
	v.SetDefault("stream.reconnect_delay", stream.DefaultReconnectDelay)
	v.SetDefault("stream.reconnect_delay_max", stream.DefaultReconnectDelayMax)
	v.SetDefault("stream.reconnect_multiplier", stream.DefaultReconnectMultiplier)
	v.SetDefault("stream.heartbeat_interval", polymarket.HeartbeatInterval)
	v.SetDefault("stream.pong_timeout", time.Duration(0))
	v.SetDefault("stream.connect_timeout", stream.DefaultConnectTimeout)
	v.SetDefault("stream.queue_size", stream.DefaultQueueSize)

	v.SetDefault("limiter.backend", LimiterMemory)
	v.SetDefault("limiter.capacity", requests.DefaultRateRequests)
	v.SetDefault("limiter.interval", requests.DefaultRateInterval)
	v.SetDefault("limiter.name", polymarket.Name)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
	v.SetDefault("kafka.async", false)

	v.SetDefault("tracing.exporter", tracing.ExporterNone)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("log.env", "DEV")
	v.SetDefault("log.service", "netkit")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.zap", false)
	v.SetDefault("log.redis_key", "")
	v.SetDefault("log.redis_ttl", time.Duration(0))

	v.SetDefault("polymarket.address", "")
	v.SetDefault("polymarket.api_key", "")
	v.SetDefault("polymarket.secret", "")
	v.SetDefault("polymarket.passphrase", "")
}

// Load 加载 .env.config / .env，再读取配置文件(可为空)和 NETKIT_* 环境变量。
// Polymarket 凭证同时接受 POLYMARKET_ADDRESS 等不带前缀的变量。
func Load(path string) (*Config, error) {
	if _, err := LoadEnvFiles("."); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"address", "api_key", "secret", "passphrase"} {
		_ = v.BindEnv("polymarket."+key,
			EnvPrefix+"_POLYMARKET_"+strings.ToUpper(key),
			"POLYMARKET_"+strings.ToUpper(key))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.revealSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// revealSecrets 解密 polymarket 下 enc: 开头的字段，没有密文时不需要密钥
func (c *Config) revealSecrets() error {
	p := &c.Polymarket
	fields := map[string]*string{
		"api_key":    &p.APIKey,
		"secret":     &p.Secret,
		"passphrase": &p.Passphrase,
	}
	var key *[32]byte
	for name, f := range fields {
		if !utils.IsEncrypted(*f) {
			continue
		}
		if key == nil {
			k, err := utils.LoadEncryptionKey(EncryptionKeyEnv)
			if err != nil {
				return fmt.Errorf("polymarket.%s: %w", name, err)
			}
			key = k
		}
		v, err := utils.Reveal(*f, key)
		if err != nil {
			return fmt.Errorf("polymarket.%s: %w", name, err)
		}
		*f = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Rest.RetryAttempts <= 0 {
		errs = append(errs, errors.New("rest.retry_attempts must be positive"))
	}
	if c.Rest.RetryMultiplier < 1 {
		errs = append(errs, errors.New("rest.retry_multiplier must be >= 1"))
	}
	if c.Stream.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("stream.reconnect_attempts must not be negative"))
	}
	if c.Stream.ReconnectMultiplier < 1 {
		errs = append(errs, errors.New("stream.reconnect_multiplier must be >= 1"))
	}
	if c.Stream.QueueSize <= 0 {
		errs = append(errs, errors.New("stream.queue_size must be positive"))
	}
	if err := limiter.Validate(c.Limiter.Capacity, c.Limiter.Interval); err != nil {
		errs = append(errs, fmt.Errorf("limiter: %w", err))
	}
	switch c.Limiter.Backend {
	case LimiterMemory, LimiterXRate, LimiterWindow:
	case LimiterRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("limiter.backend redis requires redis.addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown limiter.backend %q", c.Limiter.Backend))
	}
	return errors.Join(errs...)
}

func (c *Config) RequestOptions() []requests.Option {
	opts := []requests.Option{
		requests.Timeout(c.Rest.Timeout),
		requests.RetryAttempts(c.Rest.RetryAttempts),
		requests.RetryPolicy(c.Rest.RetryDelay, c.Rest.RetryDelayMax, c.Rest.RetryMultiplier),
		requests.RateLimit(c.Limiter.Capacity, c.Limiter.Interval),
	}
	if c.Rest.ProxyURL != "" {
		opts = append(opts, requests.ProxyURL(c.Rest.ProxyURL))
	}
	if c.Rest.UserAgent != "" {
		opts = append(opts, requests.UserAgent(c.Rest.UserAgent))
	}
	return opts
}

func (c *Config) StreamOptions() []stream.Option {
	s := c.Stream
	return []stream.Option{
		stream.WithReconnect(s.ReconnectAttempts, s.ReconnectDelay, s.ReconnectDelayMax, s.ReconnectMultiplier),
		stream.WithHeartbeatInterval(s.HeartbeatInterval),
		stream.WithPongTimeout(s.PongTimeout),
		stream.WithConnectTimeout(s.ConnectTimeout),
		stream.WithQueueSize(s.QueueSize),
	}
}

func (c *Config) LoggerConfig() center.Config {
	lc := center.Config{
		Env:     c.Log.Env,
		Service: c.Log.Service,
		Level:   c.Log.Level,
		Zap:     c.Log.Zap,
	}
	if c.Redis.Addr != "" && c.Log.RedisKey != "" {
		lc.Redis = &center.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Key:      c.Log.RedisKey,
			TTL:      c.Log.RedisTTL,
		}
	}
	return lc
}

func (c *Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		Insecure:    c.Tracing.Insecure,
		Service:     c.Log.Service,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

func (c *Config) KafkaOptions() []kafka.Option {
	opts := []kafka.Option{kafka.WithAsync(c.Kafka.Async)}
	if len(c.Kafka.Brokers) > 0 {
		opts = append(opts, kafka.WithAddrs(c.Kafka.Brokers...))
	}
	return opts
}

func (c *Config) RedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// Credentials 没有配置 api key 时返回 nil
func (c *Config) Credentials() *polymarket.Credentials {
	p := c.Polymarket
	if p.APIKey == "" {
		return nil
	}
	return &polymarket.Credentials{
		Address:    p.Address,
		APIKey:     p.APIKey,
		Secret:     p.Secret,
		Passphrase: p.Passphrase,
	}
}

// NewLimiter 按 limiter.backend 创建限流器，redis 后端需要传入 client
func (c *Config) NewLimiter(rdb redis.Scripter) (limiter.Limiter, error) {
	opts := []limiter.Option{
		limiter.WithCapacity(c.Limiter.Capacity),
		limiter.WithInterval(c.Limiter.Interval),
		limiter.WithName(c.Limiter.Name),
	}
	switch c.Limiter.Backend {
	case LimiterXRate:
		return xrate.New(opts...)
	case LimiterWindow:
		return window.New(opts...)
	case LimiterRedis:
		if rdb == nil {
			return nil, errors.New("redis limiter requires a redis client")
		}
		return redislimiter.New(rdb, opts...)
	default:
		return bucket.New(opts...)
	}
}
