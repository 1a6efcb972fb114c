package center

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	Env     string // PRD 时使用 zap 的 production 配置
	Service string
	Level   string // debug / info / warn / error
	Zap     bool   // 额外输出一份 zap JSON 日志到 stderr
	Redis   *RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string        // list key，默认 log:<service>
	TTL      time.Duration // 默认 10 天
}

type LogEntry struct {
	Service   string `json:"service"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

// NewLogger 按配置组合 stdout、zap 和 redis 输出，附带 ts、caller、service 字段并按级别过滤
func NewLogger(cfg Config) (log.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) (log.Logger, error) {
	loggers := []log.Logger{log.NewStdLogger(stdout)}

	if cfg.Zap {
		var (
			zl  *zap.Logger
			err error
		)
		if cfg.Env == "PRD" {
			zl, err = zap.NewProduction()
		} else {
			zl, err = zap.NewDevelopment()
		}
		if err != nil {
			return nil, fmt.Errorf("create zap logger: %w", err)
		}
		loggers = append(loggers, NewZapLogger(zl))
	}

	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		loggers = append(loggers, NewRedisHandler(client, cfg.Service, cfg.Redis.Key, cfg.Redis.TTL))
	}

	var logger log.Logger = newMultiLogger(loggers...)
	logger = log.With(logger,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", cfg.Service,
	)
	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(strings.ToUpper(cfg.Level)))), nil
}

type MultiLogger struct {
	loggers []log.Logger
}

func newMultiLogger(loggers ...log.Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
	}
}

// Log 写入所有输出，单个输出失败不影响其他输出
func (m *MultiLogger) Log(level log.Level, keyvals ...interface{}) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Log(level, keyvals...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ZapLogger 将 kratos 的键值对日志写入 zap
type ZapLogger struct {
	log *zap.Logger
}

func NewZapLogger(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{log: zl}
}

func (l *ZapLogger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}

	msg := ""
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}

	switch level {
	case log.LevelDebug:
		l.log.Debug(msg, fields...)
	case log.LevelInfo:
		l.log.Info(msg, fields...)
	case log.LevelWarn:
		l.log.Warn(msg, fields...)
	case log.LevelError:
		l.log.Error(msg, fields...)
	case log.LevelFatal:
		// 不退出进程
		l.log.Error(msg, fields...)
	}
	return nil
}

func (l *ZapLogger) Sync() error {
	return l.log.Sync()
}

// RedisHandler 是一个log.Logger，将日志追加到 Redis list。
type RedisHandler struct {
	client      redis.Cmdable
	serviceName string // 日志json格式中的服务名 用做检索
	key         string
	ttl         time.Duration
}

func NewRedisHandler(client redis.Cmdable, service, key string, ttl time.Duration) *RedisHandler {
	if key == "" {
		key = "log:" + service
	}
	if ttl <= 0 {
		ttl = 10 * 24 * time.Hour
	}
	return &RedisHandler{
		client:      client,
		serviceName: service,
		key:         key,
		ttl:         ttl,
	}
}

// Log 实现了log.Logger接口。
func (h *RedisHandler) Log(level log.Level, keyvals ...interface{}) error {
	entry := &LogEntry{
		Service:   h.serviceName,
		Level:     levelToString(level),
		Timestamp: time.Now().UnixNano(),
		Message:   formatKeyvals(level, keyvals),
	}
	data, err := Json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, h.key, data)
	pipe.Expire(ctx, h.key, h.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func formatKeyvals(level log.Level, keyvals []interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "level=%s", levelToString(level))
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, " %s=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, " %s=MISSING_VALUE", keyvals[i]) // 处理键没有值的情况
		}
	}
	return b.String()
}

// levelToString 将日志级别转换为字符串
func levelToString(level log.Level) string {
	switch level {
	case log.LevelDebug:
		return "DEBUG"
	case log.LevelInfo:
		return "INFO"
	case log.LevelWarn:
		return "WARN"
	case log.LevelError:
		return "ERROR"
	case log.LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
