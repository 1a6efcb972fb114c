package limiter

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	DefaultCapacity = 10
	DefaultInterval = time.Second
)

type Option func(*Options)

type Options struct {
	// 周期内允许的请求数
	Capacity int
	// 周期
	Interval time.Duration
	// 分布式限流使用的 key
	Name   string
	Logger *log.Helper
}

func NewOptions(opts ...Option) *Options {
	o := &Options{
		Capacity: DefaultCapacity,
		Interval: DefaultInterval,
		Name:     "default",
		Logger:   log.NewHelper(log.DefaultLogger),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithCapacity(c int) Option {
	return func(o *Options) {
		o.Capacity = c
	}
}

func WithInterval(d time.Duration) Option {
	return func(o *Options) {
		o.Interval = d
	}
}

// WithRate 使用 "10/1s" 格式设置容量和周期，解析失败时保持原值
func WithRate(rate string) Option {
	return func(o *Options) {
		c, d, err := ParseRate(rate)
		if err != nil {
			o.Logger.Warnf("invalid rate %q: %v", rate, err)
			return
		}
		o.Capacity = c
		o.Interval = d
	}
}

func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.Logger = log.NewHelper(logger)
	}
}
