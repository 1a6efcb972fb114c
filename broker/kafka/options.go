package kafka

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const defaultAddr = "127.0.0.1:9092"

type Option func(*options)

type options struct {
	addrs        []string
	batchSize    int
	batchTimeout time.Duration
	writeTimeout time.Duration
	async        bool
	logger       *log.Helper
}

func defaultOptions() *options {
	return &options{
		addrs:        []string{defaultAddr},
		batchSize:    100,
		batchTimeout: 10 * time.Millisecond,
		writeTimeout: 10 * time.Second,
		logger:       log.NewHelper(log.DefaultLogger),
	}
}

func WithAddrs(addrs ...string) Option {
	return func(o *options) { o.addrs = addrs }
}

func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

func WithBatchTimeout(d time.Duration) Option {
	return func(o *options) { o.batchTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithAsync 异步写入，Publish 不等待 broker 确认，错误只记录日志
func WithAsync(async bool) Option {
	return func(o *options) { o.async = async }
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = log.NewHelper(logger) }
}
