package stream

import (
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/retry"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/websocket"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/websocket/gorilla"
)

const (
	DefaultReconnectAttempts   = 5
	DefaultReconnectDelay      = time.Second
	DefaultReconnectDelayMax   = 60 * time.Second
	DefaultReconnectMultiplier = 2.0
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultConnectTimeout      = 30 * time.Second
	DefaultQueueSize           = 1000
)

type Option func(*options)

type options struct {
	exchange          string
	url               string
	header            http.Header
	reconnectAttempts int
	reconnect         retry.Policy
	heartbeatInterval time.Duration
	pongTimeout       time.Duration
	connectTimeout    time.Duration
	queueSize         int
	connFactory       websocket.ConnFactory
	logger            *log.Helper
}

func defaultOptions() *options {
	return &options{
		header:            http.Header{},
		reconnectAttempts: DefaultReconnectAttempts,
		reconnect:         retry.NewPolicy(DefaultReconnectDelay, DefaultReconnectDelayMax, DefaultReconnectMultiplier),
		heartbeatInterval: DefaultHeartbeatInterval,
		connectTimeout:    DefaultConnectTimeout,
		queueSize:         DefaultQueueSize,
		connFactory:       gorilla.Factory(websocket.DefaultConfig()),
		logger:            log.NewHelper(log.DefaultLogger),
	}
}

func WithExchange(name string) Option {
	return func(o *options) { o.exchange = name }
}

func WithURL(url string) Option {
	return func(o *options) { o.url = url }
}

func WithHeader(header http.Header) Option {
	return func(o *options) { o.header = header.Clone() }
}

// WithReconnect 重连次数和退避参数，attempts 为 0 时不重连，直接触发 fallback
func WithReconnect(attempts int, initial, max time.Duration, multiplier float64) Option {
	return func(o *options) {
		o.reconnectAttempts = attempts
		o.reconnect = retry.NewPolicy(initial, max, multiplier)
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) { o.heartbeatInterval = d }
}

// WithPongTimeout 超过 d 没有收到任何数据则主动断开并重连，0 表示不检查
func WithPongTimeout(d time.Duration) Option {
	return func(o *options) { o.pongTimeout = d }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

func WithConnFactory(f websocket.ConnFactory) Option {
	return func(o *options) { o.connFactory = f }
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = log.NewHelper(logger) }
}
