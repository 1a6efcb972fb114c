package requests

import (
	"net/http"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/retry"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultRateRequests    = 10
	DefaultRateInterval    = time.Second
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = time.Second
	DefaultRetryDelayMax   = 10 * time.Second
	DefaultRetryMultiplier = 2.0
	DefaultUserAgent       = "netkit"
)

type Option func(o *options)

type options struct {
	exchange      string
	baseURL       string
	proxyUrl      string
	userAgent     string
	timeout       time.Duration
	rateRequests  int
	rateInterval  time.Duration
	retryAttempts int
	retry         retry.Policy
	httpClient    *http.Client
	limiter       limiter.Limiter
	hooks         Hooks
	logger        *log.Helper
	tracer        trace.TracerProvider
}

func defaultOptions() *options {
	return &options{
		userAgent:     DefaultUserAgent,
		timeout:       DefaultTimeout,
		rateRequests:  DefaultRateRequests,
		rateInterval:  DefaultRateInterval,
		retryAttempts: DefaultRetryAttempts,
		retry:         retry.NewPolicy(DefaultRetryDelay, DefaultRetryDelayMax, DefaultRetryMultiplier),
		logger:        log.NewHelper(log.DefaultLogger),
	}
}

func Exchange(name string) Option {
	return func(o *options) { o.exchange = name }
}

func BaseUrl(b string) Option {
	return func(o *options) { o.baseURL = b }
}

func ProxyURL(p string) Option {
	return func(o *options) { o.proxyUrl = p }
}

func UserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func HttpClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// Timeout 单次物理请求的超时
func Timeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// RateLimit 每 interval 最多 n 次请求，未指定 Limiter 时用于创建本地令牌桶
func RateLimit(n int, interval time.Duration) Option {
	return func(o *options) {
		o.rateRequests = n
		o.rateInterval = interval
	}
}

// Limiter 使用外部限流器，例如 redislimiter
func Limiter(l limiter.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func RetryAttempts(n int) Option {
	return func(o *options) { o.retryAttempts = n }
}

func RetryPolicy(initial, max time.Duration, multiplier float64) Option {
	return func(o *options) { o.retry = retry.NewPolicy(initial, max, multiplier) }
}

func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

func Logger(logger log.Logger) Option {
	return func(o *options) { o.logger = log.NewHelper(logger) }
}

func TracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}
