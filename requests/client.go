package requests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/errs"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter/bucket"
)

const tracerName = "github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"

// Redefining the standard package
var Json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidRetryAttempts = errors.New("requests: retry attempts must be positive")

type doFunc func(req *http.Request) (*http.Response, error)

// Client 限流、签名、重试的 HTTP 客户端。
// 每次物理请求前获取令牌；鉴权错误和 4xx 不重试；5xx、网络错误、超时按指数退避重试 retryAttempts 次。
type Client struct {
	opts    *options
	limiter limiter.Limiter
	tracer  trace.Tracer
	do      doFunc

	requestCount atomic.Int64
	lastLatency  atomic.Int64
}

func NewClient(ops ...Option) (*Client, error) {
	opts := defaultOptions()
	for _, o := range ops {
		o(opts)
	}
	if opts.retryAttempts <= 0 {
		return nil, ErrInvalidRetryAttempts
	}
	if opts.hooks == nil {
		opts.hooks = NopHooks{Exchange: opts.exchange}
	}
	if opts.httpClient == nil {
		opts.httpClient = &http.Client{}
	}
	if opts.proxyUrl != "" {
		proxy, err := url.Parse(opts.proxyUrl)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		opts.httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxy),
		}
	}
	lim := opts.limiter
	if lim == nil {
		b, err := bucket.NewBucket(opts.rateRequests, opts.rateInterval)
		if err != nil {
			return nil, err
		}
		lim = b
	}
	tp := opts.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c := &Client{
		opts:    opts,
		limiter: lim,
		tracer:  tp.Tracer(tracerName),
	}
	c.do = opts.httpClient.Do
	return c, nil
}

func (c *Client) Get(ctx context.Context, path string, params Params, auth bool) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Params: params, AuthRequired: auth})
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, auth bool) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body, AuthRequired: auth})
}

func (c *Client) Put(ctx context.Context, path string, body interface{}, auth bool) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body, AuthRequired: auth})
}

func (c *Client) Delete(ctx context.Context, path string, body interface{}, auth bool) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Body: body, AuthRequired: auth})
}

// Do 发送一次逻辑请求，成功返回 Response，失败返回 errs 中的一种错误
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "requests "+r.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.Path),
			attribute.String("exchange", c.opts.exchange),
		))
	defer span.End()

	resp, err := c.execute(ctx, span, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("attempts", resp.Attempts),
	)
	return resp, nil
}

func (c *Client) execute(ctx context.Context, span trace.Span, r *Request) (*Response, error) {
	body, err := r.encodeBody()
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	header := http.Header{}
	for k, v := range r.Header {
		header[k] = append([]string(nil), v...)
	}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("User-Agent", c.opts.userAgent)

	// 签名只做一次，签名失败直接返回
	if r.AuthRequired {
		signed, err := c.opts.hooks.Sign(r, body, header.Clone())
		if err != nil {
			return nil, err
		}
		for k, v := range signed {
			header[k] = v
		}
	}

	fullURL := c.opts.baseURL + r.RequestPath()
	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))

		if _, err := c.limiter.Acquire(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.send(ctx, r.Method, fullURL, header, body)
		if err != nil {
			return nil, err
		}
		resp.Attempts = attempt
		if resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		apiErr := c.classify(resp)
		if errs.IsAuthentication(apiErr) || resp.StatusCode < http.StatusInternalServerError {
			return nil, backoff.Permanent(apiErr)
		}
		return nil, apiErr
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.opts.retry.NewBackOff()),
		backoff.WithMaxTries(uint(c.opts.retryAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.opts.logger.Warnf("[%s] %s %s attempt %d/%d failed: %v, retry in %s",
				c.opts.exchange, r.Method, r.Path, attempt, c.opts.retryAttempts, err, next)
		}),
	)
	if err != nil {
		// 最后一次尝试返回的 Permanent 不会被 Retry 解包
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if err == nil {
			err = errs.NewNetworkError(c.opts.exchange, nil)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, fullURL string, header http.Header, body []byte) (*Response, error) {
	actx := ctx
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, method, fullURL, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header = header.Clone()

	start := time.Now()
	c.requestCount.Add(1)
	res, err := c.do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	elapsed := time.Since(start)
	c.lastLatency.Store(int64(elapsed))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	if info := c.opts.hooks.RateLimitInfo(res.Header); info != nil {
		c.opts.logger.Debugf("[%s] rate limit: limit=%d remaining=%d reset=%s",
			c.opts.exchange, info.Limit, info.Remaining, info.ResetAt)
	}

	return &Response{
		StatusCode: res.StatusCode,
		Body:       data,
		Header:     res.Header,
		Elapsed:    elapsed,
	}, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	// 调用方取消，不再重试
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return errs.NewTimeoutError(c.opts.exchange, c.opts.timeout, err)
	}
	return errs.NewNetworkError(c.opts.exchange, err)
}

func (c *Client) classify(resp *Response) error {
	if err := c.opts.hooks.ClassifyError(resp.StatusCode, resp.Header, resp.Body); err != nil {
		return err
	}
	return errs.FromStatus(c.opts.exchange, resp.StatusCode, resp.Header, resp.Body)
}

// RequestCount 已发送的物理请求数
func (c *Client) RequestCount() int64 {
	return c.requestCount.Load()
}

// LastLatency 最近一次请求耗时
func (c *Client) LastLatency() time.Duration {
	return time.Duration(c.lastLatency.Load())
}

func (c *Client) Exchange() string {
	return c.opts.exchange
}
