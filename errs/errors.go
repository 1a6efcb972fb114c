package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitly/go-simplejson"
)

// Kind 错误分类
type Kind int

const (
	KindUnknown         Kind = iota
	KindAuthentication       // 鉴权失败，不重试
	KindClientRequest        // 4xx，不重试
	KindServerTransient      // 5xx，重试
	KindNetwork              // 网络错误，重试
	KindTimeout              // 超时，重试
	KindRateLimit            // 429，直接返回
	KindConnection           // 建立长连接失败
	KindSubscription         // 订阅失败
	KindDisconnected         // 未连接
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindClientRequest:
		return "client_request"
	case KindServerTransient:
		return "server_transient"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindConnection:
		return "connection"
	case KindSubscription:
		return "subscription"
	case KindDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Error 网络层统一错误类型
type Error struct {
	Kind     Kind
	Exchange string
	Status   int
	Message  string
	Raw      []byte
	Cause    error

	RetryAfter time.Duration // KindRateLimit
	Timeout    time.Duration // KindTimeout
	Channel    string        // KindSubscription
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Exchange != "" {
		return fmt.Sprintf("[%s] %s", e.Exchange, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按 Kind 比较，errors.Is(err, &Error{Kind: KindTimeout}) 可用
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Exchange == ""
}

func newError(kind Kind, exchange, msg string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Exchange: exchange,
		Message:  msg,
		Cause:    cause,
	}
}

func NewAuthenticationError(exchange, msg string) *Error {
	return newError(KindAuthentication, exchange, msg, nil)
}

func NewClientRequestError(exchange string, status int, msg string, raw []byte) *Error {
	e := newError(KindClientRequest, exchange, msg, nil)
	e.Status = status
	e.Raw = raw
	return e
}

func NewServerTransientError(exchange string, status int, msg string, raw []byte) *Error {
	e := newError(KindServerTransient, exchange, msg, nil)
	e.Status = status
	e.Raw = raw
	return e
}

func NewNetworkError(exchange string, cause error) *Error {
	msg := "network error"
	if cause != nil {
		msg = fmt.Sprintf("network error: %v", cause)
	}
	return newError(KindNetwork, exchange, msg, cause)
}

func NewTimeoutError(exchange string, timeout time.Duration, cause error) *Error {
	e := newError(KindTimeout, exchange, fmt.Sprintf("request timed out after %s", timeout), cause)
	e.Timeout = timeout
	return e
}

func NewRateLimitError(exchange, msg string, retryAfter time.Duration) *Error {
	e := newError(KindRateLimit, exchange, msg, nil)
	e.Status = http.StatusTooManyRequests
	e.RetryAfter = retryAfter
	return e
}

func NewConnectionError(exchange, msg string, cause error) *Error {
	return newError(KindConnection, exchange, msg, cause)
}

func NewSubscriptionError(exchange, channel string, cause error) *Error {
	e := newError(KindSubscription, exchange, fmt.Sprintf("subscribe %s failed: %v", channel, cause), cause)
	e.Channel = channel
	return e
}

func NewDisconnectedError(exchange string) *Error {
	return newError(KindDisconnected, exchange, "websocket is not connected", nil)
}

// KindOf 返回错误链中第一个 *Error 的 Kind
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsAuthentication(err error) bool  { return KindOf(err) == KindAuthentication }
func IsClientRequest(err error) bool   { return KindOf(err) == KindClientRequest }
func IsServerTransient(err error) bool { return KindOf(err) == KindServerTransient }
func IsNetwork(err error) bool         { return KindOf(err) == KindNetwork }
func IsTimeout(err error) bool         { return KindOf(err) == KindTimeout }
func IsRateLimit(err error) bool       { return KindOf(err) == KindRateLimit }
func IsConnection(err error) bool      { return KindOf(err) == KindConnection }
func IsSubscription(err error) bool    { return KindOf(err) == KindSubscription }
func IsDisconnected(err error) bool    { return KindOf(err) == KindDisconnected }

// IsRetryable 服务端 5xx、网络错误和超时可以重试
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindServerTransient, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// FromStatus 默认的 HTTP 状态码分类，交易所没有特殊处理时使用
func FromStatus(exchange string, status int, header http.Header, body []byte) *Error {
	msg := fmt.Sprintf("HTTP %d: %s", status, ErrorMessage(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthenticationError(exchange, msg)
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(exchange, msg, ParseRetryAfter(header))
	case status >= 500:
		return NewServerTransientError(exchange, status, msg, body)
	default:
		return NewClientRequestError(exchange, status, msg, body)
	}
}

// ErrorMessage 从响应体里取出错误描述
func ErrorMessage(body []byte) string {
	j, err := simplejson.NewJson(body)
	if err == nil {
		for _, key := range []string{"error", "message", "msg", "detail"} {
			if s, err := j.Get(key).String(); err == nil && s != "" {
				return s
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

// ParseRetryAfter 解析 Retry-After 头，只支持秒数
func ParseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
