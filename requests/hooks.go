package requests

import (
	"net/http"
	"strconv"
	"time"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/errs"
)

// Signer 为需要鉴权的请求生成请求头，body 为实际发送的字节
type Signer interface {
	Sign(req *Request, body []byte, header http.Header) (http.Header, error)
}

// ErrorClassifier 将 >= 400 的响应转换为 errs 中的错误类型，返回 nil 时使用 errs.FromStatus
type ErrorClassifier interface {
	ClassifyError(status int, header http.Header, body []byte) error
}

// RateLimitInspector 从响应头中提取限流信息，仅用于日志
type RateLimitInspector interface {
	RateLimitInfo(header http.Header) *RateLimitInfo
}

// Hooks 每个交易所实现一次
type Hooks interface {
	Signer
	ErrorClassifier
	RateLimitInspector
}

type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// NopHooks 用于公开接口：不签名，默认错误分类，读取常见的 X-RateLimit-* 头
type NopHooks struct {
	Exchange string
}

func (h NopHooks) Sign(req *Request, body []byte, header http.Header) (http.Header, error) {
	return nil, errs.NewAuthenticationError(h.Exchange, "no signer configured")
}

func (h NopHooks) ClassifyError(status int, header http.Header, body []byte) error {
	return errs.FromStatus(h.Exchange, status, header, body)
}

func (h NopHooks) RateLimitInfo(header http.Header) *RateLimitInfo {
	return ParseRateLimitHeaders(header)
}

// ParseRateLimitHeaders 解析 X-RateLimit-Limit / Remaining / Reset，都不存在时返回 nil
func ParseRateLimitHeaders(header http.Header) *RateLimitInfo {
	if header == nil {
		return nil
	}
	limit := header.Get("X-RateLimit-Limit")
	remaining := header.Get("X-RateLimit-Remaining")
	reset := header.Get("X-RateLimit-Reset")
	if limit == "" && remaining == "" && reset == "" {
		return nil
	}
	info := &RateLimitInfo{Limit: -1, Remaining: -1}
	if n, err := strconv.Atoi(limit); err == nil {
		info.Limit = n
	}
	if n, err := strconv.Atoi(remaining); err == nil {
		info.Remaining = n
	}
	if n, err := strconv.ParseInt(reset, 10, 64); err == nil {
		info.ResetAt = time.Unix(n, 0)
	}
	return info
}
