package polymarket

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/errs"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"
)

const (
	HeaderAddress    = "POLY_ADDRESS"
	HeaderSignature  = "POLY_SIGNATURE"
	HeaderTimestamp  = "POLY_TIMESTAMP"
	HeaderAPIKey     = "POLY_API_KEY"
	HeaderPassphrase = "POLY_PASSPHRASE"
)

// Credentials L2 接口凭证
type Credentials struct {
	Address    string
	APIKey     string
	Secret     string // urlsafe base64
	Passphrase string
}

func (c *Credentials) valid() bool {
	return c != nil && c.Address != "" && c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

var _ requests.Hooks = (*Hooks)(nil)

type Hooks struct {
	creds *Credentials
	now   func() time.Time
}

func NewHooks(creds *Credentials) *Hooks {
	return &Hooks{
		creds: creds,
		now:   time.Now,
	}
}

// Sign L2 签名：HMAC-SHA256(secret, timestamp + method + path + body)，urlsafe base64 编码。
// Params 作为 query 单独发送，不参与签名；写在 Path 里的 query 原样签入。
func (h *Hooks) Sign(req *requests.Request, body []byte, header http.Header) (http.Header, error) {
	if !h.creds.valid() {
		return nil, errs.NewAuthenticationError(Name, "API credentials required for L2 auth")
	}
	ts := strconv.FormatInt(h.now().Unix(), 10)
	sig, err := signL2(h.creds.Secret, ts, req.Method, req.Path, body)
	if err != nil {
		return nil, err
	}

	out := http.Header{}
	out.Set(HeaderAddress, h.creds.Address)
	out.Set(HeaderSignature, sig)
	out.Set(HeaderTimestamp, ts)
	out.Set(HeaderAPIKey, h.creds.APIKey)
	out.Set(HeaderPassphrase, h.creds.Passphrase)
	return out, nil
}

func signL2(secret, timestamp, method, path string, body []byte) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", errs.NewAuthenticationError(Name, fmt.Sprintf("invalid api secret: %v", err))
	}
	msg := timestamp + method + path
	if len(body) > 0 {
		msg += strings.ReplaceAll(string(body), "'", `"`)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeSecret 兼容有无 padding 两种写法
func decodeSecret(secret string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(secret); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(secret, "="))
}

func (h *Hooks) ClassifyError(status int, header http.Header, body []byte) error {
	msg := errs.ErrorMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.NewAuthenticationError(Name, msg)
	case status == http.StatusNotFound:
		return errs.NewClientRequestError(Name, status, "not found: "+msg, body)
	case status == http.StatusTooManyRequests:
		return errs.NewRateLimitError(Name, msg, errs.ParseRetryAfter(header))
	case status == http.StatusBadRequest:
		return errs.NewClientRequestError(Name, status, "request rejected: "+msg, body)
	case status >= 500:
		return errs.NewServerTransientError(Name, status, fmt.Sprintf("server error %d: %s", status, msg), body)
	}
	return errs.FromStatus(Name, status, header, body)
}

func (h *Hooks) RateLimitInfo(header http.Header) *requests.RateLimitInfo {
	return requests.ParseRateLimitHeaders(header)
}
