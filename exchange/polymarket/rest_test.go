package polymarket

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/errs"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"
)

var testCreds = &Credentials{
	Address:    "0xabc",
	APIKey:     "key-1",
	Secret:     base64.URLEncoding.EncodeToString([]byte("super-secret")),
	Passphrase: "pass",
}

func expectedSignature(msg string) string {
	mac := hmac.New(sha256.New, []byte("super-secret"))
	mac.Write([]byte(msg))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

func TestSign(t *testing.T) {
	h := NewHooks(testCreds)
	h.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := &requests.Request{
		Method: http.MethodGet,
		Path:   "/orders",
		Params: requests.Params{"market": "0x1"},
	}
	header, err := h.Sign(req, nil, http.Header{})
	require.NoError(t, err)

	assert.Equal(t, "0xabc", header.Get(HeaderAddress))
	assert.Equal(t, "1700000000", header.Get(HeaderTimestamp))
	assert.Equal(t, "key-1", header.Get(HeaderAPIKey))
	assert.Equal(t, "pass", header.Get(HeaderPassphrase))
	assert.Equal(t, expectedSignature("1700000000GET/orders"), header.Get(HeaderSignature))
}

func TestSignPathQuery(t *testing.T) {
	h := NewHooks(testCreds)
	h.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := &requests.Request{
		Method: http.MethodGet,
		Path:   "/data/orders?id=0x2",
		Params: requests.Params{"market": "0x1"},
	}
	header, err := h.Sign(req, nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, expectedSignature("1700000000GET/data/orders?id=0x2"), header.Get(HeaderSignature))
}

func TestSignBodyQuotes(t *testing.T) {
	h := NewHooks(testCreds)
	h.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := &requests.Request{Method: http.MethodPost, Path: "/order"}
	header, err := h.Sign(req, []byte(`{'side':'BUY'}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, expectedSignature(`1700000000POST/order{"side":"BUY"}`), header.Get(HeaderSignature))
}

func TestSignUnpaddedSecret(t *testing.T) {
	creds := *testCreds
	creds.Secret = base64.RawURLEncoding.EncodeToString([]byte("super-secret"))
	h := NewHooks(&creds)
	h.now = func() time.Time { return time.Unix(1, 0) }

	header, err := h.Sign(&requests.Request{Method: http.MethodGet, Path: "/x"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, expectedSignature("1GET/x"), header.Get(HeaderSignature))
}

func TestSignWithoutCredentials(t *testing.T) {
	_, err := NewHooks(nil).Sign(&requests.Request{Method: http.MethodGet, Path: "/x"}, nil, nil)
	assert.True(t, errs.IsAuthentication(err))

	_, err = NewHooks(&Credentials{Address: "0xabc"}).Sign(&requests.Request{}, nil, nil)
	assert.True(t, errs.IsAuthentication(err))

	bad := *testCreds
	bad.Secret = "%%%"
	_, err = NewHooks(&bad).Sign(&requests.Request{Method: http.MethodGet, Path: "/x"}, nil, nil)
	assert.True(t, errs.IsAuthentication(err))
}

func TestClassifyError(t *testing.T) {
	h := NewHooks(nil)
	header := http.Header{}
	header.Set("Retry-After", "2")

	tests := []struct {
		status int
		kind   errs.Kind
		text   string
	}{
		{http.StatusUnauthorized, errs.KindAuthentication, "bad key"},
		{http.StatusForbidden, errs.KindAuthentication, "bad key"},
		{http.StatusNotFound, errs.KindClientRequest, "not found"},
		{http.StatusBadRequest, errs.KindClientRequest, "rejected"},
		{http.StatusTooManyRequests, errs.KindRateLimit, "bad key"},
		{http.StatusBadGateway, errs.KindServerTransient, "server error 502"},
		{http.StatusConflict, errs.KindClientRequest, "HTTP 409"},
	}
	for _, tt := range tests {
		err := h.ClassifyError(tt.status, header, []byte(`{"error":"bad key"}`))
		require.Error(t, err)
		assert.Equal(t, tt.kind, errs.KindOf(err), "status %d", tt.status)
		assert.Contains(t, err.Error(), tt.text)
		assert.Contains(t, err.Error(), "[polymarket]")
	}

	var e *errs.Error
	require.ErrorAs(t, h.ClassifyError(http.StatusTooManyRequests, header, nil), &e)
	assert.Equal(t, 2*time.Second, e.RetryAfter)
}

func TestRestClientSignsPrivateRequests(t *testing.T) {
	var got http.Header
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c, err := New(testCreds).NewRestClient(requests.BaseUrl(srv.URL))
	require.NoError(t, err)

	resp, err := c.Post(context.Background(), "/order", map[string]string{"side": "BUY"}, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "key-1", got.Get(HeaderAPIKey))

	ts := got.Get(HeaderTimestamp)
	assert.Equal(t, expectedSignature(ts+"POST/order"+string(body)), got.Get(HeaderSignature))
}

func TestRestClientPublicWithoutCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(HeaderSignature))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(nil).NewRestClient(requests.BaseUrl(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/markets", nil, false)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/orders", nil, true)
	assert.True(t, errs.IsAuthentication(err))
	assert.Equal(t, int64(1), c.RequestCount())
}
