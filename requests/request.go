package requests

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"time"

	"github.com/bitly/go-simplejson"
)

type Params map[string]interface{}

// Request 一次逻辑请求，重试时复用同一份签名和请求体
type Request struct {
	Method       string
	Path         string
	Params       Params
	Body         interface{}
	AuthRequired bool
	Header       http.Header
}

// Query 将 Params 编码为 query string，slice 类型的值编码为 JSON
func (r *Request) Query() url.Values {
	q := url.Values{}
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := r.Params[k]
		if v == nil {
			continue
		}
		if reflect.TypeOf(v).Kind() == reflect.Slice {
			if b, err := Json.Marshal(v); err == nil {
				v = string(b)
			}
		}
		q.Set(k, fmt.Sprintf("%v", v))
	}
	return q
}

// RequestPath 返回带 query 的路径，用于拼接请求 URL
func (r *Request) RequestPath() string {
	q := r.Query().Encode()
	if q == "" {
		return r.Path
	}
	return r.Path + "?" + q
}

func (r *Request) encodeBody() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return Json.Marshal(b)
	}
}

// Response 一次成功请求的结果
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Elapsed    time.Duration
	Attempts   int
}

// JSON 使用 simplejson 解析响应体
func (r *Response) JSON() (*simplejson.Json, error) {
	return NewJSON(r.Body)
}

// Decode 将响应体解码到 v
func (r *Response) Decode(v interface{}) error {
	return Json.Unmarshal(r.Body, v)
}

func NewJSON(data []byte) (j *simplejson.Json, err error) {
	j, err = simplejson.NewJson(data)
	if err != nil {
		return nil, err
	}
	return j, nil
}
