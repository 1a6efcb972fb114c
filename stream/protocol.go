package stream

import (
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/websocket"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

type Params map[string]interface{}

func (p Params) clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Protocol 交易所相关的帧编解码，每个交易所实现一次
type Protocol interface {
	// SubscribeFrame 订阅帧，[]byte 和 string 原样发送，其余类型编码为 JSON
	SubscribeFrame(channel string, params Params) (interface{}, error)
	UnsubscribeFrame(channel string, params Params) (interface{}, error)
	// ParseFrame 解析一帧，失败的帧会被丢弃
	ParseFrame(raw []byte) (*Message, error)
	IsHeartbeatResponse(msg *Message) bool
	// HeartbeatFrame 返回 nil 表示由底层连接自行保活
	HeartbeatFrame() interface{}
	// RoutingKey 返回与 SubscriptionKey 相同格式的 key，无法路由时返回空串
	RoutingKey(msg *Message) string
}

// SubscriptionKey 订阅的唯一标识：无参数时为 channel，否则为 channel?k1=v1&k2=v2，参数按 key 排序
func SubscriptionKey(channel string, params Params) string {
	if len(params) == 0 {
		return channel
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(channel)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%v", k, params[k])
	}
	return b.String()
}

// EncodeFrame 返回消息类型和负载
func EncodeFrame(frame interface{}) (int, []byte, error) {
	switch f := frame.(type) {
	case []byte:
		return websocket.TextMessage, f, nil
	case string:
		return websocket.TextMessage, []byte(f), nil
	default:
		data, err := Json.Marshal(f)
		if err != nil {
			return 0, nil, err
		}
		return websocket.TextMessage, data, nil
	}
}
