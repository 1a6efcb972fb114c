package polymarket

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bitly/go-simplejson"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

const (
	pingFrame = "PING"
	pongFrame = "PONG"
)

var (
	ErrEmptyFrame         = errors.New("polymarket: empty frame")
	ErrUnsupportedChannel = errors.New("polymarket: unsupported channel")
)

var _ stream.Protocol = (*Protocol)(nil)

// Protocol market 频道参数为 asset_id(token id)，user 频道参数为 market(condition id)
type Protocol struct {
	creds *Credentials
}

func NewProtocol(creds *Credentials) *Protocol {
	return &Protocol{creds: creds}
}

func (p *Protocol) SubscribeFrame(channel string, params stream.Params) (interface{}, error) {
	switch channel {
	case ChannelMarket:
		asset, err := param(params, "asset_id")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"assets_ids": []string{asset},
			"type":       ChannelMarket,
		}, nil
	case ChannelUser:
		if !p.creds.valid() {
			return nil, errors.New("polymarket: user channel requires API credentials")
		}
		market, err := param(params, "market")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"markets": []string{market},
			"type":    ChannelUser,
			"auth": map[string]string{
				"apiKey":     p.creds.APIKey,
				"secret":     p.creds.Secret,
				"passphrase": p.creds.Passphrase,
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
}

func (p *Protocol) UnsubscribeFrame(channel string, params stream.Params) (interface{}, error) {
	switch channel {
	case ChannelMarket:
		asset, err := param(params, "asset_id")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":       "unsubscribe",
			"channel":    ChannelMarket,
			"assets_ids": []string{asset},
		}, nil
	case ChannelUser:
		market, err := param(params, "market")
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":    "unsubscribe",
			"channel": ChannelUser,
			"markets": []string{market},
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
}

// ParseFrame PONG 和 INVALID OPERATION 等纯文本帧不按 JSON 解析
func (p *Protocol) ParseFrame(raw []byte) (*stream.Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyFrame
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return stream.NewTextMessage(trimmed), nil
	}
	return stream.NewMessage(trimmed)
}

func (p *Protocol) IsHeartbeatResponse(msg *stream.Message) bool {
	if msg.Text() == pongFrame {
		return true
	}
	return msg.GetString("type") == "pong"
}

func (p *Protocol) HeartbeatFrame() interface{} {
	return pingFrame
}

// RoutingKey 首次订阅返回的盘口快照是数组，取第一条事件
func (p *Protocol) RoutingKey(msg *stream.Message) string {
	ev := msg.Data
	if _, err := ev.Array(); err == nil {
		ev = ev.GetIndex(0)
	}
	switch str(ev, "event_type") {
	case "order", "trade":
		if market := str(ev, "market"); market != "" {
			return stream.SubscriptionKey(ChannelUser, stream.Params{"market": market})
		}
	}
	asset := str(ev, "asset_id")
	if asset == "" {
		return ""
	}
	return stream.SubscriptionKey(ChannelMarket, stream.Params{"asset_id": asset})
}

func str(j *simplejson.Json, key string) string {
	return j.Get(key).MustString()
}

func param(params stream.Params, key string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", fmt.Errorf("polymarket: missing param %q", key)
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return "", fmt.Errorf("polymarket: missing param %q", key)
	}
	return s, nil
}
