package polymarket

import (
	"time"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/exchange"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

const (
	Name = "polymarket"

	ClobURL       = "https://clob.polymarket.com"
	MarketWSURL   = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	UserWSURL     = "wss://ws-subscriptions-clob.polymarket.com/ws/user"
	ChannelMarket = "market"
	ChannelUser   = "user"

	HeartbeatInterval = 10 * time.Second
)

var _ exchange.Integration = (*Polymarket)(nil)

// Polymarket CLOB 接入，creds 为空时只能访问公开接口和 market 频道
type Polymarket struct {
	creds *Credentials
	hooks *Hooks
	proto *Protocol
}

func New(creds *Credentials) *Polymarket {
	return &Polymarket{
		creds: creds,
		hooks: NewHooks(creds),
		proto: NewProtocol(creds),
	}
}

func (p *Polymarket) Name() string {
	return Name
}

func (p *Polymarket) RestURL() string {
	return ClobURL
}

func (p *Polymarket) StreamURL(channel string) string {
	if channel == ChannelUser {
		return UserWSURL
	}
	return MarketWSURL
}

func (p *Polymarket) Hooks() requests.Hooks {
	return p.hooks
}

func (p *Polymarket) Protocol() stream.Protocol {
	return p.proto
}

// NewRestClient 使用 Polymarket 的地址和签名创建 REST 客户端，opts 可以覆盖默认值
func (p *Polymarket) NewRestClient(opts ...requests.Option) (*requests.Client, error) {
	base := []requests.Option{
		requests.Exchange(Name),
		requests.BaseUrl(ClobURL),
		requests.WithHooks(p.hooks),
	}
	return requests.NewClient(append(base, opts...)...)
}

// NewStream 创建 channel 对应的长连接客户端，心跳间隔 10s
func (p *Polymarket) NewStream(channel string, opts ...stream.Option) (*stream.Client, error) {
	base := []stream.Option{
		stream.WithExchange(Name),
		stream.WithURL(p.StreamURL(channel)),
		stream.WithHeartbeatInterval(HeartbeatInterval),
	}
	return stream.NewClient(p.proto, append(base, opts...)...)
}

// SubscribeBook 订阅单个 token 的盘口、成交和价格变化
func SubscribeBook(c *stream.Client, tokenID string, cb stream.Callback) error {
	return c.Subscribe(ChannelMarket, stream.Params{"asset_id": tokenID}, cb)
}

func UnsubscribeBook(c *stream.Client, tokenID string) error {
	return c.Unsubscribe(ChannelMarket, stream.Params{"asset_id": tokenID})
}

// SubscribeUser 订阅某个 condition 下自己的订单和成交，需要 L2 凭证
func SubscribeUser(c *stream.Client, conditionID string, cb stream.Callback) error {
	return c.Subscribe(ChannelUser, stream.Params{"market": conditionID}, cb)
}
