package exchange

import (
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/requests"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

// Global enums
const (
	PolymarketExchange = "POLYMARKET"
	KalshiExchange     = "KALSHI"
	MockExchange       = "MOCK"
)

// Integration 一个交易所接入网络层需要提供的全部内容：
// REST 的签名、错误分类、限流头解析，以及长连接的帧协议。
type Integration interface {
	Name() string
	// RestURL REST 接口的根地址
	RestURL() string
	// StreamURL 返回 channel 对应的 websocket 地址
	StreamURL(channel string) string
	Hooks() requests.Hooks
	Protocol() stream.Protocol
}
