package polymarket

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/sampler"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

const eventLastTradePrice = "last_trade_price"

// ParseTrade 解析 market 频道的 last_trade_price 事件，可直接作为 sampler.TradeParser
func ParseTrade(msg *stream.Message) (*sampler.Trade, bool) {
	if msg.GetString("event_type") != eventLastTradePrice {
		return nil, false
	}
	price, err := decimal.NewFromString(msg.GetString("price"))
	if err != nil {
		return nil, false
	}
	size, err := decimal.NewFromString(msg.GetString("size"))
	if err != nil {
		return nil, false
	}
	ts, err := strconv.ParseInt(msg.GetString("timestamp"), 10, 64)
	if err != nil {
		ts = msg.ReceivedAt.UnixMilli()
	}
	side := sampler.SideSell
	if msg.GetString("side") == sampler.SideBuy {
		side = sampler.SideBuy
	}
	return &sampler.Trade{
		AssetID:  msg.GetString("asset_id"),
		Price:    price,
		Size:     size,
		Side:     side,
		TradedAt: ts,
	}, true
}

var _ sampler.TradeParser = ParseTrade
