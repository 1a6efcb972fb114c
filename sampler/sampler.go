package sampler

import (
	"github.com/shopspring/decimal"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade 一笔成交，价格为 0~1 的概率价格
type Trade struct {
	AssetID  string
	Price    decimal.Decimal
	Size     decimal.Decimal
	Side     string
	TradedAt int64 // 毫秒
}

type PricePoint struct {
	Timestamp int64
	Price     decimal.Decimal
}

type AggregatedTrade struct {
	AssetID        string
	SellCount      uint64
	BuyCount       uint64
	Timestamp      int64
	OpenPrice      PricePoint
	ClosePrice     PricePoint
	HighestPrice   PricePoint
	LowestPrice    PricePoint
	TotalBuySize   decimal.Decimal
	TotalSellSize  decimal.Decimal
	TotalBuyQuote  decimal.Decimal
	TotalSellQuote decimal.Decimal
}

// PriceRange returns the prices at the highest and lowest points, earlier one first.
func (a *AggregatedTrade) PriceRange() (head PricePoint, tail PricePoint) {
	head = a.HighestPrice
	tail = a.LowestPrice
	if a.HighestPrice.Timestamp > a.LowestPrice.Timestamp {
		head = a.LowestPrice
		tail = a.HighestPrice
	}
	return
}

func (a *AggregatedTrade) IsUp() bool {
	head, tail := a.PriceRange()
	return tail.Price.GreaterThan(head.Price)
}

func (a *AggregatedTrade) Equal() bool {
	return a.HighestPrice.Price.Equal(a.LowestPrice.Price)
}

// Sampler 不是并发安全的，每个 asset 使用一个
type Sampler interface {
	// Sample 返回已经结束的区间，区间未结束时返回 nil
	Sample(t *Trade) *AggregatedTrade
}

// TradeParser 从长连接消息中取出成交，不是成交消息时返回 false
type TradeParser func(msg *stream.Message) (*Trade, bool)

// Listener 适配为长连接的消息回调，每结束一个区间调用一次 emit
func Listener(s Sampler, parse TradeParser, emit func(*AggregatedTrade)) func(*stream.Message) error {
	return func(msg *stream.Message) error {
		t, ok := parse(msg)
		if !ok {
			return nil
		}
		if agg := s.Sample(t); agg != nil {
			emit(agg)
		}
		return nil
	}
}
