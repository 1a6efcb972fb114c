package bytime

import (
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/sampler"
)

// NewByTime 按固定毫秒数切分区间
func NewByTime(ms int64) sampler.Sampler {
	return &millisecond{
		ms: ms,
	}
}

func timestampMod(t int64, m int64) int64 {
	return t % m
}

func toPrice(t *sampler.Trade) sampler.PricePoint {
	return sampler.PricePoint{
		Timestamp: t.TradedAt,
		Price:     t.Price,
	}
}

func toAgg(t *sampler.Trade, ms int64) *sampler.AggregatedTrade {
	agg := &sampler.AggregatedTrade{
		AssetID:      t.AssetID,
		HighestPrice: toPrice(t),
		LowestPrice:  toPrice(t),
		OpenPrice:    toPrice(t),
		ClosePrice:   toPrice(t),
	}
	// 区间起点对齐到 ms 的整数倍
	agg.Timestamp = t.TradedAt - timestampMod(t.TradedAt, ms)
	if t.Side == sampler.SideBuy {
		agg.TotalBuyQuote = t.Price.Mul(t.Size)
		agg.TotalBuySize = t.Size
		agg.BuyCount = 1
	} else {
		agg.TotalSellQuote = t.Price.Mul(t.Size)
		agg.TotalSellSize = t.Size
		agg.SellCount = 1
	}
	return agg
}

type millisecond struct {
	ms  int64
	agg *sampler.AggregatedTrade
}

func (m *millisecond) Sample(t *sampler.Trade) (agg *sampler.AggregatedTrade) {
	if m.agg == nil {
		m.agg = toAgg(t, m.ms)
		return nil
	}
	if t.TradedAt >= m.agg.Timestamp+m.ms {
		agg = m.agg
		m.agg = toAgg(t, m.ms)
		return agg
	}
	m.aggregate(t)
	return nil
}

func (m *millisecond) aggregate(t *sampler.Trade) {
	m.agg.ClosePrice = toPrice(t)
	if t.Side == sampler.SideBuy {
		m.agg.BuyCount++
		m.agg.TotalBuyQuote = m.agg.TotalBuyQuote.Add(t.Price.Mul(t.Size))
		m.agg.TotalBuySize = m.agg.TotalBuySize.Add(t.Size)
	} else {
		m.agg.SellCount++
		m.agg.TotalSellQuote = m.agg.TotalSellQuote.Add(t.Price.Mul(t.Size))
		m.agg.TotalSellSize = m.agg.TotalSellSize.Add(t.Size)
	}
	if t.Price.GreaterThan(m.agg.HighestPrice.Price) {
		m.agg.HighestPrice = toPrice(t)
	}
	if t.Price.LessThan(m.agg.LowestPrice.Price) {
		m.agg.LowestPrice = toPrice(t)
	}
}
