package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy 指数退避参数，第 k 次(从 0 开始)的等待时间为 min(Initial*Multiplier^k, Max)
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func NewPolicy(initial, max time.Duration, multiplier float64) Policy {
	return Policy{
		Initial:    initial,
		Max:        max,
		Multiplier: multiplier,
	}
}

// Delay 返回第 attempt 次重试前的等待时间
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt))
	if p.Max > 0 && (d > float64(p.Max) || math.IsInf(d, 0) || math.IsNaN(d)) {
		return p.Max
	}
	return time.Duration(d)
}

// NewBackOff 返回不带随机抖动的 ExponentialBackOff，NextBackOff 的序列与 Delay(0), Delay(1)... 一致
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	if p.Max > 0 && p.Initial > p.Max {
		b.InitialInterval = p.Max
	}
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.Max
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
