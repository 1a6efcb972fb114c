package xrate

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

var _ limiter.Limiter = (*Limiter)(nil)

var ErrReservation = errors.New("xrate: reservation not allowed")

// Limiter 基于 golang.org/x/time/rate 的令牌桶实现，
// burst 等于容量，每 interval/capacity 补充一个令牌
type Limiter struct {
	lim *rate.Limiter
}

func New(opts ...limiter.Option) (*Limiter, error) {
	o := limiter.NewOptions(opts...)
	return NewLimiter(o.Capacity, o.Interval)
}

func NewLimiter(capacity int, interval time.Duration) (*Limiter, error) {
	if err := limiter.Validate(capacity, interval); err != nil {
		return nil, err
	}
	return &Limiter{
		lim: rate.NewLimiter(rate.Every(interval/time.Duration(capacity)), capacity),
	}, nil
}

func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r := l.lim.Reserve()
	if !r.OK() {
		return 0, ErrReservation
	}
	wait := r.Delay()
	if wait == 0 {
		return 0, nil
	}
	if err := limiter.Sleep(ctx, wait); err != nil {
		// 归还未使用的令牌
		r.Cancel()
		return 0, err
	}
	return wait, nil
}

func (l *Limiter) TryAcquire() bool {
	return l.lim.Allow()
}

func (l *Limiter) Tokens() float64 {
	return l.lim.Tokens()
}
