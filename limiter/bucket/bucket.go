package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

var _ limiter.Limiter = (*Bucket)(nil)

// Bucket 令牌桶，容量为 capacity，每个 interval 补满 capacity 个令牌。
// 补充是惰性的，只在获取令牌时根据流逝时间计算。
type Bucket struct {
	waitMu     sync.Mutex // Acquire 排队
	mu         sync.Mutex // 令牌计算
	capacity   float64
	interval   time.Duration
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

func New(opts ...limiter.Option) (*Bucket, error) {
	o := limiter.NewOptions(opts...)
	return NewBucket(o.Capacity, o.Interval)
}

func NewBucket(capacity int, interval time.Duration) (*Bucket, error) {
	if err := limiter.Validate(capacity, interval); err != nil {
		return nil, err
	}
	b := &Bucket{
		capacity: float64(capacity),
		interval: interval,
		tokens:   float64(capacity),
		now:      time.Now,
	}
	b.lastRefill = b.now()
	return b, nil
}

// refill 需要持有 mu
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		b.tokens += elapsed.Seconds() * b.capacity / b.interval.Seconds()
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.lastRefill = now
}

// Acquire 获取一个令牌。并发调用者经 waitMu 排队，等待期间不持有 mu，
// TryAcquire 和 Tokens 不受影响；醒来后重新计算，不够则继续等。
func (b *Bucket) Acquire(ctx context.Context) (time.Duration, error) {
	b.waitMu.Lock()
	defer b.waitMu.Unlock()

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}
		wait, ok := b.take()
		if ok {
			return waited, nil
		}
		if err := limiter.Sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// take 有令牌时取走一个，否则返回还需等待的时长
func (b *Bucket) take() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.now())
	if b.tokens >= 1 {
		b.tokens--
		return 0, true
	}
	wait := math.Ceil((1 - b.tokens) * float64(b.interval) / b.capacity)
	return time.Duration(wait), false
}

func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.now())
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Tokens 返回当前可用令牌数
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(b.now())
	return b.tokens
}

func (b *Bucket) Capacity() int {
	return int(b.capacity)
}

func (b *Bucket) Interval() time.Duration {
	return b.interval
}
