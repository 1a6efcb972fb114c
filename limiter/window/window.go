package window

import (
	"context"
	"sync"
	"time"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

var _ limiter.Limiter = (*Window)(nil)

// Window 滑动窗口限流，任意 window 时长内最多放行 maxRequests 次
type Window struct {
	waitMu      sync.Mutex // Acquire 排队
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
	now         func() time.Time
}

func New(opts ...limiter.Option) (*Window, error) {
	o := limiter.NewOptions(opts...)
	return NewWindow(o.Capacity, o.Interval)
}

func NewWindow(maxRequests int, window time.Duration) (*Window, error) {
	if err := limiter.Validate(maxRequests, window); err != nil {
		return nil, err
	}
	return &Window{
		maxRequests: maxRequests,
		window:      window,
		timestamps:  make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}, nil
}

// evict 需要持有 mu
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// Acquire 等待期间只持有 waitMu，TryAcquire 和 Usage 不会被阻塞
func (w *Window) Acquire(ctx context.Context) (time.Duration, error) {
	w.waitMu.Lock()
	defer w.waitMu.Unlock()

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}
		wait, ok := w.take()
		if ok {
			return waited, nil
		}
		if err := limiter.Sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// take 窗口未满时记录一次请求，否则返回最早一次请求滑出窗口还需的时长
func (w *Window) take() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.timestamps) < w.maxRequests {
		w.timestamps = append(w.timestamps, now)
		return 0, true
	}
	return w.timestamps[0].Add(w.window).Sub(now) + time.Millisecond, false
}

func (w *Window) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.timestamps) < w.maxRequests {
		w.timestamps = append(w.timestamps, now)
		return true
	}
	return false
}

// Usage 当前窗口内的请求数
func (w *Window) Usage() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return len(w.timestamps)
}

// Available 当前窗口内还能放行的请求数
func (w *Window) Available() int {
	return w.maxRequests - w.Usage()
}
