package limiter

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCapacity = errors.New("limiter: capacity must be positive")
	ErrInvalidInterval = errors.New("limiter: interval must be positive")
)

// Limiter 请求限流器，REST 请求每次物理发送前调用 Acquire，
// websocket 建连使用 TryAcquire。
//
//go:generate mockgen -destination=../limiter/mocks/limiter.go -package=mklimiter . Limiter
type Limiter interface {
	// Acquire 阻塞直到拿到一个令牌，返回等待时长
	Acquire(ctx context.Context) (time.Duration, error)
	// TryAcquire 不等待，拿不到令牌返回 false
	TryAcquire() bool
}

// Validate 校验容量和周期
func Validate(capacity int, interval time.Duration) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// Sleep 等待 d，ctx 取消时提前返回
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
