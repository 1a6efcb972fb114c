package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

var _ limiter.Limiter = (*Limiter)(nil)

const keyPrefix = "netkit:limiter:"

// 令牌桶脚本，返回 {是否放行, 需要等待的毫秒数}
// KEYS[1] 桶 key
// ARGV[1] 容量，ARGV[2] 每毫秒补充的令牌数，ARGV[3] 当前毫秒时间戳
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', key, math.ceil(capacity / rate) * 2)
return {allowed, wait}
`)

// Limiter 基于 redis 的分布式令牌桶，多个进程共享同一个 key 的额度
type Limiter struct {
	client   redis.Scripter
	key      string
	capacity int
	interval time.Duration
	logger   *log.Helper
	now      func() time.Time
}

func New(client redis.Scripter, opts ...limiter.Option) (*Limiter, error) {
	o := limiter.NewOptions(opts...)
	if err := limiter.Validate(o.Capacity, o.Interval); err != nil {
		return nil, err
	}
	return &Limiter{
		client:   client,
		key:      keyPrefix + o.Name,
		capacity: o.Capacity,
		interval: o.Interval,
		logger:   o.Logger,
		now:      time.Now,
	}, nil
}

func (l *Limiter) ratePerMs() float64 {
	return float64(l.capacity) / (float64(l.interval) / float64(time.Millisecond))
}

func (l *Limiter) take(ctx context.Context) (bool, time.Duration, error) {
	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.key},
		l.capacity, l.ratePerMs(), l.now().UnixMilli()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis limiter %s: %w", l.key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("redis limiter %s: unexpected reply %v", l.key, res)
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for {
		ok, wait, err := l.take(ctx)
		if err != nil {
			return waited, err
		}
		if ok {
			return waited, nil
		}
		if err := limiter.Sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// TryAcquire redis 出错时放行，避免限流器故障阻塞请求
func (l *Limiter) TryAcquire() bool {
	ok, _, err := l.take(context.Background())
	if err != nil {
		l.logger.Errorf("try acquire failed: %v", err)
		return true
	}
	return ok
}

func (l *Limiter) Key() string {
	return l.key
}
