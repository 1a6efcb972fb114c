package manager

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/limiter"
)

type ConnConfig func(*connConfig)

type connConfig struct {
	logger          *log.Helper     // 日志记录器
	maxConn         int             // 最大连接数
	maxConnDuration time.Duration   // 最大连接持续时间，到期后主动重建
	connLimiter     limiter.Limiter // 建连限流器
	isCheckReConn   bool            // 是否定期检查连接
	checkInterval   time.Duration   // 检查间隔
}

func WithLogger(logger log.Logger) ConnConfig {
	return func(c *connConfig) {
		c.logger = log.NewHelper(logger)
	}
}

func WithMaxConn(maxConn int) ConnConfig {
	return func(c *connConfig) {
		c.maxConn = maxConn
	}
}

func WithMaxConnDuration(maxConnDuration time.Duration) ConnConfig {
	return func(c *connConfig) {
		c.maxConnDuration = maxConnDuration
	}
}

func WithConnLimiter(connLimiter limiter.Limiter) ConnConfig {
	return func(c *connConfig) {
		c.connLimiter = connLimiter
	}
}

func WithCheckReConn(isCheckReConn bool) ConnConfig {
	return func(c *connConfig) {
		c.isCheckReConn = isCheckReConn
	}
}

func WithCheckInterval(d time.Duration) ConnConfig {
	return func(c *connConfig) {
		c.checkInterval = d
	}
}
