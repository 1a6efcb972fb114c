package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/wsmanager"
)

var (
	// 错误定义
	ErrMaxConnReached = errors.New("max connection reached")
	ErrWSNotFound     = errors.New("websocket not found")
	ErrWSExists       = errors.New("websocket already exists")
	ErrLimitExceed    = errors.New("websocket request too frequent, please try again later")
	ErrShutdown       = errors.New("manager is shut down")
)

var _ wsmanager.StreamManager = (*Manager)(nil)

type Manager struct {
	config  *connConfig                 // 连接配置
	mux     sync.Mutex                  // 互斥锁
	wsSets  map[string]wsmanager.Stream // 连接集合
	dialing map[string]struct{}         // 正在建连的 ID，占用连接数
	exit    chan struct{}               // 退出通道
	once    sync.Once
	wg      sync.WaitGroup
}

func NewManager(opts ...ConnConfig) *Manager {
	config := &connConfig{
		logger:          log.NewHelper(log.DefaultLogger),
		maxConn:         100,
		maxConnDuration: 24 * time.Hour,
		connLimiter:     nil,
		isCheckReConn:   true,
		checkInterval:   time.Minute,
	}

	for _, opt := range opts {
		opt(config)
	}

	m := &Manager{
		config:  config,
		wsSets:  make(map[string]wsmanager.Stream),
		dialing: make(map[string]struct{}),
		exit:    make(chan struct{}),
	}

	if config.isCheckReConn && config.checkInterval > 0 {
		m.wg.Add(1)
		go m.checkConnection()
	}

	return m
}

// AddStream 建立连接并纳入管理，返回连接 ID。
// 建连期间不持有锁，先占位，失败后释放。
func (b *Manager) AddStream(ctx context.Context, s wsmanager.Stream) (string, error) {
	id := s.ID()
	if err := b.reserve(id); err != nil {
		return "", err
	}

	if err := s.Connect(ctx); err != nil {
		b.mux.Lock()
		delete(b.dialing, id)
		b.mux.Unlock()
		return "", err
	}

	b.mux.Lock()
	delete(b.dialing, id)
	select {
	case <-b.exit:
		b.mux.Unlock()
		_ = s.Disconnect()
		return "", ErrShutdown
	default:
	}
	b.wsSets[id] = s
	total := len(b.wsSets)
	b.mux.Unlock()

	b.config.logger.Infof("websocket %s added, total %d", id, total)
	return id, nil
}

func (b *Manager) reserve(id string) error {
	b.mux.Lock()
	defer b.mux.Unlock()

	select {
	case <-b.exit:
		return ErrShutdown
	default:
	}

	if _, ok := b.wsSets[id]; ok {
		return ErrWSExists
	}
	if _, ok := b.dialing[id]; ok {
		return ErrWSExists
	}

	// 最大连接数限制
	if len(b.wsSets)+len(b.dialing) >= b.config.maxConn {
		return ErrMaxConnReached
	}

	// 建连频率限制
	if b.config.connLimiter != nil && !b.config.connLimiter.TryAcquire() {
		return ErrLimitExceed
	}

	b.dialing[id] = struct{}{}
	return nil
}

func (b *Manager) CloseStream(id string) error {
	b.mux.Lock()
	s := b.wsSets[id]
	if s == nil {
		b.mux.Unlock()
		return ErrWSNotFound
	}
	delete(b.wsSets, id)
	b.mux.Unlock()

	return s.Disconnect()
}

func (b *Manager) GetStream(id string) wsmanager.Stream {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.wsSets[id]
}

func (b *Manager) GetStreams() map[string]wsmanager.Stream {
	b.mux.Lock()
	defer b.mux.Unlock()
	out := make(map[string]wsmanager.Stream, len(b.wsSets))
	for k, v := range b.wsSets {
		out[k] = v
	}
	return out
}

func (b *Manager) IsConnected(id string) bool {
	s := b.GetStream(id)
	if s == nil {
		return false
	}
	return s.IsConnected()
}

func (b *Manager) Reconnect(ctx context.Context, id string) error {
	s := b.GetStream(id)
	if s == nil {
		return ErrWSNotFound
	}
	return s.Reconnect(ctx)
}

// Shutdown 停止检查并断开所有连接，返回遇到的所有错误
func (b *Manager) Shutdown() error {
	b.once.Do(func() { close(b.exit) })
	b.wg.Wait()

	b.mux.Lock()
	sets := b.wsSets
	b.wsSets = make(map[string]wsmanager.Stream)
	b.mux.Unlock()

	var errs []error
	for id, s := range sets {
		if err := s.Disconnect(); err != nil {
			errs = append(errs, err)
			b.config.logger.Warnf("close websocket %s: %v", id, err)
		}
	}
	return errors.Join(errs...)
}

// checkConnection 定期回收超过最大持续时间的连接。
// 断线重连由连接自身处理，这里只记录已放弃重连的连接。
func (b *Manager) checkConnection() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.config.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.exit:
			return
		case <-ticker.C:
			b.check()
		}
	}
}

func (b *Manager) check() {
	for id, s := range b.GetStreams() {
		if s.State() == stream.Disconnected {
			b.config.logger.Warnf("websocket %s is disconnected and no longer reconnecting", id)
			continue
		}
		if s.IsConnected() && s.ConnectionDuration() > b.config.maxConnDuration {
			b.config.logger.Infof("reconnect websocket %s after %s", id, s.ConnectionDuration().Truncate(time.Second))
			ctx, cancel := context.WithTimeout(context.Background(), b.config.checkInterval)
			if err := s.Reconnect(ctx); err != nil {
				b.config.logger.Errorf("reconnect websocket %s: %v", id, err)
			}
			cancel()
		}
	}
}
