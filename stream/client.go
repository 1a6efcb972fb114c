package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/errs"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/websocket"
)

var (
	ErrMissingURL      = errors.New("stream: url is required")
	ErrMissingProtocol = errors.New("stream: protocol is required")
	ErrInvalidQueue    = errors.New("stream: queue size must be positive")

	errReconnectAborted = errors.New("stream: reconnect aborted")
)

var _ Sender = (*Client)(nil)

// session 一次物理连接及其三个后台协程：接收、心跳、通用队列消费
type session struct {
	conn      websocket.WebSocketConn
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func (s *session) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Client 单条 websocket 连接的状态机，断线后按指数退避自动重连并恢复订阅，
// 重连次数耗尽后进入 Disconnected 并触发 fallback。
//
// 回调和监听器运行在 Client 的后台协程中，需要断开连接时请另起 goroutine 调用 Disconnect。
type Client struct {
	id       string
	opts     *options
	proto    Protocol
	log      *log.Helper
	registry *Registry
	pipeline *Pipeline

	onConnect    *Dispatcher[struct{}]
	onDisconnect *Dispatcher[error]

	// 串行化 Connect / Disconnect / Reconnect 以及断线后的会话清理
	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	sess        *session
	connectedAt time.Time
	fallback    func()
	lifeCtx     context.Context
	lifeCancel  context.CancelFunc

	writeMu         sync.Mutex
	shouldReconnect atomic.Bool
	reconnectCount  atomic.Int32
	lastActivity    atomic.Int64
}

func NewClient(proto Protocol, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if proto == nil {
		return nil, ErrMissingProtocol
	}
	if o.url == "" {
		return nil, ErrMissingURL
	}
	if o.queueSize <= 0 {
		return nil, ErrInvalidQueue
	}
	if o.reconnectAttempts < 0 {
		o.reconnectAttempts = 0
	}

	c := &Client{
		id:           uuid.NewString(),
		opts:         o,
		proto:        proto,
		log:          o.logger,
		state:        Disconnected,
		onConnect:    NewDispatcher[struct{}](),
		onDisconnect: NewDispatcher[error](),
	}
	c.registry = NewRegistry(c, proto, o.exchange, o.logger)
	c.pipeline = NewPipeline(proto, c.registry, o.queueSize, o.exchange, o.logger)
	return c, nil
}

// Connect 建立连接，已连接时直接返回。
// 成功后启动后台协程，依次调用 OnConnect 监听器并恢复订阅。
func (c *Client) Connect(ctx context.Context) error {
	c.opMu.Lock()
	started, err := c.connectLocked(ctx, false)
	c.opMu.Unlock()
	if err != nil {
		return err
	}
	if started {
		c.afterConnect()
	}
	return nil
}

// connectLocked 需要持有 opMu，返回是否新建了连接
func (c *Client) connectLocked(ctx context.Context, reconnecting bool) (bool, error) {
	if reconnecting && (!c.shouldReconnect.Load() || ctx.Err() != nil) {
		return false, errReconnectAborted
	}
	if c.State() == Connected {
		return false, nil
	}

	c.mu.Lock()
	if !reconnecting {
		c.shouldReconnect.Store(true)
		if c.lifeCtx == nil || c.lifeCtx.Err() != nil {
			c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())
		}
	}
	c.state = Connecting
	c.mu.Unlock()

	c.log.Infof("[%s] connecting to %s", c.opts.exchange, c.opts.url)

	conn := c.opts.connFactory()
	dctx, cancel := context.WithTimeout(ctx, c.opts.connectTimeout)
	defer cancel()
	if err := conn.Dial(dctx, c.opts.url, c.opts.header.Clone()); err != nil {
		c.setState(Disconnected)
		msg := fmt.Sprintf("connect to %s failed: %v", c.opts.url, err)
		if errors.Is(dctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			msg = fmt.Sprintf("connect to %s timed out after %s", c.opts.url, c.opts.connectTimeout)
		}
		return false, errs.NewConnectionError(c.opts.exchange, msg, err)
	}

	// 底层 ping/pong 也算作活跃
	conn.SetPingHandler(func(string) error {
		c.touch()
		return nil
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	sctx, scancel := context.WithCancel(context.Background())
	s := &session{
		conn:   conn,
		ctx:    sctx,
		cancel: scancel,
	}
	now := time.Now()

	c.mu.Lock()
	c.sess = s
	c.state = Connected
	c.connectedAt = now
	c.mu.Unlock()

	c.reconnectCount.Store(0)
	c.lastActivity.Store(now.UnixNano())

	s.wg.Add(3)
	go c.receiveLoop(s)
	go c.heartbeatLoop(s)
	go c.consumeLoop(s)

	c.log.Infof("[%s] connected to %s", c.opts.exchange, c.opts.url)
	return true, nil
}

func (c *Client) afterConnect() {
	c.onConnect.Emit(struct{}{}, func(h Handle, err error) {
		c.log.Errorf("[%s] connect listener %s failed: %v", c.opts.exchange, h, err)
	})
	if failed := c.registry.ResubscribeAll(); failed > 0 {
		c.log.Warnf("[%s] %d subscriptions could not be restored", c.opts.exchange, failed)
	}
}

// Disconnect 主动断开：停止重连，关闭连接并等待后台协程退出，清空订阅
func (c *Client) Disconnect() error {
	c.shouldReconnect.Store(false)
	c.mu.Lock()
	if c.lifeCancel != nil {
		c.lifeCancel()
	}
	c.mu.Unlock()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.state = Closed
	c.mu.Unlock()

	var err error
	if s != nil {
		err = c.stopSession(s)
	}
	c.registry.Clear()
	c.log.Infof("[%s] disconnected", c.opts.exchange)
	return err
}

// Reconnect 主动重建连接并保留订阅，用于连接时长到期等场景。
// 重建失败时返回错误，同时转入自动重连，耗尽后触发 fallback。
func (c *Client) Reconnect(ctx context.Context) error {
	c.opMu.Lock()
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.state = Reconnecting
	c.mu.Unlock()
	if s != nil {
		if err := c.stopSession(s); err != nil {
			c.log.Debugf("[%s] close old connection: %v", c.opts.exchange, err)
		}
	}
	started, err := c.connectLocked(ctx, false)
	c.mu.RLock()
	lifeCtx := c.lifeCtx
	c.mu.RUnlock()
	c.opMu.Unlock()
	if err != nil {
		if s != nil && c.shouldReconnect.Load() && lifeCtx != nil {
			go c.recoverSession(lifeCtx, err)
		}
		return err
	}
	if started {
		c.afterConnect()
	}
	return nil
}

// stopSession 先取消再关闭连接，使接收协程把读错误视为正常退出
func (c *Client) stopSession(s *session) error {
	s.cancel()
	err := s.close()
	s.wg.Wait()
	return err
}

func (c *Client) receiveLoop(s *session) {
	defer s.wg.Done()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			c.log.Warnf("[%s] connection lost: %v", c.opts.exchange, err)
			go c.handleClosed(s, err)
			return
		}
		c.touch()
		if err := c.pipeline.Handle(s.ctx, data); err != nil {
			return
		}
	}
}

func (c *Client) heartbeatLoop(s *session) {
	defer s.wg.Done()
	if c.opts.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if c.opts.pongTimeout > 0 {
				if idle := time.Since(c.LastActivity()); idle > c.opts.pongTimeout {
					c.log.Warnf("[%s] no data for %s, closing connection", c.opts.exchange, idle.Truncate(time.Millisecond))
					_ = s.close()
					return
				}
			}
			frame := c.proto.HeartbeatFrame()
			if frame == nil {
				continue
			}
			if err := c.sendOn(s, frame); err != nil {
				c.log.Warnf("[%s] send heartbeat failed: %v", c.opts.exchange, err)
			}
		}
	}
}

func (c *Client) consumeLoop(s *session) {
	defer s.wg.Done()
	c.pipeline.Consume(s.ctx)
}

// handleClosed 连接意外断开：清理旧会话，通知监听器，然后重连
func (c *Client) handleClosed(s *session, cause error) {
	c.opMu.Lock()
	c.mu.Lock()
	if c.sess != s {
		// 已被 Disconnect 或 Reconnect 处理
		c.mu.Unlock()
		c.opMu.Unlock()
		return
	}
	c.sess = nil
	if c.shouldReconnect.Load() {
		c.state = Reconnecting
	} else {
		c.state = Disconnected
	}
	ctx := c.lifeCtx
	c.mu.Unlock()
	_ = c.stopSession(s)
	c.opMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	c.recoverSession(ctx, cause)
}

// recoverSession 通知 OnDisconnect 监听器后进入重连循环，耗尽时触发 fallback
func (c *Client) recoverSession(ctx context.Context, cause error) {
	c.onDisconnect.Emit(cause, func(h Handle, err error) {
		c.log.Errorf("[%s] disconnect listener %s failed: %v", c.opts.exchange, h, err)
	})

	if !c.shouldReconnect.Load() || ctx.Err() != nil {
		return
	}
	if c.reconnect(ctx) {
		c.fireFallback()
	}
}

// reconnect 返回 true 表示重连次数耗尽
func (c *Client) reconnect(ctx context.Context) bool {
	if !c.setReconnectState(Reconnecting) {
		return false
	}
	max := c.opts.reconnectAttempts
	for {
		n := int(c.reconnectCount.Load())
		if n >= max {
			break
		}
		delay := c.opts.reconnect.Delay(n)
		c.reconnectCount.Add(1)
		c.log.Infof("[%s] reconnecting in %s (attempt %d/%d)", c.opts.exchange, delay, n+1, max)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		c.opMu.Lock()
		started, err := c.connectLocked(ctx, true)
		c.opMu.Unlock()
		if err == nil {
			if started {
				c.afterConnect()
			}
			return false
		}
		if errors.Is(err, errReconnectAborted) {
			return false
		}
		c.log.Warnf("[%s] reconnect attempt %d/%d failed: %v", c.opts.exchange, n+1, max, err)
		if !c.setReconnectState(Reconnecting) {
			return false
		}
	}

	if !c.setReconnectState(Disconnected) {
		return false
	}
	c.log.Errorf("[%s] reconnect attempts exhausted (%d), giving up", c.opts.exchange, max)
	return true
}

// setReconnectState 重连流程中的状态变更，主动断开之后不再生效
func (c *Client) setReconnectState(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shouldReconnect.Load() || c.state == Closed {
		return false
	}
	c.state = s
	return true
}

func (c *Client) fireFallback() {
	c.mu.RLock()
	fb := c.fallback
	c.mu.RUnlock()
	if fb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("[%s] fallback trigger panic: %v", c.opts.exchange, r)
		}
	}()
	fb()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Send 发送一帧，[]byte 和 string 原样发送，其余类型编码为 JSON
func (c *Client) Send(frame interface{}) error {
	c.mu.RLock()
	s := c.sess
	state := c.state
	c.mu.RUnlock()
	if s == nil || state != Connected {
		return errs.NewDisconnectedError(c.opts.exchange)
	}
	return c.sendOn(s, frame)
}

func (c *Client) sendOn(s *session, frame interface{}) error {
	mt, data, err := EncodeFrame(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return s.conn.WriteMessage(mt, data)
}

func (c *Client) Subscribe(channel string, params Params, cb Callback) error {
	return c.registry.Subscribe(channel, params, cb)
}

func (c *Client) Unsubscribe(channel string, params Params) error {
	return c.registry.Unsubscribe(channel, params)
}

func (c *Client) OnConnect(fn func()) Handle {
	return c.onConnect.Add(func(struct{}) error {
		fn()
		return nil
	})
}

func (c *Client) OnDisconnect(fn func(err error)) Handle {
	return c.onDisconnect.Add(func(err error) error {
		fn(err)
		return nil
	})
}

// OnMessage 注册通用消息监听器，接收没有被订阅回调处理的消息
func (c *Client) OnMessage(fn func(msg *Message) error) Handle {
	return c.pipeline.Listeners().Add(fn)
}

// Off 移除任意类型的监听器
func (c *Client) Off(h Handle) bool {
	return c.onConnect.Remove(h) || c.onDisconnect.Remove(h) || c.pipeline.Listeners().Remove(h)
}

// SetFallbackTrigger 重连耗尽时调用一次，调用方应切换到 REST 轮询
func (c *Client) SetFallbackTrigger(fn func()) {
	c.mu.Lock()
	c.fallback = fn
	c.mu.Unlock()
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Exchange() string {
	return c.opts.exchange
}

func (c *Client) URL() string {
	return c.opts.url
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// LastActivity 最近一次收到数据(含 ping/pong)的时间
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// ConnectionDuration 当前连接的持续时间，未连接时为 0
func (c *Client) ConnectionDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Connected {
		return 0
	}
	return time.Since(c.connectedAt)
}

// GetCurrentRate 自连接以来每秒收到的帧数
func (c *Client) GetCurrentRate() int {
	d := c.ConnectionDuration().Seconds()
	if d == 0 {
		return 0
	}
	return int(float64(c.pipeline.Received()) / d)
}

func (c *Client) Subscriptions() []string {
	return c.registry.Keys()
}

func (c *Client) ReconnectCount() int {
	return int(c.reconnectCount.Load())
}

func (c *Client) Registry() *Registry {
	return c.registry
}

func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}
