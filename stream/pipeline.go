package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Pipeline 入站消息处理：解析、丢弃心跳响应、路由到订阅回调，其余进入通用队列。
// 队列满时 Handle 阻塞，接收协程随之放慢读取速度，不丢消息。
type Pipeline struct {
	proto     Protocol
	registry  *Registry
	queue     chan *Message
	listeners *Dispatcher[*Message]
	exchange  string
	log       *log.Helper

	received atomic.Uint64
	dropped  atomic.Uint64
}

func NewPipeline(proto Protocol, registry *Registry, queueSize int, exchange string, logger *log.Helper) *Pipeline {
	if logger == nil {
		logger = log.NewHelper(log.DefaultLogger)
	}
	return &Pipeline{
		proto:     proto,
		registry:  registry,
		queue:     make(chan *Message, queueSize),
		listeners: NewDispatcher[*Message](),
		exchange:  exchange,
		log:       logger,
	}
}

// Handle 处理一帧原始数据，只有在 ctx 取消导致入队失败时返回错误
func (p *Pipeline) Handle(ctx context.Context, raw []byte) error {
	p.received.Add(1)

	msg, err := p.proto.ParseFrame(raw)
	if err != nil || msg == nil {
		p.dropped.Add(1)
		p.log.Warnf("[%s] drop unparseable frame: %v, raw=%.200s", p.exchange, err, raw)
		return nil
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	if p.proto.IsHeartbeatResponse(msg) {
		return nil
	}

	msg.Key = p.proto.RoutingKey(msg)
	if msg.Key != "" {
		if sub, ok := p.registry.Lookup(msg.Key); ok && sub.Callback != nil {
			if err := safeCall(sub.Callback, msg); err != nil {
				p.log.Errorf("[%s] callback %s failed: %v", p.exchange, msg.Key, err)
			}
			return nil
		}
	}

	select {
	case p.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume 单消费者，按入队顺序分发给所有监听器，直到 ctx 取消
func (p *Pipeline) Consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			p.listeners.Emit(msg, func(h Handle, err error) {
				p.log.Errorf("[%s] message listener %s failed: %v", p.exchange, h, err)
			})
		}
	}
}

func (p *Pipeline) Listeners() *Dispatcher[*Message] {
	return p.listeners
}

// Received 收到的帧数，含心跳响应和解析失败的帧
func (p *Pipeline) Received() uint64 {
	return p.received.Load()
}

func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Pending 通用队列中待处理的消息数
func (p *Pipeline) Pending() int {
	return len(p.queue)
}
