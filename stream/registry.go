package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/errs"
)

// Callback 订阅回调，在接收协程中直接调用，不要在其中阻塞或同步调用 Disconnect
type Callback func(msg *Message) error

type Subscription struct {
	ID        string
	Channel   string
	Params    Params
	Key       string
	CreatedAt time.Time
	Callback  Callback
}

// Sender 发送控制帧，由 Client 实现
type Sender interface {
	IsConnected() bool
	Send(frame interface{}) error
}

// Registry 订阅表。同一个 key 只保存一份，重连后由 ResubscribeAll 重新订阅。
type Registry struct {
	mu       sync.RWMutex
	subs     map[string]*Subscription
	sender   Sender
	proto    Protocol
	exchange string
	log      *log.Helper
}

func NewRegistry(sender Sender, proto Protocol, exchange string, logger *log.Helper) *Registry {
	if logger == nil {
		logger = log.NewHelper(log.DefaultLogger)
	}
	return &Registry{
		subs:     make(map[string]*Subscription),
		sender:   sender,
		proto:    proto,
		exchange: exchange,
		log:      logger,
	}
}

// Subscribe 发送订阅帧并保存，重复订阅直接返回。
// 发送期间持有锁，并发的相同订阅只会发出一帧。
func (r *Registry) Subscribe(channel string, params Params, cb Callback) error {
	if !r.sender.IsConnected() {
		return errs.NewDisconnectedError(r.exchange)
	}
	key := SubscriptionKey(channel, params)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[key]; ok {
		return nil
	}
	frame, err := r.proto.SubscribeFrame(channel, params)
	if err != nil {
		return errs.NewSubscriptionError(r.exchange, key, err)
	}
	if err := r.sender.Send(frame); err != nil {
		return errs.NewSubscriptionError(r.exchange, key, err)
	}
	r.subs[key] = &Subscription{
		ID:        uuid.NewString(),
		Channel:   channel,
		Params:    params.clone(),
		Key:       key,
		CreatedAt: time.Now(),
		Callback:  cb,
	}
	r.log.Debugf("[%s] subscribed %s", r.exchange, key)
	return nil
}

// Unsubscribe 未连接或未订阅时直接返回；发送失败也会移除订阅
func (r *Registry) Unsubscribe(channel string, params Params) error {
	if !r.sender.IsConnected() {
		return nil
	}
	key := SubscriptionKey(channel, params)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[key]; !ok {
		return nil
	}
	delete(r.subs, key)

	frame, err := r.proto.UnsubscribeFrame(channel, params)
	if err == nil {
		err = r.sender.Send(frame)
	}
	if err != nil {
		r.log.Warnf("[%s] unsubscribe %s failed: %v", r.exchange, key, err)
		return nil
	}
	r.log.Debugf("[%s] unsubscribed %s", r.exchange, key)
	return nil
}

// ResubscribeAll 用空表替换当前订阅表，再逐个重新订阅快照中的订阅。
// 单个失败只记录日志，返回失败数量。
func (r *Registry) ResubscribeAll() int {
	r.mu.Lock()
	snapshot := r.subs
	r.subs = make(map[string]*Subscription, len(snapshot))
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return 0
	}

	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	failed := 0
	for _, k := range keys {
		s := snapshot[k]
		if err := r.Subscribe(s.Channel, s.Params, s.Callback); err != nil {
			failed++
			r.log.Errorf("[%s] resubscribe %s failed: %v", r.exchange, k, err)
		}
	}
	r.log.Infof("[%s] resubscribed %d/%d subscriptions", r.exchange, len(snapshot)-failed, len(snapshot))
	return failed
}

func (r *Registry) Lookup(key string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subs[key]
	return s, ok
}

// Keys 已排序
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.subs))
	for k := range r.subs {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.subs = make(map[string]*Subscription)
	r.mu.Unlock()
}
