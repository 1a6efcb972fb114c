package stream

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle 监听器句柄，用于移除
type Handle string

type dispatchEntry[T any] struct {
	handle Handle
	fn     func(T) error
}

// Dispatcher 有序的事件分发器，按注册顺序调用监听器。
// 监听器返回的错误和 panic 都交给 onErr，不影响后续监听器。
type Dispatcher[T any] struct {
	mu      sync.RWMutex
	entries []dispatchEntry[T]
}

func NewDispatcher[T any]() *Dispatcher[T] {
	return &Dispatcher[T]{}
}

func (d *Dispatcher[T]) Add(fn func(T) error) Handle {
	h := Handle(uuid.NewString())
	d.mu.Lock()
	d.entries = append(d.entries, dispatchEntry[T]{handle: h, fn: fn})
	d.mu.Unlock()
	return h
}

func (d *Dispatcher[T]) Remove(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.entries {
		if e.handle == h {
			entries := make([]dispatchEntry[T], 0, len(d.entries)-1)
			entries = append(entries, d.entries[:i]...)
			d.entries = append(entries, d.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Dispatcher[T]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Emit 返回失败的监听器数量
func (d *Dispatcher[T]) Emit(v T, onErr func(Handle, error)) int {
	d.mu.RLock()
	entries := d.entries
	d.mu.RUnlock()

	failed := 0
	for _, e := range entries {
		if err := safeCall(e.fn, v); err != nil {
			failed++
			if onErr != nil {
				onErr(e.handle, err)
			}
		}
	}
	return failed
}

func safeCall[T any](fn func(T) error, v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return fn(v)
}
