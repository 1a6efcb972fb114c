package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherOrderAndIsolation(t *testing.T) {
	d := NewDispatcher[int]()

	var calls []string
	d.Add(func(v int) error {
		calls = append(calls, "first")
		return nil
	})
	d.Add(func(v int) error {
		calls = append(calls, "panic")
		panic("boom")
	})
	d.Add(func(v int) error {
		calls = append(calls, "error")
		return errors.New("bad")
	})
	d.Add(func(v int) error {
		calls = append(calls, "last")
		return nil
	})

	var failed []Handle
	n := d.Emit(1, func(h Handle, err error) {
		failed = append(failed, h)
	})

	assert.Equal(t, []string{"first", "panic", "error", "last"}, calls)
	assert.Equal(t, 2, n)
	assert.Len(t, failed, 2)
}

func TestDispatcherRemove(t *testing.T) {
	d := NewDispatcher[string]()
	h1 := d.Add(func(string) error { return nil })
	h2 := d.Add(func(string) error { return nil })
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, d.Len())

	assert.True(t, d.Remove(h1))
	assert.False(t, d.Remove(h1))
	assert.Equal(t, 1, d.Len())
	assert.Equal(t, 0, d.Emit("x", nil))
}

func TestDispatcherRemoveDuringEmit(t *testing.T) {
	d := NewDispatcher[int]()
	var h Handle
	calls := 0
	h = d.Add(func(int) error {
		calls++
		d.Remove(h)
		return nil
	})
	d.Add(func(int) error {
		calls++
		return nil
	})

	d.Emit(1, nil)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, d.Len())
}
