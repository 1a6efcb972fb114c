package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(queueSize int) (*Pipeline, *Registry) {
	sender := &recordSender{connected: true}
	r := NewRegistry(sender, testProto{}, "test", nil)
	return NewPipeline(testProto{}, r, queueSize, "test", nil), r
}

func TestPipelineRoutesToCallback(t *testing.T) {
	p, r := newTestPipeline(4)

	var got *Message
	require.NoError(t, r.Subscribe("book", Params{"id": "a"}, func(msg *Message) error {
		got = msg
		return nil
	}))

	require.NoError(t, p.Handle(context.Background(), []byte(`{"channel":"book","id":"a","bid":"0.4"}`)))
	require.NotNil(t, got)
	assert.Equal(t, "book?id=a", got.Key)
	assert.Equal(t, "0.4", got.GetString("bid"))
	assert.Equal(t, 0, p.Pending())
}

func TestPipelineQueuesUnrouted(t *testing.T) {
	p, r := newTestPipeline(4)

	// 订阅了但没有回调的也进入通用队列
	require.NoError(t, r.Subscribe("book", Params{"id": "b"}, nil))

	require.NoError(t, p.Handle(context.Background(), []byte(`{"channel":"book","id":"b"}`)))
	require.NoError(t, p.Handle(context.Background(), []byte(`{"status":"ok"}`)))
	assert.Equal(t, 2, p.Pending())
}

func TestPipelineDropsHeartbeatAndGarbage(t *testing.T) {
	p, _ := newTestPipeline(4)

	require.NoError(t, p.Handle(context.Background(), []byte("pong")))
	require.NoError(t, p.Handle(context.Background(), []byte("{broken")))

	assert.Equal(t, 0, p.Pending())
	assert.Equal(t, uint64(2), p.Received())
	assert.Equal(t, uint64(1), p.Dropped())
}

func TestPipelineBlocksWhenFull(t *testing.T) {
	p, _ := newTestPipeline(1)
	require.NoError(t, p.Handle(context.Background(), []byte(`{"n":1}`)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Handle(ctx, []byte(`{"n":2}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Pending())
}

func TestPipelineConsume(t *testing.T) {
	p, _ := newTestPipeline(8)

	out := make(chan int64, 8)
	p.Listeners().Add(func(msg *Message) error {
		out <- msg.Get("n").MustInt64()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Consume(ctx)
		close(done)
	}()

	for _, raw := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		require.NoError(t, p.Handle(ctx, []byte(raw)))
	}
	for want := int64(1); want <= 3; want++ {
		select {
		case n := <-out:
			assert.Equal(t, want, n)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
