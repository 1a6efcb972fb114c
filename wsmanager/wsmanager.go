package wsmanager

import (
	"context"
	"time"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

// Stream 由 *stream.Client 实现
type Stream interface {
	ID() string
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	IsConnected() bool
	State() stream.State
	ConnectionDuration() time.Duration
}

var _ Stream = (*stream.Client)(nil)

// StreamManager 管理多条长连接：连接数上限、建连频率限制、到期回收
type StreamManager interface {
	AddStream(ctx context.Context, s Stream) (string, error)
	CloseStream(id string) error
	GetStream(id string) Stream
	GetStreams() map[string]Stream
	IsConnected(id string) bool
	Reconnect(ctx context.Context, id string) error
	Shutdown() error
}
