package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// 与 gorilla/websocket 的消息类型保持一致
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

var ErrNotConnected = errors.New("websocket: not connected")

//go:generate mockgen -destination=../websocket/mock/websocket.go -package=mock_websocket . WebSocketConn
type WebSocketConn interface {
	Dial(ctx context.Context, endpoint string, requestHeader http.Header) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ConnFactory 每次建连创建一个新的底层连接
type ConnFactory func() WebSocketConn

// WebsocketConfig 底层连接的配置
type WebsocketConfig struct {
	// 握手超时，ctx 没有 deadline 时使用
	HandshakeTimeout time.Duration
	// 单条消息最大字节数
	ReadLimit int64
	// 写超时，0 表示不设置
	WriteTimeout time.Duration
	// 代理地址
	ProxyURL string
}

func DefaultConfig() *WebsocketConfig {
	return &WebsocketConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadLimit:        655350,
		WriteTimeout:     10 * time.Second,
	}
}
