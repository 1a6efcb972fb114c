package gorilla

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	gwebsocket "github.com/gorilla/websocket"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/websocket"
)

var _ websocket.WebSocketConn = (*GorillaWebSocketConn)(nil)

func NewGorillaWebSocketConn(config *websocket.WebsocketConfig) *GorillaWebSocketConn {
	if config == nil {
		config = websocket.DefaultConfig()
	}
	return &GorillaWebSocketConn{config: config}
}

// Factory 返回 websocket.ConnFactory，每次调用生成新的连接
func Factory(config *websocket.WebsocketConfig) websocket.ConnFactory {
	return func() websocket.WebSocketConn {
		return NewGorillaWebSocketConn(config)
	}
}

type GorillaWebSocketConn struct {
	config  *websocket.WebsocketConfig
	conn    *gwebsocket.Conn
	writeMu sync.Mutex
}

func (g *GorillaWebSocketConn) Dial(ctx context.Context, endpoint string, requestHeader http.Header) error {
	dialer := gwebsocket.Dialer{
		HandshakeTimeout: g.config.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if g.config.ProxyURL != "" {
		proxy, err := url.Parse(g.config.ProxyURL)
		if err != nil {
			return err
		}
		dialer.Proxy = http.ProxyURL(proxy)
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, requestHeader)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	if g.config.ReadLimit > 0 {
		conn.SetReadLimit(g.config.ReadLimit)
	}
	g.conn = conn
	return nil
}

func (g *GorillaWebSocketConn) ReadMessage() (int, []byte, error) {
	if g.conn == nil {
		return 0, nil, websocket.ErrNotConnected
	}
	return g.conn.ReadMessage()
}

// WriteMessage gorilla 只允许一个并发写，这里加锁
func (g *GorillaWebSocketConn) WriteMessage(messageType int, data []byte) error {
	if g.conn == nil {
		return websocket.ErrNotConnected
	}
	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if g.config.WriteTimeout > 0 {
		_ = g.conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
	}
	return g.conn.WriteMessage(messageType, data)
}

func (g *GorillaWebSocketConn) SetPingHandler(h func(appData string) error) {
	if g.conn == nil {
		return
	}
	if h == nil {
		g.conn.SetPingHandler(nil)
		return
	}
	// 先回复 pong，再交给上层记录活跃时间
	g.conn.SetPingHandler(func(appData string) error {
		err := g.conn.WriteControl(gwebsocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if err != nil && err != gwebsocket.ErrCloseSent {
			return err
		}
		return h(appData)
	})
}

func (g *GorillaWebSocketConn) SetPongHandler(h func(appData string) error) {
	if g.conn == nil {
		return
	}
	g.conn.SetPongHandler(h)
}

// Close 发送 close 帧后关闭底层连接
func (g *GorillaWebSocketConn) Close() error {
	if g.conn == nil {
		return nil
	}
	_ = g.conn.WriteControl(gwebsocket.CloseMessage,
		gwebsocket.FormatCloseMessage(gwebsocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return g.conn.Close()
}
