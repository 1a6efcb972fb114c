package broker

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

var Json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	StreamMessageTopicType string = "STREAM.MESSAGE"
	StreamStatusTopicType  string = "STREAM.STATUS"
)

type Headers map[string]string

// Message 发往消息队列的一条消息
type Message struct {
	Key     string
	Headers Headers
	Body    []byte
}

// Publisher 由 broker/kafka 实现
type Publisher interface {
	Publish(ctx context.Context, topic string, msg *Message) error
	Close() error
}

// StreamEvent 长连接收到的一条行情或用户消息
type StreamEvent struct {
	Exchange   string              `json:"exchange"`
	Key        string              `json:"key"`
	ReceivedAt int64               `json:"received_at"`
	Payload    jsoniter.RawMessage `json:"payload"`
}

// StreamStatusEvent 连接状态变化
type StreamStatusEvent struct {
	Exchange  string `json:"exchange"`
	StreamID  string `json:"stream_id"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewStreamEvent 非 JSON 的文本帧以字符串形式放入 payload
func NewStreamEvent(exchange string, msg *stream.Message) *StreamEvent {
	payload := msg.Raw
	if !Json.Valid(payload) {
		payload, _ = Json.Marshal(string(msg.Raw))
	}
	return &StreamEvent{
		Exchange:   exchange,
		Key:        msg.Key,
		ReceivedAt: msg.ReceivedAt.UnixMilli(),
		Payload:    payload,
	}
}

func (e *StreamEvent) Message() (*Message, error) {
	body, err := Json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &Message{
		Key: e.Key,
		Headers: Headers{
			"type":     StreamMessageTopicType,
			"exchange": e.Exchange,
		},
		Body: body,
	}, nil
}

func NewStreamStatusEvent(exchange, streamID string, state stream.State, err error) *StreamStatusEvent {
	e := &StreamStatusEvent{
		Exchange:  exchange,
		StreamID:  streamID,
		State:     state.String(),
		Timestamp: time.Now().UnixMilli(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func (e *StreamStatusEvent) Message() (*Message, error) {
	body, err := Json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &Message{
		Key: e.StreamID,
		Headers: Headers{
			"type":     StreamStatusTopicType,
			"exchange": e.Exchange,
		},
		Body: body,
	}, nil
}
