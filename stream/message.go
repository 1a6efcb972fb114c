package stream

import (
	"time"

	"github.com/bitly/go-simplejson"
)

// Message 一条入站消息。非 JSON 文本(例如 "PONG")的 Data 为空对象
type Message struct {
	Raw        []byte
	Data       *simplejson.Json
	Key        string
	ReceivedAt time.Time
}

// NewMessage 按 JSON 解析
func NewMessage(raw []byte) (*Message, error) {
	j, err := simplejson.NewJson(raw)
	if err != nil {
		return nil, err
	}
	return &Message{
		Raw:        raw,
		Data:       j,
		ReceivedAt: time.Now(),
	}, nil
}

// NewTextMessage 不解析，用于纯文本帧
func NewTextMessage(raw []byte) *Message {
	return &Message{
		Raw:        raw,
		Data:       simplejson.New(),
		ReceivedAt: time.Now(),
	}
}

func (m *Message) Text() string {
	return string(m.Raw)
}

func (m *Message) Get(key string) *simplejson.Json {
	return m.Data.Get(key)
}

// GetString 字段不存在或不是字符串时返回空串
func (m *Message) GetString(key string) string {
	return m.Data.Get(key).MustString()
}
