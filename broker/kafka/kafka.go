package kafka

import (
	"context"
	"errors"
	"net"
	"strconv"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/broker"
	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/stream"
)

var ErrEmptyTopic = errors.New("kafka: topic is required")

var _ broker.Publisher = (*Publisher)(nil)

// messageWriter *kafkaGo.Writer 满足该接口
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

type Publisher struct {
	opts   *options
	writer messageWriter
}

func NewPublisher(opts ...Option) *Publisher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	w := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(o.addrs...),
		Balancer:     &kafkaGo.Hash{},
		BatchSize:    o.batchSize,
		BatchTimeout: o.batchTimeout,
		WriteTimeout: o.writeTimeout,
		RequiredAcks: kafkaGo.RequireOne,
		Async:        o.async,
		Logger:       &Logger{logger: o.logger},
		ErrorLogger:  &ErrorLogger{logger: o.logger},
	}
	if o.async {
		w.Completion = func(messages []kafkaGo.Message, err error) {
			if err != nil {
				o.logger.Errorf("kafka async write %d messages: %v", len(messages), err)
			}
		}
	}
	return &Publisher{opts: o, writer: w}
}

func (p *Publisher) Publish(ctx context.Context, topic string, msg *broker.Message) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	km := kafkaGo.Message{
		Topic:   topic,
		Value:   msg.Body,
		Headers: mapToKafkaHeader(msg.Headers),
	}
	if msg.Key != "" {
		km.Key = []byte(msg.Key)
	}
	return p.writer.WriteMessages(ctx, km)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// StreamListener 将长连接消息转发到 topic，可直接用于 Client.OnMessage 或订阅回调
func (p *Publisher) StreamListener(ctx context.Context, topic, exchange string) func(*stream.Message) error {
	return func(msg *stream.Message) error {
		m, err := broker.NewStreamEvent(exchange, msg).Message()
		if err != nil {
			return err
		}
		return p.Publish(ctx, topic, m)
	}
}

// StatusListeners 返回连接/断开监听器，把状态变化写入 topic
func (p *Publisher) StatusListeners(ctx context.Context, topic string, c *stream.Client) (func(), func(error)) {
	publish := func(state stream.State, cause error) {
		m, err := broker.NewStreamStatusEvent(c.Exchange(), c.ID(), state, cause).Message()
		if err == nil {
			err = p.Publish(ctx, topic, m)
		}
		if err != nil {
			p.opts.logger.Warnf("publish stream status: %v", err)
		}
	}
	onConnect := func() { publish(stream.Connected, nil) }
	onDisconnect := func(err error) { publish(c.State(), err) }
	return onConnect, onDisconnect
}

// CreateTopic 通过 controller 创建 topic
func CreateTopic(addr, topic string, partitions, replicationFactor int) error {
	conn, err := controllerConn(addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	})
}

func DeleteTopic(addr string, topics ...string) error {
	conn, err := controllerConn(addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.DeleteTopics(topics...)
}

func controllerConn(addr string) (*kafkaGo.Conn, error) {
	conn, err := kafkaGo.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return nil, err
	}
	return kafkaGo.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
}
