package kafka

import (
	"sort"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/NA-DEGEN-GIRL/multi-prediction-markets-core/broker"
)

func kafkaHeaderToMap(h []kafkaGo.Header) broker.Headers {
	m := broker.Headers{}
	for _, v := range h {
		m[v.Key] = string(v.Value)
	}
	return m
}

// mapToKafkaHeader 按 key 排序，保证输出稳定
func mapToKafkaHeader(m broker.Headers) []kafkaGo.Header {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := make([]kafkaGo.Header, 0, len(m))
	for _, k := range keys {
		h = append(h, kafkaGo.Header{Key: k, Value: []byte(m[k])})
	}
	return h
}
