package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/trufnetwork/streampay/core/types"
)

// KafkaSink publishes events as JSON messages. Events of one stream share a
// partition key, so consumers see a stream's history in order.
type KafkaSink struct {
	writer      *kafka.Writer
	topic       string
	topicByKind map[types.EventKind]string
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink writes to topic unless topicByKind maps an event kind elsewhere.
func NewKafkaSink(brokers []string, topic string, topicByKind map[types.EventKind]string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka sink requires at least one broker")
	}
	if topic == "" {
		return nil, errors.New("kafka sink requires a topic")
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic:       topic,
		topicByKind: topicByKind,
	}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, events []types.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := k.messages(events)
	if err != nil {
		return err
	}
	return errors.Wrap(k.writer.WriteMessages(ctx, msgs...), "writing events to kafka")
}

func (k *KafkaSink) messages(events []types.Event) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding event %s", ev.ID)
		}
		topic := k.topic
		if mapped, ok := k.topicByKind[ev.Kind]; ok && mapped != "" {
			topic = mapped
		}
		key := "stream-" + strconv.FormatUint(ev.StreamID, 10)
		if ev.StreamID == 0 {
			key = string(ev.Kind)
		}
		msgs = append(msgs, kafka.Message{
			Topic: topic,
			Key:   []byte(key),
			Value: payload,
			Time:  time.Unix(ev.Time, 0).UTC(),
			Headers: []kafka.Header{
				{Key: "event_kind", Value: []byte(ev.Kind)},
				{Key: "event_id", Value: []byte(ev.ID)},
			},
		})
	}
	return msgs, nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
