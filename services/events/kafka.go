package eventsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/kcci/portal/core"
)

// KafkaPublisher writes domain events to a Kafka topic, keyed by event type.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ core.EventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(conf *core.Config) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(conf.Kafka.Brokers...),
			Topic:        conf.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...core.Event) error {
	if len(events) == 0 {
		return nil
	}
	messages, err := newMessages(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return errors.Wrap(err, "writing events to kafka")
	}
	return nil
}

func newMessages(events []core.Event) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(events))
	for _, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			return nil, errors.Wrap(err, "marshalling event")
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(evt.Type),
			Value: data,
			Time:  evt.OccurredAt,
		})
	}
	return messages, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
