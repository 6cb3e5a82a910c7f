package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dukerupert/dar/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by order id, so every
// event of an order lands on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher needs at least one broker")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	}

	return &KafkaPublisher{writer: w, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	data, err := encode(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Event)},
			{Key: "message_id", Value: []byte(messageID(event))},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write order event to kafka: %w", err)
	}

	recordPublished(DriverKafka)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
