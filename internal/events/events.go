// Package events publishes committed order transitions to a message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/telemetry"
)

// Drivers
const (
	DriverNATS  = "nats"
	DriverKafka = "kafka"
	DriverNone  = "none"
)

// DefaultTopic is the Kafka topic and NATS subject prefix.
const DefaultTopic = "order-events"

// Publisher sends order events and releases its connection on Close.
type Publisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
	Close() error
}

// Config selects and configures the publisher.
type Config struct {
	Driver       string
	NATSURL      string
	KafkaBrokers []string
	Topic        string
}

// New builds the publisher for cfg.Driver. An empty driver means none.
func New(cfg Config, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverNATS:
		return NewNATSPublisher(cfg.NATSURL, logger)
	case DriverKafka:
		topic := cfg.Topic
		if topic == "" {
			topic = DefaultTopic
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, topic, logger)
	case DriverNone, "":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, domain.OrderEvent) error { return nil }
func (Nop) Close() error { return nil }

// Subject is the NATS subject for an event, e.g. "orders.paid".
func Subject(event domain.OrderEvent) string {
	return "orders." + strings.ToLower(string(event.Status))
}

// messageID identifies one transition so consumers can drop redeliveries.
func messageID(event domain.OrderEvent) string {
	return event.OrderID + ":" + string(event.Status)
}

func encode(event domain.OrderEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return data, nil
}

func recordPublished(driver string) {
	if telemetry.Business != nil {
		telemetry.Business.EventsPublished.WithLabelValues(driver).Inc()
	}
}
