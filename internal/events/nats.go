package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukerupert/dar/internal/domain"
)

type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
}

// NATSPublisher publishes each event on "orders.<status>".
type NATSPublisher struct {
	conn   natsConn
	logger *slog.Logger
}

// NewNATSPublisher connects to url. The client reconnects on its own;
// connection state changes are logged.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url,
		nats.Name("dar"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encode(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(event))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, messageID(event))
	msg.Header.Set("Event-Type", event.Event)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}

	recordPublished(DriverNATS)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
