// Package notify turns order notifications into queued email jobs.
package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/jobs"
	"github.com/dukerupert/dar/internal/repository"
)

// Dispatcher implements service.Notifier by enqueueing one email job per
// notification. Delivery and retries belong to the worker.
type Dispatcher struct {
	queue   repository.Querier
	baseURL string
	logger  *slog.Logger
}

func NewDispatcher(queue repository.Querier, baseURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Notify enqueues the email for event. Orders without an email address
// are skipped.
func (d *Dispatcher) Notify(ctx context.Context, event domain.NotificationEvent, order *domain.Order) error {
	if order.Email == "" {
		d.logger.Debug("order has no email address, notification skipped",
			"order_id", order.ID,
			"event", event,
		)
		return nil
	}

	return jobs.EnqueueOrderEmail(ctx, d.queue, event, jobs.OrderEmailPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.Email,
		TrackingURL: d.TrackingURL(order.TrackingToken),
	})
}

// TrackingURL is the public page where a shopper follows an order.
func (d *Dispatcher) TrackingURL(token string) string {
	return d.baseURL + "/track/" + token
}
