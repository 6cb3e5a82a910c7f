package service

import (
	"context"

	"github.com/dukerupert/dar/internal/domain"
)

// Notifier delivers shopper-facing notifications. Failures are reported
// to the caller but never undo the transition that triggered them.
type Notifier interface {
	Notify(ctx context.Context, event domain.NotificationEvent, order *domain.Order) error
}

// EventPublisher broadcasts committed order transitions to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.NotificationEvent, *domain.Order) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }
