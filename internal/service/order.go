package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/telemetry"
)

// OrderService reads orders and moves them through the order state machine.
type OrderService interface {
	// GetOrder returns an order with its items and status history.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetOrderByTrackingToken is the anonymous tracking lookup.
	GetOrderByTrackingToken(ctx context.Context, token string) (*domain.Order, error)

	// UpdateStatus applies an operator transition. PAID is reserved for
	// the payment callback and is rejected here.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, note, actor string) (*domain.Order, error)

	// CancelOrder cancels an order that is still PENDING or PAID.
	CancelOrder(ctx context.Context, orderID, actor, reason string) (*domain.Order, error)

	// CancelByTrackingToken is the customer cancellation path.
	CancelByTrackingToken(ctx context.Context, token, reason string) (*domain.Order, error)
}

// Transition is a committed status change, kept for post-commit side effects.
type Transition struct {
	Order *domain.Order
	From  domain.OrderStatus
	To    domain.OrderStatus
	Note  string
	Actor string
	At    time.Time
}

// stateMachine applies transitions inside a caller's transaction and runs
// notifications once that transaction has committed.
type stateMachine struct {
	notifier  Notifier
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func newStateMachine(notifier Notifier, publisher EventPublisher, logger *slog.Logger) *stateMachine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &stateMachine{
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// transition validates from -> to, updates the order row and appends the
// history entry. order is updated in place.
func (m *stateMachine) transition(ctx context.Context, q repository.Querier, order *repository.Order, to domain.OrderStatus, note, actor string) (*Transition, error) {
	from := domain.OrderStatus(order.Status)
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if err := q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: string(to),
	}); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if _, err := q.CreateOrderStatusHistory(ctx, repository.CreateOrderStatusHistoryParams{
		OrderID: order.ID,
		Status:  string(to),
		Note:    note,
		Actor:   actor,
	}); err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	order.Status = string(to)
	return &Transition{
		Order: toDomainOrder(*order),
		From:  from,
		To:    to,
		Note:  note,
		Actor: actor,
		At:    m.now(),
	}, nil
}

// notificationFor maps a transition to the shopper notification it
// triggers. A cash on delivery acceptance confirms the order the same way
// a payment does.
func notificationFor(t *Transition) (domain.NotificationEvent, bool) {
	switch t.To {
	case domain.OrderStatusPaid:
		return domain.NotifyOrderConfirmed, true
	case domain.OrderStatusProcessing:
		if t.From == domain.OrderStatusPending && t.Order.PaymentMethod == domain.PaymentMethodCOD {
			return domain.NotifyOrderConfirmed, true
		}
	case domain.OrderStatusShipped:
		return domain.NotifyOrderShipped, true
	case domain.OrderStatusDelivered:
		return domain.NotifyOrderDelivered, true
	}
	return "", false
}

// afterCommit records, publishes and notifies. Failures are logged and
// never surface to the caller.
func (m *stateMachine) afterCommit(ctx context.Context, transitions ...*Transition) {
	for _, t := range transitions {
		if t == nil {
			continue
		}

		if telemetry.Business != nil {
			telemetry.Business.OrderTransitions.WithLabelValues(string(t.From), string(t.To)).Inc()
		}

		m.logger.Info("order status changed",
			"order_id", t.Order.ID,
			"order_number", t.Order.OrderNumber,
			"from", t.From,
			"status", t.To,
			"actor", t.Actor,
		)

		if err := m.publisher.Publish(ctx, domain.OrderEvent{
			Event:          domain.EventOrderStatusChanged,
			OrderID:        t.Order.ID,
			OrderNumber:    t.Order.OrderNumber,
			Status:         t.To,
			PreviousStatus: t.From,
			Actor:          t.Actor,
			Note:           t.Note,
			OccurredAt:     t.At,
		}); err != nil {
			m.logger.Error("failed to publish order event",
				"error", err,
				"order_id", t.Order.ID,
				"status", t.To,
			)
			if telemetry.Business != nil {
				telemetry.Business.NotificationFailures.WithLabelValues("event").Inc()
			}
		}

		event, ok := notificationFor(t)
		if !ok {
			continue
		}
		if err := m.notifier.Notify(ctx, event, t.Order); err != nil {
			m.logger.Error("failed to send order notification",
				"error", err,
				"order_id", t.Order.ID,
				"order_number", t.Order.OrderNumber,
				"event", event,
			)
			if telemetry.Business != nil {
				telemetry.Business.NotificationFailures.WithLabelValues("email").Inc()
			}
		}
	}
}

type orderService struct {
	store   repository.Store
	machine *stateMachine
	logger  *slog.Logger
}

// NewOrderService creates a new OrderService instance
func NewOrderService(store repository.Store, notifier Notifier, publisher EventPublisher, logger *slog.Logger) OrderService {
	return &orderService{
		store:   store,
		machine: newStateMachine(notifier, publisher, logger),
		logger:  logger,
	}
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	id, ok := parseUUID(orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}

	row, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return loadOrderDetail(ctx, s.store, row)
}

func (s *orderService) GetOrderByTrackingToken(ctx context.Context, token string) (*domain.Order, error) {
	if token == "" {
		return nil, ErrOrderNotFound
	}

	row, err := s.store.GetOrderByTrackingToken(ctx, token)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by tracking token: %w", err)
	}
	return loadOrderDetail(ctx, s.store, row)
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, note, actor string) (*domain.Order, error) {
	if _, ok := domain.ParseOrderStatus(string(status)); !ok || status == domain.OrderStatusPaid {
		return nil, fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, status)
	}

	return s.mutate(ctx, orderID, func(order *repository.Order) (domain.OrderStatus, error) {
		// A pending order leaves PENDING only through payment, cash on
		// delivery acceptance at checkout, or cancellation.
		if domain.OrderStatus(order.Status) == domain.OrderStatusPending && status == domain.OrderStatusProcessing {
			return "", fmt.Errorf("%w: unpaid order cannot start processing", ErrInvalidTransition)
		}
		return status, nil
	}, note, actor)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, actor, reason string) (*domain.Order, error) {
	return s.mutate(ctx, orderID, func(order *repository.Order) (domain.OrderStatus, error) {
		if !domain.OrderStatus(order.Status).IsCancellable() {
			return "", ErrCannotCancelAtThisStage
		}
		return domain.OrderStatusCancelled, nil
	}, cancelNote(actor, reason), actor)
}

func (s *orderService) CancelByTrackingToken(ctx context.Context, token, reason string) (*domain.Order, error) {
	if token == "" {
		return nil, ErrOrderNotFound
	}

	row, err := s.store.GetOrderByTrackingToken(ctx, token)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by tracking token: %w", err)
	}
	return s.CancelOrder(ctx, uuidString(row.ID), domain.ActorCustomer, reason)
}

// mutate locks the order, lets decide pick the target status, and applies
// the transition in one transaction.
func (s *orderService) mutate(ctx context.Context, orderID string, decide func(*repository.Order) (domain.OrderStatus, error), note, actor string) (*domain.Order, error) {
	id, ok := parseUUID(orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}

	var t *Transition
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}

		to, err := decide(&order)
		if err != nil {
			return err
		}

		t, err = s.machine.transition(ctx, q, &order, to, note, actor)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrCannotCancelAtThisStage) {
			s.logger.Info("order transition rejected", "order_id", orderID, "actor", actor, "error", err)
		}
		return nil, err
	}

	s.machine.afterCommit(ctx, t)
	return s.GetOrder(ctx, orderID)
}

func cancelNote(actor, reason string) string {
	note := "Cancelled by " + actor
	if reason != "" {
		note += ": " + reason
	}
	return note
}

// loadOrderDetail attaches items and history to an order row.
func loadOrderDetail(ctx context.Context, q repository.Querier, row repository.Order) (*domain.Order, error) {
	items, err := q.ListOrderItems(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}

	history, err := q.ListOrderStatusHistory(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order history: %w", err)
	}

	order := toDomainOrder(row)
	order.Items = toDomainOrderItems(items)
	order.History = toDomainHistory(history)
	return order, nil
}
