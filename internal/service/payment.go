package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/dar/internal/billing"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/telemetry"
	"github.com/getsentry/sentry-go"
)

// PaymentService applies asynchronous gateway callbacks to orders.
type PaymentService interface {
	// ProcessPaymentCallback verifies, parses and applies one callback.
	// Replays of an already applied callback return the same outcome
	// without changing anything.
	ProcessPaymentCallback(ctx context.Context, payload []byte, signature string) (*domain.PaymentOutcome, error)

	// VerifyCallback reports whether signature authenticates payload.
	VerifyCallback(payload []byte, signature string) bool
}

type paymentService struct {
	store   repository.Store
	carts   CartService
	gateway billing.Gateway
	machine *stateMachine
	logger  *slog.Logger
	now     func() time.Time
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(store repository.Store, carts CartService, gateway billing.Gateway, notifier Notifier, publisher EventPublisher, logger *slog.Logger) PaymentService {
	return &paymentService{
		store:   store,
		carts:   carts,
		gateway: gateway,
		machine: newStateMachine(notifier, publisher, logger),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *paymentService) VerifyCallback(payload []byte, signature string) bool {
	return s.gateway.VerifyCallback(payload, signature) == nil
}

// callbackResult labels the payment callback metric.
type callbackResult string

const (
	resultPaid         callbackResult = "paid"
	resultFailed       callbackResult = "failed"
	resultDuplicate    callbackResult = "duplicate"
	resultIgnored      callbackResult = "ignored"
	resultOutOfStock   callbackResult = "out_of_stock"
	resultInvalid      callbackResult = "invalid_signature"
	resultUnknownOrder callbackResult = "unknown_order"
)

func (s *paymentService) ProcessPaymentCallback(ctx context.Context, payload []byte, signature string) (*domain.PaymentOutcome, error) {
	provider := s.gateway.Name()

	if err := s.gateway.VerifyCallback(payload, signature); err != nil {
		s.record(provider, resultInvalid)
		s.logger.Warn("payment callback rejected",
			"provider", provider,
			"error", err,
		)
		return nil, ErrInvalidSignature
	}

	event, err := s.gateway.ParseCallback(payload)
	if err != nil {
		s.logger.Warn("payment callback could not be parsed",
			"provider", provider,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	if event.Ignored {
		s.record(provider, resultIgnored)
		return &domain.PaymentOutcome{Success: false, Message: "Callback acknowledged"}, nil
	}

	var (
		outcome     *domain.PaymentOutcome
		result      callbackResult
		paid        *repository.Order
		transitions []*Transition
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		order, err := q.GetOrderByGatewayOrderIDForUpdate(ctx, event.CorrelationID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("failed to lock order: %w", err)
		}
		orderID := uuidString(order.ID)

		// Replays and late callbacks land here once the first callback
		// has moved the order out of PENDING.
		if order.IsPaid || domain.OrderStatus(order.Status) != domain.OrderStatusPending {
			result = resultDuplicate
			outcome = &domain.PaymentOutcome{
				Success:   order.IsPaid,
				OrderID:   orderID,
				Message:   "Callback already processed",
				Duplicate: true,
			}
			if event.Success && !order.IsPaid {
				s.logger.Warn("successful payment for an order that is no longer pending; requires refund",
					"order_id", orderID,
					"order_number", order.OrderNumber,
					"status", order.Status,
					"transaction_id", event.TransactionID,
				)
				telemetry.CaptureMessage("payment received for closed order", sentry.LevelWarning, map[string]any{
					"order_id":       orderID,
					"order_number":   order.OrderNumber,
					"status":         order.Status,
					"transaction_id": event.TransactionID,
				})
			}
			return nil
		}

		if !event.Success {
			t, err := s.machine.transition(ctx, q, &order, domain.OrderStatusCancelled, failureNote(event), domain.ActorGateway)
			if err != nil {
				return err
			}
			transitions = append(transitions, t)
			result = resultFailed
			outcome = &domain.PaymentOutcome{Success: false, OrderID: orderID, Message: "Payment failed"}
			return nil
		}

		items, err := q.ListOrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to list order items: %w", err)
		}
		slices.SortFunc(items, func(a, b repository.OrderItem) int {
			return strings.Compare(uuidString(a.VariantID), uuidString(b.VariantID))
		})

		inventory := NewInventoryService(q)
		short, err := s.shortItems(ctx, inventory, items)
		if err != nil {
			return err
		}
		if len(short) > 0 {
			note := "Payment received but stock is no longer available: " + strings.Join(short, ", ")
			t, err := s.machine.transition(ctx, q, &order, domain.OrderStatusCancelled, note, domain.ActorSystem)
			if err != nil {
				return err
			}
			transitions = append(transitions, t)
			result = resultOutOfStock
			outcome = &domain.PaymentOutcome{Success: false, OrderID: orderID, Message: "Items are out of stock; the payment will be refunded"}

			s.logger.Error("paid order cancelled for insufficient stock; requires refund",
				"order_id", orderID,
				"order_number", order.OrderNumber,
				"transaction_id", event.TransactionID,
				"items", short,
			)
			telemetry.CaptureMessage("paid order cancelled for insufficient stock", sentry.LevelError, map[string]any{
				"order_id":       orderID,
				"order_number":   order.OrderNumber,
				"transaction_id": event.TransactionID,
				"amount_cents":   event.AmountCents,
			})
			return nil
		}

		if err := q.MarkOrderPaid(ctx, repository.MarkOrderPaidParams{
			ID:                   order.ID,
			PaidAt:               timestamptz(s.now()),
			GatewayTransactionID: text(event.TransactionID),
		}); err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		order.IsPaid = true

		t, err := s.machine.transition(ctx, q, &order, domain.OrderStatusPaid, paidNote(event), domain.ActorGateway)
		if err != nil {
			return err
		}

		for _, item := range items {
			if err := inventory.DecrementStock(ctx, uuidString(item.VariantID), int(item.Quantity)); err != nil {
				return err
			}
		}

		if order.PromoCodeID.Valid {
			if err := q.IncrementPromoUses(ctx, order.PromoCodeID); err != nil {
				return fmt.Errorf("failed to increment promo usage: %w", err)
			}
		}

		transitions = append(transitions, t)
		paid = &order
		result = resultPaid
		outcome = &domain.PaymentOutcome{Success: true, OrderID: orderID, Message: "Payment confirmed"}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.record(provider, resultUnknownOrder)
			s.logger.Warn("payment callback for unknown order",
				"provider", provider,
				"gateway_order_id", event.CorrelationID,
			)
		}
		return nil, err
	}

	if paid != nil {
		if err := s.carts.ClearCart(ctx, paid.ShopperID, paid.IsGuest); err != nil {
			s.logger.Error("failed to clear cart after payment",
				"error", err,
				"order_id", outcome.OrderID,
				"shopper_id", paid.ShopperID,
			)
		}
		if telemetry.Business != nil {
			telemetry.Business.RevenueCollected.WithLabelValues(paid.PaymentMethod).Add(float64(paid.Total) / 100)
		}
	}

	s.machine.afterCommit(ctx, transitions...)
	s.record(provider, result)

	s.logger.Info("payment callback processed",
		"provider", provider,
		"order_id", outcome.OrderID,
		"result", result,
		"transaction_id", event.TransactionID,
	)
	return outcome, nil
}

// shortItems locks each variant in order and returns the names of items
// the current stock can no longer cover.
func (s *paymentService) shortItems(ctx context.Context, inventory InventoryService, items []repository.OrderItem) ([]string, error) {
	var short []string
	for _, item := range items {
		ok, err := inventory.CheckStock(ctx, uuidString(item.VariantID), int(item.Quantity))
		if err != nil {
			return nil, err
		}
		if !ok {
			short = append(short, orderItemName(item))
		}
	}
	return short, nil
}

func (s *paymentService) record(provider string, result callbackResult) {
	if telemetry.Business != nil {
		telemetry.Business.PaymentCallbacks.WithLabelValues(provider, string(result)).Inc()
	}
}

func orderItemName(item repository.OrderItem) string {
	if item.VariantName == "" {
		return item.ProductName
	}
	return item.ProductName + " - " + item.VariantName
}

func paidNote(event *billing.CallbackEvent) string {
	if event.TransactionID == "" {
		return "Payment confirmed"
	}
	return "Payment confirmed, transaction " + event.TransactionID
}

func failureNote(event *billing.CallbackEvent) string {
	if event.Message == "" {
		return "Payment failed"
	}
	return "Payment failed: " + event.Message
}
