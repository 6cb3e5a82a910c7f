// Package jobs defines the background job types, their payloads and the
// functions that enqueue and process them.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/email"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/telemetry"
)

// Job type constants for email jobs
const (
	JobTypeOrderConfirmed = "email:order_confirmed"
	JobTypeOrderShipped   = "email:order_shipped"
	JobTypeOrderDelivered = "email:order_delivered"
)

// emailMaxAttempts bounds delivery retries for every email job.
const emailMaxAttempts = 3

// OrderEmailPayload is the payload of every order email job. The order
// itself is loaded when the job runs so the email shows committed data.
type OrderEmailPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
	TrackingURL string `json:"tracking_url"`
}

// OrderMailer renders and sends an order email.
type OrderMailer interface {
	SendOrderEmail(ctx context.Context, data email.OrderEmail) (string, error)
}

// JobTypeFor maps a notification event to its email job type.
func JobTypeFor(event domain.NotificationEvent) (string, bool) {
	switch event {
	case domain.NotifyOrderConfirmed:
		return JobTypeOrderConfirmed, true
	case domain.NotifyOrderShipped:
		return JobTypeOrderShipped, true
	case domain.NotifyOrderDelivered:
		return JobTypeOrderDelivered, true
	}
	return "", false
}

// IsEmailJob checks if a job type is an email job
func IsEmailJob(jobType string) bool {
	switch jobType {
	case JobTypeOrderConfirmed, JobTypeOrderShipped, JobTypeOrderDelivered:
		return true
	}
	return false
}

// EnqueueOrderEmail enqueues the email job for a notification event.
func EnqueueOrderEmail(ctx context.Context, q repository.Querier, event domain.NotificationEvent, payload OrderEmailPayload) error {
	jobType, ok := JobTypeFor(event)
	if !ok {
		return fmt.Errorf("no email job for notification %q", event)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		MaxAttempts: emailMaxAttempts,
		RunAt: pgtype.Timestamptz{
			Time:  time.Now(),
			Valid: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}

	if telemetry.Business != nil {
		telemetry.Business.JobsEnqueued.WithLabelValues(jobType).Inc()
	}
	return nil
}

// ProcessEmailJob loads the order named by the payload and sends the email.
func ProcessEmailJob(ctx context.Context, job *repository.Job, mailer OrderMailer, q repository.Querier) error {
	kind, ok := emailKinds[job.JobType]
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}

	var payload OrderEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", job.JobType, err)
	}

	id, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order id %q in %s payload: %w", payload.OrderID, job.JobType, err)
	}
	orderID := pgtype.UUID{Bytes: id, Valid: true}

	order, err := q.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", payload.OrderNumber, err)
	}
	items, err := q.ListOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load items for order %s: %w", payload.OrderNumber, err)
	}

	data := buildOrderEmail(kind, payload, order, items)

	_, err = mailer.SendOrderEmail(ctx, data)
	if telemetry.Business != nil {
		if err != nil {
			telemetry.Business.EmailFailed.WithLabelValues(kind).Inc()
		} else {
			telemetry.Business.EmailSent.WithLabelValues(kind).Inc()
		}
	}
	return err
}

var emailKinds = map[string]string{
	JobTypeOrderConfirmed: email.KindOrderConfirmed,
	JobTypeOrderShipped:   email.KindOrderShipped,
	JobTypeOrderDelivered: email.KindOrderDelivered,
}

func buildOrderEmail(kind string, payload OrderEmailPayload, order repository.Order, items []repository.OrderItem) email.OrderEmail {
	lines := make([]email.OrderItem, len(items))
	for i, item := range items {
		lines[i] = email.OrderItem{
			ProductName: item.ProductName,
			VariantName: item.VariantName,
			Quantity:    int(item.Quantity),
			PriceCents:  item.UnitPrice,
			TotalCents:  item.LineTotal,
		}
	}

	recipient := order.Email
	if recipient == "" {
		recipient = payload.Email
	}

	return email.OrderEmail{
		Kind:          kind,
		Email:         recipient,
		CustomerName:  order.ShippingFullName,
		OrderNumber:   order.OrderNumber,
		OrderDate:     order.CreatedAt.Time,
		PaymentMethod: order.PaymentMethod,
		Items:         lines,
		SubtotalCents: order.Subtotal,
		DiscountCents: order.Discount,
		ShippingCents: order.ShippingCost,
		TotalCents:    order.Total,
		ShippingAddr: email.Address{
			Name:        order.ShippingFullName,
			Phone:       order.ShippingPhone,
			Street:      order.ShippingStreet,
			Building:    order.ShippingBuilding,
			Floor:       order.ShippingFloor,
			Apartment:   order.ShippingApartment,
			City:        order.ShippingCity,
			Governorate: order.ShippingGovernorate,
		},
		TrackingURL: payload.TrackingURL,
	}
}
