package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the checkout funnel and
// the order lifecycle. Callers must nil-check the global Business.
type BusinessMetrics struct {
	// Cart
	CartItemsAdded   *prometheus.CounterVec
	CartTransfers    *prometheus.CounterVec
	CartLinesDropped *prometheus.CounterVec

	// Promo codes
	PromoEvaluations *prometheus.CounterVec

	// Checkout funnel
	CheckoutStarted *prometheus.CounterVec
	CheckoutFailed  *prometheus.CounterVec

	// Orders
	OrdersCreated    *prometheus.CounterVec
	OrderValue       *prometheus.HistogramVec
	OrderItemCount   *prometheus.HistogramVec
	OrderTransitions *prometheus.CounterVec

	// Payments
	PaymentCallbacks *prometheus.CounterVec
	RevenueCollected *prometheus.CounterVec
	GatewayLatency   *prometheus.HistogramVec

	// Notifications
	NotificationFailures *prometheus.CounterVec
	EventsPublished      *prometheus.CounterVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// Email delivery
	EmailSent   *prometheus.CounterVec
	EmailFailed *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "dar"
	}

	subsystem := "business"

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &BusinessMetrics{
		// =======================================================================
		// Cart
		// =======================================================================
		CartItemsAdded:   counter("cart_items_added_total", "Total add to cart actions", "shopper_type"),
		CartTransfers:    counter("cart_transfers_total", "Guest carts merged into a signed-in cart", "result"),
		CartLinesDropped: counter("cart_lines_dropped_total", "Cart lines removed during validation", "reason"), // inactive, stock, missing

		// =======================================================================
		// Promo codes
		// =======================================================================
		PromoEvaluations: counter("promo_evaluations_total", "Promo code evaluations by outcome", "result"), // applied or a rejection reason

		// =======================================================================
		// Checkout funnel
		// =======================================================================
		CheckoutStarted: counter("checkout_started_total", "Checkout initiations", "payment_method"),
		CheckoutFailed:  counter("checkout_failed_total", "Checkout initiations that did not create an order", "payment_method", "reason"),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersCreated: counter("orders_created_total", "Orders created", "payment_method"),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_egp",
				Help:      "Order total in EGP",
				Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000, 250000},
			},
			[]string{"payment_method"},
		),
		OrderItemCount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_count",
				Help:      "Number of units per order",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"payment_method"},
		),
		OrderTransitions: counter("order_transitions_total", "Committed order status transitions", "from", "to"),

		// =======================================================================
		// Payments
		// =======================================================================
		PaymentCallbacks: counter("payment_callbacks_total", "Gateway callbacks by outcome", "provider", "result"),
		RevenueCollected: counter("revenue_collected_piastres_total", "Paid order totals in piastres", "payment_method"),
		GatewayLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_api_duration_seconds",
				Help:      "Payment gateway call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"}, // operation: card, wallet, callback
		),

		// =======================================================================
		// Notifications
		// =======================================================================
		NotificationFailures: counter("notification_failures_total", "Notifications that could not be dispatched", "channel"),
		EventsPublished:      counter("order_events_published_total", "Order events published", "driver"),

		// =======================================================================
		// Background jobs
		// =======================================================================
		JobsEnqueued:  counter("jobs_enqueued_total", "Background jobs enqueued", "job_type"),
		JobsProcessed: counter("jobs_processed_total", "Background jobs completed", "job_type"),
		JobsFailed:    counter("jobs_failed_total", "Background job attempts that failed", "job_type"),
		JobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Background job processing duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job_type"},
		),

		// =======================================================================
		// Email delivery
		// =======================================================================
		EmailSent:   counter("emails_sent_total", "Emails delivered", "template"),
		EmailFailed: counter("emails_failed_total", "Emails that failed to send", "template"),
	}

	return m
}

// Global instance for easy access from services and handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}
