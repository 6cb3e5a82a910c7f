// Package webhook receives asynchronous payment callbacks from the
// configured gateway.
package webhook

import (
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/dar/internal/billing"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/handler"
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/service"
	"github.com/dukerupert/dar/internal/telemetry"
)

// PaymentHandler handles gateway payment callbacks
type PaymentHandler struct {
	paymentService service.PaymentService
	gateway        billing.Gateway
}

// NewPaymentHandler creates a new payment callback handler. The gateway
// is only used to locate the signature on the inbound request.
func NewPaymentHandler(paymentService service.PaymentService, gateway billing.Gateway) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		gateway:        gateway,
	}
}

type callbackResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

// HandleCallback processes POST /api/payments/callback
//
// A definitive outcome, successful or not, is acknowledged with 200 so the
// provider stops retrying. Only transient failures answer 5xx.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := middleware.GetLogger(r.Context())
	provider := h.gateway.Name()

	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.GatewayLatency.WithLabelValues(provider, "callback").Observe(time.Since(startTime).Seconds())
		}
	}()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("failed to read payment callback", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "payment.callback", "Error reading request body"))
		return
	}

	signature := h.gateway.Signature(r)

	outcome, err := h.paymentService.ProcessPaymentCallback(r.Context(), payload, signature)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EUNAUTHORIZED:
			handler.ErrorResponse(w, r, err)
		case domain.ENOTFOUND:
			handler.JSON(w, http.StatusNotFound, callbackResponse{
				Success: false,
				Message: domain.ErrorMessage(err),
			})
		default:
			handler.ErrorResponse(w, r, err)
		}
		return
	}

	logger.Info("payment callback processed",
		"provider", provider,
		"order_id", outcome.OrderID,
		"success", outcome.Success,
		"duplicate", outcome.Duplicate,
	)

	handler.JSON(w, http.StatusOK, callbackResponse{
		Success: outcome.Success,
		OrderID: outcome.OrderID,
		Message: outcome.Message,
	})
}
