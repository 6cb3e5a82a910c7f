package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const providerPaymob = "paymob"

// PaymobGateway implements Gateway against the Paymob Accept API.
// Each payment runs the three-step flow: authenticate, register the
// order, then request a payment key bound to an integration.
type PaymobGateway struct {
	cfg    PaymobConfig
	client *http.Client
}

// NewPaymobGateway creates a Paymob gateway. A nil client gets a default
// client with the configured timeout.
func NewPaymobGateway(cfg PaymobConfig, client *http.Client) (*PaymobGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &PaymobGateway{cfg: cfg, client: client}, nil
}

func (g *PaymobGateway) Name() string { return providerPaymob }

func (g *PaymobGateway) InitiateCardPayment(ctx context.Context, req PaymentRequest) (*PaymentHandle, error) {
	orderID, paymentToken, err := g.preparePayment(ctx, req, g.cfg.CardIntegrationID)
	if err != nil {
		return nil, err
	}

	return &PaymentHandle{
		CorrelationID: orderID,
		RedirectURL: fmt.Sprintf("%s/api/acceptance/iframes/%d?payment_token=%s",
			g.cfg.BaseURL, g.cfg.IframeID, paymentToken),
	}, nil
}

func (g *PaymobGateway) InitiateWalletPayment(ctx context.Context, req PaymentRequest, walletNumber string) (*PaymentHandle, error) {
	if g.cfg.WalletIntegrationID == 0 {
		return nil, ErrUnsupportedMethod
	}

	orderID, paymentToken, err := g.preparePayment(ctx, req, g.cfg.WalletIntegrationID)
	if err != nil {
		return nil, err
	}

	var resp struct {
		RedirectURL          string `json:"redirect_url"`
		IframeRedirectionURL string `json:"iframe_redirection_url"`
	}
	body := map[string]any{
		"source": map[string]string{
			"identifier": walletNumber,
			"subtype":    "WALLET",
		},
		"payment_token": paymentToken,
	}
	if err := g.post(ctx, "wallet payment", "/api/acceptance/payments/pay", body, &resp); err != nil {
		return nil, err
	}

	redirect := resp.RedirectURL
	if redirect == "" {
		redirect = resp.IframeRedirectionURL
	}
	if redirect == "" {
		return nil, &GatewayError{Provider: providerPaymob, Operation: "wallet payment", Message: "no redirect url in response"}
	}

	return &PaymentHandle{CorrelationID: orderID, RedirectURL: redirect}, nil
}

// preparePayment authenticates, registers the order and obtains a payment
// key. It returns the Paymob order id and the payment token.
func (g *PaymobGateway) preparePayment(ctx context.Context, req PaymentRequest, integrationID int) (string, string, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := g.post(ctx, "authenticate", "/api/auth/tokens", map[string]string{"api_key": g.cfg.APIKey}, &auth); err != nil {
		return "", "", err
	}

	items := make([]map[string]any, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, map[string]any{
			"name":         item.Name,
			"amount_cents": item.AmountCents,
			"quantity":     item.Quantity,
		})
	}

	var order struct {
		ID int64 `json:"id"`
	}
	orderReq := map[string]any{
		"auth_token":        auth.Token,
		"delivery_needed":   "false",
		"amount_cents":      req.AmountCents,
		"currency":          currency,
		"merchant_order_id": req.MerchantOrderID,
		"items":             items,
	}
	if err := g.post(ctx, "register order", "/api/ecommerce/orders", orderReq, &order); err != nil {
		return "", "", err
	}

	var key struct {
		Token string `json:"token"`
	}
	keyReq := map[string]any{
		"auth_token":     auth.Token,
		"amount_cents":   req.AmountCents,
		"expiration":     3600,
		"order_id":       order.ID,
		"billing_data":   paymobBillingData(req.Billing),
		"currency":       currency,
		"integration_id": integrationID,
	}
	if err := g.post(ctx, "payment key", "/api/acceptance/payment_keys", keyReq, &key); err != nil {
		return "", "", err
	}

	return strconv.FormatInt(order.ID, 10), key.Token, nil
}

// paymobBillingData fills every billing field; the API rejects empty values.
func paymobBillingData(b BillingData) map[string]string {
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "NA"
		}
		return s
	}
	country := b.Country
	if country == "" {
		country = "EG"
	}
	return map[string]string{
		"first_name":   orNA(b.FirstName),
		"last_name":    orNA(b.LastName),
		"email":        orNA(b.Email),
		"phone_number": orNA(b.Phone),
		"street":       orNA(b.Street),
		"building":     orNA(b.Building),
		"floor":        orNA(b.Floor),
		"apartment":    orNA(b.Apartment),
		"city":         orNA(b.City),
		"state":        orNA(b.Governorate),
		"country":      country,
	}
}

func (g *PaymobGateway) post(ctx context.Context, op, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return &GatewayError{Provider: providerPaymob, Operation: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{Provider: providerPaymob, Operation: op, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{Provider: providerPaymob, Operation: op, StatusCode: resp.StatusCode, Message: truncate(string(respBody), 200)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &GatewayError{Provider: providerPaymob, Operation: op, StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}

// Signature returns the hmac query parameter Paymob appends to callbacks.
func (g *PaymobGateway) Signature(r *http.Request) string {
	return r.URL.Query().Get("hmac")
}

// Paymob callback types. Each type signs its own canonical field set.
const (
	paymobTypeTransaction = "TRANSACTION"
	paymobTypeToken       = "TOKEN"
)

func (g *PaymobGateway) VerifyCallback(payload []byte, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}

	var cb paymobCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return ErrInvalidSignature
	}

	var expected string
	switch cb.Type {
	case "", paymobTypeTransaction:
		var tx PaymobTransaction
		if err := json.Unmarshal(cb.Obj, &tx); err != nil {
			return ErrInvalidSignature
		}
		expected = SignPaymobTransaction(g.cfg.HMACSecret, tx)
	case paymobTypeToken:
		var tok PaymobCardToken
		if err := json.Unmarshal(cb.Obj, &tok); err != nil {
			return ErrInvalidSignature
		}
		expected = SignPaymobToken(g.cfg.HMACSecret, tok)
	default:
		return ErrInvalidSignature
	}

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *PaymobGateway) ParseCallback(payload []byte) (*CallbackEvent, error) {
	var cb paymobCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if cb.Type != "" && cb.Type != paymobTypeTransaction {
		return &CallbackEvent{Ignored: true}, nil
	}

	var tx PaymobTransaction
	if err := json.Unmarshal(cb.Obj, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if tx.Order.ID == 0 {
		return nil, fmt.Errorf("%w: missing order id", ErrMalformedCallback)
	}

	return &CallbackEvent{
		CorrelationID: strconv.FormatInt(tx.Order.ID, 10),
		TransactionID: strconv.FormatInt(tx.ID, 10),
		Success:       tx.Success && !tx.ErrorOccured && !tx.IsVoided && !tx.IsRefunded,
		AmountCents:   tx.AmountCents,
		Message:       tx.Data.Message,
		Ignored:       tx.Pending,
	}, nil
}

type paymobCallback struct {
	Type string          `json:"type"`
	Obj  json.RawMessage `json:"obj"`
}

// PaymobCardToken is the object of a TOKEN callback, sent when a card is
// saved during payment.
type PaymobCardToken struct {
	ID          int64       `json:"id"`
	Token       string      `json:"token"`
	MaskedPan   string      `json:"masked_pan"`
	MerchantID  int64       `json:"merchant_id"`
	CardSubtype string      `json:"card_subtype"`
	CreatedAt   string      `json:"created_at"`
	Email       string      `json:"email"`
	OrderID     json.Number `json:"order_id"`
}

// SignPaymobToken computes the HMAC-SHA512 of a TOKEN callback's fields in
// alphabetical key order.
func SignPaymobToken(secret string, tok PaymobCardToken) string {
	fields := []string{
		tok.CardSubtype,
		tok.CreatedAt,
		tok.Email,
		strconv.FormatInt(tok.ID, 10),
		tok.MaskedPan,
		strconv.FormatInt(tok.MerchantID, 10),
		tok.OrderID.String(),
		tok.Token,
	}
	return signPaymobFields(secret, fields)
}

// PaymobTransaction holds the transaction fields covered by the callback HMAC.
type PaymobTransaction struct {
	ID                   int64  `json:"id"`
	AmountCents          int64  `json:"amount_cents"`
	CreatedAt            string `json:"created_at"`
	Currency             string `json:"currency"`
	ErrorOccured         bool   `json:"error_occured"`
	HasParentTransaction bool   `json:"has_parent_transaction"`
	IntegrationID        int64  `json:"integration_id"`
	Is3DSecure           bool   `json:"is_3d_secure"`
	IsAuth               bool   `json:"is_auth"`
	IsCapture            bool   `json:"is_capture"`
	IsRefunded           bool   `json:"is_refunded"`
	IsStandalonePayment  bool   `json:"is_standalone_payment"`
	IsVoided             bool   `json:"is_voided"`
	Owner                int64  `json:"owner"`
	Pending              bool   `json:"pending"`
	Success              bool   `json:"success"`
	Order                struct {
		ID int64 `json:"id"`
	} `json:"order"`
	SourceData struct {
		Pan     string `json:"pan"`
		SubType string `json:"sub_type"`
		Type    string `json:"type"`
	} `json:"source_data"`
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

// SignPaymobTransaction computes the lowercase hex HMAC-SHA512 of the
// transaction's canonical field concatenation.
func SignPaymobTransaction(secret string, tx PaymobTransaction) string {
	fields := []string{
		strconv.FormatInt(tx.AmountCents, 10),
		tx.CreatedAt,
		tx.Currency,
		strconv.FormatBool(tx.ErrorOccured),
		strconv.FormatBool(tx.HasParentTransaction),
		strconv.FormatInt(tx.ID, 10),
		strconv.FormatInt(tx.IntegrationID, 10),
		strconv.FormatBool(tx.Is3DSecure),
		strconv.FormatBool(tx.IsAuth),
		strconv.FormatBool(tx.IsCapture),
		strconv.FormatBool(tx.IsRefunded),
		strconv.FormatBool(tx.IsStandalonePayment),
		strconv.FormatBool(tx.IsVoided),
		strconv.FormatInt(tx.Order.ID, 10),
		strconv.FormatInt(tx.Owner, 10),
		strconv.FormatBool(tx.Pending),
		tx.SourceData.Pan,
		tx.SourceData.SubType,
		tx.SourceData.Type,
		strconv.FormatBool(tx.Success),
	}

	return signPaymobFields(secret, fields)
}

func signPaymobFields(secret string, fields []string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, "")))
	return hex.EncodeToString(mac.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
