package billing

import (
	"context"
	"net/http"
	"sync"
)

// MockGateway is a test double for Gateway. Unset funcs return zero values
// and a successful verification.
type MockGateway struct {
	InitiateCardPaymentFunc   func(ctx context.Context, req PaymentRequest) (*PaymentHandle, error)
	InitiateWalletPaymentFunc func(ctx context.Context, req PaymentRequest, walletNumber string) (*PaymentHandle, error)
	VerifyCallbackFunc        func(payload []byte, signature string) error
	ParseCallbackFunc         func(payload []byte) (*CallbackEvent, error)

	mu      sync.Mutex
	CallLog []string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}

// Calls returns a copy of the recorded call names.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) InitiateCardPayment(ctx context.Context, req PaymentRequest) (*PaymentHandle, error) {
	m.record("InitiateCardPayment")
	if m.InitiateCardPaymentFunc != nil {
		return m.InitiateCardPaymentFunc(ctx, req)
	}
	return &PaymentHandle{CorrelationID: "mock_" + req.MerchantOrderID, RedirectURL: "https://pay.example.test/" + req.MerchantOrderID}, nil
}

func (m *MockGateway) InitiateWalletPayment(ctx context.Context, req PaymentRequest, walletNumber string) (*PaymentHandle, error) {
	m.record("InitiateWalletPayment")
	if m.InitiateWalletPaymentFunc != nil {
		return m.InitiateWalletPaymentFunc(ctx, req, walletNumber)
	}
	return &PaymentHandle{CorrelationID: "mock_" + req.MerchantOrderID, RedirectURL: "https://wallet.example.test/" + req.MerchantOrderID}, nil
}

func (m *MockGateway) Signature(r *http.Request) string {
	return r.Header.Get("X-Signature")
}

func (m *MockGateway) VerifyCallback(payload []byte, signature string) error {
	m.record("VerifyCallback")
	if m.VerifyCallbackFunc != nil {
		return m.VerifyCallbackFunc(payload, signature)
	}
	return nil
}

func (m *MockGateway) ParseCallback(payload []byte) (*CallbackEvent, error) {
	m.record("ParseCallback")
	if m.ParseCallbackFunc != nil {
		return m.ParseCallbackFunc(payload)
	}
	return &CallbackEvent{Ignored: true}, nil
}

var (
	_ Gateway = (*MockGateway)(nil)
	_ Gateway = (*PaymobGateway)(nil)
	_ Gateway = (*StripeGateway)(nil)
)
