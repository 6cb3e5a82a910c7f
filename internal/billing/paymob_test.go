package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHMACSecret = "paymob_hmac_secret"

func newTestPaymob(t *testing.T, handler http.Handler, wallet int) *PaymobGateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := NewPaymobGateway(PaymobConfig{
		APIKey:              "api_key",
		HMACSecret:          testHMACSecret,
		CardIntegrationID:   101,
		WalletIntegrationID: wallet,
		IframeID:            77,
		BaseURL:             srv.URL,
	}, srv.Client())
	require.NoError(t, err)
	return gw
}

// paymobAPI fakes the three-step Accept flow and records request bodies by path.
func paymobAPI(t *testing.T, bodies map[string]map[string]any) http.Handler {
	mux := http.NewServeMux()
	decode := func(r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies[r.URL.Path] = body
	}
	mux.HandleFunc("POST /api/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "auth_tok"})
	})
	mux.HandleFunc("POST /api/ecommerce/orders", func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 556677})
	})
	mux.HandleFunc("POST /api/acceptance/payment_keys", func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "pay_tok"})
	})
	mux.HandleFunc("POST /api/acceptance/payments/pay", func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"redirect_url": "https://wallet.example/redirect"})
	})
	return mux
}

func testPaymentRequest() PaymentRequest {
	return PaymentRequest{
		MerchantOrderID: "DAR-01TEST",
		AmountCents:     2445000,
		Billing: BillingData{
			FirstName:   "Mona",
			LastName:    "Adel",
			Phone:       "01000000000",
			City:        "Nasr City",
			Governorate: "Cairo",
		},
		Items: []LineItem{{Name: "Oak Chair", AmountCents: 2450000, Quantity: 1}},
	}
}

func TestPaymobGateway_InitiateCardPayment(t *testing.T) {
	bodies := map[string]map[string]any{}
	gw := newTestPaymob(t, paymobAPI(t, bodies), 0)

	handle, err := gw.InitiateCardPayment(context.Background(), testPaymentRequest())
	require.NoError(t, err)

	assert.Equal(t, "556677", handle.CorrelationID)
	assert.True(t, strings.HasSuffix(handle.RedirectURL, "/api/acceptance/iframes/77?payment_token=pay_tok"))

	assert.Equal(t, "api_key", bodies["/api/auth/tokens"]["api_key"])
	assert.Equal(t, "DAR-01TEST", bodies["/api/ecommerce/orders"]["merchant_order_id"])
	assert.Equal(t, "EGP", bodies["/api/ecommerce/orders"]["currency"])

	key := bodies["/api/acceptance/payment_keys"]
	assert.EqualValues(t, 101, key["integration_id"])
	assert.EqualValues(t, 556677, key["order_id"])
	billing := key["billing_data"].(map[string]any)
	assert.Equal(t, "NA", billing["email"], "empty billing fields are filled")
	assert.Equal(t, "Cairo", billing["state"])
}

func TestPaymobGateway_InitiateWalletPayment(t *testing.T) {
	t.Run("redirects to wallet", func(t *testing.T) {
		bodies := map[string]map[string]any{}
		gw := newTestPaymob(t, paymobAPI(t, bodies), 202)

		handle, err := gw.InitiateWalletPayment(context.Background(), testPaymentRequest(), "01012345678")
		require.NoError(t, err)

		assert.Equal(t, "556677", handle.CorrelationID)
		assert.Equal(t, "https://wallet.example/redirect", handle.RedirectURL)
		assert.EqualValues(t, 202, bodies["/api/acceptance/payment_keys"]["integration_id"])

		source := bodies["/api/acceptance/payments/pay"]["source"].(map[string]any)
		assert.Equal(t, "01012345678", source["identifier"])
		assert.Equal(t, "WALLET", source["subtype"])
	})

	t.Run("unsupported without wallet integration", func(t *testing.T) {
		gw := newTestPaymob(t, http.NotFoundHandler(), 0)

		_, err := gw.InitiateWalletPayment(context.Background(), testPaymentRequest(), "01012345678")
		assert.ErrorIs(t, err, ErrUnsupportedMethod)
	})
}

func TestPaymobGateway_APIFailure(t *testing.T) {
	gw := newTestPaymob(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"incorrect credentials"}`, http.StatusForbidden)
	}), 0)

	_, err := gw.InitiateCardPayment(context.Background(), testPaymentRequest())
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusForbidden, ge.StatusCode)
	assert.Equal(t, "authenticate", ge.Operation)
	assert.False(t, ge.IsTemporary())
}

func paidTransaction() PaymobTransaction {
	tx := PaymobTransaction{
		ID:            9001,
		AmountCents:   2445000,
		CreatedAt:     "2026-03-01T10:00:00.000000",
		Currency:      "EGP",
		IntegrationID: 101,
		Is3DSecure:    true,
		Owner:         42,
		Success:       true,
	}
	tx.Order.ID = 556677
	tx.SourceData.Pan = "2346"
	tx.SourceData.SubType = "MasterCard"
	tx.SourceData.Type = "card"
	return tx
}

func callbackPayload(t *testing.T, tx PaymobTransaction) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"type": "TRANSACTION", "obj": tx})
	require.NoError(t, err)
	return payload
}

func TestPaymobGateway_VerifyCallback(t *testing.T) {
	gw := newTestPaymob(t, http.NotFoundHandler(), 0)
	tx := paidTransaction()
	payload := callbackPayload(t, tx)
	signature := SignPaymobTransaction(testHMACSecret, tx)

	t.Run("valid signature", func(t *testing.T) {
		assert.NoError(t, gw.VerifyCallback(payload, signature))
	})

	t.Run("signature is case insensitive", func(t *testing.T) {
		assert.NoError(t, gw.VerifyCallback(payload, strings.ToUpper(signature)))
	})

	t.Run("tampered amount", func(t *testing.T) {
		tampered := tx
		tampered.AmountCents = 100
		assert.ErrorIs(t, gw.VerifyCallback(callbackPayload(t, tampered), signature), ErrInvalidSignature)
	})

	t.Run("tampered success flag", func(t *testing.T) {
		tampered := tx
		tampered.Success = false
		assert.ErrorIs(t, gw.VerifyCallback(callbackPayload(t, tampered), signature), ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.ErrorIs(t, gw.VerifyCallback(payload, SignPaymobTransaction("other", tx)), ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		assert.ErrorIs(t, gw.VerifyCallback(payload, ""), ErrInvalidSignature)
	})

	t.Run("garbage payload", func(t *testing.T) {
		assert.ErrorIs(t, gw.VerifyCallback([]byte("not json"), signature), ErrInvalidSignature)
	})
}

func TestPaymobGateway_VerifyTokenCallback(t *testing.T) {
	gw := newTestPaymob(t, http.NotFoundHandler(), 0)

	payload := []byte(`{"type":"TOKEN","obj":{"id":77,"token":"d2f1c9","masked_pan":"xxxx-xxxx-xxxx-2346",` +
		`"merchant_id":42,"card_subtype":"MasterCard","created_at":"2026-03-01T10:00:00.000000",` +
		`"email":"mona@example.com","order_id":"556677"}}`)
	tok := PaymobCardToken{
		ID:          77,
		Token:       "d2f1c9",
		MaskedPan:   "xxxx-xxxx-xxxx-2346",
		MerchantID:  42,
		CardSubtype: "MasterCard",
		CreatedAt:   "2026-03-01T10:00:00.000000",
		Email:       "mona@example.com",
		OrderID:     "556677",
	}
	signature := SignPaymobToken(testHMACSecret, tok)

	t.Run("token fields verify", func(t *testing.T) {
		require.NoError(t, gw.VerifyCallback(payload, signature))

		event, err := gw.ParseCallback(payload)
		require.NoError(t, err)
		assert.True(t, event.Ignored)
	})

	t.Run("numeric order id signs the same", func(t *testing.T) {
		numeric := []byte(strings.Replace(string(payload), `"order_id":"556677"`, `"order_id":556677`, 1))
		assert.NoError(t, gw.VerifyCallback(numeric, signature))
	})

	t.Run("transaction signature does not cover a token", func(t *testing.T) {
		sig := SignPaymobTransaction(testHMACSecret, PaymobTransaction{})
		assert.ErrorIs(t, gw.VerifyCallback(payload, sig), ErrInvalidSignature)
	})

	t.Run("tampered token", func(t *testing.T) {
		tampered := []byte(strings.Replace(string(payload), "d2f1c9", "aaaaaa", 1))
		assert.ErrorIs(t, gw.VerifyCallback(tampered, signature), ErrInvalidSignature)
	})

	t.Run("unknown callback type", func(t *testing.T) {
		unknown := []byte(strings.Replace(string(payload), `"TOKEN"`, `"REFUND_REQUEST"`, 1))
		assert.ErrorIs(t, gw.VerifyCallback(unknown, signature), ErrInvalidSignature)
	})
}

func TestPaymobGateway_ParseCallback(t *testing.T) {
	gw := newTestPaymob(t, http.NotFoundHandler(), 0)

	tests := []struct {
		name        string
		mutate      func(*PaymobTransaction)
		wantSuccess bool
		wantIgnored bool
	}{
		{name: "successful payment", mutate: func(*PaymobTransaction) {}, wantSuccess: true},
		{name: "declined", mutate: func(tx *PaymobTransaction) { tx.Success = false }},
		{name: "error occurred", mutate: func(tx *PaymobTransaction) { tx.ErrorOccured = true }},
		{name: "voided", mutate: func(tx *PaymobTransaction) { tx.IsVoided = true }},
		{name: "pending", mutate: func(tx *PaymobTransaction) { tx.Success = false; tx.Pending = true }, wantIgnored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := paidTransaction()
			tt.mutate(&tx)

			event, err := gw.ParseCallback(callbackPayload(t, tx))
			require.NoError(t, err)
			assert.Equal(t, "556677", event.CorrelationID)
			assert.Equal(t, "9001", event.TransactionID)
			assert.Equal(t, tt.wantSuccess, event.Success)
			assert.Equal(t, tt.wantIgnored, event.Ignored)
		})
	}

	t.Run("missing order id", func(t *testing.T) {
		tx := paidTransaction()
		tx.Order.ID = 0
		_, err := gw.ParseCallback(callbackPayload(t, tx))
		assert.ErrorIs(t, err, ErrMalformedCallback)
	})

	t.Run("non transaction callbacks are ignored", func(t *testing.T) {
		event, err := gw.ParseCallback([]byte(`{"type":"TOKEN","obj":{}}`))
		require.NoError(t, err)
		assert.True(t, event.Ignored)
	})
}

func TestPaymobGateway_Signature(t *testing.T) {
	gw := newTestPaymob(t, http.NotFoundHandler(), 0)
	r := httptest.NewRequest(http.MethodPost, "/api/payments/callback?hmac="+url.QueryEscape("abc123"), nil)
	assert.Equal(t, "abc123", gw.Signature(r))
}

func TestPaymobConfig_Validate(t *testing.T) {
	_, err := NewPaymobGateway(PaymobConfig{APIKey: "k", HMACSecret: "s", IframeID: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewPaymobGateway(PaymobConfig{HMACSecret: "s", CardIntegrationID: 1, IframeID: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
