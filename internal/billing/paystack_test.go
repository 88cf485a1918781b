package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

func signPaystack(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackGateway_VerifyWebhookSignature(t *testing.T) {
	gw, err := NewPaystackGateway(PaystackConfig{SecretKey: "sk_test_secret"})
	require.NoError(t, err)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	t.Run("valid signature", func(t *testing.T) {
		sig := signPaystack("sk_test_secret", body)
		assert.NoError(t, gw.VerifyWebhookSignature(body, sig))
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := signPaystack("sk_test_other", body)
		err := gw.VerifyWebhookSignature(body, sig)
		assert.True(t, domain.IsCode(err, domain.EUNAUTHORIZED))
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := signPaystack("sk_test_secret", body)
		tampered := append([]byte(nil), body...)
		tampered[len(tampered)-2] = 'X'
		assert.Error(t, gw.VerifyWebhookSignature(tampered, sig))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.Error(t, gw.VerifyWebhookSignature(body, ""))
	})
}

func TestPaystackGateway_ParsePaymentEvent(t *testing.T) {
	gw, err := NewPaystackGateway(PaystackConfig{SecretKey: "sk_test_secret"})
	require.NoError(t, err)

	t.Run("charge.success with kobo amount", func(t *testing.T) {
		body := []byte(`{
			"event": "charge.success",
			"data": {
				"reference": "psk_ref_123",
				"amount": 10000000,
				"currency": "ngn",
				"metadata": {"invoice_id": "I1", "landlord_id": "L1"}
			}
		}`)

		ev, ok, err := gw.ParsePaymentEvent(body)
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, "I1", ev.InvoiceID)
		assert.Equal(t, "L1", ev.LandlordID)
		assert.Equal(t, "NGN", ev.Currency)
		assert.Equal(t, domain.GatewayPaystack, ev.Gateway)
		assert.Equal(t, "psk_ref_123", ev.GatewayReference)
		assert.True(t, ev.Amount.Equal(decimal.NewFromInt(100000)), "kobo converted to naira, got %s", ev.Amount)
	})

	t.Run("other event types are dropped", func(t *testing.T) {
		_, ok, err := gw.ParsePaymentEvent([]byte(`{"event":"transfer.success","data":{}}`))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, _, err := gw.ParsePaymentEvent([]byte(`{not json`))
		assert.True(t, domain.IsCode(err, domain.EINVALID))
	})
}

func TestPaystackGateway_CreateCheckoutSession(t *testing.T) {
	var gotBody paystackInitRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "ref_abc123"
			}
		}`))
	}))
	defer srv.Close()

	gw, err := NewPaystackGateway(PaystackConfig{SecretKey: "sk_test_secret", BaseURL: srv.URL})
	require.NoError(t, err)

	session, err := gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		Gateway:     domain.GatewayPaystack,
		LandlordID:  "L1",
		PropertyID:  "P1",
		TenantEmail: "tenant@example.com",
		Amount:      decimal.NewFromInt(100000),
		Currency:    "NGN",
		SuccessURL:  "https://app.example.com/paid",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/abc123", session.URL)
	assert.Equal(t, "ref_abc123", session.SessionID)
	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	assert.Equal(t, int64(10000000), gotBody.Amount, "amount forwarded in kobo")
	assert.Equal(t, "NGN", gotBody.Currency)
	assert.Equal(t, "L1", gotBody.Metadata["landlord_id"])
	assert.Equal(t, "P1", gotBody.Metadata["property_id"])
}

func TestPaystackGateway_CreateCheckoutSession_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status": false, "message": "Invalid amount"}`))
	}))
	defer srv.Close()

	gw, err := NewPaystackGateway(PaystackConfig{SecretKey: "sk_test_secret", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = gw.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		Gateway:     domain.GatewayPaystack,
		TenantEmail: "tenant@example.com",
		Amount:      decimal.NewFromInt(50),
		Currency:    "NGN",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid amount")
}
