package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackConfig contains configuration for the Paystack gateway.
type PaystackConfig struct {
	// SecretKey is the Paystack secret key (sk_test_... or sk_live_...).
	// It authenticates API calls and signs webhook deliveries.
	SecretKey string

	// BaseURL overrides the API host; used by tests.
	BaseURL string

	// Timeout bounds each API call. Defaults to 30s.
	Timeout time.Duration
}

// Validate checks that required configuration is present.
func (c *PaystackConfig) Validate() error {
	if c.SecretKey == "" {
		return errors.New("paystack: secret key is required")
	}
	return nil
}

// PaystackGateway implements Gateway against the Paystack REST API.
type PaystackGateway struct {
	config PaystackConfig
	client *resty.Client
}

var _ Gateway = (*PaystackGateway)(nil)

// NewPaystackGateway creates a Paystack gateway.
func NewPaystackGateway(cfg PaystackConfig) (*PaystackGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = paystackBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Content-Type", "application/json")

	return &PaystackGateway{config: cfg, client: client}, nil
}

// Name implements Gateway.
func (g *PaystackGateway) Name() domain.Gateway {
	return domain.GatewayPaystack
}

// paystackInitRequest is the transaction/initialize request body.
type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"` // minor units (kobo)
	Currency    string            `json:"currency,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// paystackInitResponse is the transaction/initialize response envelope.
type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// CreateCheckoutSession initializes a Paystack transaction and returns its
// hosted authorization URL.
func (g *PaystackGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	body := paystackInitRequest{
		Email:       req.TenantEmail,
		Amount:      ToMinorUnits(req.Amount),
		Currency:    strings.ToUpper(req.Currency),
		CallbackURL: req.SuccessURL,
		Metadata:    sessionMetadata(req),
	}

	var out paystackInitResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/transaction/initialize")
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "paystack.checkout", "paystack request failed")
	}
	if resp.IsError() || !out.Status {
		msg := out.Message
		if msg == "" {
			msg = fmt.Sprintf("paystack returned status %d", resp.StatusCode())
		}
		return nil, domain.Errorf(domain.EINTERNAL, "paystack.checkout", "%s", msg)
	}

	return &domain.CheckoutSession{
		SessionID: out.Data.Reference,
		URL:       out.Data.AuthorizationURL,
	}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header: a hex
// HMAC-SHA512 of the raw body keyed with the secret key. Comparison is
// constant time.
func (g *PaystackGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	mac := hmac.New(sha512.New, []byte(g.config.SecretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return domain.Unauthorized("paystack.webhook", "invalid webhook signature")
	}
	return nil
}

// paystackWebhookEvent is the envelope Paystack posts to webhook endpoints.
type paystackWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string            `json:"reference"`
		Amount    int64             `json:"amount"` // minor units
		Currency  string            `json:"currency"`
		Metadata  map[string]string `json:"metadata"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// ParsePaymentEvent extracts a settlement event from a charge.success
// webhook. Other event types are acknowledged and dropped.
func (g *PaystackGateway) ParsePaymentEvent(payload []byte) (*domain.PaymentEvent, bool, error) {
	var event paystackWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, false, domain.WrapError(err, domain.EINVALID, "paystack.webhook", "malformed event payload")
	}

	if event.Event != "charge.success" {
		return nil, false, nil
	}

	ev := &domain.PaymentEvent{
		InvoiceID:        event.Data.Metadata["invoice_id"],
		TenantID:         event.Data.Metadata["tenant_id"],
		TenantEmail:      event.Data.Customer.Email,
		LandlordID:       event.Data.Metadata["landlord_id"],
		PropertyID:       event.Data.Metadata["property_id"],
		UnitID:           event.Data.Metadata["unit_id"],
		Amount:           FromMinorUnits(event.Data.Amount),
		Currency:         strings.ToUpper(event.Data.Currency),
		Gateway:          domain.GatewayPaystack,
		GatewayReference: event.Data.Reference,
	}
	return ev, true, nil
}
