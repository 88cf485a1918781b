package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// StripeConfig contains configuration for the Stripe gateway.
type StripeConfig struct {
	// SecretKey is the Stripe secret key (sk_test_... or sk_live_...)
	SecretKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	WebhookSecret string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return errors.New("stripe: secret key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.SecretKey, "sk_test_")
}

// StripeGateway implements Gateway using Stripe Checkout.
type StripeGateway struct {
	config StripeConfig
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway creates a Stripe gateway and sets the package-level API key.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = cfg.SecretKey
	return &StripeGateway{config: cfg}, nil
}

// Name implements Gateway.
func (g *StripeGateway) Name() domain.Gateway {
	return domain.GatewayStripe
}

// CreateCheckoutSession creates a one-time-payment Stripe Checkout session
// and returns its hosted URL.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	metadata := sessionMetadata(req)

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		CustomerEmail: stripe.String(req.TenantEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Rent payment"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		// Metadata must also ride on the payment intent: the
		// checkout.session.completed event is what we settle from, but the
		// intent is what shows up in the dashboard and in disputes.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	session, err := checkoutsession.New(params)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "stripe.checkout", err.Error())
	}

	return &domain.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// VerifyWebhookSignature verifies the Stripe-Signature header against the
// raw request body using the webhook signing secret.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	if _, err := webhook.ConstructEvent(payload, signature, g.config.WebhookSecret); err != nil {
		return domain.WrapError(err, domain.EUNAUTHORIZED, "stripe.webhook", "invalid webhook signature")
	}
	return nil
}

// ParsePaymentEvent extracts a settlement event from a checkout.session.completed
// webhook. Other event types are acknowledged and dropped.
func (g *StripeGateway) ParsePaymentEvent(payload []byte) (*domain.PaymentEvent, bool, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, false, domain.WrapError(err, domain.EINVALID, "stripe.webhook", "malformed event payload")
	}

	if event.Type != "checkout.session.completed" {
		return nil, false, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, false, domain.WrapError(err, domain.EINVALID, "stripe.webhook", "malformed checkout session")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, false, nil
	}

	reference := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		reference = session.PaymentIntent.ID
	}

	email := session.CustomerEmail
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = session.CustomerDetails.Email
	}

	ev := &domain.PaymentEvent{
		InvoiceID:        session.Metadata["invoice_id"],
		TenantID:         session.Metadata["tenant_id"],
		TenantEmail:      email,
		LandlordID:       session.Metadata["landlord_id"],
		PropertyID:       session.Metadata["property_id"],
		UnitID:           session.Metadata["unit_id"],
		Amount:           FromMinorUnits(session.AmountTotal),
		Currency:         strings.ToUpper(string(session.Currency)),
		Gateway:          domain.GatewayStripe,
		GatewayReference: reference,
	}
	return ev, true, nil
}

// sessionMetadata builds the correlation metadata forwarded to the gateway.
func sessionMetadata(req domain.CheckoutRequest) map[string]string {
	md := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		md[k] = v
	}
	if req.LandlordID != "" {
		md["landlord_id"] = req.LandlordID
	}
	if req.PropertyID != "" {
		md["property_id"] = req.PropertyID
	}
	return md
}
