package billing

import (
	"context"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// Gateway defines the interface for a hosted payment processor.
// Implementations exist for Stripe and Paystack, plus a mock for tests.
type Gateway interface {
	// Name identifies the gateway for dedup keys and payment records.
	Name() domain.Gateway

	// CreateCheckoutSession translates a generic payment request into a
	// gateway-hosted checkout page. The request amount is in major currency
	// units; implementations convert to the gateway's minor-unit convention.
	// Correlation metadata (landlord, property, invoice) is forwarded on the
	// session so the webhook can resolve the payment later.
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)

	// VerifyWebhookSignature checks that a webhook payload originates from
	// the gateway. payload must be the raw, unparsed request body: any
	// re-serialization can change byte content and break the match.
	VerifyWebhookSignature(payload []byte, signature string) error

	// ParsePaymentEvent extracts a settlement event from a verified webhook
	// payload. ok is false when the event type is not a payment success;
	// that is not an error, the event is simply acknowledged and dropped.
	ParsePaymentEvent(payload []byte) (ev *domain.PaymentEvent, ok bool, err error)
}

// Registry holds the configured gateways keyed by name.
type Registry map[domain.Gateway]Gateway

// Get returns the gateway for name, or an EINVALID error when the gateway
// is unknown or not configured.
func (r Registry) Get(name domain.Gateway) (Gateway, error) {
	gw, found := r[name]
	if !found {
		return nil, domain.Errorf(domain.EINVALID, "billing.registry", "unsupported gateway: %s", name)
	}
	return gw, nil
}

// Register adds a gateway to the registry.
func (r Registry) Register(gw Gateway) {
	r[gw.Name()] = gw
}
