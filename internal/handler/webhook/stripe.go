package webhook

import (
	"log/slog"

	"github.com/thorvaldsen/leasehold/internal/billing"
)

// NewStripeHandler creates the handler for Stripe webhook deliveries.
//
// Wiring:
//
//	stripeHandler := webhook.NewStripeHandler(stripeGateway, settlementService, logger)
//	mux.HandleFunc("/webhooks/stripe", stripeHandler.HandleWebhook)
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func NewStripeHandler(gw billing.Gateway, settler Settler, logger *slog.Logger) *Handler {
	return newHandler(gw, settler, logger, "Stripe-Signature", `{"received": true}`)
}
