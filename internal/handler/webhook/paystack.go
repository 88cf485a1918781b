package webhook

import (
	"log/slog"

	"github.com/thorvaldsen/leasehold/internal/billing"
)

// NewPaystackHandler creates the handler for Paystack webhook deliveries.
// Paystack signs the raw body with HMAC-SHA512 and sends the hex digest in
// the x-paystack-signature header; the gateway implementation does the
// constant-time comparison.
func NewPaystackHandler(gw billing.Gateway, settler Settler, logger *slog.Logger) *Handler {
	return newHandler(gw, settler, logger, "x-paystack-signature", `{"status": "ok"}`)
}
