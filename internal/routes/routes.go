// Package routes wires HTTP handlers onto the router.
package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thorvaldsen/leasehold/internal/handler"
	"github.com/thorvaldsen/leasehold/internal/handler/webhook"
	"github.com/thorvaldsen/leasehold/internal/router"
)

// Deps contains the handlers the route table needs.
type Deps struct {
	Checkout *handler.CheckoutHandler
	Billing  *handler.BillingHandler
	Tenancy  *handler.TenancyHandler
	Health   *handler.HealthHandler

	StripeWebhook   *webhook.Handler
	PaystackWebhook *webhook.Handler
}

// Register registers all routes.
func Register(r *router.Router, deps Deps) {
	// Webhooks carry no auth middleware: the signature check inside the
	// handler is the authentication for this boundary. Registered without a
	// method so the handler can answer 405 with a JSON body.
	r.HandleFunc("/webhooks/stripe", deps.StripeWebhook.HandleWebhook)
	r.HandleFunc("/webhooks/paystack", deps.PaystackWebhook.HandleWebhook)

	r.HandleFunc("/api/checkout-sessions", deps.Checkout.CreateSession)

	r.Post("/api/invites", deps.Tenancy.CreateInvite)
	r.Post("/api/invites/accept", deps.Tenancy.AcceptInvite)
	r.Post("/api/tenancies/{id}/close", deps.Tenancy.CloseTenancy)

	r.Get("/api/invoices/{number}", deps.Billing.GetInvoice)
	r.Get("/api/payments/{gateway}/{reference}", deps.Billing.GetPayment)

	r.Get("/healthz", deps.Health.Healthz)
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
}
