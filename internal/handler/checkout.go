package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// CheckoutCreator issues gateway-hosted checkout sessions.
type CheckoutCreator interface {
	CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
}

// CheckoutHandler exposes the checkout-session endpoint.
type CheckoutHandler struct {
	checkout CheckoutCreator
}

// NewCheckoutHandler creates a new CheckoutHandler instance.
func NewCheckoutHandler(checkout CheckoutCreator) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type checkoutRequestBody struct {
	Gateway     string            `json:"gateway"`
	LandlordID  string            `json:"landlordId"`
	PropertyID  string            `json:"propertyId"`
	TenantEmail string            `json:"tenantEmail"`
	Amount      decimal.Decimal   `json:"amount"` // major currency units
	Currency    string            `json:"currency"`
	SuccessURL  string            `json:"successUrl"`
	CancelURL   string            `json:"cancelUrl"`
	Metadata    map[string]string `json:"metadata"`
}

type checkoutResponseBody struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateSession handles POST /api/checkout-sessions.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedResponse(w, r)
		return
	}

	var body checkoutRequestBody
	if err := decodeJSON(r, &body); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	session, err := h.checkout.CreateSession(r.Context(), domain.CheckoutRequest{
		Gateway:     domain.Gateway(body.Gateway),
		LandlordID:  body.LandlordID,
		PropertyID:  body.PropertyID,
		TenantEmail: body.TenantEmail,
		Amount:      body.Amount,
		Currency:    body.Currency,
		SuccessURL:  body.SuccessURL,
		CancelURL:   body.CancelURL,
		Metadata:    body.Metadata,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponseBody{
		SessionID: session.SessionID,
		URL:       session.URL,
	})
}
