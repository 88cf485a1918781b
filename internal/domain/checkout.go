package domain

import (
	"github.com/shopspring/decimal"
)

// CheckoutRequest is a generic payment request the checkout issuer translates
// into a gateway-specific session.
type CheckoutRequest struct {
	Gateway     Gateway
	LandlordID  string
	PropertyID  string
	TenantEmail string
	Amount      decimal.Decimal // major currency units
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// Validate checks the request before any gateway call is made.
func (r *CheckoutRequest) Validate() error {
	if !r.Gateway.Valid() {
		return Errorf(EINVALID, "checkout.validate", "unsupported gateway: %s", r.Gateway)
	}
	if !r.Amount.IsPositive() {
		return Invalid("checkout.validate", "amount must be a positive number")
	}
	if r.Currency == "" {
		return Invalid("checkout.validate", "currency is required")
	}
	if r.TenantEmail == "" {
		return Invalid("checkout.validate", "tenant email is required")
	}
	return nil
}

// CheckoutSession is the gateway's answer: a hosted payment page to redirect
// the tenant to.
type CheckoutSession struct {
	SessionID string
	URL       string
}
