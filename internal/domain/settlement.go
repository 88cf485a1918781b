package domain

import (
	"github.com/shopspring/decimal"
)

// PaymentEvent carries the fields extracted from a confirmed gateway payment.
// All identity fields are optional; whatever is missing is backfilled from
// the referenced invoice by ResolveIdentity.
type PaymentEvent struct {
	InvoiceID        string
	TenantID         string
	TenantEmail      string
	LandlordID       string
	PropertyID       string
	UnitID           string
	Amount           decimal.Decimal
	Currency         string
	Gateway          Gateway
	GatewayReference string
}

// ResolveIdentity merges the event's identity fields with the invoice's,
// preferring the event where both are set. inv may be nil (invoice missing
// or not referenced), in which case the event is returned unchanged.
// Pure function; never mutates its inputs.
func ResolveIdentity(ev PaymentEvent, inv *Invoice) PaymentEvent {
	if inv == nil {
		return ev
	}
	if ev.TenantID == "" {
		ev.TenantID = inv.TenantID
	}
	if ev.LandlordID == "" {
		ev.LandlordID = inv.LandlordID
	}
	if ev.PropertyID == "" {
		ev.PropertyID = inv.PropertyID
	}
	if ev.UnitID == "" {
		ev.UnitID = inv.UnitID
	}
	if ev.Currency == "" {
		ev.Currency = inv.Currency
	}
	return ev
}
