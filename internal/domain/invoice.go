package domain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice-related domain errors.
var (
	ErrInvoiceNotFound      = &Error{Code: ENOTFOUND, Message: "Invoice not found"}
	ErrInvoiceAlreadyPaid   = &Error{Code: ECONFLICT, Message: "Invoice already paid"}
	ErrInvalidTransition    = &Error{Code: ECONFLICT, Message: "Illegal invoice status transition"}
	ErrInvoicePaymentBound  = &Error{Code: ECONFLICT, Message: "Invoice already bound to a different payment"}
)

// InvoiceStatus is the lifecycle state of a billing obligation.
//
// State machine: sent -> overdue (past due and unpaid),
// sent|overdue -> paid (settlement), draft|sent -> cancelled (tenancy close).
// paid and cancelled are terminal.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled
}

// CanTransitionTo reports whether the transition s -> next is legal.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case InvoiceDraft:
		return next == InvoiceSent || next == InvoiceCancelled
	case InvoiceSent:
		return next == InvoiceOverdue || next == InvoicePaid || next == InvoiceCancelled
	case InvoiceOverdue:
		return next == InvoicePaid
	default:
		return false
	}
}

// Invoice is a billing obligation for one tenancy cycle. Amount, currency and
// the party identifiers are a snapshot of the tenancy at generation time.
type Invoice struct {
	ID               uuid.UUID
	InvoiceNumber    string
	TenancyID        uuid.UUID
	TenantID         string
	LandlordID       string
	PropertyID       string
	UnitID           string
	Amount           decimal.Decimal
	Currency         string
	BillingCycle     BillingCycle
	Status           InvoiceStatus
	DueDate          time.Time
	PaidDate         *time.Time
	PaymentID        string
	GatewayReference string
	PDFURL           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewInvoiceNumber generates a human-readable invoice number:
// INV-<timestamp>-<4 random hex chars>.
func NewInvoiceNumber(now time.Time) string {
	b := make([]byte, 2)
	_, _ = rand.Read(b)
	return "INV-" + now.UTC().Format("20060102150405") + "-" + hex.EncodeToString(b)
}

// InvoiceStore persists invoices.
type InvoiceStore interface {
	// GetInvoice retrieves an invoice by ID. Returns ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// GetInvoiceByNumber retrieves an invoice by its human-readable number.
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)

	// MarkOverdue transitions every sent invoice with a due date strictly
	// before now to overdue. Returns the number of rows changed. Idempotent:
	// already-overdue, paid and cancelled invoices are never touched.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)

	// ListDueBetween returns invoices in the given statuses whose due date
	// falls in [from, to).
	ListDueBetween(ctx context.Context, from, to time.Time, statuses []InvoiceStatus) ([]Invoice, error)

	// MarkPaid transitions the invoice to paid and records the payment
	// binding. Guarded by status: only sent and overdue invoices qualify;
	// a paid or cancelled invoice is left untouched and ErrInvoiceAlreadyPaid
	// (or ErrInvalidTransition) is returned.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID, gatewayRef string, paidAt time.Time) error

	// SetPDFURL writes the rendered receipt URL back onto the invoice.
	SetPDFURL(ctx context.Context, id uuid.UUID, url string) error
}
