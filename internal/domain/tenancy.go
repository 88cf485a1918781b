package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tenancy-related domain errors.
var (
	ErrTenancyNotFound  = &Error{Code: ENOTFOUND, Message: "Tenancy not found"}
	ErrTenancyClosed    = &Error{Code: ECONFLICT, Message: "Tenancy is already closed"}
	ErrScheduleConflict = &Error{Code: ECONFLICT, Message: "Tenancy billing schedule was advanced by a concurrent run"}
	ErrInviteNotFound   = &Error{Code: ENOTFOUND, Message: "Invite token not found"}
	ErrInviteRedeemed   = &Error{Code: ECONFLICT, Message: "Invite token already redeemed"}
)

// BillingCycle is the recurrence of a tenancy's rent obligation.
type BillingCycle string

const (
	CycleDaily   BillingCycle = "daily"
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is a known billing cycle.
func (c BillingCycle) Valid() bool {
	switch c {
	case CycleDaily, CycleWeekly, CycleMonthly, CycleYearly:
		return true
	}
	return false
}

// Next returns the due date one billing period after from.
// Monthly and yearly cycles advance by calendar month/year keeping the
// day-of-month, so the schedule never drifts from periods of uneven length.
func (c BillingCycle) Next(from time.Time) time.Time {
	switch c {
	case CycleYearly:
		return from.AddDate(1, 0, 0)
	case CycleMonthly:
		return from.AddDate(0, 1, 0)
	case CycleWeekly:
		return from.AddDate(0, 0, 7)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// TenancyStatus is the lifecycle state of a lease.
type TenancyStatus string

const (
	TenancyActive TenancyStatus = "active"
	TenancyClosed TenancyStatus = "closed"
)

// Tenancy represents an active lease binding a tenant to a unit.
// RentAmount and Currency are snapshotted onto each generated invoice, so
// later edits to the tenancy never retroactively change billed invoices.
type Tenancy struct {
	ID                       uuid.UUID
	TenantID                 string
	LandlordID               string
	PropertyID               string
	UnitID                   string
	RentAmount               decimal.Decimal
	Currency                 string
	BillingCycle             BillingCycle
	Status                   TenancyStatus
	InvoiceSchedulingEnabled bool
	NextInvoiceDate          time.Time
	StartDate                time.Time
	EndDate                  *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Billable reports whether the tenancy is due for invoice generation at asOf.
func (t *Tenancy) Billable(asOf time.Time) bool {
	return t.Status == TenancyActive &&
		t.InvoiceSchedulingEnabled &&
		!t.NextInvoiceDate.After(asOf)
}

// Validate checks the fields the invoice generator depends on. A tenancy that
// fails validation is skipped by the billing run rather than aborting it.
func (t *Tenancy) Validate() error {
	if t.LandlordID == "" {
		return Invalid("tenancy.validate", "landlord ID is required")
	}
	if !t.BillingCycle.Valid() {
		return Errorf(EINVALID, "tenancy.validate", "unknown billing cycle: %s", t.BillingCycle)
	}
	if t.RentAmount.IsNegative() || t.RentAmount.IsZero() {
		return Invalid("tenancy.validate", "rent amount must be positive")
	}
	if t.Currency == "" {
		return Invalid("tenancy.validate", "currency is required")
	}
	if t.NextInvoiceDate.IsZero() {
		return Invalid("tenancy.validate", "next invoice date is not set")
	}
	return nil
}

// TenancyStore persists tenancies.
type TenancyStore interface {
	// CreateTenancy inserts a new tenancy.
	CreateTenancy(ctx context.Context, t *Tenancy) error

	// GetTenancy retrieves a tenancy by ID. Returns ErrTenancyNotFound.
	GetTenancy(ctx context.Context, id uuid.UUID) (*Tenancy, error)

	// ListBillable returns active tenancies with scheduling enabled whose
	// next invoice date is at or before asOf.
	ListBillable(ctx context.Context, asOf time.Time) ([]Tenancy, error)

	// CreateInvoiceAndAdvance atomically inserts the invoice and advances the
	// tenancy's next invoice date from prev to next. The advance is a
	// compare-and-swap on the previous date: if a concurrent run already
	// advanced it, nothing is written and ErrScheduleConflict is returned.
	CreateInvoiceAndAdvance(ctx context.Context, inv *Invoice, tenancyID uuid.UUID, prev, next time.Time) error

	// CloseTenancy transitions the tenancy to closed and cancels its draft
	// and sent invoices in the same transaction. Returns the number of
	// invoices cancelled and closedNow=false if the tenancy was already
	// closed (in which case nothing is touched).
	CloseTenancy(ctx context.Context, id uuid.UUID, at time.Time) (closedNow bool, cancelled int64, err error)
}

// Invite is the origin of tenancy creation: a landlord issues a token that a
// tenant redeems to open the lease.
type Invite struct {
	Token        string
	LandlordID   string
	PropertyID   string
	UnitID       string
	TenantEmail  string
	RentAmount   decimal.Decimal
	Currency     string
	BillingCycle BillingCycle
	StartDate    time.Time
	Redeemed     bool
	CreatedAt    time.Time
}

// InviteStore persists invite tokens.
type InviteStore interface {
	// CreateInvite inserts a new invite token.
	CreateInvite(ctx context.Context, inv *Invite) error

	// RedeemInvite atomically marks the token redeemed and returns it.
	// Returns ErrInviteNotFound or ErrInviteRedeemed.
	RedeemInvite(ctx context.Context, token string) (*Invite, error)
}
