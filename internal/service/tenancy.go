package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// TenancyService manages the lease lifecycle: invite-based creation and the
// close cascade.
type TenancyService struct {
	tenancies domain.TenancyStore
	invites   domain.InviteStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewTenancyService creates a new TenancyService instance.
func NewTenancyService(tenancies domain.TenancyStore, invites domain.InviteStore, logger *slog.Logger) *TenancyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenancyService{
		tenancies: tenancies,
		invites:   invites,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateInvite issues an invite token a tenant can redeem to open a lease.
func (s *TenancyService) CreateInvite(ctx context.Context, inv *domain.Invite) error {
	if inv.LandlordID == "" {
		return domain.Invalid("invite.create", "landlord ID is required")
	}
	if !inv.BillingCycle.Valid() {
		return domain.Errorf(domain.EINVALID, "invite.create", "unknown billing cycle: %s", inv.BillingCycle)
	}
	if !inv.RentAmount.IsPositive() {
		return domain.Invalid("invite.create", "rent amount must be positive")
	}
	if inv.Token == "" {
		inv.Token = uuid.NewString()
	}
	if inv.StartDate.IsZero() {
		inv.StartDate = s.now().UTC()
	}
	return s.invites.CreateInvite(ctx, inv)
}

// AcceptInvite redeems the token and opens the tenancy for the accepting
// tenant. Scheduling starts enabled with the first invoice due at the lease
// start date; the daily billing run takes over from there.
func (s *TenancyService) AcceptInvite(ctx context.Context, token, tenantID string) (*domain.Tenancy, error) {
	if tenantID == "" {
		return nil, domain.Invalid("invite.accept", "tenant ID is required")
	}

	inv, err := s.invites.RedeemInvite(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &domain.Tenancy{
		ID:                       uuid.New(),
		TenantID:                 tenantID,
		LandlordID:               inv.LandlordID,
		PropertyID:               inv.PropertyID,
		UnitID:                   inv.UnitID,
		RentAmount:               inv.RentAmount,
		Currency:                 inv.Currency,
		BillingCycle:             inv.BillingCycle,
		Status:                   domain.TenancyActive,
		InvoiceSchedulingEnabled: true,
		NextInvoiceDate:          inv.StartDate,
		StartDate:                inv.StartDate,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if err := s.tenancies.CreateTenancy(ctx, t); err != nil {
		// The token is already burned; surface the failure for manual review
		// rather than silently reopening it.
		s.logger.Error("invite: redeemed but tenancy creation failed",
			"token", token, "tenant_id", tenantID, "error", err)
		telemetry.CaptureError(err, map[string]interface{}{"invite_token": token})
		return nil, err
	}

	s.logger.Info("invite: tenancy opened",
		"tenancy_id", t.ID,
		"tenant_id", tenantID,
		"landlord_id", t.LandlordID,
		"next_invoice_date", t.NextInvoiceDate)
	return t, nil
}

// CloseResult summarizes a close operation.
type CloseResult struct {
	ClosedNow bool  // false when the tenancy was already closed
	Cancelled int64 // draft/sent invoices cancelled by this call
}

// CloseTenancy transitions the tenancy to closed and cancels its outstanding
// draft and sent invoices in one transaction. Closing an already-closed
// tenancy is a no-op: the cascade runs only on the first transition, so
// repeated close requests never re-touch invoices.
func (s *TenancyService) CloseTenancy(ctx context.Context, id uuid.UUID) (*CloseResult, error) {
	closedNow, cancelled, err := s.tenancies.CloseTenancy(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if closedNow {
		s.logger.Info("tenancy: closed",
			"tenancy_id", id, "invoices_cancelled", cancelled)
		if telemetry.Business != nil {
			telemetry.Business.TenanciesClosed.Inc()
			telemetry.Business.InvoicesCancelled.Add(float64(cancelled))
		}
	}
	return &CloseResult{ClosedNow: closedNow, Cancelled: cancelled}, nil
}
