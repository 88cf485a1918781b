// Package service implements the billing pipeline: the daily invoice
// generator, the overdue sweep, reminder scheduling, checkout issuing,
// payment settlement and the tenancy lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// BillingService runs the scheduled billing passes: invoice generation and
// the overdue sweep.
type BillingService struct {
	tenancies domain.TenancyStore
	invoices  domain.InvoiceStore
	logger    *slog.Logger
}

// NewBillingService creates a new BillingService instance.
func NewBillingService(tenancies domain.TenancyStore, invoices domain.InvoiceStore, logger *slog.Logger) *BillingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingService{tenancies: tenancies, invoices: invoices, logger: logger}
}

// BillingRunResult summarizes one invoice-generation pass.
type BillingRunResult struct {
	Generated int // invoices created
	Conflicts int // tenancies already billed by a concurrent run
	Skipped   int // tenancies skipped for validation or store errors
}

// GenerateInvoices creates one invoice for every active tenancy whose next
// invoice date has arrived, and advances each tenancy's schedule by one
// billing period.
//
// Each tenancy is processed in its own transaction: the invoice insert and
// the schedule advance commit together, and a failure on one tenancy never
// aborts the rest of the pass. A tenancy whose schedule was already advanced
// by a concurrent run is counted as a conflict and left alone.
func (s *BillingService) GenerateInvoices(ctx context.Context, now time.Time) (*BillingRunResult, error) {
	y, m, d := now.UTC().Date()
	endOfToday := time.Date(y, m, d, 23, 59, 59, 0, time.UTC)

	due, err := s.tenancies.ListBillable(ctx, endOfToday)
	if err != nil {
		return nil, fmt.Errorf("list billable tenancies: %w", err)
	}

	result := &BillingRunResult{}
	for i := range due {
		t := &due[i]

		if err := t.Validate(); err != nil {
			s.logger.Warn("billing: skipping malformed tenancy",
				"tenancy_id", t.ID, "error", err)
			result.Skipped++
			if telemetry.Business != nil {
				telemetry.Business.TenanciesSkipped.WithLabelValues("invalid").Inc()
			}
			continue
		}

		inv := s.buildInvoice(t, now)
		next := t.BillingCycle.Next(t.NextInvoiceDate)

		err := s.tenancies.CreateInvoiceAndAdvance(ctx, inv, t.ID, t.NextInvoiceDate, next)
		switch {
		case errors.Is(err, domain.ErrScheduleConflict):
			// Another run billed this cycle first; its invoice stands.
			s.logger.Info("billing: cycle already billed by concurrent run",
				"tenancy_id", t.ID, "due_date", t.NextInvoiceDate)
			result.Conflicts++
			if telemetry.Business != nil {
				telemetry.Business.ScheduleConflicts.WithLabelValues(string(t.BillingCycle)).Inc()
			}
		case err != nil:
			s.logger.Error("billing: failed to create invoice",
				"tenancy_id", t.ID, "error", err)
			result.Skipped++
			if telemetry.Business != nil {
				telemetry.Business.TenanciesSkipped.WithLabelValues("store_error").Inc()
			}
		default:
			s.logger.Info("billing: invoice created",
				"tenancy_id", t.ID,
				"invoice_number", inv.InvoiceNumber,
				"due_date", inv.DueDate,
				"next_invoice_date", next)
			result.Generated++
			if telemetry.Business != nil {
				telemetry.Business.InvoicesGenerated.
					WithLabelValues(t.LandlordID, string(t.BillingCycle)).Inc()
			}
		}
	}

	s.logger.Info("billing: generation pass complete",
		"due", len(due),
		"generated", result.Generated,
		"conflicts", result.Conflicts,
		"skipped", result.Skipped)
	return result, nil
}

// buildInvoice snapshots the tenancy's current billing attributes onto a new
// sent invoice due at the tenancy's next invoice date. Later edits to the
// tenancy never change invoices already issued.
func (s *BillingService) buildInvoice(t *domain.Tenancy, now time.Time) *domain.Invoice {
	return &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: domain.NewInvoiceNumber(now),
		TenancyID:     t.ID,
		TenantID:      t.TenantID,
		LandlordID:    t.LandlordID,
		PropertyID:    t.PropertyID,
		UnitID:        t.UnitID,
		Amount:        t.RentAmount,
		Currency:      t.Currency,
		BillingCycle:  t.BillingCycle,
		Status:        domain.InvoiceSent,
		DueDate:       t.NextInvoiceDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SweepOverdue transitions every sent invoice past its due date to overdue.
// A single guarded UPDATE; rerunning it changes nothing further.
func (s *BillingService) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.invoices.MarkOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("mark invoices overdue: %w", err)
	}
	if n > 0 {
		s.logger.Info("billing: invoices marked overdue", "count", n)
	}
	if telemetry.Business != nil {
		telemetry.Business.InvoicesMarkedOverdue.Add(float64(n))
	}
	return n, nil
}
