package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// ReminderService schedules upcoming-rent reminders for landlords and
// tenants at fixed lead times before an invoice falls due.
type ReminderService struct {
	invoices  domain.InvoiceStore
	reminders domain.ReminderStore
	logger    *slog.Logger
}

// NewReminderService creates a new ReminderService instance.
func NewReminderService(invoices domain.InvoiceStore, reminders domain.ReminderStore, logger *slog.Logger) *ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{invoices: invoices, reminders: reminders, logger: logger}
}

// ScheduleResult summarizes one reminder-scheduling pass.
type ScheduleResult struct {
	Created  int // reminders inserted
	Existing int // reminders already present from an earlier run
}

// ScheduleReminders scans, for each lead time, the calendar-day window
// [today+L, today+L+1) for unpaid invoices and creates a reminder for the
// landlord and, when the invoice names a tenant, one for the tenant.
//
// Reminder identity is the (owner, invoice, lead time) triple, enforced by
// the store, so rerunning the pass or racing another instance never
// produces a second reminder for the same triple.
func (s *ReminderService) ScheduleReminders(ctx context.Context, now time.Time) (*ScheduleResult, error) {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	unpaid := []domain.InvoiceStatus{domain.InvoiceSent, domain.InvoiceOverdue}

	result := &ScheduleResult{}
	for _, lead := range domain.ReminderLeadTimes {
		from := today.AddDate(0, 0, lead)
		to := from.AddDate(0, 0, 1)

		invoices, err := s.invoices.ListDueBetween(ctx, from, to, unpaid)
		if err != nil {
			return result, fmt.Errorf("list invoices due in %d days: %w", lead, err)
		}

		for i := range invoices {
			inv := &invoices[i]

			if err := s.upsert(ctx, inv, inv.LandlordID, domain.RoleLandlord, lead, result); err != nil {
				s.logger.Error("reminders: failed to create landlord reminder",
					"invoice_id", inv.ID, "days_before", lead, "error", err)
			}
			if inv.TenantID != "" {
				if err := s.upsert(ctx, inv, inv.TenantID, domain.RoleTenant, lead, result); err != nil {
					s.logger.Error("reminders: failed to create tenant reminder",
						"invoice_id", inv.ID, "days_before", lead, "error", err)
				}
			}
		}
	}

	s.logger.Info("reminders: scheduling pass complete",
		"created", result.Created, "existing", result.Existing)
	return result, nil
}

func (s *ReminderService) upsert(ctx context.Context, inv *domain.Invoice, ownerID string, role domain.RecipientRole, lead int, result *ScheduleResult) error {
	if ownerID == "" {
		return nil
	}

	created, err := s.reminders.UpsertReminder(ctx, &domain.Reminder{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		RecipientRole: role,
		Title:         fmt.Sprintf("Rent payment due %s", domain.ReminderLabel(lead)),
		PropertyID:    inv.PropertyID,
		UnitID:        inv.UnitID,
		InvoiceID:     inv.ID,
		TenancyID:     inv.TenancyID,
		DueDate:       inv.DueDate,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		DaysBefore:    lead,
		Status:        domain.ReminderPending,
	})
	if err != nil {
		return err
	}

	if created {
		result.Created++
		if telemetry.Business != nil {
			telemetry.Business.RemindersScheduled.
				WithLabelValues(strconv.Itoa(lead), string(role)).Inc()
		}
	} else {
		result.Existing++
	}
	return nil
}
