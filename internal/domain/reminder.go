package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReminderStatus is the lifecycle state of a notification obligation.
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderPaid    ReminderStatus = "paid"
)

// RecipientRole names who a reminder addresses.
type RecipientRole string

const (
	RoleLandlord RecipientRole = "landlord"
	RoleTenant   RecipientRole = "tenant"
)

// ReminderLeadTimes are the fixed lead times, in days, at which upcoming rent
// reminders are scheduled.
var ReminderLeadTimes = []int{30, 7, 1}

// Reminder is a notification obligation owned by a landlord or tenant.
// Identity is the (owner, invoice, lead time) triple: the store enforces at
// most one reminder per triple, so repeated or concurrent scheduler runs
// collapse to a single record.
type Reminder struct {
	ID            uuid.UUID
	OwnerID       string
	RecipientRole RecipientRole
	Title         string
	PropertyID    string
	UnitID        string
	InvoiceID     uuid.UUID
	TenancyID     uuid.UUID
	DueDate       time.Time
	Amount        decimal.Decimal
	Currency      string
	DaysBefore    int
	Status        ReminderStatus
	CreatedAt     time.Time
}

// ReminderLabel renders the human-readable lead-time phrase used in titles.
func ReminderLabel(daysBefore int) string {
	switch daysBefore {
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", daysBefore)
	}
}

// ReminderStore persists reminders.
type ReminderStore interface {
	// UpsertReminder inserts the reminder if no reminder with the same
	// (owner, invoice, days-before) triple exists. Returns created=false
	// when the triple is already present; that is not an error.
	UpsertReminder(ctx context.Context, r *Reminder) (created bool, err error)

	// MarkRemindersPaid transitions the owner's unpaid reminders for the
	// given invoice to paid. Returns the number of rows changed. Each update
	// is idempotent; already-paid reminders are untouched.
	MarkRemindersPaid(ctx context.Context, ownerID string, invoiceID uuid.UUID) (int64, error)

	// ListReminders returns an owner's reminders, newest due first.
	ListReminders(ctx context.Context, ownerID string, limit int32) ([]Reminder, error)
}
