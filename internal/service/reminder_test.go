package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

type mockInvoiceStoreReminders struct {
	invoices []domain.Invoice
}

func (m *mockInvoiceStoreReminders) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return nil, domain.ErrInvoiceNotFound
}

func (m *mockInvoiceStoreReminders) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return nil, domain.ErrInvoiceNotFound
}

func (m *mockInvoiceStoreReminders) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (m *mockInvoiceStoreReminders) ListDueBetween(ctx context.Context, from, to time.Time, statuses []domain.InvoiceStatus) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range m.invoices {
		if inv.DueDate.Before(from) || !inv.DueDate.Before(to) {
			continue
		}
		for _, st := range statuses {
			if inv.Status == st {
				out = append(out, inv)
				break
			}
		}
	}
	return out, nil
}

func (m *mockInvoiceStoreReminders) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, gatewayRef string, paidAt time.Time) error {
	return nil
}

func (m *mockInvoiceStoreReminders) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	return nil
}

// mockReminderStore dedups on the (owner, invoice, days-before) triple like
// the real store's unique index.
type mockReminderStore struct {
	reminders map[string]*domain.Reminder
}

func newMockReminderStore() *mockReminderStore {
	return &mockReminderStore{reminders: make(map[string]*domain.Reminder)}
}

func reminderKey(ownerID string, invoiceID uuid.UUID, daysBefore int) string {
	return fmt.Sprintf("%s/%s/%d", ownerID, invoiceID, daysBefore)
}

func (m *mockReminderStore) UpsertReminder(ctx context.Context, r *domain.Reminder) (bool, error) {
	key := reminderKey(r.OwnerID, r.InvoiceID, r.DaysBefore)
	if _, exists := m.reminders[key]; exists {
		return false, nil
	}
	cp := *r
	m.reminders[key] = &cp
	return true, nil
}

func (m *mockReminderStore) MarkRemindersPaid(ctx context.Context, ownerID string, invoiceID uuid.UUID) (int64, error) {
	var n int64
	for _, r := range m.reminders {
		if r.OwnerID == ownerID && r.InvoiceID == invoiceID && r.Status != domain.ReminderPaid {
			r.Status = domain.ReminderPaid
			n++
		}
	}
	return n, nil
}

func (m *mockReminderStore) ListReminders(ctx context.Context, ownerID string, limit int32) ([]domain.Reminder, error) {
	var out []domain.Reminder
	for _, r := range m.reminders {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func sentInvoice(due time.Time, tenantID string) domain.Invoice {
	return domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: domain.NewInvoiceNumber(due),
		TenancyID:     uuid.New(),
		TenantID:      tenantID,
		LandlordID:    "L1",
		PropertyID:    "P1",
		UnitID:        "U1",
		Amount:        decimal.NewFromInt(100000),
		Currency:      "NGN",
		Status:        domain.InvoiceSent,
		DueDate:       due,
	}
}

func TestScheduleRemindersSevenDayWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	inv := sentInvoice(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), "T1")

	invoices := &mockInvoiceStoreReminders{invoices: []domain.Invoice{inv}}
	reminders := newMockReminderStore()
	svc := NewReminderService(invoices, reminders, quietLogger())

	res, err := svc.ScheduleReminders(context.Background(), now)
	require.NoError(t, err)
	// One for the landlord, one for the tenant.
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Existing)

	landlord, err := reminders.ListReminders(context.Background(), "L1", 10)
	require.NoError(t, err)
	require.Len(t, landlord, 1)
	assert.Equal(t, 7, landlord[0].DaysBefore)
	assert.Equal(t, domain.RoleLandlord, landlord[0].RecipientRole)
	assert.Contains(t, landlord[0].Title, "in 7 days")
	assert.Equal(t, domain.ReminderPending, landlord[0].Status)
	assert.True(t, landlord[0].Amount.Equal(inv.Amount))

	tenant, err := reminders.ListReminders(context.Background(), "T1", 10)
	require.NoError(t, err)
	require.Len(t, tenant, 1)
	assert.Equal(t, domain.RoleTenant, tenant[0].RecipientRole)
}

func TestScheduleRemindersRerunCreatesNothing(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	inv := sentInvoice(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), "T1")

	invoices := &mockInvoiceStoreReminders{invoices: []domain.Invoice{inv}}
	reminders := newMockReminderStore()
	svc := NewReminderService(invoices, reminders, quietLogger())

	first, err := svc.ScheduleReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	second, err := svc.ScheduleReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 2, second.Existing)
	assert.Len(t, reminders.reminders, 2)
}

func TestScheduleRemindersTomorrowLabel(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	inv := sentInvoice(time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), "")

	invoices := &mockInvoiceStoreReminders{invoices: []domain.Invoice{inv}}
	reminders := newMockReminderStore()
	svc := NewReminderService(invoices, reminders, quietLogger())

	res, err := svc.ScheduleReminders(context.Background(), now)
	require.NoError(t, err)
	// No tenant on the invoice: landlord only.
	assert.Equal(t, 1, res.Created)

	landlord, _ := reminders.ListReminders(context.Background(), "L1", 10)
	require.Len(t, landlord, 1)
	assert.Equal(t, 1, landlord[0].DaysBefore)
	assert.Contains(t, landlord[0].Title, "tomorrow")
}

func TestScheduleRemindersIgnoresInvoicesOutsideWindows(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	invoices := &mockInvoiceStoreReminders{invoices: []domain.Invoice{
		sentInvoice(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "T1"),  // D+4
		sentInvoice(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), "T1"), // D+15
	}}
	reminders := newMockReminderStore()
	svc := NewReminderService(invoices, reminders, quietLogger())

	res, err := svc.ScheduleReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Empty(t, reminders.reminders)
}

func TestScheduleRemindersCoversOverdueInvoices(t *testing.T) {
	// An invoice already overdue for a later installment window still gets
	// its 30-day reminder.
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	inv := sentInvoice(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), "")
	inv.Status = domain.InvoiceOverdue

	invoices := &mockInvoiceStoreReminders{invoices: []domain.Invoice{inv}}
	reminders := newMockReminderStore()
	svc := NewReminderService(invoices, reminders, quietLogger())

	res, err := svc.ScheduleReminders(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	landlord, _ := reminders.ListReminders(context.Background(), "L1", 10)
	require.Len(t, landlord, 1)
	assert.Equal(t, 30, landlord[0].DaysBefore)
	assert.Contains(t, landlord[0].Title, "in 30 days")
}
