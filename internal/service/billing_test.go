package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// mockTenancyStoreBilling is an in-memory TenancyStore that mimics the CAS
// semantics of the schedule advance.
type mockTenancyStoreBilling struct {
	tenancies map[uuid.UUID]*domain.Tenancy
	created   []*domain.Invoice
	createErr error
}

func newMockTenancyStoreBilling(tenancies ...*domain.Tenancy) *mockTenancyStoreBilling {
	m := &mockTenancyStoreBilling{tenancies: make(map[uuid.UUID]*domain.Tenancy)}
	for _, t := range tenancies {
		m.tenancies[t.ID] = t
	}
	return m
}

func (m *mockTenancyStoreBilling) CreateTenancy(ctx context.Context, t *domain.Tenancy) error {
	m.tenancies[t.ID] = t
	return nil
}

func (m *mockTenancyStoreBilling) GetTenancy(ctx context.Context, id uuid.UUID) (*domain.Tenancy, error) {
	t, ok := m.tenancies[id]
	if !ok {
		return nil, domain.ErrTenancyNotFound
	}
	return t, nil
}

func (m *mockTenancyStoreBilling) ListBillable(ctx context.Context, asOf time.Time) ([]domain.Tenancy, error) {
	var out []domain.Tenancy
	for _, t := range m.tenancies {
		if t.Billable(asOf) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTenancyStoreBilling) CreateInvoiceAndAdvance(ctx context.Context, inv *domain.Invoice, tenancyID uuid.UUID, prev, next time.Time) error {
	if m.createErr != nil {
		return m.createErr
	}
	t, ok := m.tenancies[tenancyID]
	if !ok {
		return domain.ErrTenancyNotFound
	}
	if !t.NextInvoiceDate.Equal(prev) {
		return domain.ErrScheduleConflict
	}
	t.NextInvoiceDate = next
	m.created = append(m.created, inv)
	return nil
}

func (m *mockTenancyStoreBilling) CloseTenancy(ctx context.Context, id uuid.UUID, at time.Time) (bool, int64, error) {
	return false, 0, nil
}

type mockInvoiceStoreBilling struct {
	overdueCount int64
	overdueCalls []time.Time
	overdueErr   error
}

func (m *mockInvoiceStoreBilling) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return nil, domain.ErrInvoiceNotFound
}

func (m *mockInvoiceStoreBilling) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return nil, domain.ErrInvoiceNotFound
}

func (m *mockInvoiceStoreBilling) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.overdueCalls = append(m.overdueCalls, now)
	return m.overdueCount, m.overdueErr
}

func (m *mockInvoiceStoreBilling) ListDueBetween(ctx context.Context, from, to time.Time, statuses []domain.InvoiceStatus) ([]domain.Invoice, error) {
	return nil, nil
}

func (m *mockInvoiceStoreBilling) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, gatewayRef string, paidAt time.Time) error {
	return nil
}

func (m *mockInvoiceStoreBilling) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func monthlyTenancy(next time.Time) *domain.Tenancy {
	return &domain.Tenancy{
		ID:                       uuid.New(),
		TenantID:                 "T1",
		LandlordID:               "L1",
		PropertyID:               "P1",
		UnitID:                   "U1",
		RentAmount:               decimal.NewFromInt(100000),
		Currency:                 "NGN",
		BillingCycle:             domain.CycleMonthly,
		Status:                   domain.TenancyActive,
		InvoiceSchedulingEnabled: true,
		NextInvoiceDate:          next,
		StartDate:                next,
	}
}

func TestGenerateInvoicesMonthly(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tenancy := monthlyTenancy(due)
	store := newMockTenancyStoreBilling(tenancy)
	svc := NewBillingService(store, &mockInvoiceStoreBilling{}, quietLogger())

	res, err := svc.GenerateInvoices(context.Background(), due)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generated)
	assert.Zero(t, res.Conflicts)
	assert.Zero(t, res.Skipped)

	require.Len(t, store.created, 1)
	inv := store.created[0]
	assert.Equal(t, domain.InvoiceSent, inv.Status)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, "NGN", inv.Currency)
	assert.Equal(t, tenancy.ID, inv.TenancyID)
	assert.Equal(t, "T1", inv.TenantID)
	assert.Equal(t, "L1", inv.LandlordID)
	assert.True(t, inv.DueDate.Equal(due))

	// Schedule advances one calendar month.
	assert.True(t, tenancy.NextInvoiceDate.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGenerateInvoicesIdempotentAcrossRuns(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tenancy := monthlyTenancy(due)
	store := newMockTenancyStoreBilling(tenancy)
	svc := NewBillingService(store, &mockInvoiceStoreBilling{}, quietLogger())

	first, err := svc.GenerateInvoices(context.Background(), due)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	// Second run at the same instant: the schedule already advanced past
	// today, so the tenancy is no longer billable.
	second, err := svc.GenerateInvoices(context.Background(), due)
	require.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Len(t, store.created, 1)
}

func TestGenerateInvoicesSkipsMalformedTenancy(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	good := monthlyTenancy(due)
	bad := monthlyTenancy(due)
	bad.RentAmount = decimal.Zero

	store := newMockTenancyStoreBilling(good, bad)
	svc := NewBillingService(store, &mockInvoiceStoreBilling{}, quietLogger())

	res, err := svc.GenerateInvoices(context.Background(), due)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, store.created, 1)
	assert.Equal(t, good.ID, store.created[0].TenancyID)
}

func TestGenerateInvoicesToleratesConcurrentRun(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tenancy := monthlyTenancy(due)
	store := newMockTenancyStoreBilling(tenancy)
	store.createErr = domain.ErrScheduleConflict
	svc := NewBillingService(store, &mockInvoiceStoreBilling{}, quietLogger())

	res, err := svc.GenerateInvoices(context.Background(), due)
	require.NoError(t, err)
	assert.Zero(t, res.Generated)
	assert.Equal(t, 1, res.Conflicts)
	assert.Empty(t, store.created)
}

func TestGenerateInvoicesIncludesTenanciesDueLaterToday(t *testing.T) {
	// Due at 18:00 today; the 06:00 run still bills it.
	due := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	tenancy := monthlyTenancy(due)
	store := newMockTenancyStoreBilling(tenancy)
	svc := NewBillingService(store, &mockInvoiceStoreBilling{}, quietLogger())

	res, err := svc.GenerateInvoices(context.Background(), time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Generated)
}

func TestSweepOverdue(t *testing.T) {
	invoices := &mockInvoiceStoreBilling{overdueCount: 3}
	svc := NewBillingService(newMockTenancyStoreBilling(), invoices, quietLogger())

	now := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	n, err := svc.SweepOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, invoices.overdueCalls, 1)
	assert.True(t, invoices.overdueCalls[0].Equal(now))
}
