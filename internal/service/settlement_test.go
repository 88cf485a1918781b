package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorvaldsen/leasehold/internal/domain"
	"github.com/thorvaldsen/leasehold/internal/email"
	"github.com/thorvaldsen/leasehold/internal/pdf"
)

type mockInvoiceStoreSettlement struct {
	invoice     *domain.Invoice
	markPaidErr error

	paidID      uuid.UUID
	paidPayment string
	paidRef     string
	pdfURL      string
}

func (m *mockInvoiceStoreSettlement) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	if m.invoice == nil || m.invoice.ID != id {
		return nil, domain.ErrInvoiceNotFound
	}
	cp := *m.invoice
	return &cp, nil
}

func (m *mockInvoiceStoreSettlement) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	if m.invoice == nil || m.invoice.InvoiceNumber != number {
		return nil, domain.ErrInvoiceNotFound
	}
	cp := *m.invoice
	return &cp, nil
}

func (m *mockInvoiceStoreSettlement) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (m *mockInvoiceStoreSettlement) ListDueBetween(ctx context.Context, from, to time.Time, statuses []domain.InvoiceStatus) ([]domain.Invoice, error) {
	return nil, nil
}

func (m *mockInvoiceStoreSettlement) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, gatewayRef string, paidAt time.Time) error {
	if m.markPaidErr != nil {
		return m.markPaidErr
	}
	m.paidID = id
	m.paidPayment = paymentID
	m.paidRef = gatewayRef
	m.invoice.Status = domain.InvoicePaid
	return nil
}

func (m *mockInvoiceStoreSettlement) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	m.pdfURL = url
	return nil
}

type mockPaymentStoreSettlement struct {
	byReference  map[string]*domain.Payment
	created      []*domain.Payment
	receipts     []*domain.Payment
	createErr    error
	receiptErr   error
	precheckMiss int
}

func newMockPaymentStoreSettlement() *mockPaymentStoreSettlement {
	return &mockPaymentStoreSettlement{byReference: make(map[string]*domain.Payment)}
}

func (m *mockPaymentStoreSettlement) CreatePayment(ctx context.Context, p *domain.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := string(p.Gateway) + "/" + p.GatewayReference
	if _, exists := m.byReference[key]; exists {
		return domain.ErrDuplicateReference
	}
	cp := *p
	m.byReference[key] = &cp
	m.created = append(m.created, &cp)
	return nil
}

func (m *mockPaymentStoreSettlement) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	for _, p := range m.created {
		if p.PaymentID == paymentID {
			return p, nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func (m *mockPaymentStoreSettlement) GetPaymentByReference(ctx context.Context, gateway domain.Gateway, reference string) (*domain.Payment, error) {
	if m.precheckMiss > 0 {
		m.precheckMiss--
		return nil, domain.ErrPaymentNotFound
	}
	p, ok := m.byReference[string(gateway)+"/"+reference]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (m *mockPaymentStoreSettlement) CreateTenantReceipt(ctx context.Context, p *domain.Payment) error {
	if m.receiptErr != nil {
		return m.receiptErr
	}
	m.receipts = append(m.receipts, p)
	return nil
}

type mockUnitStoreSettlement struct {
	landlordID string
	propertyID string
	unitID     string
	paymentID  string
	err        error
}

func (m *mockUnitStoreSettlement) RecordUnitPayment(ctx context.Context, landlordID, propertyID, unitID, paymentID string, amount decimal.Decimal, paidAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.landlordID = landlordID
	m.propertyID = propertyID
	m.unitID = unitID
	m.paymentID = paymentID
	return nil
}

type mockRenderer struct {
	rendered []pdf.Receipt
	err      error
}

func (m *mockRenderer) Render(r pdf.Receipt) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.rendered = append(m.rendered, r)
	return []byte("%PDF-1.4 receipt"), nil
}

type mockArchive struct {
	keys []string
	err  error
}

func (m *mockArchive) Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func (m *mockArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (m *mockArchive) Delete(ctx context.Context, key string) error { return nil }
func (m *mockArchive) URL(key string) string                        { return "https://cdn.example.com/" + key }
func (m *mockArchive) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

type mockNotifier struct {
	sent []email.ReceiptData
	err  error
}

func (m *mockNotifier) SendReceipt(ctx context.Context, data email.ReceiptData) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, data)
	return nil
}

type settlementFixture struct {
	invoices  *mockInvoiceStoreSettlement
	payments  *mockPaymentStoreSettlement
	units     *mockUnitStoreSettlement
	reminders *mockReminderStore
	renderer  *mockRenderer
	archive   *mockArchive
	notifier  *mockNotifier
	svc       *SettlementService
}

func newSettlementFixture(inv *domain.Invoice) *settlementFixture {
	f := &settlementFixture{
		invoices:  &mockInvoiceStoreSettlement{invoice: inv},
		payments:  newMockPaymentStoreSettlement(),
		units:     &mockUnitStoreSettlement{},
		reminders: newMockReminderStore(),
		renderer:  &mockRenderer{},
		archive:   &mockArchive{},
		notifier:  &mockNotifier{},
	}
	f.svc = NewSettlementService(
		f.invoices, f.payments, f.units, f.reminders,
		f.renderer, f.archive, f.notifier, quietLogger())
	f.svc.now = func() time.Time {
		return time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	}
	return f
}

func settledInvoice() *domain.Invoice {
	return &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-20240301060000-a1b2",
		TenancyID:     uuid.New(),
		TenantID:      "T1",
		LandlordID:    "L1",
		PropertyID:    "P1",
		UnitID:        "U1",
		Amount:        decimal.NewFromInt(100000),
		Currency:      "NGN",
		Status:        domain.InvoiceSent,
		DueDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleSuccessfulPaymentFullSaga(t *testing.T) {
	ctx := context.Background()
	inv := settledInvoice()
	f := newSettlementFixture(inv)

	// Pending reminders that must settle with the invoice.
	_, err := f.reminders.UpsertReminder(ctx, &domain.Reminder{
		ID: uuid.New(), OwnerID: "L1", InvoiceID: inv.ID, DaysBefore: 7,
		Status: domain.ReminderPending,
	})
	require.NoError(t, err)
	_, err = f.reminders.UpsertReminder(ctx, &domain.Reminder{
		ID: uuid.New(), OwnerID: "T1", InvoiceID: inv.ID, DaysBefore: 7,
		Status: domain.ReminderPending,
	})
	require.NoError(t, err)

	// Identity comes only partially from the gateway; the rest backfills
	// from the invoice.
	paymentID, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		InvoiceID:        inv.ID.String(),
		LandlordID:       "L1",
		TenantEmail:      "tenant@example.com",
		Amount:           decimal.NewFromInt(100000),
		Currency:         "NGN",
		Gateway:          domain.GatewayPaystack,
		GatewayReference: "ref_abc123",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(paymentID, "PAY-"))

	// Invoice marked paid with the binding.
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	assert.Equal(t, inv.ID, f.invoices.paidID)
	assert.Equal(t, paymentID, f.invoices.paidPayment)
	assert.Equal(t, "ref_abc123", f.invoices.paidRef)

	// Payment record carries the backfilled identity.
	require.Len(t, f.payments.created, 1)
	p := f.payments.created[0]
	assert.Equal(t, paymentID, p.PaymentID)
	assert.Equal(t, "T1", p.TenantID)
	assert.Equal(t, "L1", p.LandlordID)
	assert.Equal(t, "P1", p.PropertyID)
	assert.Equal(t, "U1", p.UnitID)
	assert.Equal(t, "paid", p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(100000)))

	// Tenant receipt, unit stamp, settled reminders.
	require.Len(t, f.payments.receipts, 1)
	assert.Equal(t, paymentID, f.payments.receipts[0].PaymentID)
	assert.Equal(t, "U1", f.units.unitID)
	assert.Equal(t, paymentID, f.units.paymentID)
	for _, r := range f.reminders.reminders {
		assert.Equal(t, domain.ReminderPaid, r.Status)
	}

	// Receipt PDF archived under the landlord/property namespace and the
	// URL written back.
	require.Len(t, f.archive.keys, 1)
	assert.Equal(t, "invoices/L1/P1/"+paymentID+".pdf", f.archive.keys[0])
	assert.Equal(t, "https://cdn.example.com/invoices/L1/P1/"+paymentID+".pdf", f.invoices.pdfURL)

	// Receipt email with the attachment.
	require.Len(t, f.notifier.sent, 1)
	sent := f.notifier.sent[0]
	assert.Equal(t, "tenant@example.com", sent.TenantEmail)
	assert.Equal(t, inv.InvoiceNumber, sent.InvoiceNumber)
	assert.NotEmpty(t, sent.PDF)
	assert.Equal(t, f.invoices.pdfURL, sent.ReceiptURL)
}

func TestHandleSuccessfulPaymentDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	inv := settledInvoice()
	f := newSettlementFixture(inv)

	ev := domain.PaymentEvent{
		InvoiceID:        inv.ID.String(),
		Amount:           decimal.NewFromInt(100000),
		Currency:         "NGN",
		Gateway:          domain.GatewayPaystack,
		GatewayReference: "ref_abc123",
	}

	first, err := f.svc.HandleSuccessfulPayment(ctx, ev)
	require.NoError(t, err)

	// Gateway retry: same reference, no new side effects.
	second, err := f.svc.HandleSuccessfulPayment(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.payments.created, 1)
	assert.Len(t, f.archive.keys, 1)
}

func TestHandleSuccessfulPaymentConcurrentDuplicate(t *testing.T) {
	// The precheck misses but the unique index catches the race: the conflict
	// resolves to the payment the concurrent delivery already wrote.
	ctx := context.Background()
	f := newSettlementFixture(nil)

	original := &domain.Payment{PaymentID: "PAY-ORIGINAL", Gateway: domain.GatewayStripe, GatewayReference: "pi_123"}
	f.payments.byReference["stripe/pi_123"] = original
	f.payments.createErr = domain.ErrDuplicateReference
	f.payments.precheckMiss = 1

	id, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		Amount:           decimal.NewFromInt(500),
		Currency:         "USD",
		Gateway:          domain.GatewayStripe,
		GatewayReference: "pi_123",
	})
	require.NoError(t, err)
	assert.Equal(t, "PAY-ORIGINAL", id)
	assert.Empty(t, f.payments.receipts)
}

func TestHandleSuccessfulPaymentMissingInvoice(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(nil)

	paymentID, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		InvoiceID:        uuid.NewString(),
		TenantID:         "T9",
		Amount:           decimal.NewFromInt(750),
		Currency:         "USD",
		Gateway:          domain.GatewayStripe,
		GatewayReference: "pi_missing",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, paymentID)

	// The payment is still durably recorded.
	require.Len(t, f.payments.created, 1)
	assert.Equal(t, "T9", f.payments.created[0].TenantID)
	// Tenant receipt still written; no PDF without an invoice.
	assert.Len(t, f.payments.receipts, 1)
	assert.Empty(t, f.archive.keys)
}

func TestHandleSuccessfulPaymentRecordFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(nil)
	f.payments.createErr = errors.New("connection refused")

	_, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		Amount:           decimal.NewFromInt(500),
		Currency:         "USD",
		Gateway:          domain.GatewayStripe,
		GatewayReference: "pi_fatal",
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.Empty(t, f.payments.receipts)
	assert.Empty(t, f.archive.keys)
	assert.Empty(t, f.notifier.sent)
}

func TestHandleSuccessfulPaymentEnrichmentFailuresAreAbsorbed(t *testing.T) {
	ctx := context.Background()
	inv := settledInvoice()
	f := newSettlementFixture(inv)
	f.payments.receiptErr = errors.New("receipt write failed")
	f.units.err = domain.ErrUnitNotFound
	f.archive.err = errors.New("bucket unavailable")
	f.notifier.err = errors.New("smtp down")

	paymentID, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		InvoiceID:        inv.ID.String(),
		TenantEmail:      "tenant@example.com",
		Amount:           decimal.NewFromInt(100000),
		Currency:         "NGN",
		Gateway:          domain.GatewayPaystack,
		GatewayReference: "ref_enrich",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, paymentID)
	assert.Len(t, f.payments.created, 1)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
}

func TestHandleSuccessfulPaymentResolvesByInvoiceNumber(t *testing.T) {
	ctx := context.Background()
	inv := settledInvoice()
	f := newSettlementFixture(inv)

	_, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		InvoiceID:        inv.InvoiceNumber,
		Amount:           decimal.NewFromInt(100000),
		Currency:         "NGN",
		Gateway:          domain.GatewayPaystack,
		GatewayReference: "ref_by_number",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, inv.Status)
	require.Len(t, f.payments.created, 1)
	assert.Equal(t, "L1", f.payments.created[0].LandlordID)
}

func TestHandleSuccessfulPaymentValidatesEvent(t *testing.T) {
	ctx := context.Background()
	f := newSettlementFixture(nil)

	_, err := f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		Gateway:          "cash",
		GatewayReference: "x",
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = f.svc.HandleSuccessfulPayment(ctx, domain.PaymentEvent{
		Gateway: domain.GatewayStripe,
	})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Empty(t, f.payments.created)
}
