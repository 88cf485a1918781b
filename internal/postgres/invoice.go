package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// InvoiceStore implements domain.InvoiceStore using PostgreSQL.
type InvoiceStore struct {
	pool *pgxpool.Pool
}

var _ domain.InvoiceStore = (*InvoiceStore)(nil)

// NewInvoiceStore creates a new InvoiceStore instance.
func NewInvoiceStore(pool *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{pool: pool}
}

const invoiceColumns = `id, invoice_number, tenancy_id, tenant_id, landlord_id, property_id,
	unit_id, amount, currency, billing_cycle, status, due_date, paid_date,
	payment_id, gateway_reference, pdf_url, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv        domain.Invoice
		id         pgtype.UUID
		tenancyID  pgtype.UUID
		tenantID   pgtype.Text
		unitID     pgtype.Text
		amount     pgtype.Numeric
		dueDate    pgtype.Timestamptz
		paidDate   pgtype.Timestamptz
		paymentID  pgtype.Text
		gatewayRef pgtype.Text
		pdfURL     pgtype.Text
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)

	err := row.Scan(&id, &inv.InvoiceNumber, &tenancyID, &tenantID, &inv.LandlordID,
		&inv.PropertyID, &unitID, &amount, &inv.Currency, &inv.BillingCycle,
		&inv.Status, &dueDate, &paidDate, &paymentID, &gatewayRef, &pdfURL,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	inv.ID = fromPgUUID(id)
	inv.TenancyID = fromPgUUID(tenancyID)
	inv.TenantID = textOrEmpty(tenantID)
	inv.UnitID = textOrEmpty(unitID)
	inv.Amount, err = fromPgNumeric(amount)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	inv.DueDate = dueDate.Time
	inv.PaidDate = timePtr(paidDate)
	inv.PaymentID = textOrEmpty(paymentID)
	inv.GatewayReference = textOrEmpty(gatewayRef)
	inv.PDFURL = textOrEmpty(pdfURL)
	inv.CreatedAt = createdAt.Time
	inv.UpdatedAt = updatedAt.Time
	return &inv, nil
}

// GetInvoice retrieves an invoice by ID.
func (s *InvoiceStore) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, pgUUID(id))

	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "invoice.get", "failed to load invoice")
	}
	return inv, nil
}

// GetInvoiceByNumber retrieves an invoice by its human-readable number.
func (s *InvoiceStore) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)

	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "invoice.get_by_number", "failed to load invoice")
	}
	return inv, nil
}

// MarkOverdue transitions sent invoices past their due date to overdue.
// The status filter makes repeated sweeps no-ops and keeps paid and
// cancelled invoices out of reach.
func (s *InvoiceStore) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'overdue', updated_at = now()
		WHERE status = 'sent' AND due_date < $1`, pgTime(now))
	if err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, "invoice.mark_overdue", "sweep update failed")
	}
	return tag.RowsAffected(), nil
}

// ListDueBetween returns invoices in the given statuses due in [from, to).
func (s *InvoiceStore) ListDueBetween(ctx context.Context, from, to time.Time, statuses []domain.InvoiceStatus) ([]domain.Invoice, error) {
	states := make([]string, len(statuses))
	for i, st := range statuses {
		states[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE status = ANY($3) AND due_date >= $1 AND due_date < $2
		ORDER BY due_date`, pgTime(from), pgTime(to), states)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "invoice.list_due", "query failed")
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "invoice.list_due", "scan failed")
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// MarkPaid transitions the invoice to paid with its payment binding.
// The guard only lets sent and overdue invoices through, so a cancelled or
// already-paid invoice can never be re-bound to a different payment.
func (s *InvoiceStore) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, gatewayRef string, paidAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = 'paid', paid_date = $2, payment_id = $3, gateway_reference = $4, updated_at = now()
		WHERE id = $1 AND status IN ('sent', 'overdue')`,
		pgUUID(id), pgTime(paidAt), paymentID, pgText(gatewayRef))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "invoice.mark_paid", "update failed")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: distinguish missing from terminal for the caller.
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM invoices WHERE id = $1`, pgUUID(id)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrInvoiceNotFound
	}
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "invoice.mark_paid", "status lookup failed")
	}
	if domain.InvoiceStatus(status) == domain.InvoicePaid {
		return domain.ErrInvoiceAlreadyPaid
	}
	return domain.ErrInvalidTransition
}

// SetPDFURL writes the rendered receipt URL back onto the invoice.
func (s *InvoiceStore) SetPDFURL(ctx context.Context, id uuid.UUID, url string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE invoices SET pdf_url = $2, updated_at = now() WHERE id = $1`,
		pgUUID(id), url)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "invoice.set_pdf_url", "update failed")
	}
	return nil
}
