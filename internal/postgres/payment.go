package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// PaymentStore implements domain.PaymentStore using PostgreSQL.
type PaymentStore struct {
	pool *pgxpool.Pool
}

var _ domain.PaymentStore = (*PaymentStore)(nil)

// NewPaymentStore creates a new PaymentStore instance.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

const paymentColumns = `payment_id, invoice_id, tenant_id, landlord_id, property_id,
	unit_id, amount, currency, status, gateway, gateway_reference, paid_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p          domain.Payment
		invoiceID  pgtype.Text
		tenantID   pgtype.Text
		landlordID pgtype.Text
		propertyID pgtype.Text
		unitID     pgtype.Text
		amount     pgtype.Numeric
		paidAt     pgtype.Timestamptz
	)

	err := row.Scan(&p.PaymentID, &invoiceID, &tenantID, &landlordID, &propertyID,
		&unitID, &amount, &p.Currency, &p.Status, &p.Gateway, &p.GatewayReference, &paidAt)
	if err != nil {
		return nil, err
	}

	p.InvoiceID = textOrEmpty(invoiceID)
	p.TenantID = textOrEmpty(tenantID)
	p.LandlordID = textOrEmpty(landlordID)
	p.PropertyID = textOrEmpty(propertyID)
	p.UnitID = textOrEmpty(unitID)
	p.Amount, err = fromPgNumeric(amount)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", p.PaymentID, err)
	}
	p.PaidAt = paidAt.Time
	return &p, nil
}

// CreatePayment durably records the payment. The global record and the
// per-property denormalized copy are committed together so the two read
// paths can never disagree. The unique (gateway, gateway_reference) index
// is the backstop against duplicate webhook deliveries.
func (s *PaymentStore) CreatePayment(ctx context.Context, p *domain.Payment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "payment.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO payments (payment_id, invoice_id, tenant_id, landlord_id, property_id,
			unit_id, amount, currency, status, gateway, gateway_reference, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (gateway, gateway_reference) DO NOTHING`,
		p.PaymentID, pgText(p.InvoiceID), pgText(p.TenantID), pgText(p.LandlordID),
		pgText(p.PropertyID), pgText(p.UnitID), pgNumeric(p.Amount), p.Currency,
		p.Status, string(p.Gateway), p.GatewayReference, pgTime(p.PaidAt))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "payment.create", "failed to insert payment")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateReference
	}

	// Denormalized per-property copy serving the landlord dashboard read path.
	if p.LandlordID != "" && p.PropertyID != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO property_payments (payment_id, landlord_id, property_id, invoice_id,
				tenant_id, unit_id, amount, currency, status, gateway, gateway_reference, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			p.PaymentID, p.LandlordID, p.PropertyID, pgText(p.InvoiceID), pgText(p.TenantID),
			pgText(p.UnitID), pgNumeric(p.Amount), p.Currency, p.Status,
			string(p.Gateway), p.GatewayReference, pgTime(p.PaidAt))
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, "payment.create", "failed to insert property payment copy")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "payment.create", "failed to commit payment")
	}
	return nil
}

// GetPayment retrieves a payment by its generated ID.
func (s *PaymentStore) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_id = $1`, paymentID)

	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "payment.get", "failed to load payment")
	}
	return p, nil
}

// GetPaymentByReference looks a payment up by its gateway transaction reference.
func (s *PaymentStore) GetPaymentByReference(ctx context.Context, gateway domain.Gateway, reference string) (*domain.Payment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway = $1 AND gateway_reference = $2`,
		string(gateway), reference)

	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "payment.get_by_reference", "failed to load payment")
	}
	return p, nil
}

// CreateTenantReceipt writes the tenant-facing receipt record. Keyed by
// payment ID, so a replayed settlement overwrites rather than duplicates.
func (s *PaymentStore) CreateTenantReceipt(ctx context.Context, p *domain.Payment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_receipts (payment_id, tenant_id, invoice_id, landlord_id,
			property_id, unit_id, amount, currency, gateway, gateway_reference, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (payment_id) DO NOTHING`,
		p.PaymentID, p.TenantID, pgText(p.InvoiceID), pgText(p.LandlordID),
		pgText(p.PropertyID), pgText(p.UnitID), pgNumeric(p.Amount), p.Currency,
		string(p.Gateway), p.GatewayReference, pgTime(p.PaidAt))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "payment.tenant_receipt", "failed to insert receipt")
	}
	return nil
}
