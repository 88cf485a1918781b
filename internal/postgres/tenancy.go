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

// TenancyStore implements domain.TenancyStore using PostgreSQL.
type TenancyStore struct {
	pool *pgxpool.Pool
}

// Compile-time check to ensure TenancyStore implements domain.TenancyStore.
var _ domain.TenancyStore = (*TenancyStore)(nil)

// NewTenancyStore creates a new TenancyStore instance.
func NewTenancyStore(pool *pgxpool.Pool) *TenancyStore {
	return &TenancyStore{pool: pool}
}

const tenancyColumns = `id, tenant_id, landlord_id, property_id, unit_id, rent_amount,
	currency, billing_cycle, status, invoice_scheduling_enabled,
	next_invoice_date, start_date, end_date, created_at, updated_at`

func scanTenancy(row pgx.Row) (*domain.Tenancy, error) {
	var (
		t          domain.Tenancy
		id         pgtype.UUID
		tenantID   pgtype.Text
		unitID     pgtype.Text
		rent       pgtype.Numeric
		endDate    pgtype.Timestamptz
		nextDate   pgtype.Timestamptz
		startDate  pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)

	err := row.Scan(&id, &tenantID, &t.LandlordID, &t.PropertyID, &unitID, &rent,
		&t.Currency, &t.BillingCycle, &t.Status, &t.InvoiceSchedulingEnabled,
		&nextDate, &startDate, &endDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.ID = fromPgUUID(id)
	t.TenantID = textOrEmpty(tenantID)
	t.UnitID = textOrEmpty(unitID)
	t.RentAmount, err = fromPgNumeric(rent)
	if err != nil {
		return nil, fmt.Errorf("tenancy %s: %w", t.ID, err)
	}
	t.NextInvoiceDate = nextDate.Time
	t.StartDate = startDate.Time
	t.EndDate = timePtr(endDate)
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = updatedAt.Time
	return &t, nil
}

// CreateTenancy inserts a new tenancy.
func (s *TenancyStore) CreateTenancy(ctx context.Context, t *domain.Tenancy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenancies (id, tenant_id, landlord_id, property_id, unit_id, rent_amount,
			currency, billing_cycle, status, invoice_scheduling_enabled,
			next_invoice_date, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		pgUUID(t.ID), pgText(t.TenantID), t.LandlordID, t.PropertyID, pgText(t.UnitID),
		pgNumeric(t.RentAmount), t.Currency, string(t.BillingCycle), string(t.Status),
		t.InvoiceSchedulingEnabled, pgTime(t.NextInvoiceDate), pgTime(t.StartDate),
		pgTimePtr(t.EndDate))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "tenancy.create", "failed to insert tenancy")
	}
	return nil
}

// GetTenancy retrieves a tenancy by ID.
func (s *TenancyStore) GetTenancy(ctx context.Context, id uuid.UUID) (*domain.Tenancy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenancyColumns+` FROM tenancies WHERE id = $1`, pgUUID(id))

	t, err := scanTenancy(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTenancyNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "tenancy.get", "failed to load tenancy")
	}
	return t, nil
}

// ListBillable returns active, scheduling-enabled tenancies due at or before asOf.
func (s *TenancyStore) ListBillable(ctx context.Context, asOf time.Time) ([]domain.Tenancy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tenancyColumns+`
		FROM tenancies
		WHERE status = 'active'
		  AND invoice_scheduling_enabled
		  AND next_invoice_date <= $1
		ORDER BY next_invoice_date`, pgTime(asOf))
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "tenancy.list_billable", "query failed")
	}
	defer rows.Close()

	var out []domain.Tenancy
	for rows.Next() {
		t, err := scanTenancy(rows)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "tenancy.list_billable", "scan failed")
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CreateInvoiceAndAdvance atomically inserts the invoice and advances the
// tenancy's next invoice date. The advance compares against the previous
// date; if a concurrent run already moved it, the whole transaction rolls
// back and ErrScheduleConflict is returned.
func (s *TenancyStore) CreateInvoiceAndAdvance(ctx context.Context, inv *domain.Invoice, tenancyID uuid.UUID, prev, next time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "tenancy.bill", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE tenancies
		SET next_invoice_date = $3, updated_at = now()
		WHERE id = $1 AND next_invoice_date = $2 AND status = 'active'`,
		pgUUID(tenancyID), pgTime(prev), pgTime(next))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "tenancy.bill", "failed to advance schedule")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, tenancy_id, tenant_id, landlord_id,
			property_id, unit_id, amount, currency, billing_cycle, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgUUID(inv.ID), inv.InvoiceNumber, pgUUID(inv.TenancyID), pgText(inv.TenantID),
		inv.LandlordID, inv.PropertyID, pgText(inv.UnitID), pgNumeric(inv.Amount),
		inv.Currency, string(inv.BillingCycle), string(inv.Status), pgTime(inv.DueDate))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "tenancy.bill", "failed to insert invoice")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "tenancy.bill", "failed to commit billing transaction")
	}
	return nil
}

// CloseTenancy transitions the tenancy to closed and cancels its open
// invoices in one transaction. A tenancy that is already closed is left
// untouched and reported with closedNow=false.
func (s *TenancyStore) CloseTenancy(ctx context.Context, id uuid.UUID, at time.Time) (bool, int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, 0, domain.WrapError(err, domain.EINTERNAL, "tenancy.close", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM tenancies WHERE id = $1 FOR UPDATE`, pgUUID(id)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, domain.ErrTenancyNotFound
	}
	if err != nil {
		return false, 0, domain.WrapError(err, domain.EINTERNAL, "tenancy.close", "failed to load tenancy")
	}

	if domain.TenancyStatus(status) == domain.TenancyClosed {
		// Re-closing must not re-fire the cancellation cascade.
		return false, 0, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE tenancies
		SET status = 'closed', end_date = $2, invoice_scheduling_enabled = false, updated_at = now()
		WHERE id = $1`,
		pgUUID(id), pgTime(at))
	if err != nil {
		return false, 0, domain.WrapError(err, domain.EINTERNAL, "tenancy.close", "failed to close tenancy")
	}

	tag, err := tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'cancelled', updated_at = now()
		WHERE tenancy_id = $1 AND status IN ('draft', 'sent')`,
		pgUUID(id))
	if err != nil {
		return false, 0, domain.WrapError(err, domain.EINTERNAL, "tenancy.close", "failed to cancel open invoices")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, domain.WrapError(err, domain.EINTERNAL, "tenancy.close", "failed to commit close transaction")
	}
	return true, tag.RowsAffected(), nil
}
