package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// UnitStore implements domain.UnitStore using PostgreSQL.
type UnitStore struct {
	pool *pgxpool.Pool
}

var _ domain.UnitStore = (*UnitStore)(nil)

// NewUnitStore creates a new UnitStore instance.
func NewUnitStore(pool *pgxpool.Pool) *UnitStore {
	return &UnitStore{pool: pool}
}

// RecordUnitPayment stamps the unit with the latest settled payment. The
// update keys on the full (landlord, property, unit) path so a mistyped
// identity from the gateway can never touch another landlord's unit.
func (s *UnitStore) RecordUnitPayment(ctx context.Context, landlordID, propertyID, unitID, paymentID string, amount decimal.Decimal, paidAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE units
		SET rent_status = 'paid',
			last_payment_id = $4,
			last_payment_amount = $5,
			last_payment_at = $6
		WHERE landlord_id = $1 AND property_id = $2 AND id = $3`,
		landlordID, propertyID, unitID, paymentID, pgNumeric(amount), pgTime(paidAt))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "unit.record_payment", "update failed")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnitNotFound
	}
	return nil
}
