package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// InviteStore implements domain.InviteStore using PostgreSQL.
type InviteStore struct {
	pool *pgxpool.Pool
}

var _ domain.InviteStore = (*InviteStore)(nil)

// NewInviteStore creates a new InviteStore instance.
func NewInviteStore(pool *pgxpool.Pool) *InviteStore {
	return &InviteStore{pool: pool}
}

// CreateInvite inserts a new invite token.
func (s *InviteStore) CreateInvite(ctx context.Context, inv *domain.Invite) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invites (token, landlord_id, property_id, unit_id, tenant_email,
			rent_amount, currency, billing_cycle, start_date, redeemed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)`,
		inv.Token, inv.LandlordID, inv.PropertyID, inv.UnitID, inv.TenantEmail,
		pgNumeric(inv.RentAmount), inv.Currency, string(inv.BillingCycle), pgTime(inv.StartDate))
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "invite.create", "failed to insert invite")
	}
	return nil
}

// RedeemInvite marks the token redeemed and returns its payload in a single
// guarded update, so two tenants racing on the same token produce exactly one
// tenancy. When the guard misses a follow-up read distinguishes "unknown
// token" from "already redeemed".
func (s *InviteStore) RedeemInvite(ctx context.Context, token string) (*domain.Invite, error) {
	inv := &domain.Invite{Redeemed: true}
	var (
		rentAmount pgtype.Numeric
		startDate  pgtype.Timestamptz
		createdAt  pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE invites
		SET redeemed = true
		WHERE token = $1 AND NOT redeemed
		RETURNING token, landlord_id, property_id, unit_id, tenant_email,
			rent_amount, currency, billing_cycle, start_date, created_at`, token).
		Scan(&inv.Token, &inv.LandlordID, &inv.PropertyID, &inv.UnitID, &inv.TenantEmail,
			&rentAmount, &inv.Currency, &inv.BillingCycle, &startDate, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := s.pool.QueryRow(ctx, `SELECT true FROM invites WHERE token = $1`, token).Scan(&exists); qerr == nil {
			return nil, domain.ErrInviteRedeemed
		}
		return nil, domain.ErrInviteNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "invite.redeem", "redeem query failed")
	}
	inv.RentAmount, err = fromPgNumeric(rentAmount)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "invite.redeem", "invalid rent amount")
	}
	inv.StartDate = startDate.Time
	inv.CreatedAt = createdAt.Time
	return inv, nil
}
