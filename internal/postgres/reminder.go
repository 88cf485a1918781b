package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thorvaldsen/leasehold/internal/domain"
)

// ReminderStore implements domain.ReminderStore using PostgreSQL.
type ReminderStore struct {
	pool *pgxpool.Pool
}

var _ domain.ReminderStore = (*ReminderStore)(nil)

// NewReminderStore creates a new ReminderStore instance.
func NewReminderStore(pool *pgxpool.Pool) *ReminderStore {
	return &ReminderStore{pool: pool}
}

// UpsertReminder inserts the reminder unless one already exists for the same
// (owner, invoice, days-before) triple. The unique index turns the source's
// racy check-then-create into an exactly-once insert.
func (s *ReminderStore) UpsertReminder(ctx context.Context, r *domain.Reminder) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reminders (id, owner_id, recipient_role, title, property_id, unit_id,
			invoice_id, tenancy_id, due_date, amount, currency, days_before, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (owner_id, invoice_id, days_before) DO NOTHING`,
		pgUUID(r.ID), r.OwnerID, string(r.RecipientRole), r.Title, pgText(r.PropertyID),
		pgText(r.UnitID), pgUUID(r.InvoiceID), pgUUID(r.TenancyID), pgTime(r.DueDate),
		pgNumeric(r.Amount), r.Currency, r.DaysBefore, string(r.Status))
	if err != nil {
		return false, domain.WrapError(err, domain.EINTERNAL, "reminder.upsert", "failed to insert reminder")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRemindersPaid transitions the owner's unpaid reminders for the invoice
// to paid.
func (s *ReminderStore) MarkRemindersPaid(ctx context.Context, ownerID string, invoiceID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reminders
		SET status = 'paid'
		WHERE owner_id = $1 AND invoice_id = $2 AND status <> 'paid'`,
		ownerID, pgUUID(invoiceID))
	if err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, "reminder.mark_paid", "update failed")
	}
	return tag.RowsAffected(), nil
}

// ListReminders returns an owner's reminders, most imminent first.
func (s *ReminderStore) ListReminders(ctx context.Context, ownerID string, limit int32) ([]domain.Reminder, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, recipient_role, title, property_id, unit_id, invoice_id,
			tenancy_id, due_date, amount, currency, days_before, status, created_at
		FROM reminders
		WHERE owner_id = $1
		ORDER BY due_date
		LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "reminder.list", "query failed")
	}
	defer rows.Close()

	var out []domain.Reminder
	for rows.Next() {
		var (
			r          domain.Reminder
			id         pgtype.UUID
			propertyID pgtype.Text
			unitID     pgtype.Text
			invoiceID  pgtype.UUID
			tenancyID  pgtype.UUID
			dueDate    pgtype.Timestamptz
			amount     pgtype.Numeric
			createdAt  pgtype.Timestamptz
		)
		err := rows.Scan(&id, &r.OwnerID, &r.RecipientRole, &r.Title, &propertyID, &unitID,
			&invoiceID, &tenancyID, &dueDate, &amount, &r.Currency, &r.DaysBefore,
			&r.Status, &createdAt)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "reminder.list", "scan failed")
		}
		r.ID = fromPgUUID(id)
		r.PropertyID = textOrEmpty(propertyID)
		r.UnitID = textOrEmpty(unitID)
		r.InvoiceID = fromPgUUID(invoiceID)
		r.TenancyID = fromPgUUID(tenancyID)
		r.DueDate = dueDate.Time
		r.Amount, err = fromPgNumeric(amount)
		if err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		r.CreatedAt = createdAt.Time
		out = append(out, r)
	}
	return out, rows.Err()
}
