package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// pgUUID converts a uuid.UUID to its pgtype representation.
func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// fromPgUUID converts a pgtype UUID back. Invalid (NULL) maps to the zero UUID.
func fromPgUUID(v pgtype.UUID) uuid.UUID {
	if !v.Valid {
		return uuid.Nil
	}
	return uuid.UUID(v.Bytes)
}

// pgText maps a Go string to a nullable text column: empty becomes NULL.
func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// textOrEmpty maps a nullable text column back to a plain string.
func textOrEmpty(v pgtype.Text) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// pgTime wraps a time.Time as a timestamptz value.
func pgTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

// pgTimePtr wraps an optional time.
func pgTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// timePtr converts a nullable timestamptz back to an optional time.
func timePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// pgNumeric converts a decimal amount to a NUMERIC value without going
// through floats.
func pgNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// fromPgNumeric converts a NUMERIC column back to a decimal amount.
func fromPgNumeric(v pgtype.Numeric) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Zero, nil
	}
	if v.NaN || v.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("non-finite numeric value")
	}
	return decimal.NewFromBigInt(v.Int, v.Exp), nil
}
