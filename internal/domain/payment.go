package domain

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment-related domain errors.
var (
	ErrPaymentNotFound   = &Error{Code: ENOTFOUND, Message: "Payment not found"}
	ErrDuplicateReference = &Error{Code: ECONFLICT, Message: "Payment with this gateway reference already recorded"}
)

// Gateway identifies the payment processor a transaction settled through.
type Gateway string

const (
	GatewayStripe   Gateway = "stripe"
	GatewayPaystack Gateway = "paystack"
)

// Valid reports whether g is a supported gateway.
func (g Gateway) Valid() bool {
	return g == GatewayStripe || g == GatewayPaystack
}

// Payment is an immutable settlement record. Created once, never mutated.
// GatewayReference is the dedup key: at most one payment exists per
// successful gateway transaction.
type Payment struct {
	PaymentID        string
	InvoiceID        string
	TenantID         string
	LandlordID       string
	PropertyID       string
	UnitID           string
	Amount           decimal.Decimal
	Currency         string
	Status           string // always "paid"
	Gateway          Gateway
	GatewayReference string
	PaidAt           time.Time
}

const paymentIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewPaymentID generates a collision-resistant payment identifier:
// PAY-<base36 unix millis>-<4 random alphanumerics>, uppercased.
func NewPaymentID(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(paymentIDAlphabet))))
		suffix[i] = paymentIDAlphabet[n.Int64()]
	}
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "PAY-" + ts + "-" + string(suffix)
}

// PaymentStore persists settlement records.
type PaymentStore interface {
	// CreatePayment durably records the payment. The global record and the
	// per-property denormalized copy are written in one transaction so the
	// two can never disagree. Returns ErrDuplicateReference if a payment
	// with the same (gateway, gateway reference) already exists.
	CreatePayment(ctx context.Context, p *Payment) error

	// GetPayment retrieves a payment by its generated ID.
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)

	// GetPaymentByReference looks a payment up by its gateway transaction
	// reference. Returns ErrPaymentNotFound when no such payment exists.
	GetPaymentByReference(ctx context.Context, gateway Gateway, reference string) (*Payment, error)

	// CreateTenantReceipt writes the tenant-facing receipt record keyed by
	// payment ID under the tenant's own namespace.
	CreateTenantReceipt(ctx context.Context, p *Payment) error
}

// UnitStore updates a unit's rent standing after settlement.
type UnitStore interface {
	// RecordUnitPayment stamps the unit with the latest payment. Returns
	// ErrUnitNotFound when the unit does not exist; settlement treats that
	// as a skippable precondition failure.
	RecordUnitPayment(ctx context.Context, landlordID, propertyID, unitID, paymentID string, amount decimal.Decimal, paidAt time.Time) error
}

// ErrUnitNotFound is returned when a settlement references an unknown unit.
var ErrUnitNotFound = &Error{Code: ENOTFOUND, Message: "Unit not found"}
