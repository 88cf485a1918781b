package billing

import (
	"github.com/shopspring/decimal"
)

// minorUnitFactor converts between major units and the two-decimal minor
// units (cents, kobo, pesewas) both supported gateways charge in.
var minorUnitFactor = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to the gateway's integer
// minor-unit convention. Decimal arithmetic avoids the float artifacts a
// plain multiply-by-100 would introduce for amounts like 19.99.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitFactor).Round(0).IntPart()
}

// FromMinorUnits converts a gateway minor-unit amount back to major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorUnitFactor)
}
