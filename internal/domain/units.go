package domain

import (
	"github.com/shopspring/decimal"
)

// FormatUnits renders a base-unit amount as a decimal string with the given
// number of fractional digits, e.g. 1500000000 with 9 decimals is "1.5".
func FormatUnits(amount uint64, decimals int32) string {
	return decimal.NewFromUint64(amount).Shift(-decimals).String()
}

// ParseUnits converts a human amount such as "0.25" into base units. Amounts
// with more fractional digits than decimals, negative amounts and amounts
// beyond 64 bits are rejected.
func ParseUnits(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return UnitsFromDecimal(d.Shift(decimals))
}

// UnitsFromDecimal narrows an integral, non-negative decimal to uint64. It is
// also used to read NUMERIC(20,0) columns.
func UnitsFromDecimal(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	bi := d.BigInt()
	if !bi.IsUint64() {
		return 0, ErrMathOverflow
	}
	return bi.Uint64(), nil
}

// UnitsToDecimal widens a base-unit amount for NUMERIC columns.
func UnitsToDecimal(amount uint64) decimal.Decimal {
	return decimal.NewFromUint64(amount)
}
