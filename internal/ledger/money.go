package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// The ledger holds money as int64 minor units (two decimal places) and
// commission percentages as int64 hundredths of a percent. Decimals only
// exist at the boundary and inside the commission computation, where
// shopspring/decimal keeps the arithmetic exact.

var (
	hundred       = decimal.NewFromInt(100)
	maxPercentage = decimal.NewFromInt(50)
)

// MinorUnits converts a boundary decimal to minor units, rejecting anything
// that does not land exactly on the minor unit.
func MinorUnits(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-minor-unit precision: %w", d, ErrInvalidAmount)
	}
	big := scaled.BigInt()
	if !big.IsInt64() {
		return 0, fmt.Errorf("amount %s out of range: %w", d, ErrInvalidAmount)
	}
	return big.Int64(), nil
}

// PercentageHundredths validates a commission percentage and converts it to
// hundredths of a percent.
func PercentageHundredths(p decimal.Decimal) (int64, error) {
	if p.IsNegative() || p.GreaterThan(maxPercentage) {
		return 0, fmt.Errorf("percentage %s: %w", p, ErrInvalidCommissionRange)
	}
	scaled := p.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("percentage %s finer than 0.01%%: %w", p, ErrInvalidCommissionRange)
	}
	return scaled.IntPart(), nil
}

// CommissionFor computes round-half-up(amount × percentage / 100) in minor
// units. Rounding happens exactly once per transfer, so commission + net
// always reconstructs the original amount.
func CommissionFor(amount, percentageHundredths int64) int64 {
	if amount <= 0 || percentageHundredths <= 0 {
		return 0
	}
	// amount × (pctHundredths / 10000), rounded half-up at scale 0.
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative operands we have here.
	c := decimal.NewFromInt(amount).
		Mul(decimal.New(percentageHundredths, -4)).
		Round(0)
	return c.IntPart()
}
