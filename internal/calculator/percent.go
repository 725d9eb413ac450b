package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// percentPlaces is the precision split percentages are stored with.
const percentPlaces = 4

// EqualPercents returns n percentages that sum to exactly 100.
// The rounding residue goes to the first entry.
func EqualPercents(n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	each := Hundred.DivRound(decimal.NewFromInt(int64(n)), percentPlaces)
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = each
	}
	residue := Hundred.Sub(each.Mul(decimal.NewFromInt(int64(n))))
	out[0] = out[0].Add(residue)
	return out
}

// RoundPercent rounds p to the stored percentage precision.
func RoundPercent(p decimal.Decimal) decimal.Decimal {
	return p.Round(percentPlaces)
}

// ValidatePercents checks that every percentage is within [0, 100] and
// that together they sum to 100 within Epsilon.
func ValidatePercents(percents []decimal.Decimal) error {
	total := decimal.Zero
	for _, p := range percents {
		if p.IsNegative() || p.GreaterThan(Hundred) {
			return fmt.Errorf("%w: split percentage %s is outside 0-100", ErrInvalidSplit, p.String())
		}
		total = total.Add(p)
	}
	if !ApproxEqual(total, Hundred) {
		return fmt.Errorf("%w: split percentages must sum to 100%%, got %s%%", ErrInvalidSplit, total.String())
	}
	return nil
}
