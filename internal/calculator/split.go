// Package calculator computes per-member owed amounts for expenses.
//
// Everything here is pure: callers pass the membership snapshot they read
// inside their transaction, and nothing is looked up from storage.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidSplit reports split amounts or percentages that do not add up.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrInvalidState reports a group shape that should be unreachable,
	// such as a group without members.
	ErrInvalidState = errors.New("invalid state")
)

var (
	// Epsilon is the tolerance for comparing money amounts and percentages.
	Epsilon = decimal.New(1, -2)

	// Hundred is the total of a group's split percentages.
	Hundred = decimal.NewFromInt(100)

	cent = decimal.New(1, -2)
)

// Member is the part of a membership the calculator needs.
type Member struct {
	UserID       string
	SplitPercent decimal.NullDecimal
}

// Share is the amount one member owes for an expense.
type Share struct {
	UserID string
	Amount decimal.Decimal
}

// ApproxEqual reports whether a and b differ by at most Epsilon.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}

// RoundCents rounds d to cent precision.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Sum adds up the amounts of shares.
func Sum(shares []Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

// DefaultSplits divides amount among members using the group's default policy.
//
// Until the group has custom ratios every member pays an equal share.
// With custom ratios each member pays amount × splitPercent / 100; every
// member must then have a percentage and the percentages must sum to 100.
// Shares are in cents and always add up to amount exactly: leftover cents
// from rounding are handed out one at a time in member order.
func DefaultSplits(amount decimal.Decimal, members []Member, customRatio bool) ([]Share, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: group has no members to split between", ErrInvalidState)
	}
	amount = RoundCents(amount)

	raw := make([]decimal.Decimal, len(members))
	if !customRatio {
		each := amount.Div(decimal.NewFromInt(int64(len(members))))
		for i := range raw {
			raw[i] = each
		}
	} else {
		percents := make([]decimal.Decimal, len(members))
		for i, m := range members {
			if !m.SplitPercent.Valid {
				return nil, fmt.Errorf("%w: member %s has no split percentage", ErrInvalidSplit, m.UserID)
			}
			percents[i] = m.SplitPercent.Decimal
		}
		if err := ValidatePercents(percents); err != nil {
			return nil, err
		}
		for i, p := range percents {
			raw[i] = amount.Mul(p).Div(Hundred)
		}
	}

	amounts := allocate(amount, raw)
	shares := make([]Share, len(members))
	for i, m := range members {
		shares[i] = Share{UserID: m.UserID, Amount: amounts[i]}
	}
	return shares, nil
}

// CustomSplits validates explicitly supplied shares against amount.
// Every share must name a current member at most once, no amount may be
// negative, and the shares must sum to amount within Epsilon.
func CustomSplits(amount decimal.Decimal, entries []Share, members []Member) ([]Share, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: custom split needs at least one entry", ErrInvalidSplit)
	}

	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m.UserID] = true
	}

	seen := make(map[string]bool, len(entries))
	shares := make([]Share, 0, len(entries))
	for _, e := range entries {
		if !known[e.UserID] {
			return nil, fmt.Errorf("%w: %s is not a member of this group", ErrInvalidSplit, e.UserID)
		}
		if seen[e.UserID] {
			return nil, fmt.Errorf("%w: %s appears more than once", ErrInvalidSplit, e.UserID)
		}
		seen[e.UserID] = true
		if e.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: split amount for %s is negative", ErrInvalidSplit, e.UserID)
		}
		shares = append(shares, Share{UserID: e.UserID, Amount: RoundCents(e.Amount)})
	}

	if total := Sum(shares); !ApproxEqual(total, amount) {
		return nil, fmt.Errorf("%w: split amounts sum to %s, expense amount is %s",
			ErrInvalidSplit, total.StringFixed(2), amount.StringFixed(2))
	}
	return shares, nil
}

// allocate rounds raw down to cents and spreads the remainder (a whole
// number of cents) over the entries with a positive raw share.
func allocate(amount decimal.Decimal, raw []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(raw))
	total := decimal.Zero
	var eligible []int
	for i, r := range raw {
		out[i] = r.RoundFloor(2)
		total = total.Add(out[i])
		if r.IsPositive() {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		for i := range raw {
			eligible = append(eligible, i)
		}
	}

	leftover := amount.Sub(total)
	step := cent
	if leftover.IsNegative() {
		step = cent.Neg()
	}
	for i := 0; !leftover.IsZero(); i = (i + 1) % len(eligible) {
		idx := eligible[i]
		out[idx] = out[idx].Add(step)
		leftover = leftover.Sub(step)
	}
	return out
}
