package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MemberBalance is one member's running balance in a group.
type MemberBalance struct {
	UserID  string
	Balance decimal.Decimal // Positive = owed money, Negative = owes money
}

// Transfer is a suggested payment from one member to another.
type Transfer struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount decimal.Decimal
}

// SimplifyDebts suggests a small set of transfers that would bring every
// balance back to zero.
//
// Algorithm:
//   - Round balances to cents
//   - Split members into debtors (negative balance) and creditors (positive)
//   - Sort both by magnitude, largest first
//   - Greedily match the current debtor with the current creditor, moving
//     the smaller of the two outstanding amounts
func SimplifyDebts(balances []MemberBalance) []Transfer {
	var debtors, creditors []MemberBalance
	for _, b := range balances {
		balance := RoundCents(b.Balance)
		switch {
		case balance.IsPositive():
			creditors = append(creditors, MemberBalance{UserID: b.UserID, Balance: balance})
		case balance.IsNegative():
			debtors = append(debtors, MemberBalance{UserID: b.UserID, Balance: balance.Neg()})
		}
	}

	byMagnitude := func(s []MemberBalance) {
		sort.SliceStable(s, func(i, j int) bool {
			if !s[i].Balance.Equal(s[j].Balance) {
				return s[i].Balance.GreaterThan(s[j].Balance)
			}
			return s[i].UserID < s[j].UserID
		})
	}
	byMagnitude(debtors)
	byMagnitude(creditors)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		owed := debtors[i].Balance
		due := creditors[j].Balance

		amount := decimal.Min(owed, due)
		transfers = append(transfers, Transfer{
			From:   debtors[i].UserID,
			To:     creditors[j].UserID,
			Amount: amount,
		})

		debtors[i].Balance = owed.Sub(amount)
		creditors[j].Balance = due.Sub(amount)

		// Move on once a side is fully settled
		if debtors[i].Balance.IsZero() {
			i++
		}
		if creditors[j].Balance.IsZero() {
			j++
		}
	}

	return transfers
}
