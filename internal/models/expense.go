package models

import "github.com/shopspring/decimal"

// SplitType selects how an expense's amount is divided.
type SplitType string

const (
	// SplitDefault derives splits from the group's configured percentages
	// (or an equal split while none are configured).
	SplitDefault SplitType = "default"

	// SplitCustom uses amounts supplied by the expense creator.
	SplitCustom SplitType = "custom"
)

// Valid reports whether t is a known split type.
func (t SplitType) Valid() bool {
	return t == SplitDefault || t == SplitCustom
}

// ExpenseStatus is the lifecycle state of an expense.
type ExpenseStatus string

const (
	ExpenseActive  ExpenseStatus = "active"
	ExpenseSettled ExpenseStatus = "settled"
)

// Expense represents a payment made by one member on behalf of the group.
// An expense is created together with its splits and owns them.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	GroupID     string
	Description string

	// Amount is the total paid. Always positive.
	Amount decimal.Decimal

	// Date is the Unix timestamp of the expense.
	Date int64

	// PaidBy is the user ID of the payer.
	PaidBy string

	SplitType SplitType

	// Note is optional free text.
	Note string

	// Status is settled iff every split is settled.
	Status ExpenseStatus

	// Cleared is set when a group settlement reset balances while this
	// expense was outstanding. A cleared expense no longer contributes to
	// member balances or the group's TotalBalance.
	Cleared bool

	Splits []Split

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// Split is one member's portion of an expense.
type Split struct {
	ExpenseID string
	UserID    string

	// Amount is what this member owes for the expense.
	Amount decimal.Decimal

	Settled bool
}

// SplitFor returns the split belonging to userID, or nil.
func (e *Expense) SplitFor(userID string) *Split {
	for i := range e.Splits {
		if e.Splits[i].UserID == userID {
			return &e.Splits[i]
		}
	}
	return nil
}

// AllSettled reports whether every split of the expense is settled.
func (e *Expense) AllSettled() bool {
	for _, s := range e.Splits {
		if !s.Settled {
			return false
		}
	}
	return true
}
