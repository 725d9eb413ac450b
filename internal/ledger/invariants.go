package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitit/internal/calculator"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

// CheckInvariants recomputes a group's balances from its expenses and
// compares them with the stored values. It returns ErrInvalidState
// describing the first violation found.
func CheckInvariants(ctx context.Context, tx storage.Tx, groupID string) error {
	group, err := tx.GetGroup(ctx, groupID)
	if err != nil {
		return NotFound(err, "group not found")
	}
	members, err := tx.ListMemberships(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	expenses, err := tx.ListExpenses(ctx, group.ID, "")
	if err != nil {
		return fmt.Errorf("failed to list expenses: %w", err)
	}

	outstanding := decimal.Zero
	expected := make(map[string]decimal.Decimal, len(members))
	for _, e := range expenses {
		if err := checkExpense(e); err != nil {
			return err
		}
		if e.Cleared {
			continue
		}
		outstanding = outstanding.Add(e.Amount)
		expected[e.PaidBy] = expected[e.PaidBy].Add(e.Amount)
		for _, s := range e.Splits {
			expected[s.UserID] = expected[s.UserID].Sub(s.Amount)
		}
	}

	if !group.TotalBalance.Equal(outstanding) {
		return fmt.Errorf("%w: group total balance is %s, outstanding expenses sum to %s",
			ErrInvalidState, group.TotalBalance.StringFixed(2), outstanding.StringFixed(2))
	}

	var percents []decimal.Decimal
	anyPercent := false
	for _, m := range members {
		if want := expected[m.UserID]; !m.Balance.Equal(want) {
			return fmt.Errorf("%w: member %s has balance %s, expected %s",
				ErrInvalidState, m.UserID, m.Balance.StringFixed(2), want.StringFixed(2))
		}
		delete(expected, m.UserID)
		if m.SplitPercent.Valid {
			anyPercent = true
			percents = append(percents, m.SplitPercent.Decimal)
		}
	}
	for userID, amount := range expected {
		if !amount.IsZero() {
			return fmt.Errorf("%w: %s has expense activity but no membership", ErrInvalidState, userID)
		}
	}

	if anyPercent {
		if err := calculator.ValidatePercents(percents); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}
	return nil
}

func checkExpense(e *models.Expense) error {
	total := decimal.Zero
	for _, s := range e.Splits {
		total = total.Add(s.Amount)
	}
	if !calculator.ApproxEqual(total, e.Amount) {
		return fmt.Errorf("%w: expense %s splits sum to %s, amount is %s",
			ErrInvalidState, e.ID, total.StringFixed(2), e.Amount.StringFixed(2))
	}

	settled := e.Status == models.ExpenseSettled
	if settled != e.AllSettled() {
		return fmt.Errorf("%w: expense %s is %s but its splits disagree", ErrInvalidState, e.ID, e.Status)
	}
	if e.Cleared && !settled {
		return fmt.Errorf("%w: expense %s is cleared but not settled", ErrInvalidState, e.ID)
	}
	return nil
}
