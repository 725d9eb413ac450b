// Package ledger keeps member balances and group totals consistent with
// the expenses recorded in a group.
//
// Every function operates on a storage.Tx and is meant to run inside the
// caller's transaction, after access checks have passed. A returned error
// must abort the transaction: partial patches are never committed.
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitit/internal/calculator"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

// ApplyCreate records a new expense with its splits and applies its
// balance effect: every split member is debited their share, the payer
// is credited the full amount and the group total grows by the amount.
//
// The expense's splits must already be computed; the caller is the payer.
func ApplyCreate(ctx context.Context, tx storage.Tx, expense *models.Expense) error {
	if !expense.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	}
	if len(expense.Splits) == 0 {
		return fmt.Errorf("%w: expense has no splits", ErrInvalidSplit)
	}

	group, err := tx.GetGroup(ctx, expense.GroupID)
	if err != nil {
		return NotFound(err, "group not found")
	}
	members, err := tx.ListMemberships(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	byUser := indexMembers(members)

	if _, ok := byUser[expense.PaidBy]; !ok {
		return fmt.Errorf("%w: payer is not a member of this group", ErrForbidden)
	}

	total := decimal.Zero
	seen := make(map[string]bool, len(expense.Splits))
	for i := range expense.Splits {
		split := &expense.Splits[i]
		if _, ok := byUser[split.UserID]; !ok {
			return fmt.Errorf("%w: %s is not a member of this group", ErrInvalidSplit, split.UserID)
		}
		if seen[split.UserID] {
			return fmt.Errorf("%w: %s appears more than once", ErrInvalidSplit, split.UserID)
		}
		seen[split.UserID] = true
		split.Settled = false
		total = total.Add(split.Amount)
	}
	if !calculator.ApproxEqual(total, expense.Amount) {
		return fmt.Errorf("%w: split amounts must sum to the total amount", ErrInvalidSplit)
	}

	expense.Status = models.ExpenseActive
	expense.Cleared = false
	if err := tx.InsertExpense(ctx, expense); err != nil {
		return err
	}

	deltas := make(map[string]decimal.Decimal, len(expense.Splits)+1)
	for _, split := range expense.Splits {
		deltas[split.UserID] = deltas[split.UserID].Sub(split.Amount)
	}
	deltas[expense.PaidBy] = deltas[expense.PaidBy].Add(expense.Amount)
	if err := applyDeltas(ctx, tx, members, deltas); err != nil {
		return err
	}

	group.TotalBalance = group.TotalBalance.Add(expense.Amount)
	return tx.UpdateGroup(ctx, group)
}

// ApplySettleSplit marks memberID's split of an expense as paid back.
// Only the payer may settle. When the last open split is settled the
// expense becomes settled. Balances are not touched.
func ApplySettleSplit(ctx context.Context, tx storage.Tx, callerID, expenseID, memberID string) error {
	expense, err := lockExpense(ctx, tx, expenseID)
	if err != nil {
		return err
	}
	if expense.PaidBy != callerID {
		return fmt.Errorf("%w: only the payer can settle expense splits", ErrForbidden)
	}

	split := expense.SplitFor(memberID)
	if split == nil {
		return fmt.Errorf("%w: split not found", ErrNotFound)
	}
	if split.Settled {
		return fmt.Errorf("%w: split is already settled", ErrAlreadySettled)
	}

	split.Settled = true
	if err := tx.UpdateSplit(ctx, split); err != nil {
		return err
	}

	if expense.AllSettled() && expense.Status != models.ExpenseSettled {
		expense.Status = models.ExpenseSettled
		return tx.UpdateExpense(ctx, expense)
	}
	return nil
}

// ApplySettleGroup settles every outstanding expense of the group and
// resets all member balances and the group total to zero. It returns the
// number of expenses it cleared.
func ApplySettleGroup(ctx context.Context, tx storage.Tx, groupID string) (int, error) {
	group, err := tx.GetGroup(ctx, groupID)
	if err != nil {
		return 0, NotFound(err, "group not found")
	}

	expenses, err := tx.ListExpenses(ctx, group.ID, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list expenses: %w", err)
	}

	cleared := 0
	for _, expense := range expenses {
		if expense.Cleared {
			continue
		}
		if expense.Status == models.ExpenseActive {
			for i := range expense.Splits {
				split := &expense.Splits[i]
				if split.Settled {
					continue
				}
				split.Settled = true
				if err := tx.UpdateSplit(ctx, split); err != nil {
					return 0, err
				}
			}
			expense.Status = models.ExpenseSettled
		}
		expense.Cleared = true
		if err := tx.UpdateExpense(ctx, expense); err != nil {
			return 0, err
		}
		cleared++
	}

	members, err := tx.ListMemberships(ctx, group.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}
	for _, m := range members {
		if m.Balance.IsZero() {
			continue
		}
		m.Balance = decimal.Zero
		if err := tx.UpdateMembership(ctx, m); err != nil {
			return 0, err
		}
	}

	group.TotalBalance = decimal.Zero
	if err := tx.UpdateGroup(ctx, group); err != nil {
		return 0, err
	}
	return cleared, nil
}

// ApplyDelete removes an expense. Only the payer may delete. Unless a
// group settlement already cleared it, the expense's balance effect is
// reversed exactly from the recorded split amounts, whether or not the
// splits were settled individually.
func ApplyDelete(ctx context.Context, tx storage.Tx, callerID, expenseID string) error {
	expense, err := lockExpense(ctx, tx, expenseID)
	if err != nil {
		return err
	}
	if expense.PaidBy != callerID {
		return fmt.Errorf("%w: only the payer can delete this expense", ErrForbidden)
	}

	if !expense.Cleared {
		group, err := tx.GetGroup(ctx, expense.GroupID)
		if err != nil {
			return NotFound(err, "group not found")
		}
		members, err := tx.ListMemberships(ctx, group.ID)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}

		deltas := make(map[string]decimal.Decimal, len(expense.Splits)+1)
		for _, split := range expense.Splits {
			deltas[split.UserID] = deltas[split.UserID].Add(split.Amount)
		}
		deltas[expense.PaidBy] = deltas[expense.PaidBy].Sub(expense.Amount)
		if err := applyDeltas(ctx, tx, members, deltas); err != nil {
			return err
		}

		group.TotalBalance = group.TotalBalance.Sub(expense.Amount)
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
	}

	return tx.DeleteExpense(ctx, expense.ID)
}

// lockExpense takes the owning group's lock before returning the expense,
// so the expense is read after any concurrent command on the group.
func lockExpense(ctx context.Context, tx storage.Tx, expenseID string) (*models.Expense, error) {
	expense, err := tx.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, NotFound(err, "expense not found")
	}
	if _, err := tx.GetGroup(ctx, expense.GroupID); err != nil {
		return nil, NotFound(err, "group not found")
	}
	expense, err = tx.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, NotFound(err, "expense not found")
	}
	return expense, nil
}

func indexMembers(members []*models.Membership) map[string]*models.Membership {
	byUser := make(map[string]*models.Membership, len(members))
	for _, m := range members {
		byUser[m.UserID] = m
	}
	return byUser
}

// applyDeltas adds each delta to the matching member's balance. A delta
// for a user who has no membership means the ledger is corrupt.
func applyDeltas(ctx context.Context, tx storage.Tx, members []*models.Membership, deltas map[string]decimal.Decimal) error {
	byUser := indexMembers(members)
	for userID := range deltas {
		if _, ok := byUser[userID]; !ok {
			return fmt.Errorf("%w: no membership for %s", ErrInvalidState, userID)
		}
	}

	for _, m := range members {
		delta, ok := deltas[m.UserID]
		if !ok || delta.IsZero() {
			continue
		}
		m.Balance = m.Balance.Add(delta)
		if err := tx.UpdateMembership(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
