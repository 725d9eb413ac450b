// Package guard checks that a caller may act on a group or expense.
// All checks read through the caller's transaction so they see the same
// snapshot the command will modify.
package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/splitit/internal/ledger"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

// RequireMember returns the caller's membership in the group, or
// ErrForbidden when they are not a member.
func RequireMember(ctx context.Context, tx storage.Tx, groupID, userID string) (*models.Membership, error) {
	m, err := tx.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: not a member of this group", ledger.ErrForbidden)
		}
		return nil, err
	}
	return m, nil
}

// RequireAdmin is RequireMember restricted to group admins.
func RequireAdmin(ctx context.Context, tx storage.Tx, groupID, userID string) (*models.Membership, error) {
	m, err := RequireMember(ctx, tx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, fmt.Errorf("%w: only group admins can do this", ledger.ErrForbidden)
	}
	return m, nil
}

// RequireExpenseMember resolves the expense's group and checks that the
// caller belongs to it.
func RequireExpenseMember(ctx context.Context, tx storage.Tx, expenseID, userID string) (*models.Expense, error) {
	expense, err := tx.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, ledger.NotFound(err, "expense not found")
	}
	if _, err := RequireMember(ctx, tx, expense.GroupID, userID); err != nil {
		return nil, err
	}
	return expense, nil
}
