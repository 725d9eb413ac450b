package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

const expenseColumns = "id, group_id, description, amount, date, paid_by, split_type, note, status, cleared, created_at"

// InsertExpense persists a new expense and its splits.
func (t *tx) InsertExpense(ctx context.Context, expense *models.Expense) error {
	// Generate IDs if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	_, err := t.q.ExecContext(ctx,
		"INSERT INTO expenses ("+expenseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		expense.ID, expense.GroupID, expense.Description, expense.Amount, expense.Date,
		expense.PaidBy, string(expense.SplitType), nullString(expense.Note),
		string(expense.Status), expense.Cleared, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Splits {
		split := &expense.Splits[i]
		split.ExpenseID = expense.ID
		_, err = t.q.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, user_id, amount, settled) VALUES (?, ?, ?, ?)",
			split.ExpenseID, split.UserID, split.Amount, split.Settled,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	return nil
}

// GetExpense retrieves an expense by ID, including its splits.
func (t *tx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if err := t.loadSplits(ctx, []*models.Expense{expense}); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses retrieves a group's expenses, newest first, with splits.
func (t *tx) ListExpenses(ctx context.Context, groupID string, status models.ExpenseStatus) ([]*models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE group_id = ?"
	args := []any{groupID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY date DESC, created_at DESC, id"

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if err := t.loadSplits(ctx, expenses); err != nil {
		return nil, err
	}
	return expenses, nil
}

// CountExpenses counts a group's expenses, optionally by status.
func (t *tx) CountExpenses(ctx context.Context, groupID string, status models.ExpenseStatus) (int, error) {
	query := "SELECT COUNT(*) FROM expenses WHERE group_id = ?"
	args := []any{groupID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	var n int
	if err := t.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return n, nil
}

// UpdateExpense writes back an expense's status and cleared flag.
// Amount, payer and splits are immutable once created.
func (t *tx) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE expenses SET status = ?, cleared = ? WHERE id = ?",
		string(expense.Status), expense.Cleared, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return expectRow(res, "expense", expense.ID)
}

// UpdateSplit writes back a split's settled flag.
func (t *tx) UpdateSplit(ctx context.Context, split *models.Split) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE expense_splits SET settled = ? WHERE expense_id = ? AND user_id = ?",
		split.Settled, split.ExpenseID, split.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update split: %w", err)
	}
	return expectRow(res, "split", split.ExpenseID+"/"+split.UserID)
}

// DeleteExpense removes an expense and its splits.
func (t *tx) DeleteExpense(ctx context.Context, expenseID string) error {
	if _, err := t.q.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	res, err := t.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return expectRow(res, "expense", expenseID)
}

// splitBatchSize bounds the IN list of one split query, keeping it under
// SQLite's and MySQL's bound-parameter limits.
const splitBatchSize = 500

// loadSplits fills in the splits of the given expenses, querying them in
// batches of splitBatchSize.
func (t *tx) loadSplits(ctx context.Context, expenses []*models.Expense) error {
	for len(expenses) > 0 {
		n := min(len(expenses), splitBatchSize)
		if err := t.loadSplitBatch(ctx, expenses[:n]); err != nil {
			return err
		}
		expenses = expenses[n:]
	}
	return nil
}

func (t *tx) loadSplitBatch(ctx context.Context, expenses []*models.Expense) error {
	byID := make(map[string]*models.Expense, len(expenses))
	args := make([]any, len(expenses))
	for i, e := range expenses {
		byID[e.ID] = e
		args[i] = e.ID
	}

	rows, err := t.q.QueryContext(ctx,
		`SELECT expense_id, user_id, amount, settled FROM expense_splits
		 WHERE expense_id IN (`+placeholders(len(expenses))+`)
		 ORDER BY expense_id, user_id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var split models.Split
		if err := rows.Scan(&split.ExpenseID, &split.UserID, &split.Amount, &split.Settled); err != nil {
			return fmt.Errorf("failed to scan split: %w", err)
		}
		if e, ok := byID[split.ExpenseID]; ok {
			e.Splits = append(e.Splits, split)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate splits: %w", err)
	}
	return nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	e := &models.Expense{}
	var splitType, status string
	var note sql.NullString
	if err := row.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &e.Date, &e.PaidBy,
		&splitType, &note, &status, &e.Cleared, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.SplitType = models.SplitType(splitType)
	e.Status = models.ExpenseStatus(status)
	if note.Valid {
		e.Note = note.String
	}
	return e, nil
}
