// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitit/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the durable ledger tables.
// This abstraction allows swapping storage backends (SQLite, MySQL, etc.)
// without changing the engine or service layers.
type Store interface {
	// WithTx runs fn inside a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise, so a command either
	// applies all of its record patches or none of them.
	//
	// Writers are serialized: two transactions never observe the same
	// group snapshot and both write it.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ExpireInvitations marks pending invitations whose expiry is before
	// now as expired and returns how many were changed.
	ExpireInvitations(ctx context.Context, now int64) (int64, error)

	// User records belong to the identity provider side of the system.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the set of record operations available inside a transaction.
// Lookups of missing records return ErrNotFound.
type Tx interface {
	InsertGroup(ctx context.Context, group *models.Group) error
	// GetGroup reads a group and holds it for update until the transaction ends.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error)
	ListGroupIDs(ctx context.Context) ([]string, error)

	InsertMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)
	// ListMemberships returns members in join order.
	ListMemberships(ctx context.Context, groupID string) ([]*models.Membership, error)
	UpdateMembership(ctx context.Context, m *models.Membership) error

	// InsertExpense persists the expense together with its splits.
	InsertExpense(ctx context.Context, expense *models.Expense) error
	// GetExpense returns the expense with its splits.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	// ListExpenses returns the group's expenses with splits, newest first.
	// An empty status returns every expense.
	ListExpenses(ctx context.Context, groupID string, status models.ExpenseStatus) ([]*models.Expense, error)
	CountExpenses(ctx context.Context, groupID string, status models.ExpenseStatus) (int, error)
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	UpdateSplit(ctx context.Context, split *models.Split) error
	// DeleteExpense removes the expense and its splits.
	DeleteExpense(ctx context.Context, expenseID string) error

	InsertInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitation(ctx context.Context, invitationID string) (*models.Invitation, error)
	FindPendingInvitation(ctx context.Context, groupID, email string) (*models.Invitation, error)
	UpdateInvitation(ctx context.Context, inv *models.Invitation) error

	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
