package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create store")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var group *models.Group

	t.Run("InsertGroup generates ID and CreatedAt", func(t *testing.T) {
		err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			group = &models.Group{Name: "Roommates", CreatedBy: "alice", TotalBalance: decimal.Zero}
			if err := tx.InsertGroup(ctx, group); err != nil {
				return err
			}
			return tx.InsertMembership(ctx, &models.Membership{
				GroupID:      group.ID,
				UserID:       "alice",
				Role:         models.RoleAdmin,
				SplitPercent: decimal.NewNullDecimal(decimal.NewFromInt(100)),
			})
		})
		require.NoError(t, err)
		assert.NotEmpty(t, group.ID)
		assert.NotZero(t, group.CreatedAt)
	})

	t.Run("GetGroup round-trips decimals and flags", func(t *testing.T) {
		err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			group.TotalBalance = decimal.RequireFromString("123.45")
			group.CustomSplitRatio = true
			group.Description = "flat 3B"
			return tx.UpdateGroup(ctx, group)
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			got, err := tx.GetGroup(ctx, group.ID)
			require.NoError(t, err)
			assert.Equal(t, "123.45", got.TotalBalance.String())
			assert.True(t, got.CustomSplitRatio)
			assert.Equal(t, "flat 3B", got.Description)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("missing records return ErrNotFound", func(t *testing.T) {
		err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.GetGroup(ctx, "nonexistent-id")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			_, err = tx.GetMembership(ctx, group.ID, "nobody")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			_, err = tx.GetExpense(ctx, "nonexistent-id")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			_, err = tx.GetInvitation(ctx, "nonexistent-id")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("expense is stored with its splits and deleted with them", func(t *testing.T) {
		expense := &models.Expense{
			GroupID:     group.ID,
			Description: "Groceries",
			Amount:      decimal.RequireFromString("100"),
			PaidBy:      "alice",
			SplitType:   models.SplitCustom,
			Status:      models.ExpenseActive,
			Splits: []models.Split{
				{UserID: "alice", Amount: decimal.RequireFromString("30")},
				{UserID: "bob", Amount: decimal.RequireFromString("70")},
			},
		}
		err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.InsertExpense(ctx, expense)
		})
		require.NoError(t, err)
		require.NotEmpty(t, expense.ID)

		err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			got, err := tx.GetExpense(ctx, expense.ID)
			require.NoError(t, err)
			require.Len(t, got.Splits, 2)
			assert.Equal(t, "70", got.SplitFor("bob").Amount.String())

			got.SplitFor("bob").Settled = true
			require.NoError(t, tx.UpdateSplit(ctx, got.SplitFor("bob")))

			listed, err := tx.ListExpenses(ctx, group.ID, models.ExpenseActive)
			require.NoError(t, err)
			require.Len(t, listed, 1)
			assert.True(t, listed[0].SplitFor("bob").Settled)

			n, err := tx.CountExpenses(ctx, group.ID, models.ExpenseSettled)
			require.NoError(t, err)
			assert.Zero(t, n)

			return tx.DeleteExpense(ctx, expense.ID)
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.GetExpense(ctx, expense.ID)
			assert.ErrorIs(t, err, storage.ErrNotFound)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			g, err := tx.GetGroup(ctx, group.ID)
			require.NoError(t, err)
			g.TotalBalance = decimal.NewFromInt(999)
			require.NoError(t, tx.UpdateGroup(ctx, g))
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			g, err := tx.GetGroup(ctx, group.ID)
			require.NoError(t, err)
			assert.Equal(t, "123.45", g.TotalBalance.String())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("only one pending invitation per group and email", func(t *testing.T) {
		err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.InsertInvitation(ctx, &models.Invitation{
				GroupID: group.ID, Email: "bob@example.com", InvitedBy: "alice",
				Status: models.InvitationPending, ExpiresAt: 100,
			})
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.InsertInvitation(ctx, &models.Invitation{
				GroupID: group.ID, Email: "bob@example.com", InvitedBy: "alice",
				Status: models.InvitationPending, ExpiresAt: 200,
			})
		})
		assert.Error(t, err)
	})

	t.Run("ExpireInvitations only touches overdue pending invitations", func(t *testing.T) {
		n, err := store.ExpireInvitations(ctx, 150)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := tx.FindPendingInvitation(ctx, group.ID, "bob@example.com")
			assert.ErrorIs(t, err, storage.ErrNotFound)
			return nil
		})
		require.NoError(t, err)

		n, err = store.ExpireInvitations(ctx, 150)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("users are looked up case-insensitively by email", func(t *testing.T) {
		user := models.NewUser("Carol@Example.com", "Carol", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		got, err := store.GetUserByEmail(ctx, "carol@example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = store.GetUserByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDialectDSN(t *testing.T) {
	assert.Equal(t,
		"file:data/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate",
		sqliteDialect.dsn("data/x.db"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDialect.dsn("file:x.db?mode=ro"))
	assert.Equal(t, "u:p@tcp(db:3306)/splitit?clientFoundRows=true", mysqlDialect.dsn("u:p@tcp(db:3306)/splitit"))
	assert.Equal(t, "u:p@tcp(db:3306)/splitit?parseTime=true&clientFoundRows=true", mysqlDialect.dsn("u:p@tcp(db:3306)/splitit?parseTime=true"))

	_, err := dialectFor("postgres")
	assert.Error(t, err)
}

func TestListMembershipsJoinOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Same join second and user IDs that sort against insertion order.
	joined := []string{"zed", "mia", "amy", "kim"}
	var groupID string
	err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		group := &models.Group{Name: "Trip", CreatedBy: joined[0], TotalBalance: decimal.Zero}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		groupID = group.ID
		for _, userID := range joined {
			if err := tx.InsertMembership(ctx, &models.Membership{
				GroupID:  group.ID,
				UserID:   userID,
				Role:     models.RoleMember,
				JoinedAt: 1700000000,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		members, err := tx.ListMemberships(ctx, groupID)
		require.NoError(t, err)
		got := make([]string, len(members))
		for i, m := range members {
			got[i] = m.UserID
		}
		assert.Equal(t, joined, got)
		return nil
	})
	require.NoError(t, err)
}

func TestListExpensesLoadsSplitsInBatches(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	count := 2*splitBatchSize + 1

	var groupID string
	err := store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		group := &models.Group{Name: "Busy", CreatedBy: "alice", TotalBalance: decimal.Zero}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		groupID = group.ID
		for i := 0; i < count; i++ {
			if err := tx.InsertExpense(ctx, &models.Expense{
				GroupID:     group.ID,
				Description: "Coffee",
				Amount:      decimal.RequireFromString("3"),
				PaidBy:      "alice",
				SplitType:   models.SplitCustom,
				Status:      models.ExpenseActive,
				Splits: []models.Split{
					{UserID: "alice", Amount: decimal.RequireFromString("1")},
					{UserID: "bob", Amount: decimal.RequireFromString("2")},
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		expenses, err := tx.ListExpenses(ctx, groupID, "")
		require.NoError(t, err)
		require.Len(t, expenses, count)
		for _, e := range expenses {
			require.Len(t, e.Splits, 2, "expense %s", e.ID)
		}
		return nil
	})
	require.NoError(t, err)
}
