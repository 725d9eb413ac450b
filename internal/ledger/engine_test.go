package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitit/internal/calculator"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
	"github.com/mmynk/splitit/internal/storage/sqlstore"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlstore.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// setupGroup creates a group whose members have the given split
// percentages. The first member is the admin.
func setupGroup(t *testing.T, store storage.Store, customRatio bool, percents map[string]string, order ...string) string {
	t.Helper()
	var groupID string
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		group := &models.Group{Name: "Trip", CreatedBy: order[0], TotalBalance: decimal.Zero, CustomSplitRatio: customRatio}
		if err := tx.InsertGroup(ctx, group); err != nil {
			return err
		}
		groupID = group.ID
		for i, userID := range order {
			role := models.RoleMember
			if i == 0 {
				role = models.RoleAdmin
			}
			m := &models.Membership{GroupID: group.ID, UserID: userID, Balance: decimal.Zero, Role: role, JoinedAt: int64(i + 1)}
			if p, ok := percents[userID]; ok {
				m.SplitPercent = decimal.NewNullDecimal(d(p))
			}
			if err := tx.InsertMembership(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return groupID
}

func createExpense(t *testing.T, store storage.Store, groupID, payer, amount string, splits map[string]string) string {
	t.Helper()
	expense := &models.Expense{
		GroupID:     groupID,
		Description: "Dinner",
		Amount:      d(amount),
		PaidBy:      payer,
		SplitType:   models.SplitCustom,
	}
	for userID, a := range splits {
		expense.Splits = append(expense.Splits, models.Split{UserID: userID, Amount: d(a)})
	}
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return ApplyCreate(ctx, tx, expense)
	})
	require.NoError(t, err)
	return expense.ID
}

type snapshot struct {
	total    string
	balances map[string]string
}

func takeSnapshot(t *testing.T, store storage.Store, groupID string) snapshot {
	t.Helper()
	snap := snapshot{balances: map[string]string{}}
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		group, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		snap.total = group.TotalBalance.StringFixed(2)
		members, err := tx.ListMemberships(ctx, groupID)
		if err != nil {
			return err
		}
		for _, m := range members {
			snap.balances[m.UserID] = m.Balance.StringFixed(2)
		}
		return nil
	})
	require.NoError(t, err)
	return snap
}

func requireInvariants(t *testing.T, store storage.Store, groupID string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return CheckInvariants(ctx, tx, groupID)
	})
	require.NoError(t, err)
}

func getExpense(t *testing.T, store storage.Store, expenseID string) *models.Expense {
	t.Helper()
	var expense *models.Expense
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		expense, err = tx.GetExpense(ctx, expenseID)
		return err
	})
	require.NoError(t, err)
	return expense
}

func TestApplyCreate_DefaultSplitSixtyForty(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, true, map[string]string{"alice": "60", "bob": "40"}, "alice", "bob")

	members := []calculator.Member{
		{UserID: "alice", SplitPercent: decimal.NewNullDecimal(d("60"))},
		{UserID: "bob", SplitPercent: decimal.NewNullDecimal(d("40"))},
	}
	shares, err := calculator.DefaultSplits(d("100"), members, true)
	require.NoError(t, err)

	splits := map[string]string{}
	for _, s := range shares {
		splits[s.UserID] = s.Amount.String()
	}
	assert.Equal(t, map[string]string{"alice": "60", "bob": "40"}, splits)

	createExpense(t, store, groupID, "alice", "100", splits)

	snap := takeSnapshot(t, store, groupID)
	assert.Equal(t, "100.00", snap.total)
	assert.Equal(t, "40.00", snap.balances["alice"])
	assert.Equal(t, "-40.00", snap.balances["bob"])
	requireInvariants(t, store, groupID)
}

func TestApplyCreate_Rejections(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob")

	tests := []struct {
		name    string
		payer   string
		amount  string
		splits  map[string]string
		wantErr error
	}{
		{"split sum exceeds amount", "alice", "100", map[string]string{"alice": "20", "bob": "90"}, ErrInvalidSplit},
		{"zero amount", "alice", "0", map[string]string{"alice": "0"}, ErrInvalidInput},
		{"non-member in splits", "alice", "100", map[string]string{"alice": "50", "mallory": "50"}, ErrInvalidSplit},
		{"payer outside group", "mallory", "100", map[string]string{"alice": "50", "bob": "50"}, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expense := &models.Expense{GroupID: groupID, Description: "x", Amount: d(tt.amount), PaidBy: tt.payer, SplitType: models.SplitCustom}
			for userID, a := range tt.splits {
				expense.Splits = append(expense.Splits, models.Split{UserID: userID, Amount: d(a)})
			}
			err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
				return ApplyCreate(ctx, tx, expense)
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	snap := takeSnapshot(t, store, groupID)
	assert.Equal(t, "0.00", snap.total)
	assert.Equal(t, "0.00", snap.balances["alice"])
	assert.Equal(t, "0.00", snap.balances["bob"])
}

func TestApplyCreate_CustomThirtySeventy(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob")

	createExpense(t, store, groupID, "alice", "100", map[string]string{"alice": "30", "bob": "70"})

	snap := takeSnapshot(t, store, groupID)
	assert.Equal(t, "70.00", snap.balances["alice"])
	assert.Equal(t, "-70.00", snap.balances["bob"])
	requireInvariants(t, store, groupID)
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob", "carol")

	createExpense(t, store, groupID, "bob", "45.50", map[string]string{"alice": "15.17", "bob": "15.17", "carol": "15.16"})
	before := takeSnapshot(t, store, groupID)

	expenseID := createExpense(t, store, groupID, "carol", "100", map[string]string{"alice": "33.34", "bob": "33.33", "carol": "33.33"})
	requireInvariants(t, store, groupID)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return ApplyDelete(ctx, tx, "carol", expenseID)
	})
	require.NoError(t, err)

	assert.Equal(t, before, takeSnapshot(t, store, groupID))
	requireInvariants(t, store, groupID)
}

func TestApplySettleSplit(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob", "carol")
	expenseID := createExpense(t, store, groupID, "alice", "90", map[string]string{"alice": "30", "bob": "30", "carol": "30"})
	before := takeSnapshot(t, store, groupID)

	settle := func(caller, member string) error {
		return store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return ApplySettleSplit(ctx, tx, caller, expenseID, member)
		})
	}

	t.Run("non-payer is forbidden", func(t *testing.T) {
		assert.ErrorIs(t, settle("bob", "bob"), ErrForbidden)
	})

	t.Run("unknown split is not found", func(t *testing.T) {
		assert.ErrorIs(t, settle("alice", "mallory"), ErrNotFound)
	})

	t.Run("unknown expense is not found", func(t *testing.T) {
		err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return ApplySettleSplit(ctx, tx, "alice", "missing", "bob")
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("settling every split settles the expense", func(t *testing.T) {
		require.NoError(t, settle("alice", "bob"))
		assert.Equal(t, models.ExpenseActive, getExpense(t, store, expenseID).Status)

		assert.ErrorIs(t, settle("alice", "bob"), ErrAlreadySettled)

		require.NoError(t, settle("alice", "carol"))
		require.NoError(t, settle("alice", "alice"))

		expense := getExpense(t, store, expenseID)
		assert.Equal(t, models.ExpenseSettled, expense.Status)
		assert.True(t, expense.AllSettled())
		assert.False(t, expense.Cleared)
	})

	t.Run("balances are untouched", func(t *testing.T) {
		assert.Equal(t, before, takeSnapshot(t, store, groupID))
		requireInvariants(t, store, groupID)
	})
}

func TestApplyDelete_AfterPartialSettlement(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob", "carol")
	before := takeSnapshot(t, store, groupID)

	expenseID := createExpense(t, store, groupID, "alice", "60", map[string]string{"alice": "20", "bob": "25", "carol": "15"})
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return ApplySettleSplit(ctx, tx, "alice", expenseID, "bob")
	})
	require.NoError(t, err)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return ApplyDelete(ctx, tx, "bob", expenseID)
	})
	assert.ErrorIs(t, err, ErrForbidden)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return ApplyDelete(ctx, tx, "alice", expenseID)
	})
	require.NoError(t, err)

	assert.Equal(t, before, takeSnapshot(t, store, groupID))
	requireInvariants(t, store, groupID)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return ApplyDelete(ctx, tx, "alice", expenseID)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplySettleGroup(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob")

	first := createExpense(t, store, groupID, "alice", "50", map[string]string{"alice": "25", "bob": "25"})
	second := createExpense(t, store, groupID, "bob", "30", map[string]string{"alice": "15", "bob": "15"})

	var cleared int
	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		cleared, err = ApplySettleGroup(ctx, tx, groupID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	snap := takeSnapshot(t, store, groupID)
	assert.Equal(t, "0.00", snap.total)
	assert.Equal(t, "0.00", snap.balances["alice"])
	assert.Equal(t, "0.00", snap.balances["bob"])

	for _, id := range []string{first, second} {
		expense := getExpense(t, store, id)
		assert.Equal(t, models.ExpenseSettled, expense.Status)
		assert.True(t, expense.Cleared)
		assert.True(t, expense.AllSettled())
	}
	requireInvariants(t, store, groupID)

	t.Run("deleting a cleared expense leaves balances at zero", func(t *testing.T) {
		err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return ApplyDelete(ctx, tx, "alice", first)
		})
		require.NoError(t, err)

		snap := takeSnapshot(t, store, groupID)
		assert.Equal(t, "0.00", snap.total)
		assert.Equal(t, "0.00", snap.balances["alice"])
		requireInvariants(t, store, groupID)
	})

	t.Run("new expenses count again after settlement", func(t *testing.T) {
		createExpense(t, store, groupID, "bob", "10", map[string]string{"alice": "5", "bob": "5"})
		snap := takeSnapshot(t, store, groupID)
		assert.Equal(t, "10.00", snap.total)
		assert.Equal(t, "5.00", snap.balances["bob"])
		requireInvariants(t, store, groupID)
	})
}

func TestCheckInvariants_DetectsDrift(t *testing.T) {
	store := newTestStore(t)
	groupID := setupGroup(t, store, false, nil, "alice", "bob")
	createExpense(t, store, groupID, "alice", "20", map[string]string{"alice": "10", "bob": "10"})

	err := store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		group, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		group.TotalBalance = d("25")
		return tx.UpdateGroup(ctx, group)
	})
	require.NoError(t, err)

	err = store.WithTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return CheckInvariants(ctx, tx, groupID)
	})
	assert.ErrorIs(t, err, ErrInvalidState)
}
