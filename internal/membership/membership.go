// Package membership manages who belongs to a group and each member's
// share of default-split expenses.
//
// Functions run inside the caller's transaction. Authorization of the
// caller (admin or member) is checked by the caller through package guard
// unless a function documents otherwise.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitit/internal/calculator"
	"github.com/mmynk/splitit/internal/ledger"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

// PercentEntry assigns a split percentage to a member.
type PercentEntry struct {
	UserID  string
	Percent decimal.Decimal
}

// CreateGroup creates a group with the creator as its only member, an
// admin carrying the full 100% share.
func CreateGroup(ctx context.Context, tx storage.Tx, name, description, creatorID string, now time.Time) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ledger.ErrInvalidInput)
	}

	group := &models.Group{
		Name:         name,
		Description:  strings.TrimSpace(description),
		CreatedBy:    creatorID,
		TotalBalance: decimal.Zero,
		CreatedAt:    now.Unix(),
	}
	if err := tx.InsertGroup(ctx, group); err != nil {
		return nil, err
	}

	err := tx.InsertMembership(ctx, &models.Membership{
		GroupID:      group.ID,
		UserID:       creatorID,
		Balance:      decimal.Zero,
		Role:         models.RoleAdmin,
		SplitPercent: decimal.NewNullDecimal(calculator.Hundred),
		JoinedAt:     now.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// AddMember admits userID directly, without an invitation.
func AddMember(ctx context.Context, tx storage.Tx, groupID, userID string, role models.Role, now time.Time) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ledger.ErrInvalidInput, role)
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user is required", ledger.ErrInvalidInput)
	}

	group, err := tx.GetGroup(ctx, groupID)
	if err != nil {
		return ledger.NotFound(err, "group not found")
	}
	if err := requireNotMember(ctx, tx, groupID, userID); err != nil {
		return err
	}
	return admit(ctx, tx, group, userID, role, now)
}

// UpdateSplitPercents replaces every member's split percentage and marks
// the group as using custom ratios. entries must name each current member
// exactly once, and the percentages must sum to 100.
func UpdateSplitPercents(ctx context.Context, tx storage.Tx, groupID string, entries []PercentEntry) error {
	group, err := tx.GetGroup(ctx, groupID)
	if err != nil {
		return ledger.NotFound(err, "group not found")
	}
	members, err := tx.ListMemberships(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}

	byUser := make(map[string]decimal.Decimal, len(entries))
	percents := make([]decimal.Decimal, 0, len(entries))
	for _, e := range entries {
		if _, dup := byUser[e.UserID]; dup {
			return fmt.Errorf("%w: %s appears more than once", ledger.ErrInvalidSplit, e.UserID)
		}
		p := calculator.RoundPercent(e.Percent)
		byUser[e.UserID] = p
		percents = append(percents, p)
	}
	for _, m := range members {
		if _, ok := byUser[m.UserID]; !ok {
			return fmt.Errorf("%w: missing a percentage for member %s", ledger.ErrInvalidSplit, m.UserID)
		}
	}
	if len(byUser) != len(members) {
		return fmt.Errorf("%w: percentages name users who are not members", ledger.ErrInvalidSplit)
	}
	if err := calculator.ValidatePercents(percents); err != nil {
		return err
	}

	for _, m := range members {
		m.SplitPercent = decimal.NewNullDecimal(byUser[m.UserID])
		if err := tx.UpdateMembership(ctx, m); err != nil {
			return err
		}
	}

	if !group.CustomSplitRatio {
		group.CustomSplitRatio = true
		return tx.UpdateGroup(ctx, group)
	}
	return nil
}

// admit inserts a membership. While the group splits equally every
// member, the new one included, is rebalanced to an equal share; a group
// with custom ratios admits the new member at 0% for an admin to adjust.
func admit(ctx context.Context, tx storage.Tx, group *models.Group, userID string, role models.Role, now time.Time) error {
	percent := decimal.Zero
	if !group.CustomSplitRatio {
		members, err := tx.ListMemberships(ctx, group.ID)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}
		shares := calculator.EqualPercents(len(members) + 1)
		for i, m := range members {
			m.SplitPercent = decimal.NewNullDecimal(shares[i])
			if err := tx.UpdateMembership(ctx, m); err != nil {
				return err
			}
		}
		percent = shares[len(members)]
	}

	return tx.InsertMembership(ctx, &models.Membership{
		GroupID:      group.ID,
		UserID:       userID,
		Balance:      decimal.Zero,
		Role:         role,
		SplitPercent: decimal.NewNullDecimal(percent),
		JoinedAt:     now.Unix(),
	})
}

func requireNotMember(ctx context.Context, tx storage.Tx, groupID, userID string) error {
	_, err := tx.GetMembership(ctx, groupID, userID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: user is already a member of this group", ledger.ErrAlreadyMember)
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return err
	}
}
