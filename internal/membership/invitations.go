package membership

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/mmynk/splitit/internal/ledger"
	"github.com/mmynk/splitit/internal/models"
	"github.com/mmynk/splitit/internal/storage"
)

// DefaultInviteTTL is how long an invitation stays usable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// Invite is an invitation together with what the notification needs to
// describe it.
type Invite struct {
	Invitation     *models.Invitation
	GroupName      string
	InviterEmail   string
	InviterIsAdmin bool
}

// GetOrCreateInvite returns the pending invitation of email into the
// group, refreshing its expiry to now+ttl, or creates one. The inviter
// must be a member; the invitee must not be one already.
func GetOrCreateInvite(ctx context.Context, tx storage.Tx, groupID, email, inviterID string, now time.Time, ttl time.Duration) (*Invite, error) {
	email = models.NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: %q is not a valid email address", ledger.ErrInvalidInput, email)
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}

	group, err := tx.GetGroup(ctx, groupID)
	if err != nil {
		return nil, ledger.NotFound(err, "group not found")
	}

	inviter, err := tx.GetMembership(ctx, groupID, inviterID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: not a member of this group", ledger.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}

	invite := &Invite{
		GroupName:      group.Name,
		InviterEmail:   inviterID,
		InviterIsAdmin: inviter.IsAdmin(),
	}
	if user, err := tx.GetUserByID(ctx, inviterID); err == nil {
		invite.InviterEmail = user.Email
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	invitee, err := tx.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := requireNotMember(ctx, tx, groupID, invitee.ID); err != nil {
			return nil, err
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	expiresAt := now.Add(ttl).Unix()
	inv, err := tx.FindPendingInvitation(ctx, groupID, email)
	switch {
	case err == nil:
		inv.ExpiresAt = expiresAt
		if err := tx.UpdateInvitation(ctx, inv); err != nil {
			return nil, err
		}
	case errors.Is(err, storage.ErrNotFound):
		inv = &models.Invitation{
			GroupID:   groupID,
			Email:     email,
			InvitedBy: inviterID,
			Status:    models.InvitationPending,
			ExpiresAt: expiresAt,
			CreatedAt: now.Unix(),
		}
		if err := tx.InsertInvitation(ctx, inv); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	invite.Invitation = inv
	return invite, nil
}

// JoinGroup accepts an invitation on behalf of the user identified by
// userID and their verified email, admitting them as a member.
func JoinGroup(ctx context.Context, tx storage.Tx, userID, email, invitationID string, now time.Time) (*models.Invitation, error) {
	inv, err := tx.GetInvitation(ctx, invitationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: invitation not found", ledger.ErrInvalidInvitation)
	}
	if err != nil {
		return nil, err
	}

	group, err := tx.GetGroup(ctx, inv.GroupID)
	if err != nil {
		return nil, ledger.NotFound(err, "group not found")
	}
	// Read again now that the group is locked.
	if inv, err = tx.GetInvitation(ctx, invitationID); err != nil {
		return nil, err
	}

	switch {
	case inv.Status == models.InvitationAccepted:
		return nil, fmt.Errorf("%w: invitation has already been accepted", ledger.ErrInvalidInvitation)
	case !inv.Usable(now.Unix()):
		return nil, fmt.Errorf("%w: invitation has expired", ledger.ErrInvalidInvitation)
	case inv.Email != models.NormalizeEmail(email):
		return nil, fmt.Errorf("%w: invitation was sent to a different email address", ledger.ErrInvalidInvitation)
	}

	if err := requireNotMember(ctx, tx, group.ID, userID); err != nil {
		return nil, err
	}
	if err := admit(ctx, tx, group, userID, models.RoleMember, now); err != nil {
		return nil, err
	}

	inv.Status = models.InvitationAccepted
	if err := tx.UpdateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}
