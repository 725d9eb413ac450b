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

const invitationColumns = "id, group_id, email, invited_by, status, expires_at, created_at"

// InsertInvitation persists a new invitation.
func (t *tx) InsertInvitation(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt == 0 {
		inv.CreatedAt = time.Now().Unix()
	}

	_, err := t.q.ExecContext(ctx,
		"INSERT INTO invitations ("+invitationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		inv.ID, inv.GroupID, inv.Email, inv.InvitedBy, string(inv.Status), inv.ExpiresAt, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// GetInvitation retrieves an invitation by ID.
func (t *tx) GetInvitation(ctx context.Context, invitationID string) (*models.Invitation, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM invitations WHERE id = ?",
		invitationID,
	)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation %s: %w", invitationID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// FindPendingInvitation returns the pending invitation for (group, email).
func (t *tx) FindPendingInvitation(ctx context.Context, groupID, email string) (*models.Invitation, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+invitationColumns+" FROM invitations WHERE group_id = ? AND email = ? AND status = ?",
		groupID, email, string(models.InvitationPending),
	)
	inv, err := scanInvitation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending invitation for %s: %w", email, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return inv, nil
}

// UpdateInvitation writes back an invitation's status and expiry.
func (t *tx) UpdateInvitation(ctx context.Context, inv *models.Invitation) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE invitations SET status = ?, expires_at = ? WHERE id = ?",
		string(inv.Status), inv.ExpiresAt, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	return expectRow(res, "invitation", inv.ID)
}

// ExpireInvitations marks overdue pending invitations as expired.
func (s *Store) ExpireInvitations(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE invitations SET status = ? WHERE status = ? AND expires_at < ?",
		string(models.InvitationExpired), string(models.InvitationPending), now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func scanInvitation(row scanner) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var status string
	if err := row.Scan(&inv.ID, &inv.GroupID, &inv.Email, &inv.InvitedBy, &status, &inv.ExpiresAt, &inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.Status = models.InvitationStatus(status)
	return inv, nil
}
