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

const groupColumns = "id, name, description, created_by, total_balance, custom_split_ratio, created_at"

// InsertGroup persists a new group, generating its ID and CreatedAt if unset.
func (t *tx) InsertGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	_, err := t.q.ExecContext(ctx,
		"INSERT INTO ledger_groups ("+groupColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		group.ID, group.Name, nullString(group.Description), group.CreatedBy,
		group.TotalBalance, group.CustomSplitRatio, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, locking the row for the rest of the
// transaction where the backend supports it.
func (t *tx) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM ledger_groups WHERE id = ?"+t.dialect.forUpdate,
		groupID,
	)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// UpdateGroup writes back a group's mutable fields.
func (t *tx) UpdateGroup(ctx context.Context, group *models.Group) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE ledger_groups SET name = ?, description = ?, total_balance = ?, custom_split_ratio = ?
		 WHERE id = ?`,
		group.Name, nullString(group.Description), group.TotalBalance, group.CustomSplitRatio, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return expectRow(res, "group", group.ID)
}

// ListGroupsByUser returns every group the user is a member of.
func (t *tx) ListGroupsByUser(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := t.q.QueryContext(ctx,
		`SELECT g.id, g.name, g.description, g.created_by, g.total_balance, g.custom_split_ratio, g.created_at
		 FROM ledger_groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.created_at, g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// ListGroupIDs returns the ID of every group.
func (t *tx) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT id FROM ledger_groups ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return ids, nil
}

const memberColumns = "group_id, user_id, balance, role, split_percent, joined_at"

// InsertMembership adds a user to a group.
func (t *tx) InsertMembership(ctx context.Context, m *models.Membership) error {
	if m.JoinedAt == 0 {
		m.JoinedAt = time.Now().Unix()
	}
	// join_seq numbers members per group in insertion order; joined_at
	// alone has only second resolution. The caller holds the group row.
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO group_members (`+memberColumns+`, join_seq)
		 SELECT ?, ?, ?, ?, ?, ?, COALESCE(MAX(join_seq), 0) + 1
		 FROM group_members WHERE group_id = ?`,
		m.GroupID, m.UserID, m.Balance, string(m.Role), m.SplitPercent, m.JoinedAt, m.GroupID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// GetMembership retrieves one user's membership in a group.
func (t *tx) GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	)
	m, err := scanMembership(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership %s/%s: %w", groupID, userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMemberships returns a group's members in join order.
func (t *tx) ListMemberships(ctx context.Context, groupID string) ([]*models.Membership, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM group_members WHERE group_id = ? ORDER BY join_seq",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// UpdateMembership writes back a member's balance, role and split share.
func (t *tx) UpdateMembership(ctx context.Context, m *models.Membership) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE group_members SET balance = ?, role = ?, split_percent = ? WHERE group_id = ? AND user_id = ?",
		m.Balance, string(m.Role), m.SplitPercent, m.GroupID, m.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return expectRow(res, "membership", m.GroupID+"/"+m.UserID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner) (*models.Group, error) {
	group := &models.Group{}
	var description sql.NullString
	if err := row.Scan(&group.ID, &group.Name, &description, &group.CreatedBy,
		&group.TotalBalance, &group.CustomSplitRatio, &group.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		group.Description = description.String
	}
	return group, nil
}

func scanMembership(row scanner) (*models.Membership, error) {
	m := &models.Membership{}
	var role string
	if err := row.Scan(&m.GroupID, &m.UserID, &m.Balance, &role, &m.SplitPercent, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	return m, nil
}

// expectRow turns an UPDATE or DELETE that matched nothing into ErrNotFound.
// MySQL connections are opened with clientFoundRows so matched rows count.
func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
