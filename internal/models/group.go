package models

import "github.com/shopspring/decimal"

// Role is a member's role within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Group represents an expense-sharing group.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Description is optional free text.
	Description string

	// CreatedBy is the user ID of the group's creator.
	CreatedBy string

	// TotalBalance is the sum of amounts of all expenses whose balance
	// effect is still outstanding (not deleted, not cleared by a group
	// settlement).
	TotalBalance decimal.Decimal

	// CustomSplitRatio is set once an admin has explicitly configured the
	// members' split percentages. Until then default expenses split equally.
	CustomSplitRatio bool

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Membership links a user to a group.
type Membership struct {
	GroupID string
	UserID  string

	// Balance is the member's running balance in the group.
	// Positive = owed to the member, negative = the member owes.
	Balance decimal.Decimal

	Role Role

	// SplitPercent is the member's share (0-100) of default-split expenses.
	// Invalid (unset) until the member is admitted with a share.
	SplitPercent decimal.NullDecimal

	// JoinedAt is the Unix timestamp when the user joined the group.
	JoinedAt int64
}

// IsAdmin reports whether the member has the admin role.
func (m *Membership) IsAdmin() bool {
	return m.Role == RoleAdmin
}
