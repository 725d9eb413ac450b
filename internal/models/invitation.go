package models

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation invites an email address into a group.
// The ID doubles as the token carried in the join link.
type Invitation struct {
	ID      string
	GroupID string

	// Email is the invited address, normalized to lower case.
	Email string

	// InvitedBy is the user ID of the inviter.
	InvitedBy string

	Status InvitationStatus

	// ExpiresAt is the Unix timestamp after which the invitation is void.
	ExpiresAt int64

	CreatedAt int64
}

// Usable reports whether the invitation can still be accepted at now.
func (i *Invitation) Usable(now int64) bool {
	return i.Status == InvitationPending && i.ExpiresAt >= now
}
