package notify

import (
	"context"
	"log/slog"
)

// LogNotifier only logs invitations. It stands in for SMTP in development,
// where the join link is copied from the log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendInvite(_ context.Context, invite Invite) error {
	n.logger.Info("Invite created",
		"invitation_id", invite.InvitationID,
		"to", invite.To,
		"group", invite.GroupName,
		"join_url", invite.JoinURL,
		"expires_at", invite.ExpiresAt,
	)
	return nil
}
