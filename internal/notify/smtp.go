package notify

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier emails invitations through an SMTP server.
type SMTPNotifier struct {
	dialer sender
	from   string
	logger *slog.Logger
}

// NewSMTPNotifier creates a notifier that authenticates to host:port as
// username and sends from the given address.
func NewSMTPNotifier(host string, port int, username, password, from string, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger,
	}
}

// SendInvite emails the invitation. gomail has no context support, so ctx
// is only checked before dialing.
func (n *SMTPNotifier) SendInvite(ctx context.Context, invite Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := RenderHTML(invite)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", invite.To)
	msg.SetHeader("Subject", Subject(invite))
	msg.SetBody("text/html", body)

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send invite to %s: %w", invite.To, err)
	}
	n.logger.Info("Invite email sent", "invitation_id", invite.InvitationID, "to", invite.To)
	return nil
}
