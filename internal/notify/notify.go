// Package notify delivers invitation messages out-of-band.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

// Invite is everything an invitation message says.
type Invite struct {
	To             string
	InvitationID   string
	GroupName      string
	InviterEmail   string
	InviterIsAdmin bool
	ExpiresAt      time.Time
	// JoinURL is the link the invitee follows to accept.
	JoinURL string
}

// Notifier sends invitation messages. Send is called after the invitation
// is committed, so a failure never undoes the invitation.
type Notifier interface {
	SendInvite(ctx context.Context, invite Invite) error
}

// JoinURL builds the accept link for an invitation under siteURL.
func JoinURL(siteURL, invitationID string) string {
	return strings.TrimRight(siteURL, "/") + "/join-group/" + url.PathEscape(invitationID)
}

// Subject is the subject line of an invitation message.
func Subject(invite Invite) string {
	return fmt.Sprintf("Join %s on Split-it", invite.GroupName)
}

var inviteTemplate = template.Must(template.New("invite").Parse(`<div>
  <h1>You've been invited to join {{.GroupName}} on Split-it!</h1>
  <p>{{if .InviterIsAdmin}}Admin{{else}}Member{{end}} {{.InviterEmail}} has invited you to join their expense-sharing group.</p>
  <p>Click the link below to join:</p>
  <p><a href="{{.JoinURL}}">Join Group</a></p>
  <p>This invitation expires on {{.ExpiresAt.UTC.Format "Jan 2, 2006 15:04 MST"}}.</p>
</div>
`))

// RenderHTML renders the HTML body of an invitation message.
func RenderHTML(invite Invite) (string, error) {
	var buf bytes.Buffer
	if err := inviteTemplate.Execute(&buf, invite); err != nil {
		return "", fmt.Errorf("failed to render invite: %w", err)
	}
	return buf.String(), nil
}
