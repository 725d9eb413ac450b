package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func testInvite() Invite {
	return Invite{
		To:             "bob@example.com",
		InvitationID:   "inv-1",
		GroupName:      "Flat <3B>",
		InviterEmail:   "alice@example.com",
		InviterIsAdmin: true,
		ExpiresAt:      time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC),
		JoinURL:        JoinURL("https://split.example/", "inv-1"),
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://split.example/join-group/inv-1", JoinURL("https://split.example/", "inv-1"))
}

func TestRenderHTML(t *testing.T) {
	body, err := RenderHTML(testInvite())
	require.NoError(t, err)
	assert.Contains(t, body, "Flat &lt;3B&gt;")
	assert.Contains(t, body, "Admin alice@example.com")
	assert.Contains(t, body, `href="https://split.example/join-group/inv-1"`)
	assert.Contains(t, body, "Mar 8, 2026")
}

func TestSMTPNotifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := &fakeSender{}
	n := &SMTPNotifier{dialer: fake, from: "bot@split.example", logger: logger}

	require.NoError(t, n.SendInvite(context.Background(), testInvite()))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, []string{"bob@example.com"}, fake.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Join Flat <3B> on Split-it"}, fake.sent[0].GetHeader("Subject"))

	fake.err = errors.New("connection refused")
	assert.ErrorContains(t, n.SendInvite(context.Background(), testInvite()), "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.SendInvite(ctx, testInvite()), context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, n.SendInvite(context.Background(), testInvite()))
	assert.Contains(t, buf.String(), "join_url=https://split.example/join-group/inv-1")
}
