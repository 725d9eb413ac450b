package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitit/internal/auth"
	"github.com/mmynk/splitit/internal/clock"
	"github.com/mmynk/splitit/internal/middleware"
	"github.com/mmynk/splitit/internal/notify"
	"github.com/mmynk/splitit/internal/storage/sqlstore"
	"github.com/mmynk/splitit/pkg/api"
	"github.com/mmynk/splitit/pkg/api/apiconnect"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// recordingNotifier keeps every invite it is asked to send.
type recordingNotifier struct {
	mu      sync.Mutex
	invites []notify.Invite
	err     error
}

func (n *recordingNotifier) SendInvite(_ context.Context, invite notify.Invite) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, invite)
	return n.err
}

func (n *recordingNotifier) last(t *testing.T) notify.Invite {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.invites, "no invite sent")
	return n.invites[len(n.invites)-1]
}

type testServer struct {
	ledger   apiconnect.LedgerServiceClient
	auth     apiconnect.AuthServiceClient
	notifier *recordingNotifier
	clock    *clock.FakeClock
}

// setupTestServer serves both services over a fresh sqlite database, with
// the same interceptors the server binary installs.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlstore.New(filepath.Join(t.TempDir(), "splitit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	jwtManager := auth.NewJWTManager("test-secret", 24*time.Hour, clk)
	authenticator := auth.NewPasswordAuthenticator(store)
	notifier := &recordingNotifier{}

	ledgerSvc := NewLedgerService(store, notifier, clk, logger, LedgerConfig{SiteURL: "https://splitit.test"})
	authSvc := NewAuthService(authenticator, jwtManager, logger)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewLedgerServiceHandler(ledgerSvc,
		connect.WithInterceptors(middleware.LoggingInterceptor(logger), middleware.RequireAuth(jwtManager)),
	))
	mux.Handle(apiconnect.NewAuthServiceHandler(authSvc,
		connect.WithInterceptors(middleware.LoggingInterceptor(logger), middleware.OptionalAuth(jwtManager)),
	))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{
		ledger:   apiconnect.NewLedgerServiceClient(http.DefaultClient, server.URL),
		auth:     apiconnect.NewAuthServiceClient(http.DefaultClient, server.URL),
		notifier: notifier,
		clock:    clk,
	}
}

// user is a registered account and its bearer token.
type user struct {
	ID    string
	Email string
	Token string
}

func (s *testServer) register(t *testing.T, name string) user {
	t.Helper()
	email := name + "@example.com"
	resp, err := s.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:       email,
		DisplayName: name,
		Password:    "correct horse",
	}))
	require.NoError(t, err)
	return user{ID: resp.Msg.User.ID, Email: email, Token: resp.Msg.Token}
}

// as builds a request authenticated as u.
func as[T any](u user, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+u.Token)
	return req
}

func requireOK[T any](t *testing.T, resp *connect.Response[api.Result[T]], err error) T {
	t.Helper()
	require.NoError(t, err)
	require.True(t, resp.Msg.Success, "unexpected failure: %s", resp.Msg.Message)
	require.NotNil(t, resp.Msg.Value)
	return *resp.Msg.Value
}

func requireFail[T any](t *testing.T, resp *connect.Response[api.Result[T]], err error, contains string) {
	t.Helper()
	require.NoError(t, err)
	require.False(t, resp.Msg.Success)
	require.Contains(t, resp.Msg.Message, contains)
}

func requireCode(t *testing.T, err error, code connect.Code) {
	t.Helper()
	require.Error(t, err)
	var connectErr *connect.Error
	require.True(t, errors.As(err, &connectErr), "not a connect error: %v", err)
	require.Equal(t, code, connectErr.Code())
}

func (s *testServer) createGroup(t *testing.T, owner user, name string) string {
	t.Helper()
	resp, err := s.ledger.CreateGroup(context.Background(), as(owner, &api.CreateGroupRequest{Name: name}))
	return requireOK(t, resp, err).GroupID
}

// invite sends an invitation from inviter to invitee and accepts it.
func (s *testServer) invite(t *testing.T, groupID string, inviter, invitee user) {
	t.Helper()
	ctx := context.Background()
	resp, err := s.ledger.SendInvite(ctx, as(inviter, &api.SendInviteRequest{GroupID: groupID, Email: invitee.Email}))
	sent := requireOK(t, resp, err)

	joinResp, err := s.ledger.JoinGroup(ctx, as(invitee, &api.JoinGroupRequest{InvitationID: sent.InvitationID}))
	require.Equal(t, groupID, requireOK(t, joinResp, err).GroupID)
}

func (s *testServer) balances(t *testing.T, u user, groupID string) (map[string]string, string) {
	t.Helper()
	resp, err := s.ledger.GetGroup(context.Background(), as(u, &api.GetGroupRequest{GroupID: groupID}))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, m := range resp.Msg.Group.Members {
		out[m.UserID] = m.Balance.StringFixed(2)
	}
	return out, resp.Msg.Group.TotalBalance.StringFixed(2)
}
