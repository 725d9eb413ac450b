package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitit/pkg/api"
)

func TestRegisterAndLogin(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	alice := s.register(t, "alice")
	assert.NotEmpty(t, alice.ID)
	assert.NotEmpty(t, alice.Token)

	_, err := s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "ALICE@example.com", Password: "another password"}))
	requireCode(t, err, connect.CodeAlreadyExists)

	_, err = s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "bob@example.com", Password: "short"}))
	requireCode(t, err, connect.CodeInvalidArgument)

	_, err = s.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{Email: "", Password: "long enough"}))
	requireCode(t, err, connect.CodeInvalidArgument)

	login, err := s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "alice@example.com", Password: "correct horse"}))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, login.Msg.User.ID)
	assert.NotEmpty(t, login.Msg.Token)

	_, err = s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "alice@example.com", Password: "wrong horse"}))
	requireCode(t, err, connect.CodeUnauthenticated)

	_, err = s.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{Email: "nobody@example.com", Password: "correct horse"}))
	requireCode(t, err, connect.CodeUnauthenticated)
}

func TestGetCurrentUser(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	alice := s.register(t, "alice")

	resp, err := s.auth.GetCurrentUser(ctx, as(alice, &api.GetCurrentUserRequest{}))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, resp.Msg.User.ID)
	assert.Equal(t, "alice@example.com", resp.Msg.User.Email)
	assert.Equal(t, "alice", resp.Msg.User.DisplayName)

	_, err = s.auth.GetCurrentUser(ctx, connect.NewRequest(&api.GetCurrentUserRequest{}))
	requireCode(t, err, connect.CodeUnauthenticated)
}
