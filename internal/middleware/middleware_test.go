package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitit/internal/auth"
	"github.com/mmynk/splitit/internal/models"
)

type ping struct{}

// echoIdentity is a handler that reports the identity it was called with.
func echoIdentity(ctx context.Context, _ connect.AnyRequest) (connect.AnyResponse, error) {
	resp := connect.NewResponse(&ping{})
	resp.Header().Set("X-User", GetUserID(ctx))
	resp.Header().Set("X-Email", GetEmail(ctx))
	return resp, nil
}

func TestRequireAuth(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Hour, nil)
	token, err := manager.Generate(&models.User{ID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)

	call := RequireAuth(manager)(echoIdentity)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + token},
		{"bad token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&ping{})
			if tt.header != "" {
				req.Header().Set("Authorization", tt.header)
			}
			_, err := call(context.Background(), req)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req := connect.NewRequest(&ping{})
		req.Header().Set("Authorization", "Bearer "+token)
		resp, err := call(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "u1", resp.Header().Get("X-User"))
		assert.Equal(t, "u1@example.com", resp.Header().Get("X-Email"))
	})

	t.Run("optional auth passes anonymous calls", func(t *testing.T) {
		resp, err := OptionalAuth(manager)(echoIdentity)(context.Background(), connect.NewRequest(&ping{}))
		require.NoError(t, err)
		assert.Empty(t, resp.Header().Get("X-User"))
	})
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	failing := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("not a member"))
	}
	_, err := LoggingInterceptor(logger)(failing)(WithIdentity(context.Background(), "u1", ""), connect.NewRequest(&ping{}))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "code=permission_denied")
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	call := metrics.Interceptor()(echoIdentity)
	for i := 0; i < 3; i++ {
		_, err := call(context.Background(), connect.NewRequest(&ping{}))
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counts[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, counts["splitit_rpc_requests_total"])
}
