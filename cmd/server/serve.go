package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/splitit/internal/auth"
	"github.com/mmynk/splitit/internal/clock"
	"github.com/mmynk/splitit/internal/config"
	"github.com/mmynk/splitit/internal/jobs"
	"github.com/mmynk/splitit/internal/middleware"
	"github.com/mmynk/splitit/internal/notify"
	"github.com/mmynk/splitit/internal/service"
	"github.com/mmynk/splitit/pkg/api/apiconnect"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the Connect API server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from PORT or 8080)")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.JWTSecret == config.DevJWTSecret {
		logger.Warn("JWT_SECRET is not set; using the development secret")
	}

	clk := clock.Real()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration, clk)
	authenticator := auth.NewPasswordAuthenticator(store)
	notifier := newNotifier(cfg, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	ledgerSvc := service.NewLedgerService(store, notifier, clk, logger, service.LedgerConfig{
		SiteURL:   cfg.SiteURL,
		InviteTTL: cfg.InviteTTL,
	})
	authSvc := service.NewAuthService(authenticator, jwtManager, logger)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewLedgerServiceHandler(ledgerSvc, connect.WithInterceptors(
		metrics.Interceptor(),
		middleware.LoggingInterceptor(logger),
		middleware.RequireAuth(jwtManager),
	)))
	mux.Handle(apiconnect.NewAuthServiceHandler(authSvc, connect.WithInterceptors(
		metrics.Interceptor(),
		middleware.LoggingInterceptor(logger),
		middleware.OptionalAuth(jwtManager),
	)))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	scheduler, err := jobs.NewScheduler(cfg.InviteSweepSchedule, store, clk, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(requestLogger(logger, corsMiddleware(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
		scheduler.Stop(shutdownCtx)
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

func newNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	if !cfg.SMTP.Enabled() {
		logger.Info("SMTP not configured; invitations will only be logged")
		return notify.NewLogNotifier(logger)
	}
	return notify.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, logger)
}

// requestLogger logs every HTTP request at debug level.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
