package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/backend"
	"github.com/me/folio/internal/config"
	"github.com/me/folio/internal/logging"
	"github.com/me/folio/internal/media"
	"github.com/me/folio/internal/server"
	"github.com/me/folio/internal/session"
	"github.com/me/folio/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr   string
		secure bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("secure-cookies") {
				cfg.SecureCookies = secure
			}
			if cmd.Flags().Changed("log-level") || flagDebug {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			srv, provider, err := buildServer(ctx, cfg, st, logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			return listenAndServe(ctx, cfg.Addr, srv.Handler(), logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (or FOLIO_ADDR)")
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "Set the Secure attribute on session cookies (or FOLIO_SECURE_COOKIES)")
	return cmd
}

// buildServer wires the session backend, gate, metrics and optional media
// storage around st. The returned provider owns the backend connection.
func buildServer(ctx context.Context, cfg config.ServerConfig, st store.Store, logger *slog.Logger) (*server.Server, *backend.Provider, error) {
	provider := backend.NewProvider(cfg.BackendURL, logger)
	// Redis parses the URL; a bad one must stop startup, not every request.
	if _, err := provider.Redis(); err != nil {
		return nil, nil, fmt.Errorf("session backend: %w", err)
	}

	sessions, err := session.NewManager(provider, session.Config{
		Key:        []byte(cfg.BackendKey),
		Issuer:     "folio",
		AccessTTL:  cfg.AccessTTL,
		SessionTTL: cfg.SessionTTL,
		Secure:     cfg.SecureCookies,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	policy, err := auth.NewRoutePolicy(cfg.GatePatterns, cfg.LoginPath, cfg.AdminHome)
	if err != nil {
		return nil, nil, fmt.Errorf("gate policy: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := auth.NewMetrics(registry)
	gate := auth.NewGate(policy, auth.NewResolver(sessions, logger, metrics), logger, metrics)

	opts := []server.Option{
		server.WithRegistry(registry),
		server.WithHealthCheck("sessions", provider.Ping),
	}
	if cfg.MediaEnabled() {
		uploader, err := media.NewS3Uploader(ctx, cfg.MediaBucket, cfg.MediaRegion, cfg.MediaPublicURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("media storage: %w", err)
		}
		opts = append(opts, server.WithMediaUploader(uploader))
		logger.Info("media uploads enabled", "bucket", cfg.MediaBucket, "region", cfg.MediaRegion)
	}

	return server.New(cfg, st, gate, sessions, logger, opts...), provider, nil
}

// listenAndServe runs handler on addr until ctx is cancelled, then shuts
// down gracefully.
func listenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
