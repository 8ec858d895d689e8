package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/account"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance API server.
The model is rebuilt from stored enrollment images before the server
starts accepting requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("no-sweep", false, "Disable the orphaned image sweeper")
	serveCmd.Flags().Float64("auth-rate-limit", 0, "Auth requests per second per client IP (overrides WEB_AUTH_RATE_LIMIT)")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "Extra CORS origin, repeatable (added to WEB_ALLOWED_ORIGINS)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if limit := mustGetFloat64(cmd, "auth-rate-limit"); limit > 0 {
		cfg.Web.AuthRateLimit = limit
	}
	cfg.Web.AllowedOrigins = append(cfg.Web.AllowedOrigins, mustGetStringSlice(cmd, "allowed-origin")...)
	location, err := cfg.Attendance.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if err := m.RegisterDB(store.DB(), string(store.Dialect())); err != nil {
		return fmt.Errorf("registering database metrics: %w", err)
	}

	parts, err := buildEngine(cfg, store, m, log)
	if err != nil {
		return err
	}
	defer parts.Close()

	stats, err := parts.engine.Initialize(ctx)
	if err != nil {
		// Verification keeps failing with model_not_initialized until an
		// admin rebuild succeeds.
		log.Error("initial model build failed", zap.Error(err))
	} else {
		log.Info("model ready",
			zap.Bool("initialized", stats.Initialized),
			zap.Int("samples", stats.Samples),
			zap.Int("components", stats.Components),
			zap.Duration("duration", stats.Duration))
	}

	if !mustGetBool(cmd, "no-sweep") {
		sweeper := imagestore.NewSweeper(parts.images, store, cfg.Storage.SweepInterval, cfg.Storage.SweepGrace, log.Named("sweeper"))
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("starting image sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	tokens, err := middleware.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.PendingTTL, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	if cfg.Auth.TokenSecret == "" {
		log.Warn("AUTH_TOKEN_SECRET is empty, using a random key; tokens will not survive a restart")
	}

	server, err := web.NewServer(cfg, web.Dependencies{
		Engine:   parts.engine,
		Store:    store,
		Accounts: account.NewService(store, log.Named("account")),
		Recorder: attendance.NewRecorder(store, location,
			attendance.WithObserver(m),
			attendance.WithLogger(log.Named("attendance"))),
		Tokens:  tokens,
		Metrics: m,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
