package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shisei-toshokan/shisei/common/httputil"
	"github.com/shisei-toshokan/shisei/common/logging"
	"github.com/shisei-toshokan/shisei/web/internal/auth"
	"github.com/shisei-toshokan/shisei/web/internal/config"
	"github.com/shisei-toshokan/shisei/web/internal/csp"
	"github.com/shisei-toshokan/shisei/web/internal/handlers"
	"github.com/shisei-toshokan/shisei/web/internal/middleware"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
	"github.com/shisei-toshokan/shisei/web/internal/proxy"
	"github.com/shisei-toshokan/shisei/web/internal/ratelimit"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
	"github.com/shisei-toshokan/shisei/web/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).With(logging.Service("web"))
	logging.SetDefault(logger)

	if err := run(cfg, logger.Logger); err != nil {
		logger.Error("web guard stopped", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	trustedProxies, err := httputil.ParseTrustedProxies(cfg.Security.TrustedProxies)
	if err != nil {
		return fmt.Errorf("security.trusted_proxies: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := connectRedis(ctx, cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := connectNATS(cfg.NATS, logger)
	defer publisher.Close()

	repo, err := openRepository(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	monitor := secmon.NewMonitor(eventStore(cfg.Security, rdb, cfg.Redis.Prefix), publisher, logger)

	perfService := perf.NewService(perf.Deps{
		Snapshots: perf.NewMemorySnapshotStore(),
		Sinks:     snapshotSinks(cfg, repo),
		Baselines: baselineStore(cfg.Telemetry, rdb, cfg.Redis.Prefix),
		Alerts:    alertStore(repo),
		Publisher: publisher,
		Logger:    logger,
	})

	limiter := rateLimiter(cfg.Telemetry, rdb, cfg.Redis.Prefix)
	defer limiter.Close()
	if mem, ok := limiter.(*ratelimit.MemoryRateLimiter); ok {
		go pruneLoop(ctx, mem, cfg.Telemetry.RateLimitWindow)
	}

	var verifier *auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	} else {
		logger.Warn("no JWT secret configured, admin sessions disabled")
	}

	security := middleware.SecurityConfig{
		Policy: csp.PolicyConfig{
			IsProd:             cfg.CSP.IsProduction(),
			UseNonce:           cfg.CSP.UseNonce,
			ReportOnly:         cfg.CSP.ReportOnly,
			UseVercelAnalytics: cfg.CSP.UseVercelAnalytics,
			AllowVercelLive:    cfg.CSP.AllowVercelLive,
			ReportURI:          cfg.CSP.ReportURI,
		},
		Inspector: monitor,
		Logger:    logger,
	}
	if cfg.Auth.URL != "" {
		client := auth.NewClient(cfg.Auth.URL, 10*time.Second)
		security.Refresher = auth.NewSessionRefresher(client, verifier, cfg.Auth.CookieDomain, cfg.Auth.CookieSecure, logger)
	}

	router := server.NewRouter(server.RouterConfig{
		CSPReports:         handlers.NewCSPReportHandler(reportStore(ctx, cfg, logger), publisher, cfg.Telemetry.MaxBodyBytes, logger),
		Performance:        handlers.NewPerformanceHandler(perfService, cfg.Telemetry.MaxBodyBytes, logger),
		SecurityEvents:     handlers.NewSecurityEventsHandler(monitor, logger),
		AdminGuard:         auth.NewAdminGuard(verifier, cfg.Auth.AdminRole, cfg.Auth.AdminAPIKeyHash, monitor, logger),
		Limiter:            limiter,
		Events:             monitor,
		Security:           security,
		Renderer:           proxy.NewProxy(cfg.Upstream.URL, cfg.Upstream.Timeout, logger).Handler(),
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		TrustedProxies:     trustedProxies,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web guard listening",
			slog.String("addr", srv.Addr),
			slog.String("environment", cfg.CSP.Environment),
			slog.String("upstream", cfg.Upstream.URL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

func pruneLoop(ctx context.Context, limiter *ratelimit.MemoryRateLimiter, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
