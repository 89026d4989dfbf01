package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-authority/internal/config"
	"license-authority/internal/infra/api"
	pg "license-authority/internal/infra/db/postgres"
	"license-authority/internal/infra/logging"
	"license-authority/internal/infra/metrics"
	"license-authority/internal/infra/notify"
	red "license-authority/internal/infra/redis"
	"license-authority/internal/infra/sched"
	"license-authority/internal/infra/worker"
	"license-authority/internal/token"
	"license-authority/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Signing keys ----
	pub, err := token.LoadPublicKeyFile(cfg.Signing.PublicKeyFile)
	if err != nil {
		log.Fatalf("public key: %v", err)
	}
	var priv ed25519.PrivateKey
	if cfg.Signing.PrivateKeyFile != "" {
		priv, err = token.LoadPrivateKeyFile(cfg.Signing.PrivateKeyFile)
		if err != nil {
			log.Fatalf("private key: %v", err)
		}
	} else {
		logger.Warn().Msg("no private key configured; issuance will fail, verification only")
	}
	codec := token.NewCodec(cfg.Signing.IssuerTag, cfg.Signing.Audience, priv, pub)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis (optional; only backs the verify rate limiter) ----
	var limiter *red.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- Repositories ----
	licenseRepo := pg.NewLicenseRepo(pool)
	eventRepo := pg.NewActivationEventRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Background workers ----
	auditPool := worker.NewPool(cfg.Worker.AuditWriters, logger)
	auditPool.Start(ctx)
	defer auditPool.Stop()

	// ---- Admin alerts ----
	var notifier usecase.AdminNotifier = notify.Noop{}
	if cfg.Alerts.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, logger)
		if err != nil {
			log.Fatalf("telegram notifier: %v", err)
		}
		notifier = tg
	}

	// ---- Use case ----
	licUC := usecase.NewLicenseUseCase(
		licenseRepo, eventRepo, txManager, codec,
		cfg.Policy.OneActivePerSubjectTier,
		auditPool, notifier, logger,
	)

	// ---- Expiry scan worker ----
	expiry := sched.NewExpiryWorker(cfg.Expiry.ScanInterval, cfg.Expiry.AlertWindow, licenseRepo, notifier, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP ----
	metrics.MustRegister()
	srv := api.NewServer(licUC, limiter, cfg.RateLimit.VerifyPerMinute, cfg.Server.AdminAPIKey, cfg.Server.RequestTimeout, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
