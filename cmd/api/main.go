package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/staffcal/staffcal/internal/api/router"
	"github.com/staffcal/staffcal/internal/audit"
	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/booking"
	appconfig "github.com/staffcal/staffcal/internal/config"
	"github.com/staffcal/staffcal/internal/feed"
	"github.com/staffcal/staffcal/internal/http/handlers"
	"github.com/staffcal/staffcal/internal/notify"
	"github.com/staffcal/staffcal/internal/observability/metrics"
	"github.com/staffcal/staffcal/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting staffcal availability service",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	redisClient := buildRedis(ctx, cfg, logger)
	if redisClient == nil {
		logger.Error("redis is required for the availability store")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	// Postgres is optional: without it the booked layer is empty and audit
	// is disabled, which suits local development.
	var (
		bookingSource booking.Source
		sqlDB         *sql.DB
		auditService  *audit.Service
	)
	var listeners []availability.ChangeListener
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		bookingSource = booking.NewPostgresSource(pool)

		sqlDB, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open sql db", "error", err)
			os.Exit(1)
		}
		defer sqlDB.Close()
		auditService = audit.NewService(sqlDB, logger)
		listeners = append(listeners, auditService)
	} else {
		logger.Warn("DATABASE_URL not set; booked layer and audit trail disabled")
	}

	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName, logger); sg != nil {
		sender = sg
	}
	listeners = append(listeners, notify.NewService(sender, cfg.ReviewInboxEmail, logger))

	store := availability.NewStore(redisClient, logger, listeners...)

	syncer := feed.NewSyncer(store, feed.SyncerOptions{
		Timeout: cfg.FeedSyncTimeout,
		Logger:  logger,
		Metrics: engineMetrics,
	})
	refresher := feed.NewRefresher(syncer, logger)
	refresher.Start(ctx, cfg.FeedRefreshCron)
	defer refresher.Stop()

	availabilityHandler := handlers.NewAvailabilityHandler(store, bookingSource, syncer, logger, engineMetrics)
	availabilityHandler.SaveTimeout = cfg.SaveTimeout
	if auditService != nil {
		availabilityHandler.Audit = auditService
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Availability:       availabilityHandler,
		PortalJWTSecret:    cfg.PortalJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		return nil
	}
	return client
}
