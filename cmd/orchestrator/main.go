// The orchestrator binary runs the Temporal worker for research workflows
// plus the public HTTP API and the metrics endpoint.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/horizon-research/horizon/internal/activities"
	"github.com/horizon-research/horizon/internal/config"
	"github.com/horizon-research/horizon/internal/contentsvc"
	"github.com/horizon-research/horizon/internal/db"
	"github.com/horizon-research/horizon/internal/health"
	"github.com/horizon-research/horizon/internal/httpapi"
	"github.com/horizon-research/horizon/internal/session"
	"github.com/horizon-research/horizon/internal/streaming"
	"github.com/horizon-research/horizon/internal/tracing"
	"github.com/horizon-research/horizon/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	store, err := session.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SessionTTL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	var archive *db.Archive
	if cfg.Postgres.Enabled {
		archive, err = db.NewArchive(cfg.Postgres.DSN, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Postgres archive", zap.Error(err))
		}
		defer archive.Close()
	} else {
		logger.Info("Postgres archive disabled")
	}

	content := contentsvc.NewHTTPClient(contentsvc.Config{
		BaseURL:        cfg.Content.BaseURL,
		APIKey:         cfg.Content.APIKey,
		Timeout:        cfg.Content.Timeout,
		RequestsPerSec: cfg.Content.RequestsPerSec,
		Burst:          cfg.Content.Burst,
	}, logger)

	hub := streaming.NewHub()
	acts := activities.NewActivities(content, store, hub, archive, cfg.Research, logger)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ResearchWorkflow)
	// Helper methods on the activity struct (pure calculators) are not
	// activities themselves.
	w.RegisterActivityWithOptions(acts, activity.RegisterOptions{SkipInvalidStructFunctions: true})
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start Temporal worker", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("Temporal worker started",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("host_port", cfg.Temporal.HostPort),
	)

	var auth *httpapi.Authenticator
	if cfg.Auth.Enabled {
		if cfg.Auth.JWTSecret == "" {
			logger.Fatal("auth.enabled requires auth.jwt_secret")
		}
		auth = httpapi.NewAuthenticator(cfg.Auth.JWTSecret)
	}
	hm := health.NewManager(logger)
	hm.Register("redis", true, store.Ping)
	hm.Register("content_service", false, content.Ping)
	if archive != nil {
		hm.Register("postgres", false, archive.Ping)
	}
	api := httpapi.NewServer(temporalClient, store, hub, hm, cfg.Temporal.TaskQueue, auth, logger)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections stay open
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("HTTP API listening", zap.Int("port", cfg.Service.HTTPPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP API server failed", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: metricsMux,
	}
	go func() {
		logger.Info("Metrics endpoint listening", zap.Int("port", cfg.Service.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP API shutdown incomplete", zap.Error(err))
	}
	_ = metricsServer.Shutdown(ctx)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
