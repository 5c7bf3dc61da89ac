package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/dealer-trust-engine/internal/api"
	"github.com/irfndi/dealer-trust-engine/internal/api/handlers"
	"github.com/irfndi/dealer-trust-engine/internal/cache"
	"github.com/irfndi/dealer-trust-engine/internal/config"
	"github.com/irfndi/dealer-trust-engine/internal/logging"
	"github.com/irfndi/dealer-trust-engine/internal/metrics"
	"github.com/irfndi/dealer-trust-engine/internal/middleware"
	"github.com/irfndi/dealer-trust-engine/internal/services"
	"github.com/irfndi/dealer-trust-engine/internal/telemetry"
	"github.com/irfndi/dealer-trust-engine/pkg/interfaces"
	"github.com/irfndi/dealer-trust-engine/pkg/probe"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()

	// Initialize telemetry first
	provider, err := telemetry.InitTelemetry(ctx, telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown telemetry: %v\n", err)
		}
	}()

	stdLogger, otlpLogger := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})
	if otlpLogger != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otlpLogger.Shutdown(shutdownCtx)
		}()
	}

	// Engine services log through logrus
	logger := logging.NewLogrusLogger(cfg.LogLevel, cfg.Environment)

	collector := metrics.NewCollector()

	store, storeCheck, closeStore, err := newStore(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	probeClient := probe.NewClient(&cfg.Probe, logger)
	pool := newGeoPool(cfg.Engine.Pool, store, probeClient.Acquire, logger, collector)

	sweeper := services.NewPoolSweeper(pool, logger)
	sweeper.Start(cfg.Engine.Pool.SweepInterval)
	defer sweeper.Stop()

	feedback := services.NewFeedbackLoop(cfg.Engine.Feedback, logger, collector)

	healthChecks := map[string]handlers.Checker{
		"probe": func(ctx context.Context) error {
			_, err := probeClient.HealthCheck(ctx)
			return err
		},
	}
	if storeCheck != nil {
		healthChecks["redis"] = storeCheck
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger, "/health", "/metrics"))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	api.SetupRoutes(router, api.Engine{
		Calculator:   services.NewCompositeCalculator(logger, collector),
		Smoother:     services.NewTimeSeriesSmoother(cfg.Engine.Smoother.ProcessNoise, cfg.Engine.Smoother.MeasurementNoise),
		Validator:    services.NewModelValidator(cfg.Engine.Validator, logger),
		Confidence:   services.NewConfidenceStore(store, feedback, cfg.Engine.Feedback.DefaultConfidence, logger),
		Pool:         pool,
		Ranker:       services.NewPriorityRanker(nil),
		VarianceSeed: cfg.Engine.Pool.VarianceSeed,
		Metrics:      collector,
		HealthChecks: healthChecks,
		Version:      cfg.Telemetry.ServiceVersion,
		Logger:       logger,
	})

	// Create HTTP server with security timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		stdLogger.LogStartup(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	stdLogger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// newStore picks Redis when enabled and process memory otherwise. The
// returned checker is nil for the memory store.
func newStore(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) (interfaces.KeyValueStore, handlers.Checker, func(), error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled, keeping engine state in memory")
		return cache.NewMemoryStore(), nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.WithField("addr", client.Options().Addr).Info("Successfully connected to Redis")

	store := cache.NewRedisStore(client, cfg.Namespace, logger)
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis connection")
		}
	}
	return store, store.HealthCheck, closeFn, nil
}

// newGeoPool guards the acquisition with retries inside a circuit breaker so
// an unavailable probe fails fast once the breaker opens.
func newGeoPool(cfg config.PoolConfig, store interfaces.KeyValueStore, acquire services.AcquireFunc, logger *logrus.Logger, collector *metrics.Collector) *services.GeoQueryPool {
	breaker := services.NewCircuitBreaker("geo_probe", services.CircuitBreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
	}, logger)
	guarded := breaker.Wrap(services.WithRetry(acquire, services.DefaultAcquireRetryPolicy(), logger))

	return services.NewGeoQueryPool(services.GeoPoolConfig{
		TTL:          cfg.TTL,
		CostPerQuery: decimal.NewFromFloat(cfg.CostPerQuery),
	}, store, guarded, services.NewSeededVariance(cfg.VarianceSeed), logger, collector)
}
