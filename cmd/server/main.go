// Command server runs the driver onboarding API.
//
// Backing services are optional and selected by environment: without
// DATABASE_URL the process runs on in-memory stores, without REDIS_URL the
// payload cache is disabled, without KAFKA_BROKERS audit events stay local.
// That keeps local development a single binary with zero dependencies.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"onramp/internal/audit"
	httpapi "onramp/internal/http"
	"onramp/internal/jwtauth"
	"onramp/internal/onboarding/handler"
	onboardingmetrics "onramp/internal/onboarding/metrics"
	"onramp/internal/onboarding/service"
	"onramp/internal/onboarding/store"
	"onramp/internal/platform/config"
	"onramp/internal/platform/httpserver"
	"onramp/internal/platform/logger"
	"onramp/internal/platform/metrics"
	platformredis "onramp/internal/platform/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	onboardingStore, auditStore, cleanupStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanupStores()

	publisherOpts := []audit.PublisherOption{audit.WithAsyncBuffer(256)}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer sink.Close()
		publisherOpts = append(publisherOpts, audit.WithSink(sink))
		log.Info("audit kafka sink enabled", "topic", cfg.AuditTopic)
	}
	publisher := audit.NewPublisher(auditStore, log, publisherOpts...)
	defer publisher.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	platformMetrics := metrics.New()
	serviceOpts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(onboardingmetrics.New()),
		service.WithBackgroundCheckRequired(cfg.BackgroundCheckRequired),
	}
	if redisClient != nil {
		serviceOpts = append(serviceOpts,
			service.WithPayloadCache(service.NewRedisPayloadCache(redisClient.Client, cfg.PayloadCacheTTL, log)))
	}
	svc := service.New(onboardingStore, serviceOpts...)

	jwtService := jwtauth.NewService(cfg.JWTSigningKey)
	driverHandler := handler.New(svc, log, platformMetrics, jwtService)
	adminHandler := handler.NewAdmin(svc, publisher, log, platformMetrics, jwtService)

	var health []httpapi.HealthChecker
	if redisClient != nil {
		health = append(health, redisClient)
	}
	server := httpserver.New(cfg.Addr, httpapi.NewRouter(driverHandler, adminHandler, health))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStores selects persistent or in-memory storage. Both stores share the
// one database so a single DATABASE_URL configures the whole process.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, audit.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return store.NewMemoryStore(), audit.NewInMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	onboardingStore := store.NewPostgresStore(pool)
	if err := onboardingStore.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	auditDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	auditStore := audit.NewPostgresStore(auditDB)
	if err := auditStore.Migrate(ctx); err != nil {
		pool.Close()
		_ = auditDB.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = auditDB.Close()
	}
	return onboardingStore, auditStore, cleanup, nil
}
