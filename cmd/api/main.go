// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

// Command api is the entry point for the GapGens session seat service.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the session store (PostgreSQL + migrations, or in-memory).
//  4. Open the event bus (Redis when configured, in-process otherwise).
//  5. Load the auth provider's verification key, if configured.
//  6. Wire the session service and HTTP handlers.
//  7. Serve until SIGINT/SIGTERM, then shut down gracefully.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gapgens/gapgens/internal/api"
	"github.com/gapgens/gapgens/internal/platform/config"
	"github.com/gapgens/gapgens/internal/platform/constants"
	"github.com/gapgens/gapgens/internal/platform/metrics"
	"github.com/gapgens/gapgens/internal/platform/middleware"
	"github.com/gapgens/gapgens/internal/platform/migration"
	pgstore "github.com/gapgens/gapgens/internal/platform/postgres"
	redisstore "github.com/gapgens/gapgens/internal/platform/redis"
	"github.com/gapgens/gapgens/internal/platform/sec"
	"github.com/gapgens/gapgens/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("store_driver", cfg.StoreDriver),
		slog.Int("seat_cap", cfg.SeatCap),
		slog.String("eviction_mode", cfg.EvictionMode),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Startup deadline so misconfiguration is caught quickly rather than hanging.
	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startupCancel()

	var healthDeps api.HealthDependencies

	// ── 3. Session Store ──────────────────────────────────────────────────
	var store session.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, cfg.StoreTimeout, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		}()

		healthDeps.CheckDatabase = func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }
		store = session.NewPostgresStore(pool)

	case config.DriverMemory:
		log.Warn("memory_store_enabled", slog.String("note", "sessions are lost on restart and not shared between instances"))
		store = session.NewMemoryStore()
	}

	// ── 4. Event Bus ──────────────────────────────────────────────────────
	var events session.EventBus = session.NewMemoryEventBus(log)
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		healthDeps.CheckCache = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
		events = session.NewRedisEventBus(rdb, log)
	}

	// ── 5. Identity Verification ──────────────────────────────────────────
	var verifier middleware.TokenVerifier
	if cfg.AuthPublicKeyPath != "" {
		tokenVerifier, err := sec.NewTokenVerifier(cfg.AuthPublicKeyPath, cfg.AuthIssuer)
		must(log, err, "load auth public key")
		verifier = tokenVerifier
	}

	hasher, err := sec.NewTokenHasher(cfg.SessionSecret)
	must(log, err, "initialize token hasher")

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	recorder := metrics.NewRecorder()

	service := session.NewService(store, hasher, session.Policy{
		SeatCap:      cfg.SeatCap,
		SessionTTL:   cfg.SessionTTL,
		StoreTimeout: cfg.StoreTimeout,
		EvictionMode: session.EvictionMode(cfg.EvictionMode),
		TouchOnReuse: cfg.TouchOnReuse,
	}, log, session.WithEventBus(events), session.WithMetrics(recorder))

	sessionHandler := session.NewHandler(service, session.HandlerConfig{
		SignInPath:      cfg.SignInPath,
		RequireAuth:     verifier != nil,
		OriginPatterns:  cfg.OriginHosts(),
		InsecureOrigins: cfg.IsDevelopment(),
	})

	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(ctx, cfg, log, verifier, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   recorder.Handler(),
		Session:   sessionHandler,
	})

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))
		return server.Shutdown(constants.ShutdownTimeout)
	})

	if err := group.Wait(); err != nil {
		log.Error("server_stopped_with_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", "gapgens"))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
