// Package main - entry point for the gamification ledger service.
//
// The service sits next to the math tutoring session: it ingests
// problem.completed events, fans them out to the XP ledger, streaks, goals,
// achievements and challenges, and serves reconciled ledger snapshots back to
// the UI.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: pure ledger/goal/challenge logic without external dependencies
// - Application: orchestration (event handlers, commands, reconciliation)
// - Infrastructure: Postgres ledger, Redis cache, event bus, scheduler
// - Interface: HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tutorhub/tutor-hub/config"

	// Application layer
	"github.com/tutorhub/tutor-hub/internal/application/command"
	"github.com/tutorhub/tutor-hub/internal/application/eventhandler"
	"github.com/tutorhub/tutor-hub/internal/application/orchestrator"
	"github.com/tutorhub/tutor-hub/internal/application/reconcile"

	// Infrastructure layer
	"github.com/tutorhub/tutor-hub/internal/infrastructure/messaging"
	"github.com/tutorhub/tutor-hub/internal/infrastructure/persistence/postgres"
	"github.com/tutorhub/tutor-hub/internal/infrastructure/persistence/redis"
	"github.com/tutorhub/tutor-hub/internal/infrastructure/scheduler"
	"github.com/tutorhub/tutor-hub/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/tutorhub/tutor-hub/internal/interface/http"

	// Domain
	"github.com/tutorhub/tutor-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting gamification ledger service",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, cfg.Database.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	applied, err := migrator.GetAppliedMigrations(ctx)
	if err != nil {
		log.Warn("failed to read migration status", "error", err)
	} else {
		log.Info("migrations completed", "applied", len(applied))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var ledgerCache *redis.LedgerCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			// The Postgres ledger is the source of truth; the service stays
			// correct without the cache tier, only slower.
			log.Warn("failed to connect to Redis, cache tier disabled", "error", err)
			redisCache = nil
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = redisCache.Close()
			}()
			ledgerCache = redis.NewLedgerCache(redisCache)
			log.Info("Redis connection established")
		}
	} else {
		log.Info("Redis disabled, running without cache tier")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	xpRepo := postgres.NewXPRepository(dbConn)
	streakRepo := postgres.NewStreakRepository(dbConn)
	problemRepo := postgres.NewProblemRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	goalRepo := postgres.NewGoalRepository(dbConn)
	challengeRepo := postgres.NewChallengeRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS & DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log

	var eventBus shared.EventBus
	var closeBus func() error

	if cfg.Redis.DistributedBus && redisCache != nil {
		hostname, _ := os.Hostname()
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			InstanceID:     hostname,
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		eventBus = redisBus
		closeBus = redisBus.Close
		log.Info("using distributed Redis event bus", "instance_id", hostname)
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusConfig)
		eventBus = localBus
		closeBus = localBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = log
	dispatcherConfig.HandlerTimeout = cfg.Gamification.HandlerTimeout
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	defer func() { _ = dispatcher.Stop() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	// Typed-nil interfaces would dodge the nil checks inside the handlers, so
	// the cache-backed interfaces are only assigned when Redis is up.
	var cacheMirror orchestrator.CacheMirror
	var cacheWriter reconcile.CacheWriter
	var noticeStore orchestrator.NoticeStore
	var xpMirror command.XPMirror
	if ledgerCache != nil {
		cacheMirror = ledgerCache
		cacheWriter = ledgerCache
		noticeStore = &noticeStoreAdapter{cache: ledgerCache}
		xpMirror = ledgerCache
	}

	resolver := orchestrator.NewProblemResolver(problemRepo)

	problemCompletedConfig := orchestrator.DefaultProblemCompletedConfig()
	problemCompletedConfig.StepTimeout = cfg.Gamification.StepTimeout
	problemCompletedHandler := orchestrator.NewOnProblemCompletedHandler(
		xpRepo,
		streakRepo,
		problemRepo,
		achievementRepo,
		goalRepo,
		challengeRepo,
		resolver,
		dispatcher,
		cacheMirror,
		log,
		problemCompletedConfig,
	)

	rescuer := orchestrator.NewStreakRescuer(streakRepo, challengeRepo, dispatcher, noticeStore, log)

	reconciler := reconcile.NewReconciler(
		xpRepo,
		streakRepo,
		problemRepo,
		achievementRepo,
		goalRepo,
		challengeRepo,
		cacheWriter,
		log,
		reconcile.DefaultConfig(),
	)

	dailyLoginCmd := command.NewDailyLoginCommand(
		xpRepo,
		dispatcher,
		xpMirror,
		log,
		shared.XP(cfg.Gamification.DailyLoginXP),
	)

	goalCompletedHandler := eventhandler.NewOnGoalCompletedHandler(
		achievementRepo,
		dispatcher,
		log,
		eventhandler.DefaultGoalCompletedConfig(),
	)

	streakAtRiskHandler := eventhandler.NewOnStreakAtRiskHandler(
		reconciler,
		log,
		eventhandler.DefaultStreakAtRiskConfig(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. EVENT HANDLER REGISTRATION
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")
	if err := dispatcher.Register(
		problemCompletedHandler.EventType(),
		"on_problem_completed",
		problemCompletedHandler.Handle,
		problemCompletedHandler.Emits()...,
	); err != nil {
		return fmt.Errorf("failed to register problem-completed handler: %w", err)
	}
	if err := dispatcher.Register(
		goalCompletedHandler.EventType(),
		"on_goal_completed",
		goalCompletedHandler.Handle,
		goalCompletedHandler.Emits()...,
	); err != nil {
		return fmt.Errorf("failed to register goal-completed handler: %w", err)
	}
	if err := dispatcher.Register(
		streakAtRiskHandler.EventType(),
		"on_streak_at_risk",
		streakAtRiskHandler.Handle,
		streakAtRiskHandler.Emits()...,
	); err != nil {
		return fmt.Errorf("failed to register streak-at-risk handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler...")
		schedConfig := scheduler.DefaultConfig()
		schedConfig.Logger = log
		sched = scheduler.NewScheduler(schedConfig)

		sweepConfig := jobs.DefaultStreakSweepConfig()
		sweepConfig.BatchLimit = cfg.Scheduler.StreakSweepBatchLimit
		sweepConfig.SweepTimeout = cfg.Scheduler.JobTimeout
		sweepJob := jobs.NewStreakSweepJob(rescuer, log, sweepConfig)

		if err := sched.Register(sweepJob, scheduler.Every(cfg.Scheduler.StreakSweepInterval)); err != nil {
			return fmt.Errorf("failed to register streak sweep job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler started", "streak_sweep_interval", cfg.Scheduler.StreakSweepInterval.String())
	} else {
		log.Info("scheduler disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins

	stores := map[string]httpserver.Pinger{"postgres": dbConn}
	if redisCache != nil {
		stores["redis"] = redisCache
	}

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		Publisher:  dispatcher,
		Reconciler: reconciler,
		DailyLogin: dailyLoginCmd,
		Challenges: challengeRepo,
		Stores:     stores,
		Logger:     log,
	})

	errCh := httpServer.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("gamification ledger service is running", "http_address", httpServer.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Stop accepting HTTP requests
	log.Info("stopping HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 2. Stop the scheduler (waits for running jobs)
	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler gracefully", "error", err)
			shutdownErr = err
		}
	}

	// 3. Event bus, Redis and the database close via defers

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// noticeStoreAdapter bridges the orchestrator's notice type to the Redis cache.
type noticeStoreAdapter struct {
	cache *redis.LedgerCache
}

func (a *noticeStoreAdapter) SetStreakNotice(ctx context.Context, subject shared.Subject, notice orchestrator.StreakNotice) error {
	return a.cache.SetStreakNotice(ctx, subject, redis.StreakNotice{
		CurrentStreak: notice.CurrentStreak,
		LastStudyDate: notice.LastStudyDate,
		ShareCode:     notice.ShareCode,
		CreatedAt:     notice.CreatedAt,
	})
}

// setupLogger configures structured logging from the observability settings.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
