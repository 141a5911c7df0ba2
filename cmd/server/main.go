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

	"github.com/actuallystonmai/cratebuddy/internal/cache"
	"github.com/actuallystonmai/cratebuddy/internal/config"
	"github.com/actuallystonmai/cratebuddy/internal/domain"
	"github.com/actuallystonmai/cratebuddy/internal/handler"
	"github.com/actuallystonmai/cratebuddy/internal/logging"
	"github.com/actuallystonmai/cratebuddy/internal/model"
	"github.com/actuallystonmai/cratebuddy/internal/repository"
	"github.com/actuallystonmai/cratebuddy/internal/router"
	"github.com/actuallystonmai/cratebuddy/internal/scraper"
	"github.com/actuallystonmai/cratebuddy/internal/service"
	"github.com/actuallystonmai/cratebuddy/seeds"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse database config")
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool); err != nil {
		logging.Fatal().Err(err).Msg("database not ready")
	}
	logging.Info().Msg("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	// for migrate-down using CLI command
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := migrateDown(ctx, pool); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate down")
		}
		return
	}

	if err := migrateUp(ctx, pool); err != nil {
		logging.Fatal().Err(err).Msg("failed to migrate up")
	}

	repo := repository.NewRepository(pool)

	// ------------ Setup Seed Data ---------------
	if err := checkSeed(ctx, repo); err != nil {
		logging.Fatal().Err(err).Msg("failed to check seed")
	}

	go seeds.Keep(ctx, repo, seeds.RefreshInterval)

	// ------------ Redis ---------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	resultCache := cache.NewCache(rdb, cfg.CacheTTL)
	if err := resultCache.Ping(ctx); err != nil {
		// the service still answers without the result cache
		logging.Warn().Err(err).Msg("redis not reachable")
	} else {
		logging.Info().Msg("connected to Redis")
	}

	// ------------ Service ---------------
	fetcher := scraper.New(scraper.Config{
		BaseURL:    cfg.UpstreamBaseURL,
		RequestGap: cfg.RequestGap,
		Timeout:    cfg.UpstreamTimeout,
	}, repo)
	svc := service.NewService(fetcher, resultCache, model.NewClient(domain.DefaultWeights))

	h := handler.NewHandler(svc, map[string]handler.HealthCheck{
		"postgres": pool.Ping,
		"redis":    resultCache.Ping,
	})

	// ---------------- Server --------------------
	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.Setup(h, router.Options{
			AllowedOrigins:  cfg.AllowedOrigins(),
			RequestTimeout:  cfg.RequestTimeout,
			RateLimitReqs:   cfg.RateLimitReqs,
			RateLimitWindow: cfg.RateLimitWindow,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logging.Error().Err(err).Msg("server failed")
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		logging.Info().Msgf("waiting for database... (%d/30)", i+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func migrateDown(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("migrations/create_tables.down.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	logging.Info().Msg("migrations dropped successfully")
	return nil
}

func migrateUp(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("migrations/create_tables.up.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	logging.Info().Msg("migrations applied successfully")
	return nil
}

func checkSeed(ctx context.Context, repo *repository.Repository) error {
	return seeds.Ensure(ctx, repo)
}
