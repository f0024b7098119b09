// Package main is the entry point for the back-office admin server. It
// shares the PostgreSQL ledger with the API server and exposes admin-only
// endpoints behind an IP allowlist and the admin role.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giovanna-britto/Snake-Battle/internal/backoffice"
	"github.com/giovanna-britto/Snake-Battle/internal/cache/redis"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	if cfg.UsesMemoryStore() {
		logger.Error("the backoffice needs the postgres ledger; with the memory driver the API server hosts it")
		os.Exit(1)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := repository.Connect(cfg.DB)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")
	store := repository.NewPostgresStore(db)

	// ── Services ──────────────────────────────────────────────────────────────
	// Challenges live in Redis when it is configured so they survive restarts.
	var challenges service.ChallengeStore = service.NewMemoryChallenges()
	if cfg.Redis.Addr != "" {
		rdb, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.Error("redis connection failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		challenges = redis.NewChallengeStore(rdb)
	}
	authSvc := service.NewAuthService(challenges, cfg, logger)
	treasury := service.NewTreasuryService(store, logger)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:  authSvc,
		Treasury: treasury,
		Reader:   store,
		Hub:      nil, // backoffice does not directly serve WS
		Cfg:      cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}
