// Package main is the entry point for the escrow match API server. It wires
// the ledger store, the match engine and its publishers, then starts the
// HTTP server alongside the WebSocket hub and background scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/giovanna-britto/Snake-Battle/internal/api"
	"github.com/giovanna-britto/Snake-Battle/internal/backoffice"
	"github.com/giovanna-britto/Snake-Battle/internal/cache/redis"
	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/crypto"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
	"github.com/giovanna-britto/Snake-Battle/internal/repository/memory"
	"github.com/giovanna-britto/Snake-Battle/internal/scheduler"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
	"github.com/giovanna-britto/Snake-Battle/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting match server",
		"env", cfg.Server.Env, "port", cfg.Server.Port, "ledger", cfg.Ledger.Name, "driver", cfg.Ledger.Driver)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Ledger store ───────────────────────────────────────────────────────
	var store repository.Store
	closeStore := func() {}
	if cfg.UsesMemoryStore() {
		store = memory.NewStore()
		logger.Warn("using in-memory ledger; balances are lost on restart")
	} else {
		db, err := repository.Connect(cfg.DB)
		if err != nil {
			logger.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		logger.Info("database connected")
		if err = repository.RunMigrations(db, "migrations"); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
		store = repository.NewPostgresStore(db)
		closeStore = func() { db.Close() }
	}

	// ── 4. Redis (optional) ───────────────────────────────────────────────────
	var (
		rdb        *redis.Client
		locker     service.Locker         = service.NewLocalLocker()
		challenges service.ChallengeStore = service.NewMemoryChallenges()
	)
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.Error("redis connection failed", "err", err)
			os.Exit(1)
		}
		locker = redis.NewLockManager(rdb)
		challenges = redis.NewChallengeStore(rdb)
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// ── 5. Server identity ────────────────────────────────────────────────────
	var identity common.Address
	if cfg.Ledger.ServerKey != "" {
		signer, err := crypto.NewSigner(cfg.Ledger.ServerKey)
		if err != nil {
			logger.Error("invalid server key", "err", err)
			os.Exit(1)
		}
		identity = signer.Address()
		logger.Info("server identity loaded", "address", identity.Hex())
	}

	// ── 6. Services ───────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(challenges, cfg, logger)
	engine := service.NewMatchEngine(store, locker, cfg, logger)
	treasury := service.NewTreasuryService(store, logger)

	// ── 7. WebSocket hub + event fan-out ──────────────────────────────────────
	hub := ws.NewHub(func(token string) (common.Address, bool) {
		claims, err := authSvc.ParseAccessToken(token)
		if err != nil {
			return common.Address{}, false
		}
		addr, err := claims.Address()
		return addr, err == nil
	}, cfg.Server.CORSOrigins, cfg.Ledger.Decimals, logger)
	go hub.Run(ctx)
	logger.Info("websocket hub started")

	if rdb != nil {
		// Every instance publishes to the bus and relays the bus into its own
		// hub, so clients see events from all instances exactly once.
		bus := redis.NewEventBus(rdb, cfg.Redis.EventChannel, logger)
		engine.AddPublisher(bus)
		go func() {
			if err := bus.Forward(ctx, hub); err != nil {
				logger.Error("event bus forward stopped", "err", err)
			}
		}()
	} else {
		engine.AddPublisher(hub)
	}

	// ── 8. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(engine, treasury, cfg, logger)
	sched.Start(ctx)

	// ── 9. HTTP servers ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:  authSvc,
		Engine:   engine,
		Hub:      hub,
		Identity: identity,
		Cfg:      cfg,
	})
	servers := []*http.Server{{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}}

	// An in-memory ledger cannot be shared with cmd/backoffice, so the admin
	// routes are served from this process instead.
	if cfg.UsesMemoryStore() {
		servers = append(servers, &http.Server{
			Addr: ":" + cfg.Server.BackofficePort,
			Handler: backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
				AuthSvc:  authSvc,
				Treasury: treasury,
				Reader:   store,
				Hub:      hub,
				Cfg:      cfg,
			}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	// ── 10. Graceful shutdown ─────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, draining connections…")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown error", "addr", srv.Addr, "err", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
	stop()

	if rdb != nil {
		_ = rdb.Close()
	}
	closeStore()
	logger.Info("server stopped cleanly")
}
