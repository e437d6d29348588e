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

	"golang.org/x/sync/errgroup"

	"github.com/uplinepay/uplinepay-backend/internal/aggregation"
	"github.com/uplinepay/uplinepay-backend/internal/db"
	"github.com/uplinepay/uplinepay-backend/internal/handlers"
	"github.com/uplinepay/uplinepay-backend/internal/hierarchy"
	"github.com/uplinepay/uplinepay-backend/internal/ledger"
	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/middleware"
	"github.com/uplinepay/uplinepay-backend/internal/realtime"
	"github.com/uplinepay/uplinepay-backend/internal/realtime/bus"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
	"github.com/uplinepay/uplinepay-backend/internal/server"
	"github.com/uplinepay/uplinepay-backend/internal/services"
	"github.com/uplinepay/uplinepay-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	listenAddr := utils.GetEnv("LISTEN_ADDR", ":3000", log)
	attribution := ledger.ParseAttributionRule(utils.GetEnv("COMMISSION_ATTRIBUTION", "sender", log))
	shutdownTimeout := time.Duration(utils.GetEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10, log)) * time.Second

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	transactionRepo := repos.NewTransactionRepo(thePG, log)
	idempotencyRepo := repos.NewIdempotencyRepo(thePG, log)

	// Realtime hub + cross-instance bus
	log.Info("Setting up realtime hub now...")
	hub := realtime.NewHub(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var emitter services.EventEmitter = &services.HubEmitter{Hub: hub}
	if os.Getenv("REDIS_ADDR") != "" {
		eventBus, err := bus.NewRedisBus(log)
		if err != nil {
			log.Error("Could not init redis event bus", "error", err)
			os.Exit(1)
		}
		defer eventBus.Close()
		if err := eventBus.StartForwarder(ctx, hub.Broadcast); err != nil {
			log.Error("Could not start event forwarder", "error", err)
			os.Exit(1)
		}
		emitter = &services.BusEmitter{Bus: eventBus}
	} else {
		log.Warn("REDIS_ADDR not set; events stay local to this instance")
	}

	// Core. The ledger engine is the sole writer of balance state: deploy
	// exactly one instance of this binary per database. Additional instances
	// may only serve reads and SSE, fed through the redis bus.
	log.Info("Setting up core services from main...")
	store := hierarchy.NewStore(log, userRepo)
	engine := ledger.NewEngine(thePG, log, userRepo, transactionRepo, idempotencyRepo, store, attribution)
	aggService := aggregation.NewService(log, store, userRepo)
	notifier := services.NewLedgerNotifier(emitter)
	balanceService := services.NewBalanceService(log, engine, userRepo, aggService, notifier)
	userService := services.NewUserService(log, userRepo, store, aggService)

	// Handlers
	balanceHandler := handlers.NewBalanceHandler(balanceService)
	userHandler := handlers.NewUserHandler(userService, aggService)
	sseHandler := handlers.NewSSEHandler(hub)
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware: authMiddleware,
		BalanceHandler: balanceHandler,
		UserHandler:    userHandler,
		SSEHandler:     sseHandler,
	})

	srv := &http.Server{Addr: listenAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server...", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server exited", "error", err)
	}
	log.Info("Server stopped")
}
