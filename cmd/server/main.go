// Command server runs the mission escrow API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/MissionForge/escrow_layer/internal/app"
	"github.com/MissionForge/escrow_layer/internal/app/httpapi"
	"github.com/MissionForge/escrow_layer/internal/app/storage/postgres"
	"github.com/MissionForge/escrow_layer/internal/config"
	"github.com/MissionForge/escrow_layer/internal/middleware"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging).Named("server")

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
	}

	application, err := app.New(stores, app.Identities{
		DAO:              config.Address(cfg.Protocol.DAO),
		ProtocolTreasury: config.Address(cfg.Protocol.ProtocolTreasury),
		LabsTreasury:     config.Address(cfg.Protocol.LabsTreasury),
		ResolverTreasury: config.Address(cfg.Protocol.ResolverTreasury),
		Resolver:         config.Address(cfg.Protocol.Resolver),
	}, app.Options{
		Cache:        cache,
		CronSchedule: cfg.Protocol.FinalizerSchedule,
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := application.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("Background services did not stop cleanly")
		}
	}()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      buildHandler(cfg, application, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.Database.DSN == "" {
		log.Info("No database configured, using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	store, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := store.Migrate(); err != nil {
			store.Close()
			return app.Stores{}, nil, err
		}
	}
	return app.Stores{
		Missions:     store,
		Disputes:     store,
		Guilds:       store,
		Reputation:   store,
		Achievements: store,
	}, func() { _ = store.Close() }, nil
}

func buildHandler(cfg *config.Config, application *app.Application, log *logger.Logger) http.Handler {
	handler := httpapi.NewHandler(application, log.Named("httpapi"))
	router := handler.Router()

	router.Use(middleware.Metrics())
	router.Use(middleware.AccessLog(zerolog.New(os.Stdout).With().Timestamp().Logger()))

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, log.Named("ratelimit"))
	limiter.StartCleanup(10 * time.Minute)

	var wrapped http.Handler = limiter.Handler(router)
	if cfg.Auth.Secret != "" {
		auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.Secret), log.Named("auth"), []string{
			"/healthz", "/metrics",
		})
		wrapped = auth.Handler(wrapped)
	} else {
		log.Warn("AUTH_SECRET not set, running without authentication")
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		wrapped = middleware.NewCORSMiddleware(cfg.Server.CORSOrigins).Handler(wrapped)
	}
	return middleware.RequestID(wrapped)
}
